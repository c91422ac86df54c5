package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

type stubEmbedder struct {
	mu      sync.Mutex
	queries []string
	err     error
}

func (e *stubEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.EmbedText(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *stubEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queries = append(e.queries, text)
	if e.err != nil {
		return nil, e.err
	}
	return []float32{0.25, 0.5, 0.25}, nil
}

type stubSearcher struct {
	params  []models.SearchParams
	results []models.SearchResult
	err     error

	keywordParams  []models.KeywordSearchParams
	keywordResults []models.SearchResult
	keywordErr     error
}

func (s *stubSearcher) SearchChunksByKeyword(_ context.Context, p models.KeywordSearchParams) ([]models.SearchResult, error) {
	s.keywordParams = append(s.keywordParams, p)
	if s.keywordErr != nil {
		return nil, s.keywordErr
	}
	return append([]models.SearchResult(nil), s.keywordResults...), nil
}

func (s *stubSearcher) SearchChunks(_ context.Context, p models.SearchParams) ([]models.SearchResult, error) {
	s.params = append(s.params, p)
	if s.err != nil {
		return nil, s.err
	}
	return append([]models.SearchResult(nil), s.results...), nil
}

func TestSearch_SortsByFinalScoreAndEchoesInput(t *testing.T) {
	searcher := &stubSearcher{results: []models.SearchResult{
		{ChunkID: "a", Similarity: 0.80, FinalScore: 0.80},
		{ChunkID: "b", Similarity: 0.79, FinalScore: 0.8295},
		{ChunkID: "c", Similarity: 0.91, FinalScore: 0.91},
		{ChunkID: "d", Similarity: 0.80, FinalScore: 0.80},
	}}
	svc := NewSearchService(&stubEmbedder{}, searcher)

	resp, err := svc.Search(context.Background(), models.SearchRequest{
		Query:   "isolation combles",
		Filters: models.SearchFilters{Category: "isolation"},
	})

	require.NoError(t, err)
	var ids []string
	for _, r := range resp.Results {
		ids = append(ids, r.ChunkID)
	}
	assert.Equal(t, []string{"c", "b", "a", "d"}, ids)
	assert.Equal(t, "isolation combles", resp.Query)
	assert.Equal(t, []float32{0.25, 0.5, 0.25}, resp.Embedding)
	assert.Equal(t, models.SearchFilters{Category: "isolation"}, resp.Filters)
	assert.Equal(t, models.SearchModeVector, resp.Mode)
	assert.Empty(t, searcher.keywordParams)

	require.Len(t, searcher.params, 1)
	assert.Equal(t, DefaultSearchLimit, searcher.params[0].Limit)
	assert.Equal(t, "isolation", searcher.params[0].Filters.Category)
	assert.Empty(t, searcher.params[0].Filters.Metier)
}

func TestSearch_EmptyQuery(t *testing.T) {
	emb := &stubEmbedder{}
	svc := NewSearchService(emb, &stubSearcher{})

	_, err := svc.Search(context.Background(), models.SearchRequest{Query: "   "})

	assert.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Empty(t, emb.queries)
}

func TestSearch_LimitIsCapped(t *testing.T) {
	searcher := &stubSearcher{}
	svc := NewSearchService(&stubEmbedder{}, searcher)

	resp, err := svc.Search(context.Background(), models.SearchRequest{Query: "pare-vapeur", Limit: 500})

	require.NoError(t, err)
	assert.Equal(t, MaxSearchLimit, searcher.params[0].Limit)
	require.Len(t, searcher.keywordParams, 1)
	assert.Equal(t, MaxSearchLimit, searcher.keywordParams[0].Limit)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
}

func TestSearch_ProcedureErrorIsWrapped(t *testing.T) {
	svc := NewSearchService(&stubEmbedder{}, &stubSearcher{err: core.ErrMalformedResponse})

	_, err := svc.Search(context.Background(), models.SearchRequest{Query: "q"})

	assert.ErrorIs(t, err, core.ErrMalformedResponse)
	assert.Contains(t, err.Error(), "similarity search")
}

func TestSearch_EmbeddingErrorStopsBeforeSearch(t *testing.T) {
	searcher := &stubSearcher{}
	svc := NewSearchService(&stubEmbedder{err: errors.New("status 401")}, searcher)

	_, err := svc.Search(context.Background(), models.SearchRequest{Query: "q"})

	require.Error(t, err)
	assert.Empty(t, searcher.params)
}

func TestSearch_FallsBackToKeywordWhenVectorFindsNothing(t *testing.T) {
	searcher := &stubSearcher{keywordResults: []models.SearchResult{
		{ChunkID: "k1", Similarity: 0.1, FinalScore: 0.1},
		{ChunkID: "k2", Similarity: 0.3, FinalScore: 0.315},
	}}
	svc := NewSearchService(&stubEmbedder{}, searcher)

	resp, err := svc.Search(context.Background(), models.SearchRequest{
		Query:   "  pare-vapeur ",
		Limit:   5,
		Filters: models.SearchFilters{Metier: " plaquiste "},
	})

	require.NoError(t, err)
	assert.Equal(t, models.SearchModeKeyword, resp.Mode)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "k2", resp.Results[0].ChunkID)
	assert.Equal(t, "k1", resp.Results[1].ChunkID)

	require.Len(t, searcher.keywordParams, 1)
	assert.Equal(t, models.KeywordSearchParams{
		Query:   "pare-vapeur",
		Limit:   5,
		Filters: models.SearchFilters{Metier: "plaquiste"},
	}, searcher.keywordParams[0])
}

func TestSearch_KeywordFallbackErrorKeepsEmptyVectorResult(t *testing.T) {
	searcher := &stubSearcher{keywordErr: errors.New("function search_knowledge_by_keyword does not exist")}
	svc := NewSearchService(&stubEmbedder{}, searcher)

	resp, err := svc.Search(context.Background(), models.SearchRequest{Query: "combles"})

	require.NoError(t, err)
	assert.Equal(t, models.SearchModeVector, resp.Mode)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
}

func TestSearch_VectorErrorSkipsKeywordFallback(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("connection reset")}
	svc := NewSearchService(&stubEmbedder{}, searcher)

	_, err := svc.Search(context.Background(), models.SearchRequest{Query: "combles"})

	require.Error(t, err)
	assert.Empty(t, searcher.keywordParams)
}
