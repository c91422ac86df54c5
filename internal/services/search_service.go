package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/logger"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 50
)

// SearchService embeds a query and ranks chunks through the similarity procedure.
// When that finds nothing, full-text matching over the same documents serves instead.
// It holds no mutable state and is safe for concurrent use.
type SearchService struct {
	embedder core.EmbeddingProvider
	searcher core.ChunkSearcher
}

func NewSearchService(embedder core.EmbeddingProvider, searcher core.ChunkSearcher) *SearchService {
	return &SearchService{embedder: embedder, searcher: searcher}
}

func (s *SearchService) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", core.ErrInvalidInput)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	limit = min(limit, MaxSearchLimit)

	filters := models.SearchFilters{
		Category: strings.TrimSpace(req.Filters.Category),
		Metier:   strings.TrimSpace(req.Filters.Metier),
	}

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.searcher.SearchChunks(ctx, models.SearchParams{
		Embedding: embedding,
		Limit:     limit,
		Filters:   filters,
	})
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	mode := models.SearchModeVector
	if len(results) == 0 {
		kw, err := s.searcher.SearchChunksByKeyword(ctx, models.KeywordSearchParams{
			Query:   query,
			Limit:   limit,
			Filters: filters,
		})
		switch {
		case err != nil:
			logger.FromContext(ctx).Warn("keyword fallback failed", "error", err)
		case len(kw) > 0:
			results, mode = kw, models.SearchModeKeyword
		}
	}
	if results == nil {
		results = []models.SearchResult{}
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].FinalScore > results[b].FinalScore
	})

	logger.FromContext(ctx).Debug("search served",
		"mode", string(mode),
		"results", len(results),
		"limit", limit,
		"filter_category", filters.Category,
		"filter_metier", filters.Metier,
	)

	return &models.SearchResponse{
		Query:     req.Query,
		Embedding: embedding,
		Filters:   filters,
		Mode:      mode,
		Results:   results,
	}, nil
}
