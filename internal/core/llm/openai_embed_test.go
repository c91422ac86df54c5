package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta-ingest/internal/core"
)

type embedServer struct {
	mu       sync.Mutex
	requests [][]string
	status   []int // status to answer per call; 200 once exhausted
	dimAt    map[int]int
	reverse  bool
}

func (s *embedServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	call := len(s.requests)
	var req embeddingRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	s.requests = append(s.requests, req.Input)
	s.mu.Unlock()

	if r.URL.Path != "/v1/embeddings" || r.Header.Get("Authorization") != "Bearer sk-test" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if call < len(s.status) && s.status[call] != http.StatusOK {
		w.WriteHeader(s.status[call])
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
		return
	}

	type item struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	}
	data := make([]item, len(req.Input))
	for i := range req.Input {
		dim := 4
		if d, ok := s.dimAt[i]; ok {
			dim = d
		}
		vec := make([]float32, dim)
		vec[0] = float32(len(req.Input[i]))
		data[i] = item{Index: i, Embedding: vec}
	}
	if s.reverse {
		for l, r := 0, len(data)-1; l < r; l, r = l+1, r-1 {
			data[l], data[r] = data[r], data[l]
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data, "model": req.Model})
}

func (s *embedServer) calls() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.requests...)
}

func newTestEmbedder(t *testing.T, s *embedServer, batch int) *OpenAIEmbedder {
	t.Helper()
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	return NewOpenAIEmbedder(OpenAIConfig{
		APIKey:     "sk-test",
		BaseURL:    srv.URL + "/v1/",
		Dimension:  4,
		BatchSize:  batch,
		MaxRetries: 3,
		RetryBase:  time.Millisecond,
		HTTPClient: srv.Client(),
	})
}

func TestEmbedTexts_OrdersByIndex(t *testing.T) {
	s := &embedServer{reverse: true}
	e := newTestEmbedder(t, s, 10)

	vecs, err := e.EmbedTexts(context.Background(), []string{"a", "bb", "ccc"})

	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, float32(1), vecs[0][0])
	assert.Equal(t, float32(2), vecs[1][0])
	assert.Equal(t, float32(3), vecs[2][0])
}

func TestEmbedTexts_SubBatches(t *testing.T) {
	s := &embedServer{}
	e := newTestEmbedder(t, s, 2)

	vecs, err := e.EmbedTexts(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})

	require.NoError(t, err)
	require.Len(t, vecs, 5)
	assert.Equal(t, float32(5), vecs[4][0])
	assert.Equal(t, [][]string{{"a", "bb"}, {"ccc", "dddd"}, {"eeeee"}}, s.calls())
}

func TestEmbedTexts_DimensionMismatchNamesGlobalIndex(t *testing.T) {
	s := &embedServer{dimAt: map[int]int{1: 3}}
	e := newTestEmbedder(t, s, 2)

	vecs, err := e.EmbedTexts(context.Background(), []string{"a", "b", "c", "d"})

	require.Error(t, err)
	assert.Nil(t, vecs)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	// second position of the first batch is global index 1
	assert.Contains(t, err.Error(), "index 1 has 3 dimensions")
	assert.Len(t, s.calls(), 1)
}

func TestEmbedTexts_RetriesOn429(t *testing.T) {
	s := &embedServer{status: []int{http.StatusTooManyRequests, http.StatusBadGateway}}
	e := newTestEmbedder(t, s, 10)

	vecs, err := e.EmbedTexts(context.Background(), []string{"combles"})

	require.NoError(t, err)
	assert.Len(t, vecs, 1)
	assert.Len(t, s.calls(), 3)
}

func TestEmbedTexts_DoesNotRetryClientError(t *testing.T) {
	s := &embedServer{status: []int{http.StatusBadRequest}}
	e := newTestEmbedder(t, s, 10)

	_, err := e.EmbedTexts(context.Background(), []string{"x"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "slow down")
	assert.Len(t, s.calls(), 1)
}

func TestEmbedTexts_Empty(t *testing.T) {
	e := newTestEmbedder(t, &embedServer{}, 10)

	_, err := e.EmbedTexts(context.Background(), nil)

	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestEmbedText_DelegatesToBatch(t *testing.T) {
	s := &embedServer{}
	e := newTestEmbedder(t, s, 10)

	vec, err := e.EmbedText(context.Background(), "isolation combles")

	require.NoError(t, err)
	assert.Len(t, vec, 4)
	assert.Equal(t, [][]string{{"isolation combles"}}, s.calls())
}
