package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/core/retry"
	"github.com/markdave123-py/contexta-ingest/internal/logger"
)

const (
	defaultOpenAIBaseURL     = "https://api.openai.com/v1"
	defaultOpenAIModel       = "text-embedding-3-small"
	openaiEmbeddingDimension = 1536
	defaultEmbedBatchSize    = 512
	defaultRetryBase         = 500 * time.Millisecond
)

type embeddingRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	EncodingFormat string   `json:"encoding_format"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

type openaiErrorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// OpenAIConfig configures the embeddings client. Zero values take defaults.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimension  int
	BatchSize  int
	RPS        float64
	MaxRetries int
	RetryBase  time.Duration
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OpenAIEmbedder calls the /embeddings endpoint.
//
// Inputs larger than BatchSize are sent as sequential sub-batches. The call is
// all or nothing: any failed sub-batch or any vector of the wrong length fails
// the whole EmbedTexts call and no vectors are returned.
type OpenAIEmbedder struct {
	config     OpenAIConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ core.EmbeddingProvider = (*OpenAIEmbedder)(nil)

func NewOpenAIEmbedder(config OpenAIConfig) *OpenAIEmbedder {
	if config.BaseURL == "" {
		config.BaseURL = defaultOpenAIBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Model == "" {
		config.Model = defaultOpenAIModel
	}
	if config.Dimension <= 0 {
		config.Dimension = openaiEmbeddingDimension
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaultEmbedBatchSize
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryBase <= 0 {
		config.RetryBase = defaultRetryBase
	}

	client := config.HTTPClient
	if client == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RPS), 1)
	}

	return &OpenAIEmbedder{config: config, httpClient: client, limiter: limiter}
}

func (e *OpenAIEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no texts provided", core.ErrInvalidInput)
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(texts))

		vecs, err := e.embedBatch(ctx, texts[start:end], start)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// embedBatch sends one request. offset is the position of batch[0] in the caller's input,
// so mismatch errors name the global index.
func (e *OpenAIEmbedder) embedBatch(ctx context.Context, batch []string, offset int) ([][]float32, error) {
	var resp *embeddingResponse
	err := retry.Do(ctx, e.config.MaxRetries, e.config.RetryBase, func(ctx context.Context) error {
		if err := e.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		r, err := e.post(ctx, batch)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(batch) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", core.ErrMalformedResponse, len(batch), len(resp.Data))
	}

	vecs := make([][]float32, len(batch))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(batch) || vecs[d.Index] != nil {
			return nil, fmt.Errorf("%w: unexpected embedding index %d", core.ErrMalformedResponse, d.Index)
		}
		if len(d.Embedding) != e.config.Dimension {
			return nil, fmt.Errorf("%w: index %d has %d dimensions, want %d",
				core.ErrDimensionMismatch, offset+d.Index, len(d.Embedding), e.config.Dimension)
		}
		vecs[d.Index] = d.Embedding
	}

	logger.FromContext(ctx).Debug("embedded batch", "offset", offset, "count", len(batch), "tokens", resp.Usage.TotalTokens)
	return vecs, nil
}

func (e *OpenAIEmbedder) post(ctx context.Context, batch []string) (*embeddingResponse, error) {
	body, err := json.Marshal(embeddingRequest{Input: batch, Model: e.config.Model, EncodingFormat: "float"})
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.config.APIKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, retry.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := decodeAPIError(resp)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, apiErr
		}
		return nil, retry.Permanent(apiErr)
	}

	var out embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, retry.Permanent(fmt.Errorf("%w: decode embeddings: %v", core.ErrMalformedResponse, err))
	}
	return &out, nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var env openaiErrorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error.Message != "" {
		return fmt.Errorf("embeddings API status %d (%s): %s", resp.StatusCode, env.Error.Type, env.Error.Message)
	}
	return fmt.Errorf("embeddings API status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}
