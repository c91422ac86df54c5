package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

const transcribePrompt = `Transcribe all readable text in this document exactly as written.
Keep headings on their own lines and keep the reading order.
Do not summarize, translate or add commentary. If there is no text, answer with nothing.`

// GeminiTranscriber asks a multimodal model to read a scanned file.
// It is the last OCR strategy and only runs when explicitly enabled.
type GeminiTranscriber struct {
	client    *genai.Client
	modelName string
	timeout   time.Duration
}

var _ core.Extractor = (*GeminiTranscriber)(nil)

func NewGeminiTranscriber(ctx context.Context, apiKey, modelName string, timeout time.Duration, opts ...option.ClientOption) (*GeminiTranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}
	cl, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiTranscriber{client: cl, modelName: modelName, timeout: timeout}, nil
}

func (g *GeminiTranscriber) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiTranscriber) Extract(ctx context.Context, data []byte, _, mimeType string) (*core.Extraction, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	m := g.client.GenerativeModel(g.modelName)
	m.SetTemperature(0)

	resp, err := m.GenerateContent(ctx, genai.Blob{MIMEType: mimeType, Data: data}, genai.Text(transcribePrompt))
	if err != nil {
		return nil, fmt.Errorf("gemini transcribe: %w", err)
	}

	text := strings.TrimSpace(candidateText(resp))
	if text == "" {
		return nil, fmt.Errorf("gemini transcribe: %w", core.ErrEmptyExtraction)
	}
	return &core.Extraction{
		Text:       text,
		Confidence: models.ConfidenceOCR,
		Metadata:   map[string]string{"model": g.modelName},
	}, nil
}

func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}
