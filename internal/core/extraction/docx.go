package extraction

import (
	"bytes"
	"context"
	"fmt"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

// DocxExtractor pulls the raw text out of a Word document.
type DocxExtractor struct{}

func NewDocxExtractor() *DocxExtractor { return &DocxExtractor{} }

var _ core.Extractor = (*DocxExtractor)(nil)

func (d *DocxExtractor) Extract(ctx context.Context, data []byte, _, _ string) (*core.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, meta, err := docconv.ConvertDocx(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("docx: %w", err)
	}
	text, err = requireText(text, "docx")
	if err != nil {
		return nil, err
	}

	return &core.Extraction{Text: text, Confidence: models.ConfidenceNative, Metadata: meta}, nil
}
