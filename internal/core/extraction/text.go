package extraction

import (
	"bytes"
	"context"
	"strings"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// TextExtractor decodes plain text and markdown files as UTF-8. Invalid byte
// sequences become U+FFFD instead of failing the document.
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor { return &TextExtractor{} }

var _ core.Extractor = (*TextExtractor)(nil)

func (t *TextExtractor) Extract(_ context.Context, data []byte, _, _ string) (*core.Extraction, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	text, err := requireText(strings.ToValidUTF8(string(data), "\uFFFD"), "text")
	if err != nil {
		return nil, err
	}
	return &core.Extraction{Text: text, Confidence: models.ConfidenceNative}, nil
}
