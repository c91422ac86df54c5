package core

import (
	"context"

	"github.com/markdave123-py/contexta-ingest/internal/models"
)

// Extraction is the result of turning raw file bytes into text.
type Extraction struct {
	Text       string
	Confidence models.Confidence
	Format     string
	Strategy   string
	Metadata   map[string]string
}

// Extractor pulls text out of one file format.
// Empty output is either reported as ErrEmptyExtraction or rejected by the router.
type Extractor interface {
	Extract(ctx context.Context, data []byte, fileName, mimeType string) (*Extraction, error)
}

// DocumentExtractor routes a file to the right Extractor chain.
type DocumentExtractor interface {
	ExtractDocument(ctx context.Context, data []byte, fileName, mimeType string) (*Extraction, error)
}
