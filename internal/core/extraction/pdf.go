package extraction

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"code.sajari.com/docconv"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/logger"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

// PDFExtractor reads the embedded text layer of a PDF.
type PDFExtractor struct {
	convert func(r io.Reader) (string, map[string]string, error)
}

func NewPDFExtractor() *PDFExtractor { return &PDFExtractor{convert: docconv.ConvertPDF} }

var _ core.Extractor = (*PDFExtractor)(nil)

func (p *PDFExtractor) Extract(ctx context.Context, data []byte, fileName, _ string) (*core.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, meta, err := p.convert(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("pdf text layer: %w", err)
	}
	if text, err = requireText(text, "pdf"); err != nil {
		return nil, err
	}

	if meta == nil {
		meta = map[string]string{}
	}
	if pages, err := PageCount(data); err == nil {
		meta["page_count"] = strconv.Itoa(pages)
	} else {
		logger.FromContext(ctx).Warn("pdf page count failed", "file", fileName, "error", err)
	}

	return &core.Extraction{
		Text:       text,
		Confidence: models.ConfidenceNative,
		Metadata:   meta,
	}, nil
}

// PageCount reads the page tree without validating the rest of the file.
func PageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(data), conf)
}
