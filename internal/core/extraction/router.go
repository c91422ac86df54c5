package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/logger"
)

// DefaultMinNativePDFChars is the trimmed length below which native PDF text is
// considered too poor and OCR is tried instead.
const DefaultMinNativePDFChars = 500

// Strategy is one step of a fallback chain. Accept, when set, is the quality predicate
// the extracted text must satisfy for the chain to stop here.
type Strategy struct {
	Name      string
	Extractor core.Extractor
	Accept    func(text string) bool
}

// MinLength accepts text whose trimmed length is at least n characters.
func MinLength(n int) func(string) bool {
	return func(text string) bool {
		return utf8.RuneCountInString(strings.TrimSpace(text)) >= n
	}
}

// NonEmpty accepts any text with non-whitespace content.
func NonEmpty(text string) bool {
	return strings.TrimSpace(text) != ""
}

// Router picks the strategy chain for a file and walks it until one strategy's output
// passes its quality predicate.
type Router struct {
	chains map[Format][]Strategy
}

var _ core.DocumentExtractor = (*Router)(nil)

// NewRouter builds a router from explicit chains. Formats without a chain are unsupported.
func NewRouter(chains map[Format][]Strategy) *Router {
	return &Router{chains: chains}
}

// ChainConfig lists the extractors wired into the default chains.
//
// Transcriber is optional; when set it is appended after OCR for PDFs and images.
type ChainConfig struct {
	PDF               core.Extractor
	Docx              core.Extractor
	Spreadsheet       core.Extractor
	OCR               core.Extractor
	Text              core.Extractor
	Transcriber       core.Extractor
	MinNativePDFChars int
}

// DefaultChains returns the chains for every supported format:
// PDF is native then OCR, images are OCR only, the rest have a single extractor.
func DefaultChains(cfg ChainConfig) map[Format][]Strategy {
	minChars := cfg.MinNativePDFChars
	if minChars <= 0 {
		minChars = DefaultMinNativePDFChars
	}

	ocrTail := []Strategy{{Name: "ocr", Extractor: cfg.OCR, Accept: NonEmpty}}
	if cfg.Transcriber != nil {
		ocrTail = append(ocrTail, Strategy{Name: "llm-transcription", Extractor: cfg.Transcriber, Accept: NonEmpty})
	}

	pdf := append([]Strategy{{Name: "native", Extractor: cfg.PDF, Accept: MinLength(minChars)}}, ocrTail...)

	return map[Format][]Strategy{
		FormatPDF:         pdf,
		FormatDocx:        {{Name: "docx", Extractor: cfg.Docx, Accept: NonEmpty}},
		FormatSpreadsheet: {{Name: "spreadsheet", Extractor: cfg.Spreadsheet, Accept: NonEmpty}},
		FormatImage:       append([]Strategy(nil), ocrTail...),
		FormatText:        {{Name: "text", Extractor: cfg.Text, Accept: NonEmpty}},
	}
}

// ExtractDocument detects the format and runs its chain. When every strategy fails,
// the returned error wraps the last strategy's error and lists the earlier ones.
func (r *Router) ExtractDocument(ctx context.Context, data []byte, fileName, mimeType string) (*core.Extraction, error) {
	format, err := DetectFormat(fileName, mimeType)
	if err != nil {
		return nil, err
	}

	chain := r.chains[format]
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: no extractor configured for %s", core.ErrUnsupportedFormat, format)
	}

	log := logger.FromContext(ctx).With("file", fileName, "format", string(format))

	var (
		earlier []string
		lastErr error
	)
	for _, s := range chain {
		if s.Extractor == nil {
			continue
		}

		ext, err := s.Extractor.Extract(ctx, data, fileName, mimeType)
		if err == nil && s.Accept != nil && !s.Accept(ext.Text) {
			err = fmt.Errorf("%w: %d characters after trimming", errBelowQuality, utf8.RuneCountInString(strings.TrimSpace(ext.Text)))
		}
		if err != nil {
			log.Warn("extraction strategy rejected, trying next", "strategy", s.Name, "error", err)
			if lastErr != nil {
				earlier = append(earlier, lastErr.Error())
			}
			lastErr = fmt.Errorf("%s: %w", s.Name, err)
			continue
		}

		ext.Format = string(format)
		ext.Strategy = s.Name
		if ext.Metadata == nil {
			ext.Metadata = map[string]string{}
		}
		log.Debug("extraction succeeded", "strategy", s.Name, "confidence", string(ext.Confidence), "chars", len(ext.Text))
		return ext, nil
	}

	if lastErr == nil {
		return nil, fmt.Errorf("%w: no usable extractor for %s", core.ErrUnsupportedFormat, format)
	}
	if len(earlier) > 0 {
		return nil, fmt.Errorf("%s extraction failed (earlier: %s): %w", format, strings.Join(earlier, "; "), lastErr)
	}
	return nil, fmt.Errorf("%s extraction failed: %w", format, lastErr)
}

var errBelowQuality = errors.New("text below quality threshold")

// requireText trims text and fails with ErrEmptyExtraction when nothing is left.
func requireText(text, source string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%s: %w", source, core.ErrEmptyExtraction)
	}
	return text, nil
}
