package extraction

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

type fakeExtractor struct {
	mu    sync.Mutex
	text  string
	conf  models.Confidence
	err   error
	calls int
}

func (f *fakeExtractor) Extract(_ context.Context, _ []byte, _, _ string) (*core.Extraction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &core.Extraction{Text: f.text, Confidence: f.conf}, nil
}

func (f *fakeExtractor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestRouter(native, ocr, transcriber *fakeExtractor) *Router {
	cfg := ChainConfig{
		PDF:  native,
		OCR:  ocr,
		Text: NewTextExtractor(),
	}
	if transcriber != nil {
		cfg.Transcriber = transcriber
	}
	return NewRouter(DefaultChains(cfg))
}

func TestRouter_NativePDFAccepted(t *testing.T) {
	native := &fakeExtractor{text: strings.Repeat("Isolation thermique. ", 30), conf: models.ConfidenceNative}
	ocr := &fakeExtractor{text: "unused", conf: models.ConfidenceOCR}

	ext, err := newTestRouter(native, ocr, nil).ExtractDocument(context.Background(), []byte("%PDF"), "guide.pdf", "application/pdf")

	require.NoError(t, err)
	assert.Equal(t, models.ConfidenceNative, ext.Confidence)
	assert.Equal(t, "native", ext.Strategy)
	assert.Equal(t, "pdf", ext.Format)
	assert.Zero(t, ocr.Calls())
}

func TestRouter_ShortNativeFallsBackToOCR(t *testing.T) {
	native := &fakeExtractor{text: "  Page 1  ", conf: models.ConfidenceNative}
	ocr := &fakeExtractor{text: "Texte scanné du DTU", conf: models.ConfidenceOCR}

	ext, err := newTestRouter(native, ocr, nil).ExtractDocument(context.Background(), []byte("%PDF"), "scan.pdf", "")

	require.NoError(t, err)
	assert.Equal(t, models.ConfidenceOCR, ext.Confidence)
	assert.Equal(t, "ocr", ext.Strategy)
	assert.Equal(t, "Texte scanné du DTU", ext.Text)
	assert.Equal(t, 1, native.Calls())
	assert.Equal(t, 1, ocr.Calls())
}

func TestRouter_NativeErrorFallsBackToOCR(t *testing.T) {
	native := &fakeExtractor{err: errors.New("pdftotext: exit status 1")}
	ocr := &fakeExtractor{text: "ok", conf: models.ConfidenceOCR}

	ext, err := newTestRouter(native, ocr, nil).ExtractDocument(context.Background(), nil, "broken.pdf", "")

	require.NoError(t, err)
	assert.Equal(t, models.ConfidenceOCR, ext.Confidence)
}

func TestRouter_AllStrategiesFail(t *testing.T) {
	native := &fakeExtractor{text: "", conf: models.ConfidenceNative}
	ocr := &fakeExtractor{err: core.ErrEmptyExtraction}

	_, err := newTestRouter(native, ocr, nil).ExtractDocument(context.Background(), nil, "blank.pdf", "")

	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmptyExtraction)
	assert.Contains(t, err.Error(), "native")
	assert.Contains(t, err.Error(), "ocr")
}

func TestRouter_TranscriberRunsLast(t *testing.T) {
	native := &fakeExtractor{text: "x", conf: models.ConfidenceNative}
	ocr := &fakeExtractor{err: errors.New("vision: code 429")}
	llm := &fakeExtractor{text: "transcription", conf: models.ConfidenceOCR}

	ext, err := newTestRouter(native, ocr, llm).ExtractDocument(context.Background(), nil, "scan.pdf", "")

	require.NoError(t, err)
	assert.Equal(t, "llm-transcription", ext.Strategy)
	assert.Equal(t, 1, ocr.Calls())
}

func TestRouter_ImageGoesStraightToOCR(t *testing.T) {
	native := &fakeExtractor{text: "unused"}
	ocr := &fakeExtractor{text: "plaque signalétique", conf: models.ConfidenceOCR}

	ext, err := newTestRouter(native, ocr, nil).ExtractDocument(context.Background(), nil, "photo.png", "")

	require.NoError(t, err)
	assert.Equal(t, models.ConfidenceOCR, ext.Confidence)
	assert.Zero(t, native.Calls())
}

func TestRouter_UnsupportedFormat(t *testing.T) {
	_, err := newTestRouter(&fakeExtractor{}, &fakeExtractor{}, nil).ExtractDocument(context.Background(), nil, "a.exe", "")

	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

func TestRouter_MissingChainIsUnsupported(t *testing.T) {
	r := NewRouter(map[Format][]Strategy{})

	_, err := r.ExtractDocument(context.Background(), nil, "a.pdf", "")

	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

func TestMinLength(t *testing.T) {
	accept := MinLength(5)

	assert.False(t, accept("  abcd \n"))
	assert.True(t, accept("ébène"))
}
