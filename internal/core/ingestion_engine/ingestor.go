package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/core/extraction"
	"github.com/markdave123-py/contexta-ingest/internal/core/textproc"
	"github.com/markdave123-py/contexta-ingest/internal/logger"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

const (
	progressClaimed   = 10
	progressChunked   = 30
	progressEmbedding = 50

	maxErrorMessageLen = 2000
	failWriteTimeout   = 15 * time.Second
)

type Ingestor interface {
	Claim(ctx context.Context, docID string) (*models.Document, error)
	Process(ctx context.Context, doc *models.Document) error
	Fail(ctx context.Context, doc *models.Document, err error)
	Requeue(ctx context.Context, docID string) (*models.Document, error)
	RunDocument(ctx context.Context, docID string) error
}

// DocumentIngestor turns one claimed document into embedded chunks:
//
// db:        document state and chunk persistence.
// obj:       blob storage holding the uploaded files.
// embedder:  embedding provider for chunk texts.
// extractor: routes bytes to the right extraction chain.
// chunker:   section-aware chunker.
type DocumentIngestor struct {
	db        core.DocumentStore
	obj       core.ObjectClient
	embedder  core.EmbeddingProvider
	extractor core.DocumentExtractor
	chunker   *textproc.Chunker
	cfg       IngestConfig
}

var _ Ingestor = (*DocumentIngestor)(nil)

func NewDocumentIngestor(db core.DocumentStore, obj core.ObjectClient, emb core.EmbeddingProvider, extractor core.DocumentExtractor, cfg IngestConfig) *DocumentIngestor {
	return &DocumentIngestor{
		db:        db,
		obj:       obj,
		embedder:  emb,
		extractor: extractor,
		chunker:   textproc.NewChunker(cfg.ChunkSize),
		cfg:       cfg,
	}
}

// Claim moves a pending document to processing. Losing the race returns core.ErrClaimConflict.
func (i *DocumentIngestor) Claim(ctx context.Context, docID string) (*models.Document, error) {
	return i.db.ClaimDocument(ctx, docID)
}

// RunDocument claims, processes and, on error, fails one document.
// The processing context ignores cancellation of ctx so a claimed document
// always ends completed or failed.
func (i *DocumentIngestor) RunDocument(ctx context.Context, docID string) error {
	doc, err := i.Claim(ctx, docID)
	if err != nil {
		return err
	}

	pctx := context.WithoutCancel(ctx)
	if err := i.Process(pctx, doc); err != nil {
		i.Fail(pctx, doc, err)
		return err
	}
	return nil
}

// Process runs the pipeline for a claimed document. Errors are wrapped with the stage
// they came from; recording the failure is left to Fail.
func (i *DocumentIngestor) Process(ctx context.Context, doc *models.Document) error {
	log := logger.FromContext(ctx).With("document_id", doc.ID, "file", doc.FileName)
	ctx = logger.WithContext(ctx, log)
	started := time.Now()

	if i.cfg.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.cfg.ProcessTimeout)
		defer cancel()
	}

	removed, err := i.db.DeleteChunks(ctx, doc.ID)
	if err != nil {
		return core.Stage(core.StageDeleteChunks, err)
	}
	if removed > 0 {
		log.Info("removed chunks from previous run", "count", removed)
	}
	i.progress(ctx, doc.ID, progressClaimed, models.StepExtracting)

	data, err := i.download(ctx, doc.FilePath)
	if err != nil {
		return core.Stage(core.StageDownload, err)
	}

	fileName := doc.FileName
	if fileName == "" {
		fileName = path.Base(doc.FilePath)
	}
	ext, err := i.extractor.ExtractDocument(ctx, data, fileName, doc.MimeType)
	if err != nil {
		return core.Stage(core.StageExtract, err)
	}

	text := textproc.Normalize(ext.Text)
	if text == "" {
		return core.Stage(core.StageExtract, fmt.Errorf("after normalization: %w", core.ErrEmptyExtraction))
	}

	chunks := i.chunker.Chunk(text, textproc.Structure(text))
	if len(chunks) == 0 {
		return core.Stage(core.StageChunk, core.ErrEmptyExtraction)
	}
	i.decorate(chunks, doc, fileName, ext)

	if err := i.db.InsertChunks(ctx, chunks); err != nil {
		return core.Stage(core.StageInsertChunks, err)
	}
	i.progress(ctx, doc.ID, progressChunked, models.StepChunking)

	i.progress(ctx, doc.ID, progressEmbedding, models.StepEmbedding)
	vectors, err := i.embed(ctx, chunks)
	if err != nil {
		return core.Stage(core.StageEmbed, err)
	}

	if err := i.db.UpdateChunkEmbeddings(ctx, doc.ID, vectors); err != nil {
		return core.Stage(core.StageStoreEmbeddings, err)
	}

	i.progress(ctx, doc.ID, progressEmbedding, models.StepFinalizing)
	missing, err := i.db.CountChunksMissingEmbedding(ctx, doc.ID)
	if err != nil {
		return core.Stage(core.StageFinalize, err)
	}
	if missing > 0 {
		return core.Stage(core.StageFinalize, fmt.Errorf("%w: %d of %d chunks have no embedding", core.ErrIntegrityCheck, missing, len(chunks)))
	}

	if err := i.db.MarkCompleted(ctx, doc.ID, ext.Confidence, len(chunks)); err != nil {
		return core.Stage(core.StageFinalize, err)
	}

	log.Info("document ingested",
		"chunks", len(chunks),
		"confidence", string(ext.Confidence),
		"strategy", ext.Strategy,
		"chars", utf8.RuneCountInString(text),
		"duration", time.Since(started).String(),
	)
	return nil
}

// Fail records err on the document. It is best-effort: a failing update is logged and dropped.
func (i *DocumentIngestor) Fail(ctx context.Context, doc *models.Document, err error) {
	failure := models.IngestionFailure{
		Reason:  core.ClassifyFailure(err),
		Message: truncate(err.Error(), maxErrorMessageLen),
		Step:    stepForError(err),
	}

	log := logger.FromContext(ctx).With("document_id", doc.ID, "file", doc.FileName)
	log.Error("document ingestion failed",
		"reason", failure.Reason,
		"step", string(failure.Step),
		"retryable", core.Retryable(failure.Reason),
		"error", err,
	)

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failWriteTimeout)
	defer cancel()
	if mErr := i.db.MarkFailed(wctx, doc.ID, failure); mErr != nil {
		log.Error("could not record ingestion failure", "error", mErr, "db_error", string(core.ClassifyDBError(mErr)))
	}
}

// Requeue moves a failed document back to pending. Nothing calls it automatically.
func (i *DocumentIngestor) Requeue(ctx context.Context, docID string) (*models.Document, error) {
	doc, err := i.db.RequeueDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("document requeued", "document_id", docID)
	return doc, nil
}

func (i *DocumentIngestor) download(ctx context.Context, filePath string) ([]byte, error) {
	if i.cfg.DownloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.cfg.DownloadTimeout)
		defer cancel()
	}
	data, err := i.obj.GetFile(ctx, filePath)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("blob is empty")
	}
	return data, nil
}

func (i *DocumentIngestor) embed(ctx context.Context, chunks []models.Chunk) ([][]float32, error) {
	if i.cfg.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.cfg.EmbedTimeout)
		defer cancel()
	}

	texts := make([]string, len(chunks))
	for k, ch := range chunks {
		texts[k] = ch.Content
	}

	vectors, err := i.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: %d embeddings for %d chunks", core.ErrMalformedResponse, len(vectors), len(chunks))
	}
	return vectors, nil
}

func (i *DocumentIngestor) decorate(chunks []models.Chunk, doc *models.Document, fileName string, ext *core.Extraction) {
	sourceType := extraction.SourceType(extraction.Format(ext.Format), fileName)
	pages, _ := strconv.Atoi(ext.Metadata["page_count"])

	for k := range chunks {
		chunks[k].DocumentID = doc.ID
		chunks[k].SourceType = sourceType
		chunks[k].ExtractionConfidence = ext.Confidence
		chunks[k].Metadata.Strategy = ext.Strategy
		chunks[k].Metadata.PageCount = pages
	}
}

// progress is observability only; a failed write is logged and ignored.
func (i *DocumentIngestor) progress(ctx context.Context, docID string, pct int, step models.IngestionStep) {
	if err := i.db.UpdateProgress(ctx, docID, pct, step); err != nil {
		logger.FromContext(ctx).Warn("progress update failed", "progress", pct, "step", string(step), "error", err)
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}
