package ingestion_engine

import (
	"errors"
	"time"

	"github.com/markdave123-py/contexta-ingest/internal/config"
	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/core/textproc"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

// IngestConfig tunes the worker.
//
// ChunkSize:       chunk bound in characters.
// PollInterval:    delay between poll ticks.
// FetchLimit:      pending documents fetched per tick (1 keeps one document in flight).
// DownloadTimeout: deadline for fetching the blob.
// EmbedTimeout:    deadline for the whole embedding call, all sub-batches included.
// ProcessTimeout:  deadline for one document from cleanup to completion.
type IngestConfig struct {
	ChunkSize       int
	PollInterval    time.Duration
	FetchLimit      int
	DownloadTimeout time.Duration
	EmbedTimeout    time.Duration
	ProcessTimeout  time.Duration
}

func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		ChunkSize:       textproc.DefaultChunkSize,
		PollInterval:    10 * time.Second,
		FetchLimit:      1,
		DownloadTimeout: 2 * time.Minute,
		EmbedTimeout:    3 * time.Minute,
		ProcessTimeout:  15 * time.Minute,
	}
}

// ConfigFrom maps the process configuration onto the worker settings.
func ConfigFrom(cfg *config.Config) IngestConfig {
	ic := DefaultIngestConfig()
	if cfg.ChunkSize > 0 {
		ic.ChunkSize = cfg.ChunkSize
	}
	if cfg.PollInterval > 0 {
		ic.PollInterval = cfg.PollInterval
	}
	ic.DownloadTimeout = cfg.DownloadTimeout
	ic.EmbedTimeout = cfg.EmbedTimeout
	ic.ProcessTimeout = cfg.ProcessTimeout
	return ic
}

// stepForError maps the failing stage to the step recorded on the document.
func stepForError(err error) models.IngestionStep {
	switch stageOf(err) {
	case core.StageChunk, core.StageInsertChunks:
		return models.StepChunking
	case core.StageEmbed, core.StageStoreEmbeddings:
		return models.StepEmbedding
	case core.StageFinalize:
		return models.StepFinalizing
	default:
		return models.StepExtracting
	}
}

func stageOf(err error) string {
	var se *core.StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
