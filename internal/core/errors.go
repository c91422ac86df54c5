package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pipeline errors. Callers match them with errors.Is.
var (
	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates a requested document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrClaimConflict means another worker already moved the document out of pending.
	// It is a no-op signal, not a failure.
	ErrClaimConflict = errors.New("document already claimed")

	// ErrNotRequeueable is returned when requeueing a document that is not failed.
	ErrNotRequeueable = errors.New("document is not in failed state")

	// ErrUnsupportedFormat indicates no extractor handles the file.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrEmptyExtraction indicates an extractor produced no text after trimming.
	ErrEmptyExtraction = errors.New("extracted text is empty")

	// ErrDimensionMismatch indicates an embedding with the wrong length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrMalformedResponse indicates an external call answered with unusable data.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrIntegrityCheck indicates chunks were left without embeddings.
	ErrIntegrityCheck = errors.New("integrity check failed")
)

// Pipeline stages, used as the prefix of wrapped errors.
const (
	StageDeleteChunks    = "delete chunks"
	StageDownload        = "download"
	StageExtract         = "extract"
	StageChunk           = "chunk"
	StageInsertChunks    = "insert chunks"
	StageEmbed           = "embed"
	StageStoreEmbeddings = "store embeddings"
	StageFinalize        = "finalize"
)

// StageError wraps an error with the pipeline stage it came from.
// Error() reads "<stage>: <cause>".
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Stage wraps err with stage. A nil err stays nil.
func Stage(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// Failure reasons written to last_failure_reason.
const (
	ReasonUnsupportedFormat = "UNSUPPORTED_FORMAT"
	ReasonExtractionEmpty   = "EXTRACTION_EMPTY"
	ReasonExtractionFailed  = "EXTRACTION_FAILED"
	ReasonDimensionMismatch = "EMBEDDING_DIMENSION_MISMATCH"
	ReasonEmbeddingAPIError = "EMBEDDING_API_ERROR"
	ReasonChunkInsertFailed = "CHUNK_INSERT_FAILED"
	ReasonDownloadFailed    = "DOWNLOAD_FAILED"
	ReasonIntegrityCheck    = "INTEGRITY_CHECK_FAILED"
	ReasonTimeout           = "TIMEOUT"
	ReasonUnknown           = "UNKNOWN"
)

// ClassifyFailure maps a pipeline error to a failure reason code.
func ClassifyFailure(err error) string {
	if err == nil {
		return ReasonUnknown
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, ErrUnsupportedFormat):
		return ReasonUnsupportedFormat
	case errors.Is(err, ErrEmptyExtraction):
		return ReasonExtractionEmpty
	case errors.Is(err, ErrDimensionMismatch):
		return ReasonDimensionMismatch
	case errors.Is(err, ErrIntegrityCheck):
		return ReasonIntegrityCheck
	}

	var se *StageError
	if !errors.As(err, &se) {
		return ReasonUnknown
	}
	switch se.Stage {
	case StageDownload:
		return ReasonDownloadFailed
	case StageExtract:
		return ReasonExtractionFailed
	case StageEmbed:
		return ReasonEmbeddingAPIError
	case StageInsertChunks, StageStoreEmbeddings, StageDeleteChunks:
		return ReasonChunkInsertFailed
	case StageFinalize:
		return ReasonIntegrityCheck
	}
	return ReasonUnknown
}

// Retryable reports whether an operator requeue is likely to succeed for reason.
// Nothing requeues automatically.
func Retryable(reason string) bool {
	switch reason {
	case ReasonTimeout, ReasonEmbeddingAPIError, ReasonDownloadFailed:
		return true
	}
	return false
}

// DBErrorKind is a coarse classification of database errors.
type DBErrorKind string

const (
	DBErrNone      DBErrorKind = ""
	DBErrNotFound  DBErrorKind = "not_found"
	DBErrConflict  DBErrorKind = "conflict"
	DBErrTransient DBErrorKind = "transient"
	DBErrOther     DBErrorKind = "other"
)

// ClassifyDBError inspects pgx/pgconn errors.
func ClassifyDBError(err error) DBErrorKind {
	if err == nil {
		return DBErrNone
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return DBErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return DBErrTransient
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return DBErrConflict
		case pgErr.Code == "57014", pgErr.Code == "40001", pgErr.Code == "40P01":
			return DBErrTransient
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == "08":
			return DBErrTransient
		}
		return DBErrOther
	}

	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return DBErrTransient
	}
	return DBErrOther
}
