package core

import (
	"context"

	"github.com/markdave123-py/contexta-ingest/internal/models"
)

// DocumentStore defines all persistence operations the pipeline needs.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, status models.IngestionStatus, limit int) ([]models.Document, error)
	FetchPendingDocuments(ctx context.Context, limit int) ([]models.Document, error)

	// ClaimDocument moves a pending document to processing in one conditional update.
	// It returns ErrClaimConflict when the document was not pending any more.
	ClaimDocument(ctx context.Context, id string) (*models.Document, error)
	UpdateProgress(ctx context.Context, id string, progress int, step models.IngestionStep) error
	MarkCompleted(ctx context.Context, id string, confidence models.Confidence, chunkCount int) error
	MarkFailed(ctx context.Context, id string, failure models.IngestionFailure) error
	// RequeueDocument moves a failed document back to pending, or returns ErrNotRequeueable.
	RequeueDocument(ctx context.Context, id string) (*models.Document, error)

	DeleteChunks(ctx context.Context, documentID string) (int64, error)
	InsertChunks(ctx context.Context, chunks []models.Chunk) error
	// UpdateChunkEmbeddings writes embeddings[i] onto the chunk with chunk_index i.
	UpdateChunkEmbeddings(ctx context.Context, documentID string, embeddings [][]float32) error
	CountChunksMissingEmbedding(ctx context.Context, documentID string) (int, error)
	GetChunksByDocument(ctx context.Context, documentID string) ([]models.Chunk, error)

	Ping(ctx context.Context) error
	Close() error
}

// ChunkSearcher runs the similarity-search procedure and its full-text fallback.
type ChunkSearcher interface {
	SearchChunks(ctx context.Context, params models.SearchParams) ([]models.SearchResult, error)
	SearchChunksByKeyword(ctx context.Context, params models.KeywordSearchParams) ([]models.SearchResult, error)
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data []byte, contentType string) (path string, err error)
	GetFile(ctx context.Context, path string) ([]byte, error)
	DeleteFile(ctx context.Context, path string) error
}
