package services

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/logger"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Requeuer moves a failed document back to pending.
type Requeuer interface {
	Requeue(ctx context.Context, docID string) (*models.Document, error)
}

// RegisterInput describes a blob that already sits in object storage.
type RegisterInput struct {
	FilePath string `json:"file_path"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Category string `json:"category"`
	Metier   string `json:"metier"`
}

type DocumentService struct {
	db       core.DocumentStore
	storage  core.ObjectClient
	requeuer Requeuer
}

func NewDocumentService(db core.DocumentStore, storage core.ObjectClient, requeuer Requeuer) *DocumentService {
	return &DocumentService{db: db, storage: storage, requeuer: requeuer}
}

// Register queues an existing blob for ingestion.
func (s *DocumentService) Register(ctx context.Context, in RegisterInput) (*models.Document, error) {
	in.FilePath = strings.TrimSpace(in.FilePath)
	if in.FilePath == "" {
		return nil, fmt.Errorf("%w: file_path is required", core.ErrInvalidInput)
	}
	if in.FileName == "" {
		in.FileName = path.Base(in.FilePath)
	}

	doc := &models.Document{
		ID:       uuid.NewString(),
		FileName: in.FileName,
		FilePath: in.FilePath,
		MimeType: in.MimeType,
		Category: strings.TrimSpace(in.Category),
		Metier:   strings.TrimSpace(in.Metier),
		Status:   models.StatusPending,
	}
	if err := s.db.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("document registered", "document_id", doc.ID, "file_path", doc.FilePath)
	return doc, nil
}

// UploadAndCreate stores the file and queues it. The blob is removed again when
// the document row cannot be created.
func (s *DocumentService) UploadAndCreate(ctx context.Context, filename, contentType string, data []byte, category, metier string) (*models.Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", core.ErrInvalidInput)
	}

	docID := uuid.NewString()
	filePath, err := s.storage.UploadFile(ctx, objectKey(docID, filename), data, contentType)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:       docID,
		FileName: path.Base(filename),
		FilePath: filePath,
		MimeType: contentType,
		Category: strings.TrimSpace(category),
		Metier:   strings.TrimSpace(metier),
		Status:   models.StatusPending,
	}
	if err := s.db.CreateDocument(ctx, doc); err != nil {
		if delErr := s.storage.DeleteFile(ctx, filePath); delErr != nil {
			logger.FromContext(ctx).Warn("orphaned upload", "file_path", filePath, "error", delErr)
		}
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	return s.db.GetDocumentByID(ctx, id)
}

// List returns the most recent documents, optionally filtered by status.
func (s *DocumentService) List(ctx context.Context, status string, limit int) ([]models.Document, error) {
	st := models.IngestionStatus(strings.ToLower(strings.TrimSpace(status)))
	if st != "" && !st.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", core.ErrInvalidInput, status)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	docs, err := s.db.ListDocuments(ctx, st, limit)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []models.Document{}
	}
	return docs, nil
}

// Chunks lists a document's chunks in index order.
func (s *DocumentService) Chunks(ctx context.Context, id string) ([]models.Chunk, error) {
	if _, err := s.db.GetDocumentByID(ctx, id); err != nil {
		return nil, err
	}
	chunks, err := s.db.GetChunksByDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if chunks == nil {
		chunks = []models.Chunk{}
	}
	return chunks, nil
}

func (s *DocumentService) Requeue(ctx context.Context, id string) (*models.Document, error) {
	return s.requeuer.Requeue(ctx, id)
}

// objectKey creates a consistent S3 key layout.
func objectKey(docID, filename string) string {
	filename = path.Base(strings.TrimSpace(filename))
	filename = strings.ReplaceAll(filename, " ", "_")
	return path.Join("documents", docID, filename)
}
