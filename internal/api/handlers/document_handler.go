package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/models"
	"github.com/markdave123-py/contexta-ingest/internal/services"
)

const maxUploadBytes = 52 << 20

// DocumentService is what the document routes need from the service layer.
type DocumentService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.Document, error)
	UploadAndCreate(ctx context.Context, filename, contentType string, data []byte, category, metier string) (*models.Document, error)
	Get(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, status string, limit int) ([]models.Document, error)
	Chunks(ctx context.Context, id string) ([]models.Chunk, error)
	Requeue(ctx context.Context, id string) (*models.Document, error)
}

type DocumentHandler struct {
	docs DocumentService
}

func NewDocumentHandler(docs DocumentService) *DocumentHandler {
	return &DocumentHandler{docs: docs}
}

// RegisterDocument queues a blob that is already in the bucket.
func (h *DocumentHandler) RegisterDocument(w http.ResponseWriter, r *http.Request) {
	var in services.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := h.docs.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

// UploadDocument stores a multipart file and queues it for ingestion.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", core.ErrInvalidInput, err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: missing file field", core.ErrInvalidInput))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: read upload: %v", core.ErrInvalidInput, err))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	doc, err := h.docs.UploadAndCreate(r.Context(), filepath.Base(header.Filename), contentType, data,
		r.FormValue("category"), r.FormValue("metier"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, fmt.Errorf("%w: limit must be a positive integer", core.ErrInvalidInput))
			return
		}
		limit = n
	}

	docs, err := h.docs.List(r.Context(), r.URL.Query().Get("status"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.docs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) GetChunks(w http.ResponseWriter, r *http.Request) {
	chunks, err := h.docs.Chunks(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chunks)
}

// RequeueDocument answers 409 unless the document is failed.
func (h *DocumentHandler) RequeueDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.docs.Requeue(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
