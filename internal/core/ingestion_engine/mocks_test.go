package ingestion_engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

type progressCall struct {
	Progress int
	Step     models.IngestionStep
}

// memStore is an in-memory DocumentStore. The claim is a compare-and-swap under mu,
// matching the conditional UPDATE of the real store.
type memStore struct {
	mu       sync.Mutex
	docs     map[string]*models.Document
	chunks   map[string][]models.Chunk
	progress map[string][]progressCall
	seq      int

	insertErr     error
	embedStoreErr error
	markFailedErr error
	fetchErr      error
	dropEmbedAt   int // chunk index whose embedding is silently not stored; -1 disables
}

func newMemStore() *memStore {
	return &memStore{
		docs:        map[string]*models.Document{},
		chunks:      map[string][]models.Chunk{},
		progress:    map[string][]progressCall{},
		dropEmbedAt: -1,
	}
}

func (m *memStore) addDocument(id, fileName string) *models.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	d := &models.Document{
		ID:        id,
		FileName:  fileName,
		FilePath:  "documents/" + id + "/" + fileName,
		Status:    models.StatusPending,
		CreatedAt: time.Unix(int64(m.seq), 0),
	}
	m.docs[id] = d
	return d
}

func (m *memStore) doc(id string) models.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.docs[id]
}

func (m *memStore) storedChunks(id string) []models.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Chunk(nil), m.chunks[id]...)
}

func (m *memStore) progressCalls(id string) []progressCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]progressCall(nil), m.progress[id]...)
}

func (m *memStore) CreateDocument(_ context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *memStore) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memStore) ListDocuments(_ context.Context, status models.IngestionStatus, limit int) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Document
	for _, d := range m.docs {
		if status == "" || d.Status == status {
			out = append(out, *d)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) FetchPendingDocuments(ctx context.Context, limit int) ([]models.Document, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Document
	for _, d := range m.docs {
		if d.Status == models.StatusPending {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ClaimDocument(_ context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok || d.Status != models.StatusPending {
		return nil, fmt.Errorf("document %s: %w", id, core.ErrClaimConflict)
	}
	d.Status = models.StatusProcessing
	d.Progress = 10
	step := string(models.StepClaimed)
	d.LastStep = &step
	d.LastError, d.LastFailureReason = nil, nil
	m.progress[id] = append(m.progress[id], progressCall{10, models.StepClaimed})
	cp := *d
	return &cp, nil
}

func (m *memStore) UpdateProgress(_ context.Context, id string, progress int, step models.IngestionStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.docs[id]
	d.Progress = progress
	s := string(step)
	d.LastStep = &s
	m.progress[id] = append(m.progress[id], progressCall{progress, step})
	return nil
}

func (m *memStore) MarkCompleted(_ context.Context, id string, confidence models.Confidence, chunkCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.docs[id]
	d.Status = models.StatusCompleted
	d.Progress = 100
	c := string(confidence)
	d.ExtractionConfidence = &c
	d.ChunkCount = chunkCount
	m.progress[id] = append(m.progress[id], progressCall{100, models.StepCompleted})
	return nil
}

func (m *memStore) MarkFailed(_ context.Context, id string, f models.IngestionFailure) error {
	if m.markFailedErr != nil {
		return m.markFailedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.docs[id]
	d.Status = models.StatusFailed
	d.Progress = 0
	msg, reason, step := f.Message, f.Reason, string(f.Step)
	d.LastError, d.LastFailureReason, d.LastStep = &msg, &reason, &step
	return nil
}

func (m *memStore) RequeueDocument(_ context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	if d.Status != models.StatusFailed {
		return nil, core.ErrNotRequeueable
	}
	d.Status = models.StatusPending
	d.Progress = 0
	d.LastError, d.LastFailureReason, d.LastStep = nil, nil, nil
	cp := *d
	return &cp, nil
}

func (m *memStore) DeleteChunks(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.chunks[id])
	delete(m.chunks, id)
	return int64(n), nil
}

func (m *memStore) InsertChunks(_ context.Context, chunks []models.Chunk) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range chunks {
		for _, existing := range m.chunks[ch.DocumentID] {
			if existing.Index == ch.Index {
				return fmt.Errorf("duplicate chunk_index %d", ch.Index)
			}
		}
		m.chunks[ch.DocumentID] = append(m.chunks[ch.DocumentID], ch)
	}
	return nil
}

func (m *memStore) UpdateChunkEmbeddings(_ context.Context, id string, embeddings [][]float32) error {
	if m.embedStoreErr != nil {
		return m.embedStoreErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for k := range m.chunks[id] {
		ch := &m.chunks[id][k]
		if ch.Index == m.dropEmbedAt {
			continue
		}
		ch.Embedding = embeddings[ch.Index]
		ch.EmbeddingGeneratedAt = &now
	}
	return nil
}

func (m *memStore) CountChunksMissingEmbedding(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ch := range m.chunks[id] {
		if ch.Embedding == nil {
			n++
		}
	}
	return n, nil
}

func (m *memStore) GetChunksByDocument(_ context.Context, id string) ([]models.Chunk, error) {
	return m.storedChunks(id), nil
}

func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) Close() error               { return nil }

type memObjects struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func (o *memObjects) UploadFile(_ context.Context, key string, data []byte, _ string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.files[key] = data
	return key, nil
}

func (o *memObjects) GetFile(_ context.Context, path string) ([]byte, error) {
	if o.err != nil {
		return nil, o.err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.files[path]
	if !ok {
		return nil, fmt.Errorf("no such key %q", path)
	}
	return data, nil
}

func (o *memObjects) DeleteFile(_ context.Context, path string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.files, path)
	return nil
}

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	dim   int
	err   error
}

func (e *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for k, t := range texts {
		v := make([]float32, e.dim)
		v[0] = float32(len(t))
		out[k] = v
	}
	return out, nil
}

func (e *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// stubStrategy is a core.Extractor returning canned output.
type stubStrategy struct {
	text string
	conf models.Confidence
	err  error
}

func (s stubStrategy) Extract(context.Context, []byte, string, string) (*core.Extraction, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &core.Extraction{Text: s.text, Confidence: s.conf, Metadata: map[string]string{"page_count": "2"}}, nil
}
