package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/contexta-ingest/internal/config"
	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/logger"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

var (
	_ core.DocumentStore = (*DatabaseClient)(nil)
	_ core.ChunkSearcher = (*DatabaseClient)(nil)
)

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	dsn, err := dataSourceName(cfg.DatabaseURL, cfg.SslCertPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	logger.Info("connected to postgres")
	return &DatabaseClient{db: db}, nil
}

// dataSourceName pins the server certificate when a CA path is configured.
func dataSourceName(databaseURL, sslCertPath string) (string, error) {
	if sslCertPath == "" {
		return databaseURL, nil
	}
	if _, err := os.Stat(sslCertPath); err != nil {
		return "", fmt.Errorf("ssl cert not accessible at %q: %w", sslCertPath, err)
	}

	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	q := u.Query()
	q.Set("sslmode", "verify-ca")
	q.Set("sslrootcert", sslCertPath)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *DatabaseClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(r rowScanner) (*models.Document, error) {
	var (
		d      models.Document
		status string
	)
	err := r.Scan(
		&d.ID, &d.FileName, &d.FilePath, &d.MimeType, &d.Category, &d.Metier,
		&status, &d.Progress, &d.LastError, &d.LastFailureReason,
		&d.LastStep, &d.ExtractionConfidence, &d.ChunkCount,
		&d.StartedAt, &d.CompletedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Status = models.IngestionStatus(status)
	return &d, nil
}

func scanDocuments(rows *sql.Rows) ([]models.Document, error) {
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// Documents

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = models.StatusPending
	}

	err := c.db.QueryRowContext(ctx, insertDocumentQuery,
		doc.ID, doc.FileName, doc.FilePath, doc.MimeType, doc.Category, doc.Metier, string(doc.Status),
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	d, err := scanDocument(c.db.QueryRowContext(ctx, selectDocumentQuery, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (c *DatabaseClient) ListDocuments(ctx context.Context, status models.IngestionStatus, limit int) ([]models.Document, error) {
	rows, err := c.db.QueryContext(ctx, listDocumentsQuery, string(status), limit)
	if err != nil {
		return nil, err
	}
	return scanDocuments(rows)
}

func (c *DatabaseClient) FetchPendingDocuments(ctx context.Context, limit int) ([]models.Document, error) {
	rows, err := c.db.QueryContext(ctx, fetchPendingQuery, limit)
	if err != nil {
		return nil, err
	}
	return scanDocuments(rows)
}

func (c *DatabaseClient) ClaimDocument(ctx context.Context, id string) (*models.Document, error) {
	d, err := scanDocument(c.db.QueryRowContext(ctx, claimDocumentQuery, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, core.ErrClaimConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("claim document: %w", err)
	}
	return d, nil
}

func (c *DatabaseClient) UpdateProgress(ctx context.Context, id string, progress int, step models.IngestionStep) error {
	return c.execOne(ctx, updateProgressQuery, id, progress, string(step))
}

func (c *DatabaseClient) MarkCompleted(ctx context.Context, id string, confidence models.Confidence, chunkCount int) error {
	return c.execOne(ctx, markCompletedQuery, id, string(confidence), chunkCount)
}

func (c *DatabaseClient) MarkFailed(ctx context.Context, id string, failure models.IngestionFailure) error {
	return c.execOne(ctx, markFailedQuery, id, failure.Message, failure.Reason, string(failure.Step))
}

func (c *DatabaseClient) RequeueDocument(ctx context.Context, id string) (*models.Document, error) {
	d, err := scanDocument(c.db.QueryRowContext(ctx, requeueDocumentQuery, id))
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := c.GetDocumentByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("document %s: %w", id, core.ErrNotRequeueable)
	}
	if err != nil {
		return nil, fmt.Errorf("requeue document: %w", err)
	}
	return d, nil
}

// execOne runs a single-row update and reports ErrNotFound when nothing matched.
func (c *DatabaseClient) execOne(ctx context.Context, q string, id string, args ...any) error {
	res, err := c.db.ExecContext(ctx, q, append([]any{id}, args...)...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// Chunks

func (c *DatabaseClient) DeleteChunks(ctx context.Context, documentID string) (int64, error) {
	res, err := c.db.ExecContext(ctx, deleteChunksQuery, documentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// InsertChunks inserts chunks in a single transaction.
func (c *DatabaseClient) InsertChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, insertChunkQuery)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		if ch.ID == "" {
			ch.ID = uuid.NewString()
		}
		meta, err := json.Marshal(ch.Metadata)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("chunk %d metadata: %w", ch.Index, err)
		}

		if _, err := stmt.ExecContext(ctx,
			ch.ID, ch.DocumentID, ch.Index, ch.Content, ch.TokenCount, ch.SectionTitle, ch.SectionLevel,
			string(meta), ch.SourceType, string(ch.ExtractionConfidence),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("chunk %d: %w", ch.Index, err)
		}
	}
	return tx.Commit()
}

func (c *DatabaseClient) UpdateChunkEmbeddings(ctx context.Context, documentID string, embeddings [][]float32) error {
	if len(embeddings) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, updateEmbeddingQuery)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i, emb := range embeddings {
		res, err := stmt.ExecContext(ctx, documentID, i, pgvector.NewVector(emb))
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("chunk %d: %w", i, err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			_ = tx.Rollback()
			return fmt.Errorf("chunk %d: updated %d rows", i, n)
		}
	}
	return tx.Commit()
}

func (c *DatabaseClient) CountChunksMissingEmbedding(ctx context.Context, documentID string) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, countMissingEmbeddingsQuery, documentID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// GetChunksByDocument returns chunks in index order. Embedding vectors are not loaded.
func (c *DatabaseClient) GetChunksByDocument(ctx context.Context, documentID string) ([]models.Chunk, error) {
	rows, err := c.db.QueryContext(ctx, selectChunksQuery, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Chunk
	for rows.Next() {
		var (
			ch         models.Chunk
			meta       []byte
			confidence string
		)
		if err := rows.Scan(
			&ch.ID, &ch.DocumentID, &ch.Index, &ch.Content, &ch.TokenCount, &ch.SectionTitle, &ch.SectionLevel,
			&meta, &ch.SourceType, &confidence, &ch.EmbeddingGeneratedAt, &ch.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(meta, &ch.Metadata); err != nil {
			return nil, fmt.Errorf("chunk %d metadata: %w", ch.Index, err)
		}
		ch.ExtractionConfidence = models.Confidence(confidence)
		out = append(out, ch)
	}
	return out, rows.Err()
}

// Search

// SearchChunks runs match_knowledge_chunks. Rows come back in the procedure's order;
// ranking is left to the caller.
func (c *DatabaseClient) SearchChunks(ctx context.Context, params models.SearchParams) ([]models.SearchResult, error) {
	q, args := buildSearchQuery(params)
	return c.querySearch(ctx, "match_knowledge_chunks", q, args)
}

// SearchChunksByKeyword runs search_knowledge_by_keyword, where similarity holds the ts_rank.
func (c *DatabaseClient) SearchChunksByKeyword(ctx context.Context, params models.KeywordSearchParams) ([]models.SearchResult, error) {
	q, args := buildKeywordSearchQuery(params)
	return c.querySearch(ctx, "search_knowledge_by_keyword", q, args)
}

func (c *DatabaseClient) querySearch(ctx context.Context, fn, q string, args []any) ([]models.SearchResult, error) {
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	defer rows.Close()

	out := []models.SearchResult{}
	for rows.Next() {
		var (
			r          models.SearchResult
			meta       []byte
			similarity sql.NullFloat64
			finalScore sql.NullFloat64
		)
		if err := rows.Scan(
			&r.ChunkID, &r.DocumentID, &r.ChunkIndex, &r.Content, &r.SectionTitle, &meta,
			&r.FileName, &r.Category, &r.Metier, &similarity, &finalScore,
		); err != nil {
			return nil, fmt.Errorf("%w: scan search row: %v", core.ErrMalformedResponse, err)
		}
		if !finalScore.Valid {
			return nil, fmt.Errorf("%w: chunk %s has no final_score", core.ErrMalformedResponse, r.ChunkID)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &r.Metadata); err != nil {
				return nil, fmt.Errorf("%w: chunk %s metadata: %v", core.ErrMalformedResponse, r.ChunkID, err)
			}
		}
		r.Similarity = similarity.Float64
		r.FinalScore = finalScore.Float64
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	return out, nil
}
