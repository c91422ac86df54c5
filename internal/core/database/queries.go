package db

import (
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/contexta-ingest/internal/models"
)

const documentColumns = `
	id, file_name, file_path, mime_type, COALESCE(category, ''), COALESCE(metier, ''),
	ingestion_status, ingestion_progress, last_ingestion_error, last_failure_reason,
	last_ingestion_step, extraction_confidence, chunk_count,
	ingestion_started_at, ingestion_completed_at, created_at, updated_at`

const (
	insertDocumentQuery = `
		INSERT INTO knowledge_documents
			(id, file_name, file_path, mime_type, category, metier, ingestion_status, ingestion_progress)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, 0)
		RETURNING created_at, updated_at`

	selectDocumentQuery = `SELECT` + documentColumns + `
		FROM knowledge_documents
		WHERE id = $1`

	listDocumentsQuery = `SELECT` + documentColumns + `
		FROM knowledge_documents
		WHERE ($1 = '' OR ingestion_status = $1)
		ORDER BY created_at DESC
		LIMIT $2`

	fetchPendingQuery = `SELECT` + documentColumns + `
		FROM knowledge_documents
		WHERE ingestion_status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1`

	// The status predicate makes this the only transition into processing.
	claimDocumentQuery = `
		UPDATE knowledge_documents
		SET ingestion_status = 'processing',
		    ingestion_progress = 10,
		    last_ingestion_step = 'claimed',
		    last_ingestion_error = NULL,
		    last_failure_reason = NULL,
		    ingestion_started_at = now(),
		    ingestion_completed_at = NULL,
		    updated_at = now()
		WHERE id = $1 AND ingestion_status = 'pending'
		RETURNING` + documentColumns

	updateProgressQuery = `
		UPDATE knowledge_documents
		SET ingestion_progress = $2, last_ingestion_step = $3, updated_at = now()
		WHERE id = $1`

	markCompletedQuery = `
		UPDATE knowledge_documents
		SET ingestion_status = 'completed',
		    ingestion_progress = 100,
		    last_ingestion_step = 'completed',
		    extraction_confidence = $2,
		    chunk_count = $3,
		    ingestion_completed_at = now(),
		    updated_at = now()
		WHERE id = $1`

	markFailedQuery = `
		UPDATE knowledge_documents
		SET ingestion_status = 'failed',
		    ingestion_progress = 0,
		    last_ingestion_error = $2,
		    last_failure_reason = $3,
		    last_ingestion_step = $4,
		    updated_at = now()
		WHERE id = $1`

	requeueDocumentQuery = `
		UPDATE knowledge_documents
		SET ingestion_status = 'pending',
		    ingestion_progress = 0,
		    last_ingestion_error = NULL,
		    last_failure_reason = NULL,
		    last_ingestion_step = NULL,
		    ingestion_started_at = NULL,
		    ingestion_completed_at = NULL,
		    updated_at = now()
		WHERE id = $1 AND ingestion_status = 'failed'
		RETURNING` + documentColumns

	deleteChunksQuery = `DELETE FROM knowledge_chunks WHERE document_id = $1`

	insertChunkQuery = `
		INSERT INTO knowledge_chunks
			(id, document_id, chunk_index, content, token_count, section_title, section_level,
			 metadata, source_type, extraction_confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10)`

	updateEmbeddingQuery = `
		UPDATE knowledge_chunks
		SET embedding = $3, embedding_generated_at = now()
		WHERE document_id = $1 AND chunk_index = $2`

	countMissingEmbeddingsQuery = `
		SELECT count(*) FROM knowledge_chunks
		WHERE document_id = $1 AND embedding IS NULL`

	selectChunksQuery = `
		SELECT id, document_id, chunk_index, content, token_count, section_title, section_level,
		       metadata, source_type, extraction_confidence, embedding_generated_at, created_at
		FROM knowledge_chunks
		WHERE document_id = $1
		ORDER BY chunk_index ASC`
)

const searchColumns = `chunk_id, document_id, chunk_index, content, section_title, metadata,
	       file_name, category, metier, similarity, final_score`

// buildSearchQuery calls match_knowledge_chunks with named arguments.
// Filters are only passed when set so the function defaults apply otherwise.
func buildSearchQuery(p models.SearchParams) (string, []any) {
	return searchCall("match_knowledge_chunks", "query_embedding", pgvector.NewVector(p.Embedding), p.Limit, p.Filters)
}

// buildKeywordSearchQuery calls search_knowledge_by_keyword the same way.
func buildKeywordSearchQuery(p models.KeywordSearchParams) (string, []any) {
	return searchCall("search_knowledge_by_keyword", "search_query", strings.TrimSpace(p.Query), p.Limit, p.Filters)
}

func searchCall(fn, firstParam string, first any, limit int, f models.SearchFilters) (string, []any) {
	args := []any{first, limit}
	named := []string{firstParam + " => $1", "match_count => $2"}

	if c := strings.TrimSpace(f.Category); c != "" {
		args = append(args, c)
		named = append(named, fmt.Sprintf("filter_category => $%d", len(args)))
	}
	if m := strings.TrimSpace(f.Metier); m != "" {
		args = append(args, m)
		named = append(named, fmt.Sprintf("filter_metier => $%d", len(args)))
	}

	q := "SELECT " + searchColumns + "\n\tFROM " + fn + "(" + strings.Join(named, ", ") + ")"
	return q, args
}
