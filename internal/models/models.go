package models

import (
	"time"
)

// IngestionStatus is the lifecycle state of a Document.
type IngestionStatus string

const (
	StatusPending    IngestionStatus = "pending"
	StatusProcessing IngestionStatus = "processing"
	StatusCompleted  IngestionStatus = "completed"
	StatusFailed     IngestionStatus = "failed"
)

// Valid reports whether s is one of the four known states.
func (s IngestionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IngestionStep records the last pipeline stage a document reached.
type IngestionStep string

const (
	StepClaimed    IngestionStep = "claimed"
	StepExtracting IngestionStep = "extracting"
	StepChunking   IngestionStep = "chunking"
	StepEmbedding  IngestionStep = "embedding"
	StepFinalizing IngestionStep = "finalizing"
	StepCompleted  IngestionStep = "completed"
)

// Confidence tags how text was obtained.
type Confidence string

const (
	ConfidenceNative Confidence = "native"
	ConfidenceOCR    Confidence = "ocr"
)

// Document represents one file queued for ingestion.
type Document struct {
	ID                   string          `db:"id" json:"id"`
	FileName             string          `db:"file_name" json:"file_name"`
	FilePath             string          `db:"file_path" json:"file_path"` // bucket key, s3:// URI or S3 URL
	MimeType             string          `db:"mime_type" json:"mime_type"`
	Category             string          `db:"category" json:"category,omitempty"`
	Metier               string          `db:"metier" json:"metier,omitempty"`
	Status               IngestionStatus `db:"ingestion_status" json:"ingestion_status"`
	Progress             int             `db:"ingestion_progress" json:"ingestion_progress"`
	LastError            *string         `db:"last_ingestion_error" json:"last_ingestion_error,omitempty"`
	LastFailureReason    *string         `db:"last_failure_reason" json:"last_failure_reason,omitempty"`
	LastStep             *string         `db:"last_ingestion_step" json:"last_ingestion_step,omitempty"`
	ExtractionConfidence *string         `db:"extraction_confidence" json:"extraction_confidence,omitempty"`
	ChunkCount           int             `db:"chunk_count" json:"chunk_count"`
	StartedAt            *time.Time      `db:"ingestion_started_at" json:"ingestion_started_at,omitempty"`
	CompletedAt          *time.Time      `db:"ingestion_completed_at" json:"ingestion_completed_at,omitempty"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

// Chunk is one bounded span of a document's normalized text.
type Chunk struct {
	ID                   string        `db:"id" json:"id"`
	DocumentID           string        `db:"document_id" json:"document_id"`
	Index                int           `db:"chunk_index" json:"chunk_index"`
	Content              string        `db:"content" json:"content"`
	TokenCount           int           `db:"token_count" json:"token_count"`
	SectionTitle         *string       `db:"section_title" json:"section_title,omitempty"`
	SectionLevel         *int          `db:"section_level" json:"section_level,omitempty"`
	Metadata             ChunkMetadata `db:"metadata" json:"metadata"`
	SourceType           string        `db:"source_type" json:"source_type"`
	ExtractionConfidence Confidence    `db:"extraction_confidence" json:"extraction_confidence"`
	Embedding            []float32     `db:"embedding" json:"embedding,omitempty"` // pgvector column
	EmbeddingGeneratedAt *time.Time    `db:"embedding_generated_at" json:"embedding_generated_at,omitempty"`
	CreatedAt            time.Time     `db:"created_at" json:"created_at"`
}

// ChunkMetadata is stored as jsonb next to each chunk.
type ChunkMetadata struct {
	SectionIndex      int    `json:"section_index"`
	SectionChunkIndex int    `json:"section_chunk_index"`
	IsCompleteSection bool   `json:"is_complete_section"`
	PageCount         int    `json:"page_count,omitempty"`
	Strategy          string `json:"strategy,omitempty"`
}

// Section is a heading-delimited span of a document. Never persisted.
type Section struct {
	Title   string
	Level   int
	Lines   []string
	Content string
}

// IngestionFailure is what Fail writes back onto the document record.
type IngestionFailure struct {
	Reason  string        `json:"reason"`
	Message string        `json:"message"`
	Step    IngestionStep `json:"step"`
}

// SearchFilters narrows a similarity search. Empty fields are not sent.
type SearchFilters struct {
	Category string `json:"filter_category,omitempty"`
	Metier   string `json:"filter_metier,omitempty"`
}

// SearchRequest is the input of the query path.
type SearchRequest struct {
	Query   string        `json:"query"`
	Limit   int           `json:"limit,omitempty"`
	Filters SearchFilters `json:"filters"`
}

// SearchParams is what the store receives for one procedure call.
type SearchParams struct {
	Embedding []float32
	Limit     int
	Filters   SearchFilters
}

// KeywordSearchParams is what the store receives for the full-text fallback.
type KeywordSearchParams struct {
	Query   string
	Limit   int
	Filters SearchFilters
}

// SearchMode names the retrieval path that produced a response.
type SearchMode string

const (
	SearchModeVector  SearchMode = "vector"
	SearchModeKeyword SearchMode = "keyword"
)

// SearchResult is one ranked row returned by the similarity procedure.
type SearchResult struct {
	ChunkID      string        `json:"chunk_id"`
	DocumentID   string        `json:"document_id"`
	ChunkIndex   int           `json:"chunk_index"`
	Content      string        `json:"content"`
	SectionTitle *string       `json:"section_title,omitempty"`
	Metadata     ChunkMetadata `json:"metadata"`
	FileName     string        `json:"file_name"`
	Category     *string       `json:"category,omitempty"`
	Metier       *string       `json:"metier,omitempty"`
	Similarity   float64       `json:"similarity"`
	FinalScore   float64       `json:"final_score"`
}

// SearchResponse echoes the query, its embedding and the filters next to the results.
// Mode is keyword when the similarity search found nothing and full-text matching served instead.
type SearchResponse struct {
	Query     string         `json:"query"`
	Embedding []float32      `json:"embedding"`
	Filters   SearchFilters  `json:"filters"`
	Mode      SearchMode     `json:"mode"`
	Results   []SearchResult `json:"results"`
}
