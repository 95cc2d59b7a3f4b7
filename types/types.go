package types

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type DocumentStatus string

const (
	StatusUploading  DocumentStatus = "uploading"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

type DocumentType string

const (
	TypePDF   DocumentType = "pdf"
	TypeDOCX  DocumentType = "docx"
	TypeDOC   DocumentType = "doc"
	TypeTXT   DocumentType = "txt"
	TypeOther DocumentType = "other"
)

// DocumentTypeFromFilename maps a filename extension to a declared type.
func DocumentTypeFromFilename(filename string) DocumentType {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	switch ext {
	case "pdf":
		return TypePDF
	case "docx":
		return TypeDOCX
	case "doc":
		return TypeDOC
	case "txt":
		return TypeTXT
	}
	return TypeOther
}

type Document struct {
	ID               uuid.UUID      `json:"id"`
	UserID           uuid.UUID      `json:"user_id"`
	Filename         string         `json:"filename"`          // stored name, unique within the bucket
	OriginalFilename string         `json:"original_filename"` // name as uploaded
	FileType         DocumentType   `json:"file_type"`
	FileSize         int64          `json:"file_size"`
	MimeType         string         `json:"mime_type"`
	StoragePath      string         `json:"storage_path"`
	StorageBucket    string         `json:"storage_bucket"`
	Status           DocumentStatus `json:"status"`
	ExtractedText    string         `json:"-"`
	PageCount        *int           `json:"page_count,omitempty"`
	WordCount        *int           `json:"word_count,omitempty"`
	Title            string         `json:"title,omitempty"`
	Description      string         `json:"description,omitempty"`
	Tags             string         `json:"tags,omitempty"` // comma-separated
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	ProcessedAt      *time.Time     `json:"processed_at,omitempty"`
}

// DisplayTitle falls back to the uploaded filename when no title was set.
func (d *Document) DisplayTitle() string {
	if d.Title != "" {
		return d.Title
	}
	return d.OriginalFilename
}

type Chunk struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`
	UserID     uuid.UUID `json:"user_id"`
	ChunkIndex int       `json:"chunk_index"`
	ChunkText  string    `json:"chunk_text"`
	ChunkSize  int       `json:"chunk_size"`
	Embedding  []float32 `json:"-"`
	StartChar  *int      `json:"start_char,omitempty"`
	EndChar    *int      `json:"end_char,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChunkMatch is one similarity-search hit.
type ChunkMatch struct {
	Chunk
	Similarity float64 `json:"similarity"`
}

// SearchResult is one deduplicated hit: the best-scoring chunk of one document.
type SearchResult struct {
	DocumentID       string  `json:"document_id"`
	DocumentTitle    string  `json:"document_title"`
	DocumentFilename string  `json:"document_filename"`
	DocumentType     string  `json:"document_type"`
	ChunkID          string  `json:"chunk_id"`
	ChunkText        string  `json:"chunk_text"`
	ChunkIndex       int     `json:"chunk_index"`
	SimilarityScore  float64 `json:"similarity_score"`
	StartChar        *int    `json:"start_char,omitempty"`
	EndChar          *int    `json:"end_char,omitempty"`
}

type SearchResponse struct {
	Query        string         `json:"query"`
	Results      []SearchResult `json:"results"`
	TotalResults int            `json:"total_results"`
}

type AnswerResponse struct {
	Answer  string         `json:"answer"`
	Sources []SearchResult `json:"sources"`
}

type DocumentList struct {
	Documents  []Document `json:"documents"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}
