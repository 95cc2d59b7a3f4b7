package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"docvault/types"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ErrNotFound is returned when a row does not exist. Ownership checks
// live in the service layer; the store only reports existence.
var ErrNotFound = errors.New("not found")

type DocumentStorer interface {
	CreateDocument(ctx context.Context, doc *types.Document) error
	GetDocumentByID(ctx context.Context, id uuid.UUID) (*types.Document, error)
	ListDocumentsByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]types.Document, error)
	CountDocumentsByUser(ctx context.Context, userID uuid.UUID) (int, error)
	UpdateDocumentMeta(ctx context.Context, doc *types.Document) error
	UpdateProcessingStatus(ctx context.Context, id uuid.UUID, status types.DocumentStatus, text string, pageCount, wordCount *int) error
	DeleteDocument(ctx context.Context, id uuid.UUID) error
}

type ChunkStorer interface {
	CreateChunks(ctx context.Context, chunks []types.Chunk) error
	GetChunksByDocument(ctx context.Context, docID uuid.UUID) ([]types.Chunk, error)
	DeleteChunksByDocument(ctx context.Context, docID uuid.UUID) error
	SearchSimilar(ctx context.Context, queryVec []float32, userID uuid.UUID, limit int, threshold float64) ([]types.ChunkMatch, error)
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool: pool,
	}, nil
}

// Init creates the schema. dim is the embedding dimension of the
// configured model; the column is fixed to it.
func (p *PostgresStore) Init(ctx context.Context, dim int) error {
	query := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		filename TEXT NOT NULL,
		original_filename TEXT NOT NULL,
		file_type TEXT NOT NULL CHECK (file_type IN ('pdf','docx','doc','txt','other')),
		file_size BIGINT NOT NULL,
		mime_type TEXT NOT NULL,
		storage_path TEXT NOT NULL,
		storage_bucket TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('uploading','processing','completed','failed')),
		extracted_text TEXT,
		page_count INT,
		word_count INT,
		title TEXT,
		description TEXT,
		tags TEXT,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
		processed_at TIMESTAMP WITH TIME ZONE
	);

	CREATE INDEX IF NOT EXISTS idx_documents_user_id ON documents(user_id);

	CREATE TABLE IF NOT EXISTS document_chunks (
		id UUID PRIMARY KEY,
		document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		user_id UUID NOT NULL,
		chunk_index INT NOT NULL,
		chunk_text TEXT NOT NULL,
		chunk_size INT NOT NULL,
		embedding vector(%d),
		start_char INT,
		end_char INT,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON document_chunks USING ivfflat (embedding vector_cosine_ops)
	WITH (lists = 100);

	CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON document_chunks(document_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_user_id ON document_chunks(user_id);
	`, dim)

	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) CreateDocument(ctx context.Context, doc *types.Document) error {
	query := `INSERT INTO documents
		(id, user_id, filename, original_filename, file_type, file_size, mime_type,
		 storage_path, storage_bucket, status, extracted_text, page_count, word_count,
		 title, description, tags, created_at, updated_at, processed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`
	_, err := p.pool.Exec(ctx, query,
		doc.ID, doc.UserID, doc.Filename, doc.OriginalFilename, doc.FileType, doc.FileSize,
		doc.MimeType, doc.StoragePath, doc.StorageBucket, doc.Status, doc.ExtractedText,
		doc.PageCount, doc.WordCount, doc.Title, doc.Description, doc.Tags,
		doc.CreatedAt, doc.UpdatedAt, doc.ProcessedAt,
	)
	return err
}

const documentColumns = `id, user_id, filename, original_filename, file_type, file_size,
	mime_type, storage_path, storage_bucket, status, extracted_text, page_count, word_count,
	title, description, tags, created_at, updated_at, processed_at`

func scanDocument(row pgx.Row) (*types.Document, error) {
	doc := &types.Document{}
	var extractedText, title, description, tags *string
	err := row.Scan(
		&doc.ID, &doc.UserID, &doc.Filename, &doc.OriginalFilename, &doc.FileType,
		&doc.FileSize, &doc.MimeType, &doc.StoragePath, &doc.StorageBucket, &doc.Status,
		&extractedText, &doc.PageCount, &doc.WordCount,
		&title, &description, &tags,
		&doc.CreatedAt, &doc.UpdatedAt, &doc.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	if extractedText != nil {
		doc.ExtractedText = *extractedText
	}
	if title != nil {
		doc.Title = *title
	}
	if description != nil {
		doc.Description = *description
	}
	if tags != nil {
		doc.Tags = *tags
	}
	return doc, nil
}

func (p *PostgresStore) GetDocumentByID(ctx context.Context, id uuid.UUID) (*types.Document, error) {
	row := p.pool.QueryRow(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = $1", id)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return doc, err
}

func (p *PostgresStore) ListDocumentsByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]types.Document, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE user_id = $1 ORDER BY created_at DESC OFFSET $2 LIMIT $3",
		userID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []types.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (p *PostgresStore) CountDocumentsByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := p.pool.QueryRow(ctx, "SELECT count(*) FROM documents WHERE user_id = $1", userID).Scan(&count)
	return count, err
}

// UpdateDocumentMeta persists the caller's UpdatedAt so the returned
// document and the stored row carry the same timestamp.
func (p *PostgresStore) UpdateDocumentMeta(ctx context.Context, doc *types.Document) error {
	query := `UPDATE documents SET title = $2, description = $3, tags = $4, updated_at = $5 WHERE id = $1`
	_, err := p.pool.Exec(ctx, query, doc.ID, doc.Title, doc.Description, doc.Tags, doc.UpdatedAt)
	return err
}

// UpdateProcessingStatus advances the lifecycle state. processed_at is
// stamped only on the transition to completed.
func (p *PostgresStore) UpdateProcessingStatus(ctx context.Context, id uuid.UUID, status types.DocumentStatus, text string, pageCount, wordCount *int) error {
	now := time.Now().UTC()
	var processedAt *time.Time
	if status == types.StatusCompleted {
		processedAt = &now
	}

	query := `UPDATE documents SET
		status = $2,
		extracted_text = COALESCE(NULLIF($3, ''), extracted_text),
		page_count = COALESCE($4, page_count),
		word_count = COALESCE($5, word_count),
		processed_at = COALESCE($6, processed_at),
		updated_at = $7
		WHERE id = $1`
	_, err := p.pool.Exec(ctx, query, id, status, text, pageCount, wordCount, processedAt, now)
	return err
}

func (p *PostgresStore) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	// Chunk rows cascade with the document.
	_, err := p.pool.Exec(ctx, "DELETE FROM documents WHERE id = $1", id)
	return err
}

// CreateChunks inserts a document's chunks in a single transaction:
// either every chunk row lands with its embedding or none do.
func (p *PostgresStore) CreateChunks(ctx context.Context, chunks []types.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin chunk insert: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO document_chunks
		(id, document_id, user_id, chunk_index, chunk_text, chunk_size, embedding, start_char, end_char, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	for i := range chunks {
		c := &chunks[i]
		var embedding any
		if c.Embedding != nil {
			embedding = pgvector.NewVector(c.Embedding)
		}
		if _, err := tx.Exec(ctx, query,
			c.ID, c.DocumentID, c.UserID, c.ChunkIndex, c.ChunkText, c.ChunkSize,
			embedding, c.StartChar, c.EndChar, c.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
	}

	return tx.Commit(ctx)
}

func (p *PostgresStore) GetChunksByDocument(ctx context.Context, docID uuid.UUID) ([]types.Chunk, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, document_id, user_id, chunk_index, chunk_text, chunk_size, start_char, end_char, created_at
		FROM document_chunks
		WHERE document_id = $1
		ORDER BY chunk_index ASC`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chunks := []types.Chunk{}
	for rows.Next() {
		var c types.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.UserID, &c.ChunkIndex, &c.ChunkText,
			&c.ChunkSize, &c.StartChar, &c.EndChar, &c.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (p *PostgresStore) DeleteChunksByDocument(ctx context.Context, docID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, "DELETE FROM document_chunks WHERE document_id = $1", docID)
	return err
}

// SearchSimilar runs a cosine nearest-neighbor query scoped to one
// owner. Similarity is 1 - cosine distance; rows below the threshold or
// without an embedding never surface. Ordering rides the ivfflat index.
func (p *PostgresStore) SearchSimilar(ctx context.Context, queryVec []float32, userID uuid.UUID, limit int, threshold float64) ([]types.ChunkMatch, error) {
	if len(queryVec) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}

	vector := pgvector.NewVector(queryVec)

	query := `
		SELECT id, document_id, user_id, chunk_index, chunk_text, chunk_size, start_char, end_char, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM document_chunks
		WHERE user_id = $2
		  AND embedding IS NOT NULL
		  AND 1 - (embedding <=> $1) >= $3
		ORDER BY embedding <=> $1
		LIMIT $4`

	rows, err := p.pool.Query(ctx, query, vector, userID, threshold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []types.ChunkMatch
	for rows.Next() {
		var m types.ChunkMatch
		if err := rows.Scan(&m.ID, &m.DocumentID, &m.UserID, &m.ChunkIndex, &m.ChunkText,
			&m.ChunkSize, &m.StartChar, &m.EndChar, &m.CreatedAt, &m.Similarity); err != nil {
			return nil, err
		}
		log.Printf("[SEARCH] hit chunk doc=%s index=%d similarity=%.4f", m.DocumentID, m.ChunkIndex, m.Similarity)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Close closes the connection pool.
func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		log.Println("Postgres connection pool is closed")
	}
	return nil
}
