// Package service coordinates the document pipeline: upload, text
// extraction, chunking, embedding, persistence, and query-time
// retrieval.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"docvault/chunker"
	"docvault/extract"
	"docvault/model"
	"docvault/store"
	"docvault/types"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrNotOwner         = errors.New("document belongs to another user")
	ErrUnsupportedType  = errors.New("file type not supported")
	ErrFileTooLarge     = errors.New("file exceeds maximum upload size")
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type DocumentServiceConfig struct {
	MaxUploadSize int64
	PresignTTL    time.Duration
}

type DocumentService struct {
	docs      store.DocumentStorer
	chunks    store.ChunkStorer
	objects   store.ObjectStorer
	extractor extract.Extractor
	embedder  model.Embedder
	chunker   *chunker.Chunker
	cfg       DocumentServiceConfig
	logger    *slog.Logger

	// serializes ingestion per document so a re-process cannot race a
	// running embedding pass for the same document
	ingest keyedMutex
}

func NewDocumentService(
	docs store.DocumentStorer,
	chunks store.ChunkStorer,
	objects store.ObjectStorer,
	extractor extract.Extractor,
	embedder model.Embedder,
	ch *chunker.Chunker,
	cfg DocumentServiceConfig,
) *DocumentService {
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 104857600
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = time.Hour
	}
	return &DocumentService{
		docs:      docs,
		chunks:    chunks,
		objects:   objects,
		extractor: extractor,
		embedder:  embedder,
		chunker:   ch,
		cfg:       cfg,
		logger:    slog.Default(),
	}
}

type UploadParams struct {
	Filename    string
	ContentType string
	Data        []byte
	Title       string
	Description string
	Tags        string
}

// Upload stores the file bytes, creates the document record in status
// processing, and runs the extraction/embedding pipeline inline. The
// returned document reflects the final processing status.
func (s *DocumentService) Upload(ctx context.Context, userID uuid.UUID, params UploadParams) (*types.Document, error) {
	fileType := types.DocumentTypeFromFilename(params.Filename)
	if fileType == types.TypeOther {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(params.Filename))
	}
	if int64(len(params.Data)) > s.cfg.MaxUploadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(params.Data))
	}

	mimeType := mimetype.Detect(params.Data).String()
	if params.ContentType != "" && mimeType == "application/octet-stream" {
		mimeType = params.ContentType
	}

	docID := uuid.New()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(params.Filename)), ".")
	storedName := fmt.Sprintf("%s.%s", uuid.New(), ext)
	storagePath := fmt.Sprintf("users/%s/documents/%s", userID, storedName)

	if err := s.objects.Put(ctx, storagePath, params.Data, mimeType); err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	now := time.Now().UTC()
	doc := &types.Document{
		ID:               docID,
		UserID:           userID,
		Filename:         storedName,
		OriginalFilename: params.Filename,
		FileType:         fileType,
		FileSize:         int64(len(params.Data)),
		MimeType:         mimeType,
		StoragePath:      storagePath,
		StorageBucket:    s.objects.Bucket(),
		Status:           types.StatusProcessing,
		Title:            params.Title,
		Description:      params.Description,
		Tags:             params.Tags,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.docs.CreateDocument(ctx, doc); err != nil {
		s.cleanupObject(ctx, storagePath)
		return nil, fmt.Errorf("create document record: %w", err)
	}

	s.logger.Info("document uploaded", "id", doc.ID, "user", userID, "type", fileType, "size", doc.FileSize)

	s.process(ctx, doc, params.Data)

	return doc, nil
}

// process runs extraction and best-effort embedding generation. It
// never returns an error: the upload has already succeeded, so failures
// end up in the document status or the log.
func (s *DocumentService) process(ctx context.Context, doc *types.Document, data []byte) {
	unlock := s.ingest.lock(doc.ID.String())
	defer unlock()

	res, err := s.extractor.Extract(data, doc.FileType)
	if err != nil {
		s.logger.Error("text extraction failed", "id", doc.ID, "error", err)
		if err := s.docs.UpdateProcessingStatus(ctx, doc.ID, types.StatusFailed, "", nil, nil); err != nil {
			s.logger.Error("status update failed", "id", doc.ID, "error", err)
		}
		doc.Status = types.StatusFailed
		return
	}

	if err := s.docs.UpdateProcessingStatus(ctx, doc.ID, types.StatusCompleted, res.Text, res.PageCount, res.WordCount); err != nil {
		s.logger.Error("status update failed", "id", doc.ID, "error", err)
		return
	}
	doc.Status = types.StatusCompleted
	doc.ExtractedText = res.Text
	doc.PageCount = res.PageCount
	doc.WordCount = res.WordCount
	now := time.Now().UTC()
	doc.ProcessedAt = &now

	// Clear any chunk set from a previous pass while still holding the
	// lock, so two interleaved passes can never leave both sets behind.
	if err := s.chunks.DeleteChunksByDocument(ctx, doc.ID); err != nil {
		s.logger.Error("stale chunk cleanup failed", "id", doc.ID, "error", err)
		return
	}

	if res.Text == "" {
		return
	}

	// Embeddings are enrichment: a failure here must not touch the
	// completed status.
	if err := s.generateEmbeddings(ctx, doc, res.Text); err != nil {
		s.logger.Error("embedding generation failed", "id", doc.ID, "error", err)
	}
}

func (s *DocumentService) generateEmbeddings(ctx context.Context, doc *types.Document, text string) error {
	segments := s.chunker.Chunk(text)
	if len(segments) == 0 {
		s.logger.Info("no chunks created", "id", doc.ID)
		return nil
	}

	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}

	vectors, err := s.embedder.EmbedMany(ctx, texts)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	chunks := make([]types.Chunk, len(segments))
	for i, seg := range segments {
		start, end := seg.Start, seg.End
		chunks[i] = types.Chunk{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			UserID:     doc.UserID,
			ChunkIndex: i,
			ChunkText:  seg.Text,
			ChunkSize:  len([]rune(seg.Text)),
			Embedding:  vectors[i],
			StartChar:  &start,
			EndChar:    &end,
			CreatedAt:  now,
		}
	}

	if err := s.chunks.CreateChunks(ctx, chunks); err != nil {
		return fmt.Errorf("persist chunks: %w", err)
	}

	s.logger.Info("embeddings stored", "id", doc.ID, "chunks", len(chunks))
	return nil
}

// Get returns the document after checking ownership. Not-found and
// not-owner are reported as distinct errors for the handler to map.
func (s *DocumentService) Get(ctx context.Context, docID, userID uuid.UUID) (*types.Document, error) {
	doc, err := s.docs.GetDocumentByID(ctx, docID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, ErrNotOwner
	}
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, userID uuid.UUID, page, pageSize int) (*types.DocumentList, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	docs, err := s.docs.ListDocumentsByUser(ctx, userID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	total, err := s.docs.CountDocumentsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &types.DocumentList{
		Documents:  docs,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

func (s *DocumentService) Update(ctx context.Context, docID, userID uuid.UUID, params types.UpdateDocumentParams) (*types.Document, error) {
	doc, err := s.Get(ctx, docID, userID)
	if err != nil {
		return nil, err
	}

	if params.Title != nil {
		doc.Title = *params.Title
	}
	if params.Description != nil {
		doc.Description = *params.Description
	}
	if params.Tags != nil {
		doc.Tags = *params.Tags
	}
	doc.UpdatedAt = time.Now().UTC()

	if err := s.docs.UpdateDocumentMeta(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete removes the stored object and the document row; chunk rows
// cascade with the document.
func (s *DocumentService) Delete(ctx context.Context, docID, userID uuid.UUID) error {
	doc, err := s.Get(ctx, docID, userID)
	if err != nil {
		return err
	}

	if err := s.objects.Delete(ctx, doc.StoragePath); err != nil {
		return fmt.Errorf("delete stored object: %w", err)
	}
	if err := s.docs.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("delete document record: %w", err)
	}

	s.logger.Info("document deleted", "id", docID, "user", userID)
	return nil
}

func (s *DocumentService) Download(ctx context.Context, docID, userID uuid.UUID) (*types.Document, []byte, error) {
	doc, err := s.Get(ctx, docID, userID)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.objects.Get(ctx, doc.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("download document: %w", err)
	}
	return doc, data, nil
}

func (s *DocumentService) PresignedURL(ctx context.Context, docID, userID uuid.UUID) (string, error) {
	doc, err := s.Get(ctx, docID, userID)
	if err != nil {
		return "", err
	}
	url, err := s.objects.PresignedURL(ctx, doc.StoragePath, s.cfg.PresignTTL)
	if err != nil {
		return "", fmt.Errorf("generate download url: %w", err)
	}
	return url, nil
}

// Reprocess re-runs extraction and embedding for an existing document.
// Stale chunk rows are replaced inside process, under the per-document
// lock.
func (s *DocumentService) Reprocess(ctx context.Context, docID, userID uuid.UUID) (*types.Document, error) {
	doc, err := s.Get(ctx, docID, userID)
	if err != nil {
		return nil, err
	}

	data, err := s.objects.Get(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("fetch stored object: %w", err)
	}

	s.process(ctx, doc, data)
	return doc, nil
}

// Chunks returns a document's chunks ordered by index.
func (s *DocumentService) Chunks(ctx context.Context, docID, userID uuid.UUID) ([]types.Chunk, error) {
	if _, err := s.Get(ctx, docID, userID); err != nil {
		return nil, err
	}
	return s.chunks.GetChunksByDocument(ctx, docID)
}

// cleanupObject is best-effort: the outcome is logged and never
// propagated to the primary operation.
func (s *DocumentService) cleanupObject(ctx context.Context, path string) {
	if err := s.objects.Delete(ctx, path); err != nil {
		s.logger.Warn("orphaned object cleanup failed", "path", path, "error", err)
		return
	}
	s.logger.Info("orphaned object cleaned up", "path", path)
}

// keyedMutex hands out one mutex per key. Entries are reference-counted
// and evicted once the last holder unlocks, so the map does not grow
// with every document ever ingested.
type keyedMutex struct {
	mu   sync.Mutex
	keys map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.keys == nil {
		k.keys = make(map[string]*keyLock)
	}
	l := k.keys[key]
	if l == nil {
		l = &keyLock{}
		k.keys[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.keys, key)
		}
		k.mu.Unlock()
	}
}
