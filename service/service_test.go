package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"docvault/extract"
	"docvault/model"
	"docvault/store"
	"docvault/types"

	"github.com/google/uuid"
)

// fakeDocStore keeps documents in a map and mimics the store contract.
type fakeDocStore struct {
	mu        sync.Mutex
	docs      map[uuid.UUID]*types.Document
	createErr error
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{docs: map[uuid.UUID]*types.Document{}}
}

func (f *fakeDocStore) CreateDocument(_ context.Context, doc *types.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	cp := *doc
	f.docs[doc.ID] = &cp
	return nil
}

func (f *fakeDocStore) GetDocumentByID(_ context.Context, id uuid.UUID) (*types.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (f *fakeDocStore) ListDocumentsByUser(_ context.Context, userID uuid.UUID, offset, limit int) ([]types.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []types.Document
	for _, d := range f.docs {
		if d.UserID == userID {
			all = append(all, *d)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return []types.Document{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (f *fakeDocStore) CountDocumentsByUser(_ context.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, d := range f.docs {
		if d.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeDocStore) UpdateDocumentMeta(_ context.Context, doc *types.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.docs[doc.ID]
	if !ok {
		return store.ErrNotFound
	}
	cur.Title, cur.Description, cur.Tags = doc.Title, doc.Description, doc.Tags
	cur.UpdatedAt = doc.UpdatedAt
	return nil
}

func (f *fakeDocStore) UpdateProcessingStatus(_ context.Context, id uuid.UUID, status types.DocumentStatus, text string, pageCount, wordCount *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	doc.Status = status
	if text != "" {
		doc.ExtractedText = text
	}
	if pageCount != nil {
		doc.PageCount = pageCount
	}
	if wordCount != nil {
		doc.WordCount = wordCount
	}
	if status == types.StatusCompleted {
		now := time.Now().UTC()
		doc.ProcessedAt = &now
	}
	return nil
}

func (f *fakeDocStore) DeleteDocument(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, id)
	return nil
}

type fakeChunkStore struct {
	mu        sync.Mutex
	chunks    []types.Chunk
	matches   []types.ChunkMatch
	searchErr error
	createErr error
}

func (f *fakeChunkStore) CreateChunks(_ context.Context, chunks []types.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func (f *fakeChunkStore) GetChunksByDocument(_ context.Context, docID uuid.UUID) ([]types.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Chunk
	for _, c := range f.chunks {
		if c.DocumentID == docID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out, nil
}

func (f *fakeChunkStore) DeleteChunksByDocument(_ context.Context, docID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.chunks[:0]
	for _, c := range f.chunks {
		if c.DocumentID != docID {
			kept = append(kept, c)
		}
	}
	f.chunks = kept
	return nil
}

func (f *fakeChunkStore) SearchSimilar(_ context.Context, _ []float32, _ uuid.UUID, limit int, threshold float64) ([]types.ChunkMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []types.ChunkMatch
	for _, m := range f.matches {
		if m.Similarity >= threshold {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}}
}

func (f *fakeObjectStore) Put(_ context.Context, path string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[path] = data
	return nil
}

func (f *fakeObjectStore) Get(_ context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[path]
	if !ok {
		return nil, fmt.Errorf("object %s not found", path)
	}
	return data, nil
}

func (f *fakeObjectStore) Delete(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, path)
	return nil
}

func (f *fakeObjectStore) PresignedURL(_ context.Context, path string, _ time.Duration) (string, error) {
	return "https://storage.local/" + path + "?signed", nil
}

func (f *fakeObjectStore) Exists(_ context.Context, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[path]
	return ok, nil
}

func (f *fakeObjectStore) Bucket() string { return "test-bucket" }

func (f *fakeObjectStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(_ []byte, _ types.DocumentType) (extract.Result, error) {
	if f.err != nil {
		return extract.Result{}, f.err
	}
	words := 0
	if f.text != "" {
		words = 2
	}
	pages := 1
	return extract.Result{Text: f.text, PageCount: &pages, WordCount: &words}, nil
}

type fakeEmbedder struct {
	dim      int
	err      error
	embedded [][]string
	mu       sync.Mutex
}

func (f *fakeEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedMany(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.embedded = append(f.embedded, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dimension())
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension(_ context.Context) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.dimension(), nil
}

func (f *fakeEmbedder) dimension() int {
	if f.dim == 0 {
		return 4
	}
	return f.dim
}

type fakeAgent struct {
	answer   string
	err      error
	lastCtx  string
	lastAsk  string
	askCount int
}

func (f *fakeAgent) GenerateAnswer(_ context.Context, contextBlock, question string) (string, error) {
	f.lastCtx = contextBlock
	f.lastAsk = question
	f.askCount++
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

var errBoom = errors.New("boom")

// compile-time interface checks for the fakes
var (
	_ store.DocumentStorer = (*fakeDocStore)(nil)
	_ store.ChunkStorer    = (*fakeChunkStore)(nil)
	_ store.ObjectStorer   = (*fakeObjectStore)(nil)
	_ extract.Extractor    = (*fakeExtractor)(nil)
	_ model.Embedder       = (*fakeEmbedder)(nil)
	_ AnswerGenerator      = (*fakeAgent)(nil)
)
