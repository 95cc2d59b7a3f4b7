package store

import (
	"context"
	"os"
	"testing"
	"time"

	"docvault/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStore connects to the database named by TEST_POSTGRES_DSN. The
// suite needs a running Postgres with the pgvector extension and is
// skipped otherwise.
func testStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, s.Init(ctx, 4))
	t.Cleanup(func() { s.Close() })
	return s
}

func seedDocument(t *testing.T, s *PostgresStore, userID uuid.UUID) *types.Document {
	t.Helper()
	now := time.Now().UTC()
	doc := &types.Document{
		ID:               uuid.New(),
		UserID:           userID,
		Filename:         uuid.NewString() + ".txt",
		OriginalFilename: "roundtrip.txt",
		FileType:         types.TypeTXT,
		FileSize:         42,
		MimeType:         "text/plain",
		StoragePath:      "users/" + userID.String() + "/documents/x.txt",
		StorageBucket:    "documents",
		Status:           types.StatusProcessing,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, s.CreateDocument(context.Background(), doc))
	t.Cleanup(func() { s.DeleteDocument(context.Background(), doc.ID) })
	return doc
}

func TestDocumentRoundtrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	userID := uuid.New()

	doc := seedDocument(t, s, userID)

	got, err := s.GetDocumentByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, types.StatusProcessing, got.Status)
	assert.Nil(t, got.ProcessedAt)

	pages, words := 1, 7
	require.NoError(t, s.UpdateProcessingStatus(ctx, doc.ID, types.StatusCompleted, "seven words of extracted text right here", &pages, &words))

	got, err = s.GetDocumentByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, got.Status)
	assert.NotNil(t, got.ProcessedAt)
	require.NotNil(t, got.WordCount)
	assert.Equal(t, 7, *got.WordCount)
}

func TestGetDocumentNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.GetDocumentByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndCountByUser(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		seedDocument(t, s, userID)
	}

	count, err := s.CountDocumentsByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	docs, err := s.ListDocumentsByUser(ctx, userID, 0, 2)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = s.ListDocumentsByUser(ctx, userID, 2, 2)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestChunkSearchScopedToOwner(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	owner := uuid.New()
	stranger := uuid.New()
	doc := seedDocument(t, s, owner)

	start, end := 0, 10
	chunks := []types.Chunk{
		{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			UserID:     owner,
			ChunkIndex: 0,
			ChunkText:  "vector one",
			ChunkSize:  10,
			Embedding:  []float32{1, 0, 0, 0},
			StartChar:  &start,
			EndChar:    &end,
			CreatedAt:  time.Now().UTC(),
		},
		{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			UserID:     owner,
			ChunkIndex: 1,
			ChunkText:  "vector two",
			ChunkSize:  10,
			Embedding:  []float32{0, 1, 0, 0},
			CreatedAt:  time.Now().UTC(),
		},
	}
	require.NoError(t, s.CreateChunks(ctx, chunks))
	t.Cleanup(func() { s.DeleteChunksByDocument(ctx, doc.ID) })

	matches, err := s.SearchSimilar(ctx, []float32{1, 0, 0, 0}, owner, 10, 0.5)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "vector one", matches[0].ChunkText)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-6)

	matches, err = s.SearchSimilar(ctx, []float32{1, 0, 0, 0}, stranger, 10, 0.0)
	require.NoError(t, err)
	assert.Empty(t, matches, "another user's chunks never surface")
}

func TestGetChunksSortedByIndexRegardlessOfInsertOrder(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	userID := uuid.New()
	doc := seedDocument(t, s, userID)

	// insert out of order on purpose
	var chunks []types.Chunk
	for _, idx := range []int{3, 0, 4, 1, 2} {
		chunks = append(chunks, types.Chunk{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			UserID:     userID,
			ChunkIndex: idx,
			ChunkText:  "chunk",
			ChunkSize:  5,
			Embedding:  []float32{0, 0, 0, 1},
			CreatedAt:  time.Now().UTC(),
		})
	}
	require.NoError(t, s.CreateChunks(ctx, chunks))
	t.Cleanup(func() { s.DeleteChunksByDocument(ctx, doc.ID) })

	got, err := s.GetChunksByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i, c := range got {
		assert.Equal(t, i, c.ChunkIndex)
	}
}

func TestUpdateDocumentMetaPersistsCallerTimestamp(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	doc := seedDocument(t, s, uuid.New())

	doc.Title = "Renamed"
	doc.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, s.UpdateDocumentMeta(ctx, doc))

	got, err := s.GetDocumentByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.True(t, got.UpdatedAt.Equal(doc.UpdatedAt), "stored updated_at must be the caller's timestamp")
}

func TestChunksCascadeWithDocument(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	userID := uuid.New()
	doc := seedDocument(t, s, userID)

	require.NoError(t, s.CreateChunks(ctx, []types.Chunk{{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		UserID:     userID,
		ChunkIndex: 0,
		ChunkText:  "to be cascaded",
		ChunkSize:  14,
		Embedding:  []float32{0.5, 0.5, 0.5, 0.5},
		CreatedAt:  time.Now().UTC(),
	}}))

	require.NoError(t, s.DeleteDocument(ctx, doc.ID))

	chunks, err := s.GetChunksByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
