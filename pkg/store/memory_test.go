package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/memoscope/memoscope/internal/models"
	"github.com/memoscope/memoscope/pkg/store"
)

func seedStore(t *testing.T) (*store.MemoryStore, int64, int64) {
	t.Helper()
	s := store.NewMemoryStore()
	ctx := context.Background()

	id1, err := s.UpsertArticle(ctx, models.Article{PostID: "p1", Title: "First", URLSlug: "first"})
	require.NoError(t, err)
	id2, err := s.UpsertArticle(ctx, models.Article{PostID: "p2", Title: "Second", URLSlug: "second"})
	require.NoError(t, err)

	err = s.UpsertChunks(ctx, []models.Chunk{
		{ArticleID: id1, Index: 0, Text: "a", Embedding: []float32{1, 0, 0}},
		{ArticleID: id1, Index: 1, Text: "b", Embedding: []float32{0.9, 0.1, 0}},
		{ArticleID: id2, Index: 0, Text: "c", Embedding: []float32{0, 1, 0}},
	})
	require.NoError(t, err)

	return s, id1, id2
}

func TestMemoryStoreUpsertIdempotent(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	first, err := s.UpsertArticle(ctx, models.Article{PostID: "p1", Title: "v1"})
	require.NoError(t, err)

	// Re-upserting the same post id overwrites, never duplicates
	second, err := s.UpsertArticle(ctx, models.Article{PostID: "p1", Title: "v2"})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	count, err := s.ArticleCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	err = s.UpsertChunks(ctx, []models.Chunk{{ArticleID: first, Index: 0, Text: "old"}})
	require.NoError(t, err)
	err = s.UpsertChunks(ctx, []models.Chunk{{ArticleID: first, Index: 0, Text: "new"}})
	require.NoError(t, err)

	chunkCount, err := s.ChunkCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, chunkCount)
}

func TestMatchChunksRanking(t *testing.T) {
	s, id1, _ := seedStore(t)

	results, err := s.MatchChunks(context.Background(), []float32{1, 0, 0}, 10, 0.1, 0)
	require.NoError(t, err)
	require.Len(t, results, 2) // the orthogonal chunk is below threshold

	assert.Equal(t, id1, results[0].Chunk.ArticleID)
	assert.Equal(t, 0, results[0].Chunk.ChunkIndex)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
	assert.GreaterOrEqual(t, results[0].Similarity, results[1].Similarity)
	assert.Equal(t, "First", results[0].Chunk.ArticleTitle)
}

func TestMatchChunksThresholdAndExclusion(t *testing.T) {
	s, id1, id2 := seedStore(t)
	ctx := context.Background()

	// Exclusion drops every chunk of the excluded article
	results, err := s.MatchChunks(ctx, []float32{1, 0, 0}, 10, 0, id1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id2, results[0].Chunk.ArticleID)

	// Threshold is a strict floor
	results, err = s.MatchChunks(ctx, []float32{1, 0, 0}, 10, 0.995, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Similarity, 0.995)
	}
}

func TestMatchChunksTruncation(t *testing.T) {
	s, _, _ := seedStore(t)

	results, err := s.MatchChunks(context.Background(), []float32{1, 1, 0}, 1, 0, 0)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestMatchChunksTieBreak(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	id1, err := s.UpsertArticle(ctx, models.Article{PostID: "p1"})
	require.NoError(t, err)
	id2, err := s.UpsertArticle(ctx, models.Article{PostID: "p2"})
	require.NoError(t, err)

	// Identical vectors: ties resolve by (article id, chunk index)
	vec := []float32{1, 0}
	err = s.UpsertChunks(ctx, []models.Chunk{
		{ArticleID: id2, Index: 0, Embedding: vec},
		{ArticleID: id1, Index: 1, Embedding: vec},
		{ArticleID: id1, Index: 0, Embedding: vec},
	})
	require.NoError(t, err)

	results, err := s.MatchChunks(ctx, vec, 10, 0, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, id1, results[0].Chunk.ArticleID)
	assert.Equal(t, 0, results[0].Chunk.ChunkIndex)
	assert.Equal(t, id1, results[1].Chunk.ArticleID)
	assert.Equal(t, 1, results[1].Chunk.ChunkIndex)
	assert.Equal(t, id2, results[2].Chunk.ArticleID)
}

func TestAllChunkEmbeddingsOrdered(t *testing.T) {
	s, id1, id2 := seedStore(t)

	chunks, err := s.AllChunkEmbeddings(context.Background())
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, id1, chunks[0].ArticleID)
	assert.Equal(t, id1, chunks[1].ArticleID)
	assert.Equal(t, id2, chunks[2].ArticleID)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, store.CosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, store.CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, store.CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// A zero vector never divides by zero
	assert.Equal(t, 0.0, store.CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, 0.0, store.CosineSimilarity(nil, nil))
}
