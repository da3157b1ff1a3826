package retrieval_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/memoscope/memoscope/internal/models"
	"github.com/memoscope/memoscope/pkg/retrieval"
	"github.com/memoscope/memoscope/pkg/store"
)

// fixedEmbedder returns a canned vector for any input.
type fixedEmbedder struct {
	vector []float32
}

func (f fixedEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = f.vector
	}
	return out, nil
}

func (f fixedEmbedder) EmbedSingle(_ context.Context, _ string) ([]float32, error) {
	return f.vector, nil
}

func seedCorpus(t *testing.T) (*store.MemoryStore, int64, int64) {
	t.Helper()
	s := store.NewMemoryStore()
	ctx := context.Background()

	id1, err := s.UpsertArticle(ctx, models.Article{PostID: "p1", Title: "On Topic", URLSlug: "on-topic"})
	require.NoError(t, err)
	id2, err := s.UpsertArticle(ctx, models.Article{PostID: "p2", Title: "Off Topic", URLSlug: "off-topic"})
	require.NoError(t, err)

	// Chunk X: similarity 0.82 to the query; chunk Y: 0.30
	err = s.UpsertChunks(ctx, []models.Chunk{
		{ArticleID: id1, Index: 0, Text: "chunk X", Embedding: []float32{0.82, 0.5724, 0}},
		{ArticleID: id2, Index: 0, Text: "chunk Y", Embedding: []float32{0.30, 0.9539, 0}},
	})
	require.NoError(t, err)

	return s, id1, id2
}

func TestRetrieveThreshold(t *testing.T) {
	s, _, _ := seedCorpus(t)
	engine := retrieval.New(fixedEmbedder{vector: []float32{1, 0, 0}}, s)

	results, err := engine.Retrieve(context.Background(), "internal links", retrieval.Options{
		MatchCount:          10,
		SimilarityThreshold: 0.5,
	})
	require.NoError(t, err)

	// X (0.82) is in, Y (0.30) is out
	require.Len(t, results, 1)
	assert.Equal(t, "chunk X", results[0].Chunk.Text)
	assert.InDelta(t, 0.82, results[0].Similarity, 1e-3)
}

func TestRetrieveExclusion(t *testing.T) {
	s, id1, id2 := seedCorpus(t)
	engine := retrieval.New(fixedEmbedder{vector: []float32{1, 0, 0}}, s)

	results, err := engine.Retrieve(context.Background(), "internal links", retrieval.Options{
		MatchCount:       10,
		ExcludeArticleID: id1,
	})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, id2, results[0].Chunk.ArticleID)
}

func TestRetrieveOrderingAndTruncation(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	id, err := s.UpsertArticle(ctx, models.Article{PostID: "p1", Title: "A"})
	require.NoError(t, err)

	chunks := []models.Chunk{
		{ArticleID: id, Index: 0, Embedding: []float32{0.5, 0.866, 0}},
		{ArticleID: id, Index: 1, Embedding: []float32{1, 0, 0}},
		{ArticleID: id, Index: 2, Embedding: []float32{0.9, 0.4359, 0}},
		{ArticleID: id, Index: 3, Embedding: []float32{0.2, 0.9798, 0}},
	}
	require.NoError(t, s.UpsertChunks(ctx, chunks))

	engine := retrieval.New(fixedEmbedder{vector: []float32{1, 0, 0}}, s)
	results, err := engine.Retrieve(ctx, "query", retrieval.Options{MatchCount: 3})
	require.NoError(t, err)

	require.Len(t, results, 3)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
	}
	assert.Equal(t, 1, results[0].Chunk.ChunkIndex)
}

func TestRetrieveEmptyQuery(t *testing.T) {
	s := store.NewMemoryStore()
	engine := retrieval.New(fixedEmbedder{vector: []float32{1, 0, 0}}, s)

	_, err := engine.Retrieve(context.Background(), "   ", retrieval.Options{})
	assert.Error(t, err)
}
