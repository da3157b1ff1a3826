package types

import (
	"context"

	"github.com/memoscope/memoscope/internal/models"
)

// Core interfaces

// Tokenizer counts tokens under a fixed deterministic encoding. Counts must
// be stable across runs for identical text.
type Tokenizer interface {
	Count(text string) int
}

// Embedder maps texts to fixed-dimension vectors. EmbedTexts is batched and
// order-preserving: the i-th vector corresponds to the i-th input.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists articles and their chunk vectors. All writes are
// upserts keyed on stable natural keys, so retried or repeated ingestion is
// idempotent.
type VectorStore interface {
	UpsertArticle(ctx context.Context, article models.Article) (int64, error)
	UpsertChunks(ctx context.Context, chunks []models.Chunk) error
	// MatchChunks ranks stored chunks by cosine similarity to the query
	// vector, descending, dropping results below threshold and any chunk
	// owned by excludeArticleID (0 means no exclusion).
	MatchChunks(ctx context.Context, embedding []float32, matchCount int, threshold float64, excludeArticleID int64) ([]models.RetrievalResult, error)
	AllChunkEmbeddings(ctx context.Context) ([]models.ChunkEmbedding, error)
	ArticleCount(ctx context.Context) (int, error)
	ChunkCount(ctx context.Context) (int, error)
	Close()
}

// Labeler turns cluster membership into human-readable labels and content
// gap suggestions. It consumes only structured maps; prose parsing stays
// behind this boundary.
type Labeler interface {
	Label(ctx context.Context, clusters map[int][]string) (map[int]models.ClusterLabel, error)
}
