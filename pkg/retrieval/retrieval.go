package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/memoscope/memoscope/internal/models"
	"github.com/memoscope/memoscope/internal/types"
)

// Options control one retrieval call.
type Options struct {
	MatchCount          int
	SimilarityThreshold float64
	// ExcludeArticleID drops every chunk of the named article, so an
	// article never retrieves itself when looking for link targets.
	// Zero means no exclusion.
	ExcludeArticleID int64
}

// Engine embeds a query and ranks stored chunks against it. Retrieval is
// read-only, so concurrent callers are safe.
type Engine struct {
	embedder types.Embedder
	store    types.VectorStore
}

func New(embedder types.Embedder, store types.VectorStore) *Engine {
	return &Engine{
		embedder: embedder,
		store:    store,
	}
}

// Retrieve returns the chunks most similar to the query text, best first.
// Results are guaranteed sorted by non-increasing similarity with ties
// broken by (article id, chunk index), never below the threshold, never
// from the excluded article, and never more than MatchCount.
func (e *Engine) Retrieve(ctx context.Context, query string, opts Options) ([]models.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query text is empty")
	}
	if opts.MatchCount <= 0 {
		opts.MatchCount = 15
	}

	embedding, err := e.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := e.store.MatchChunks(ctx, embedding, opts.MatchCount, opts.SimilarityThreshold, opts.ExcludeArticleID)
	if err != nil {
		return nil, fmt.Errorf("failed to match chunks: %w", err)
	}

	// Re-enforce the contract locally: an indexed store may rank within
	// tolerance but the ordering and filters the caller sees are exact.
	filtered := results[:0]
	for _, r := range results {
		if r.Similarity < opts.SimilarityThreshold {
			continue
		}
		if opts.ExcludeArticleID != 0 && r.Chunk.ArticleID == opts.ExcludeArticleID {
			continue
		}
		filtered = append(filtered, r)
	}

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Similarity != filtered[j].Similarity {
			return filtered[i].Similarity > filtered[j].Similarity
		}
		if filtered[i].Chunk.ArticleID != filtered[j].Chunk.ArticleID {
			return filtered[i].Chunk.ArticleID < filtered[j].Chunk.ArticleID
		}
		return filtered[i].Chunk.ChunkIndex < filtered[j].Chunk.ChunkIndex
	})

	if len(filtered) > opts.MatchCount {
		filtered = filtered[:opts.MatchCount]
	}
	return filtered, nil
}
