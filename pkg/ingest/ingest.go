package ingest

import (
	"context"
	"fmt"
	"log"

	"github.com/memoscope/memoscope/internal/models"
	"github.com/memoscope/memoscope/internal/types"
	"github.com/memoscope/memoscope/pkg/chunker"
)

// Result reports what one ingestion run did. Failed articles do not abort
// the batch; re-running the same export resumes cleanly because every write
// is an upsert on a natural key.
type Result struct {
	Processed int
	Skipped   int
	Failed    int
	Chunks    int
}

// Pipeline runs parse output through chunk -> embed -> upsert for each
// article.
type Pipeline struct {
	chunker  *chunker.Chunker
	embedder types.Embedder
	store    types.VectorStore

	// OnProgress, when set, is called after each article with the number
	// of articles handled so far.
	OnProgress func(done int)
}

func New(c *chunker.Chunker, embedder types.Embedder, store types.VectorStore) *Pipeline {
	return &Pipeline{
		chunker:  c,
		embedder: embedder,
		store:    store,
	}
}

// Run ingests articles one at a time. An article that chunks to nothing is
// skipped; an article whose embedding or storage fails is counted as failed
// and logged, and the run continues with the next one. Cancellation stops
// the run between articles.
func (p *Pipeline) Run(ctx context.Context, articles []models.Article) (*Result, error) {
	result := &Result{}

	for i, article := range articles {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		pieces := p.chunker.Chunk(article.Markdown)
		if len(pieces) == 0 {
			result.Skipped++
			continue
		}

		if err := p.ingestArticle(ctx, article, pieces); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			log.Printf("failed to ingest article %s: %v", article.PostID, err)
			result.Failed++
			continue
		}

		result.Processed++
		result.Chunks += len(pieces)
		if p.OnProgress != nil {
			p.OnProgress(i + 1)
		}
	}

	return result, nil
}

func (p *Pipeline) ingestArticle(ctx context.Context, article models.Article, pieces []chunker.Piece) error {
	articleID, err := p.store.UpsertArticle(ctx, article)
	if err != nil {
		return fmt.Errorf("upsert article: %w", err)
	}

	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		texts[i] = piece.Text
	}

	embeddings, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}

	chunks := make([]models.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = models.Chunk{
			ArticleID:  articleID,
			Index:      piece.Index,
			Text:       piece.Text,
			Heading:    piece.Heading,
			TokenCount: piece.TokenCount,
			Embedding:  embeddings[i],
		}
	}

	if err := p.store.UpsertChunks(ctx, chunks); err != nil {
		return fmt.Errorf("upsert chunks: %w", err)
	}
	return nil
}
