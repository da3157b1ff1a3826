package store

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/memoscope/memoscope/internal/models"
)

type VectorStoreConfig struct {
	ConnString     string
	ArticleTable   string
	ChunkTable     string
	VectorDim      int
	ChunkBatchSize int
}

// VectorStore persists articles and chunk vectors in Postgres with the
// pgvector extension. All writes are upserts on stable natural keys
// (post_id for articles, (article_id, chunk_index) for chunks), so retried
// ingestion never duplicates rows.
type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(config VectorStoreConfig) (*VectorStore, error) {
	if config.ArticleTable == "" {
		config.ArticleTable = "articles"
	}
	if config.ChunkTable == "" {
		config.ChunkTable = "chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1536 // text-embedding-3-small
	}
	if config.ChunkBatchSize == 0 {
		// Small batches keep individual statements well under the
		// connection timeout even with 1536-dim vectors per row.
		config.ChunkBatchSize = 5
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize() error {
	ctx := context.Background()

	// Enable pgvector extension
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	createArticles := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			post_id TEXT UNIQUE NOT NULL,
			title TEXT,
			subtitle TEXT,
			post_date TEXT,
			type TEXT,
			audience TEXT,
			url_slug TEXT,
			full_text_markdown TEXT,
			word_count INTEGER
		)`, vs.config.ArticleTable)

	if _, err = vs.pool.Exec(ctx, createArticles); err != nil {
		return fmt.Errorf("failed to create article table: %v", err)
	}

	createChunks := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			article_id BIGINT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			chunk_index INTEGER NOT NULL,
			chunk_text TEXT NOT NULL,
			heading TEXT NOT NULL DEFAULT '',
			token_count INTEGER NOT NULL,
			embedding vector(%d),
			PRIMARY KEY (article_id, chunk_index)
		)`, vs.config.ChunkTable, vs.config.ArticleTable, vs.config.VectorDim)

	if _, err = vs.pool.Exec(ctx, createChunks); err != nil {
		return fmt.Errorf("failed to create chunk table: %v", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		vs.config.ChunkTable, vs.config.ChunkTable)

	if _, err = vs.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %v", err)
	}

	return nil
}

// UpsertArticle writes an article keyed on its stable post id and returns
// the database id.
func (vs *VectorStore) UpsertArticle(ctx context.Context, article models.Article) (int64, error) {
	stmt := fmt.Sprintf(`
		INSERT INTO %s (post_id, title, subtitle, post_date, type, audience, url_slug, full_text_markdown, word_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (post_id) DO UPDATE SET
			title = EXCLUDED.title,
			subtitle = EXCLUDED.subtitle,
			post_date = EXCLUDED.post_date,
			type = EXCLUDED.type,
			audience = EXCLUDED.audience,
			url_slug = EXCLUDED.url_slug,
			full_text_markdown = EXCLUDED.full_text_markdown,
			word_count = EXCLUDED.word_count
		RETURNING id`,
		vs.config.ArticleTable)

	var id int64
	err := vs.pool.QueryRow(ctx, stmt,
		article.PostID,
		sanitizeUTF8(article.Title),
		sanitizeUTF8(article.Subtitle),
		article.PostDate,
		article.Type,
		article.Audience,
		article.URLSlug,
		sanitizeUTF8(article.Markdown),
		article.WordCount,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert article %s: %v", article.PostID, err)
	}

	return id, nil
}

// UpsertChunks writes chunk rows in small batches, each batch in its own
// transaction, keyed on (article_id, chunk_index).
func (vs *VectorStore) UpsertChunks(ctx context.Context, chunks []models.Chunk) error {
	stmt := fmt.Sprintf(`
		INSERT INTO %s (article_id, chunk_index, chunk_text, heading, token_count, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (article_id, chunk_index) DO UPDATE SET
			chunk_text = EXCLUDED.chunk_text,
			heading = EXCLUDED.heading,
			token_count = EXCLUDED.token_count,
			embedding = EXCLUDED.embedding`,
		vs.config.ChunkTable)

	batchSize := vs.config.ChunkBatchSize
	for i := 0; i < len(chunks); i += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		tx, err := vs.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %v", err)
		}

		for _, chunk := range chunks[i:end] {
			_, err = tx.Exec(ctx, stmt,
				chunk.ArticleID,
				chunk.Index,
				sanitizeUTF8(chunk.Text),
				sanitizeUTF8(chunk.Heading),
				chunk.TokenCount,
				pgvector.NewVector(chunk.Embedding),
			)
			if err != nil {
				tx.Rollback(ctx)
				return fmt.Errorf("failed to upsert chunk %d/%d: %v", chunk.ArticleID, chunk.Index, err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit chunk batch: %v", err)
		}
	}

	return nil
}

// MatchChunks ranks stored chunks by cosine similarity to the query vector.
// Results below threshold are dropped, chunks of excludeArticleID are
// filtered out (0 means no exclusion), and ties are broken by
// (article_id, chunk_index) so the ranking is reproducible.
func (vs *VectorStore) MatchChunks(ctx context.Context, embedding []float32, matchCount int, threshold float64, excludeArticleID int64) ([]models.RetrievalResult, error) {
	query := fmt.Sprintf(`
		SELECT c.article_id, c.chunk_index, c.chunk_text, c.heading,
		       a.title, a.url_slug,
		       1 - (c.embedding <=> $1) AS similarity
		FROM %s c
		JOIN %s a ON a.id = c.article_id
		WHERE ($2::bigint = 0 OR c.article_id <> $2)
		  AND 1 - (c.embedding <=> $1) >= $3
		ORDER BY similarity DESC, c.article_id ASC, c.chunk_index ASC
		LIMIT $4`,
		vs.config.ChunkTable, vs.config.ArticleTable)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(embedding), excludeArticleID, threshold, matchCount)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %v", err)
	}
	defer rows.Close()

	var results []models.RetrievalResult
	for rows.Next() {
		var r models.RetrievalResult
		err := rows.Scan(
			&r.Chunk.ArticleID,
			&r.Chunk.ChunkIndex,
			&r.Chunk.Text,
			&r.Chunk.Heading,
			&r.Chunk.ArticleTitle,
			&r.Chunk.ArticleSlug,
			&r.Similarity,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		results = append(results, r)
	}

	return results, rows.Err()
}

// AllChunkEmbeddings fetches every stored chunk vector with its article id
// and title, for clustering runs.
func (vs *VectorStore) AllChunkEmbeddings(ctx context.Context) ([]models.ChunkEmbedding, error) {
	query := fmt.Sprintf(`
		SELECT c.article_id, a.title, c.embedding
		FROM %s c
		JOIN %s a ON a.id = c.article_id
		ORDER BY c.article_id, c.chunk_index`,
		vs.config.ChunkTable, vs.config.ArticleTable)

	rows, err := vs.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk embeddings: %v", err)
	}
	defer rows.Close()

	var chunks []models.ChunkEmbedding
	for rows.Next() {
		var ce models.ChunkEmbedding
		var vec pgvector.Vector
		if err := rows.Scan(&ce.ArticleID, &ce.ArticleTitle, &vec); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		ce.Embedding = vec.Slice()
		chunks = append(chunks, ce)
	}

	return chunks, rows.Err()
}

func (vs *VectorStore) ArticleCount(ctx context.Context) (int, error) {
	var count int
	err := vs.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", vs.config.ArticleTable)).Scan(&count)
	return count, err
}

func (vs *VectorStore) ChunkCount(ctx context.Context) (int, error) {
	var count int
	err := vs.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", vs.config.ChunkTable)).Scan(&count)
	return count, err
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
