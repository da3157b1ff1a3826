package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/memoscope/memoscope/internal/models"
)

// MemoryStore is an in-memory vector store backed by exact brute-force
// cosine search. It implements the same contract as the pgvector store and
// is the reference for its ranking semantics; it also serves tests and
// corpora small enough not to need Postgres.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	articles map[string]models.Article // keyed by post id
	chunks   map[int64]map[int]models.Chunk
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:   1,
		articles: make(map[string]models.Article),
		chunks:   make(map[int64]map[int]models.Chunk),
	}
}

func (s *MemoryStore) UpsertArticle(_ context.Context, article models.Article) (int64, error) {
	if article.PostID == "" {
		return 0, fmt.Errorf("article post id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.articles[article.PostID]; ok {
		article.ID = existing.ID
	} else {
		article.ID = s.nextID
		s.nextID++
	}
	s.articles[article.PostID] = article
	return article.ID, nil
}

func (s *MemoryStore) UpsertChunks(_ context.Context, chunks []models.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunk := range chunks {
		byIndex, ok := s.chunks[chunk.ArticleID]
		if !ok {
			byIndex = make(map[int]models.Chunk)
			s.chunks[chunk.ArticleID] = byIndex
		}
		byIndex[chunk.Index] = chunk
	}
	return nil
}

func (s *MemoryStore) MatchChunks(_ context.Context, embedding []float32, matchCount int, threshold float64, excludeArticleID int64) ([]models.RetrievalResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := s.articlesByID()

	var results []models.RetrievalResult
	for articleID, byIndex := range s.chunks {
		if excludeArticleID != 0 && articleID == excludeArticleID {
			continue
		}
		article := byID[articleID]
		for _, chunk := range byIndex {
			sim := CosineSimilarity(embedding, chunk.Embedding)
			if sim < threshold {
				continue
			}
			results = append(results, models.RetrievalResult{
				Chunk: models.ChunkRef{
					ArticleID:    chunk.ArticleID,
					ChunkIndex:   chunk.Index,
					Text:         chunk.Text,
					Heading:      chunk.Heading,
					ArticleTitle: article.Title,
					ArticleSlug:  article.URLSlug,
				},
				Similarity: sim,
			})
		}
	}

	// Descending similarity, ties broken by natural chunk order for
	// reproducibility
	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		if results[i].Chunk.ArticleID != results[j].Chunk.ArticleID {
			return results[i].Chunk.ArticleID < results[j].Chunk.ArticleID
		}
		return results[i].Chunk.ChunkIndex < results[j].Chunk.ChunkIndex
	})

	if matchCount > 0 && len(results) > matchCount {
		results = results[:matchCount]
	}
	return results, nil
}

func (s *MemoryStore) AllChunkEmbeddings(_ context.Context) ([]models.ChunkEmbedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := s.articlesByID()

	articleIDs := make([]int64, 0, len(s.chunks))
	for id := range s.chunks {
		articleIDs = append(articleIDs, id)
	}
	sort.Slice(articleIDs, func(i, j int) bool { return articleIDs[i] < articleIDs[j] })

	var out []models.ChunkEmbedding
	for _, articleID := range articleIDs {
		byIndex := s.chunks[articleID]
		indices := make([]int, 0, len(byIndex))
		for idx := range byIndex {
			indices = append(indices, idx)
		}
		sort.Ints(indices)

		for _, idx := range indices {
			out = append(out, models.ChunkEmbedding{
				ArticleID:    articleID,
				ArticleTitle: byID[articleID].Title,
				Embedding:    byIndex[idx].Embedding,
			})
		}
	}
	return out, nil
}

func (s *MemoryStore) ArticleCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.articles), nil
}

func (s *MemoryStore) ChunkCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, byIndex := range s.chunks {
		count += len(byIndex)
	}
	return count, nil
}

func (s *MemoryStore) Close() {}

// articlesByID must be called with the lock held.
func (s *MemoryStore) articlesByID() map[int64]models.Article {
	byID := make(map[int64]models.Article, len(s.articles))
	for _, a := range s.articles {
		byID[a.ID] = a
	}
	return byID
}

// CosineSimilarity is the dot product of two vectors divided by the product
// of their magnitudes. A zero vector has similarity 0 to everything; there
// is never a division by zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
