package analysis

import (
	"fmt"
	"sort"

	"github.com/memoscope/memoscope/internal/models"
)

// ArticleEmbedding is the mean-pooled vector for one article, derived from
// its chunk embeddings. It is never stored; clustering recomputes it from
// the chunk snapshot each run.
type ArticleEmbedding struct {
	ArticleID int64
	Title     string
	Embedding []float32
}

// ArticleEmbeddings computes one mean embedding per article in a single
// streaming pass over the chunk rows: running componentwise sums plus a
// count per article, divided at the end. Articles are returned in ascending
// id order so downstream output is reproducible. An article with no chunks
// simply never appears.
func ArticleEmbeddings(chunks []models.ChunkEmbedding) ([]ArticleEmbedding, error) {
	type accumulator struct {
		title string
		sum   []float64
		count int
	}

	accs := make(map[int64]*accumulator)
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			continue
		}
		acc, ok := accs[chunk.ArticleID]
		if !ok {
			acc = &accumulator{
				title: chunk.ArticleTitle,
				sum:   make([]float64, len(chunk.Embedding)),
			}
			accs[chunk.ArticleID] = acc
		}
		if len(chunk.Embedding) != len(acc.sum) {
			return nil, fmt.Errorf("article %d: chunk dimension %d does not match %d", chunk.ArticleID, len(chunk.Embedding), len(acc.sum))
		}
		for i, v := range chunk.Embedding {
			acc.sum[i] += float64(v)
		}
		acc.count++
	}

	ids := make([]int64, 0, len(accs))
	for id := range accs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]ArticleEmbedding, 0, len(ids))
	for _, id := range ids {
		acc := accs[id]
		mean := make([]float32, len(acc.sum))
		for i, v := range acc.sum {
			mean[i] = float32(v / float64(acc.count))
		}
		out = append(out, ArticleEmbedding{
			ArticleID: id,
			Title:     acc.title,
			Embedding: mean,
		})
	}
	return out, nil
}
