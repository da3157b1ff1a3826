package analysis

import (
	"math"
	"math/rand"
)

// Point2D is one article's position in the 2-D projection.
type Point2D struct {
	X, Y float64
}

// Project2D reduces the article embedding matrix to two dimensions with PCA
// (power iteration on the centered data, second component from the deflated
// matrix). Purely for visualization: the i-th point corresponds to the i-th
// input article, the same set the cluster engine consumes, and a fixed seed
// makes the output deterministic.
func Project2D(articles []ArticleEmbedding, seed int64) []Point2D {
	n := len(articles)
	if n == 0 {
		return nil
	}
	dim := len(articles[0].Embedding)

	// Center the data
	data := make([][]float64, n)
	mean := make([]float64, dim)
	for i, a := range articles {
		data[i] = make([]float64, dim)
		for j, v := range a.Embedding {
			data[i][j] = float64(v)
			mean[j] += float64(v)
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}
	for i := range data {
		for j := range data[i] {
			data[i][j] -= mean[j]
		}
	}

	rng := rand.New(rand.NewSource(seed))
	first := principalComponent(data, rng)
	scores1 := project(data, first)

	// Deflate: remove the first component before extracting the second
	for i := range data {
		for j := range data[i] {
			data[i][j] -= scores1[i] * first[j]
		}
	}
	second := principalComponent(data, rng)
	scores2 := project(data, second)

	points := make([]Point2D, n)
	for i := range points {
		points[i] = Point2D{X: scores1[i], Y: scores2[i]}
	}
	return points
}

const (
	powerIterations = 100
	powerTolerance  = 1e-9
)

// principalComponent finds the dominant principal direction of centered
// rows via power iteration on the covariance operator.
func principalComponent(data [][]float64, rng *rand.Rand) []float64 {
	if len(data) == 0 {
		return nil
	}
	dim := len(data[0])

	v := make([]float64, dim)
	for j := range v {
		v[j] = rng.NormFloat64()
	}
	normalize(v)

	next := make([]float64, dim)
	for iter := 0; iter < powerIterations; iter++ {
		for j := range next {
			next[j] = 0
		}
		// next = X^T (X v), one pass over the rows
		for _, row := range data {
			var score float64
			for j, x := range row {
				score += x * v[j]
			}
			for j, x := range row {
				next[j] += score * x
			}
		}
		normalize(next)

		var diff float64
		for j := range v {
			d := next[j] - v[j]
			diff += d * d
		}
		copy(v, next)
		if diff < powerTolerance {
			break
		}
	}
	return v
}

func project(data [][]float64, direction []float64) []float64 {
	scores := make([]float64, len(data))
	for i, row := range data {
		for j, x := range row {
			scores[i] += x * direction[j]
		}
	}
	return scores
}

func normalize(v []float64) {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return
	}
	for j := range v {
		v[j] /= norm
	}
}
