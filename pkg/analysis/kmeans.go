package analysis

import (
	"fmt"
	"math"
	"math/rand"
)

// ClusterConfig controls one k-means run. Identical input, K, Seed and
// Restarts always reproduce identical assignments and centroids.
type ClusterConfig struct {
	K             int
	Seed          int64
	Restarts      int
	MaxIterations int
}

// ClusterResult is the ephemeral outcome of one clustering run.
type ClusterResult struct {
	// Assignments maps article id to a cluster id in [0, K).
	Assignments map[int64]int
	Centroids   [][]float32
	// Inertia is the within-cluster sum of squared distances of the kept
	// run, the quantity the restarts minimize.
	Inertia float64
}

// Cluster partitions article embeddings into K groups with Lloyd's k-means
// over squared Euclidean distance: deterministic seeding, assign to nearest
// centroid, recompute centroids as member means, stop when assignments
// settle or MaxIterations is hit. The whole procedure runs Restarts times
// from independent seed draws and the run with the lowest inertia wins.
// Requesting more clusters than articles is a configuration error caught
// before any centroid work.
func Cluster(articles []ArticleEmbedding, config ClusterConfig) (*ClusterResult, error) {
	if config.K <= 0 {
		return nil, fmt.Errorf("cluster count must be positive, got %d", config.K)
	}
	if config.K > len(articles) {
		return nil, fmt.Errorf("cluster count %d exceeds article count %d", config.K, len(articles))
	}
	if config.Restarts <= 0 {
		config.Restarts = 10
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = 300
	}

	points := make([][]float64, len(articles))
	for i, a := range articles {
		p := make([]float64, len(a.Embedding))
		for j, v := range a.Embedding {
			p[j] = float64(v)
		}
		points[i] = p
	}

	rng := rand.New(rand.NewSource(config.Seed))

	var best *lloydResult
	for run := 0; run < config.Restarts; run++ {
		result := lloyd(points, config.K, config.MaxIterations, rng)
		if best == nil || result.inertia < best.inertia {
			best = result
		}
	}

	assignments := make(map[int64]int, len(articles))
	for i, a := range articles {
		assignments[a.ArticleID] = best.labels[i]
	}

	centroids := make([][]float32, len(best.centroids))
	for i, c := range best.centroids {
		out := make([]float32, len(c))
		for j, v := range c {
			out[j] = float32(v)
		}
		centroids[i] = out
	}

	return &ClusterResult{
		Assignments: assignments,
		Centroids:   centroids,
		Inertia:     best.inertia,
	}, nil
}

// ClusterTitles groups member article titles by cluster id, the shape the
// labeling collaborator consumes. Every cluster id in [0, K) is present
// even when empty.
func ClusterTitles(articles []ArticleEmbedding, result *ClusterResult) map[int][]string {
	titles := make(map[int][]string, len(result.Centroids))
	for cid := range result.Centroids {
		titles[cid] = nil
	}
	for _, a := range articles {
		cid := result.Assignments[a.ArticleID]
		titles[cid] = append(titles[cid], a.Title)
	}
	return titles
}

type lloydResult struct {
	labels    []int
	centroids [][]float64
	inertia   float64
}

func lloyd(points [][]float64, k, maxIterations int, rng *rand.Rand) *lloydResult {
	// Seed centroids from k distinct points
	centroids := make([][]float64, k)
	for i, idx := range rng.Perm(len(points))[:k] {
		centroids[i] = append([]float64(nil), points[idx]...)
	}

	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = -1
	}

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, p := range points {
			nearest := nearestCentroid(p, centroids)
			if nearest != labels[i] {
				labels[i] = nearest
				changed = true
			}
		}
		if !changed {
			break
		}
		recomputeCentroids(points, labels, centroids)
	}

	inertia := 0.0
	for i, p := range points {
		inertia += squaredDistance(p, centroids[labels[i]])
	}

	return &lloydResult{
		labels:    labels,
		centroids: centroids,
		inertia:   inertia,
	}
}

func nearestCentroid(p []float64, centroids [][]float64) int {
	nearest := 0
	min := math.Inf(1)
	for c, centroid := range centroids {
		if d := squaredDistance(p, centroid); d < min {
			min = d
			nearest = c
		}
	}
	return nearest
}

// recomputeCentroids replaces each centroid with the mean of its assigned
// points. A centroid that lost all members keeps its previous position.
func recomputeCentroids(points [][]float64, labels []int, centroids [][]float64) {
	dim := len(centroids[0])
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for c := range sums {
		sums[c] = make([]float64, dim)
	}

	for i, p := range points {
		c := labels[i]
		counts[c]++
		for j, v := range p {
			sums[c][j] += v
		}
	}

	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		for j := range centroids[c] {
			centroids[c][j] = sums[c][j] / float64(counts[c])
		}
	}
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
