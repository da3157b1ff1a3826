package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/memoscope/memoscope/pkg/analysis"
)

// threeGroups builds 9 articles whose embeddings form 3 well-separated
// groups of 3.
func threeGroups() []analysis.ArticleEmbedding {
	bases := [][]float32{
		{10, 0, 0},
		{0, 10, 0},
		{0, 0, 10},
	}
	var articles []analysis.ArticleEmbedding
	id := int64(1)
	for g, base := range bases {
		for i := 0; i < 3; i++ {
			emb := append([]float32(nil), base...)
			emb[g] += float32(i) * 0.1
			articles = append(articles, analysis.ArticleEmbedding{
				ArticleID: id,
				Title:     "article",
				Embedding: emb,
			})
			id++
		}
	}
	return articles
}

func TestClusterWellSeparatedGroups(t *testing.T) {
	articles := threeGroups()

	result, err := analysis.Cluster(articles, analysis.ClusterConfig{K: 3, Seed: 42})
	require.NoError(t, err)
	require.Len(t, result.Centroids, 3)

	// Every article lands in exactly one cluster in [0, k)
	assert.Len(t, result.Assignments, 9)
	for _, cid := range result.Assignments {
		assert.GreaterOrEqual(t, cid, 0)
		assert.Less(t, cid, 3)
	}

	// Each group of three lands entirely in one distinct cluster
	seen := make(map[int]bool)
	for g := 0; g < 3; g++ {
		first := result.Assignments[int64(g*3+1)]
		assert.Equal(t, first, result.Assignments[int64(g*3+2)])
		assert.Equal(t, first, result.Assignments[int64(g*3+3)])
		seen[first] = true
	}
	assert.Len(t, seen, 3)
}

func TestClusterDeterministic(t *testing.T) {
	articles := threeGroups()
	config := analysis.ClusterConfig{K: 3, Seed: 42, Restarts: 5}

	first, err := analysis.Cluster(articles, config)
	require.NoError(t, err)
	second, err := analysis.Cluster(articles, config)
	require.NoError(t, err)

	assert.Equal(t, first.Assignments, second.Assignments)
	assert.Equal(t, first.Centroids, second.Centroids)
	assert.Equal(t, first.Inertia, second.Inertia)
}

func TestClusterTooManyClusters(t *testing.T) {
	articles := threeGroups()

	_, err := analysis.Cluster(articles, analysis.ClusterConfig{K: 10, Seed: 42})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds article count")

	_, err = analysis.Cluster(articles, analysis.ClusterConfig{K: 0, Seed: 42})
	assert.Error(t, err)
}

func TestClusterSingleCluster(t *testing.T) {
	articles := threeGroups()

	result, err := analysis.Cluster(articles, analysis.ClusterConfig{K: 1, Seed: 42})
	require.NoError(t, err)
	for _, cid := range result.Assignments {
		assert.Equal(t, 0, cid)
	}
}

func TestClusterTitles(t *testing.T) {
	articles := []analysis.ArticleEmbedding{
		{ArticleID: 1, Title: "Alpha", Embedding: []float32{10, 0}},
		{ArticleID: 2, Title: "Beta", Embedding: []float32{10.1, 0}},
		{ArticleID: 3, Title: "Gamma", Embedding: []float32{0, 10}},
	}

	result, err := analysis.Cluster(articles, analysis.ClusterConfig{K: 2, Seed: 42})
	require.NoError(t, err)

	titles := analysis.ClusterTitles(articles, result)
	require.Len(t, titles, 2)

	together := result.Assignments[1]
	assert.ElementsMatch(t, []string{"Alpha", "Beta"}, titles[together])
	assert.ElementsMatch(t, []string{"Gamma"}, titles[1-together])
}

func TestProject2DDeterministic(t *testing.T) {
	articles := threeGroups()

	first := analysis.Project2D(articles, 42)
	second := analysis.Project2D(articles, 42)

	require.Len(t, first, len(articles))
	assert.Equal(t, first, second)
}

func TestProject2DMatchesClusteredSet(t *testing.T) {
	articles := threeGroups()

	points := analysis.Project2D(articles, 42)
	// One point per clustered article, same order
	assert.Len(t, points, len(articles))
}
