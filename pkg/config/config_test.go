package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
embedding:
  model: "text-embedding-3-small"
  dimensions: 1536
  batch_size: 50
  rate_limit: 2.5

database:
  url: "postgres://localhost:5432/test"
  article_table: "test_articles"
  chunk_table: "test_chunks"
  chunk_batch_size: 10

chunker:
  max_chunk_tokens: 800
  merge_threshold_tokens: 600
  min_article_bytes: 200

analysis:
  cluster_count: 12
  similar_chunks: 20
  link_suggestions: 5
  similarity_threshold: 0.4
  seed: 7
  restarts: 3
  max_iterations: 100

labeler:
  model: "claude-sonnet-4-5-20250929"
  max_tokens: 1500

newsletter:
  base_url: "https://example.substack.com"
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	// Test loading config
	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	// Verify loaded values
	assert.Equal(t, "text-embedding-3-small", config.Embedding.Model)
	assert.Equal(t, 1536, config.Embedding.Dimensions)
	assert.Equal(t, 50, config.Embedding.BatchSize)
	assert.Equal(t, "postgres://localhost:5432/test", config.Database.URL)
	assert.Equal(t, 10, config.Database.ChunkBatchSize)
	assert.Equal(t, 800, config.Chunker.MaxChunkTokens)
	assert.Equal(t, 600, config.Chunker.MergeThresholdTokens)
	assert.Equal(t, 12, config.Analysis.ClusterCount)
	assert.Equal(t, 0.4, config.Analysis.SimilarityThreshold)
	assert.Equal(t, int64(7), config.Analysis.Seed)
	assert.Equal(t, "https://example.substack.com", config.Newsletter.BaseURL)
}

func TestLoadConfigDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Minimal config: everything unset falls back to defaults
	err := os.WriteFile(configPath, []byte("database:\n  url: \"postgres://localhost/memo\"\n"), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "text-embedding-3-small", config.Embedding.Model)
	assert.Equal(t, 1536, config.Embedding.Dimensions)
	assert.Equal(t, 100, config.Embedding.BatchSize)
	assert.Equal(t, 1000, config.Chunker.MaxChunkTokens)
	assert.Equal(t, 750, config.Chunker.MergeThresholdTokens)
	assert.Equal(t, 100, config.Chunker.MinArticleBytes)
	assert.Equal(t, 15, config.Analysis.ClusterCount)
	assert.Equal(t, 15, config.Analysis.SimilarChunks)
	assert.Equal(t, 8, config.Analysis.LinkSuggestions)
	assert.Equal(t, 0.5, config.Analysis.SimilarityThreshold)
	assert.Equal(t, int64(42), config.Analysis.Seed)
	assert.Equal(t, 10, config.Analysis.Restarts)
	assert.Equal(t, 5, config.Database.ChunkBatchSize)
}

func TestConfigValidation(t *testing.T) {
	valid, err := getDefaultConfig()
	require.NoError(t, err)
	assert.Empty(t, valid.Validate())

	invalid, err := getDefaultConfig()
	require.NoError(t, err)
	invalid.Embedding.Dimensions = -1
	invalid.Chunker.MaxChunkTokens = 0
	invalid.Chunker.MergeThresholdTokens = 0
	invalid.Analysis.SimilarityThreshold = 1.5
	invalid.Analysis.ClusterCount = 0

	errors := invalid.Validate()
	require.Len(t, errors, 5)

	messages := make([]string, len(errors))
	for i, e := range errors {
		messages[i] = e.Error()
	}
	assert.Contains(t, messages, "embedding.dimensions: dimensions must be positive")
	assert.Contains(t, messages, "chunker.max_chunk_tokens: max_chunk_tokens must be positive")
	assert.Contains(t, messages, "chunker.merge_threshold_tokens: merge_threshold_tokens must be positive")
	assert.Contains(t, messages, "analysis.similarity_threshold: similarity_threshold must be between 0 and 1")
	assert.Contains(t, messages, "analysis.cluster_count: cluster_count must be positive")
}

func TestMergeThresholdAboveMax(t *testing.T) {
	config, err := getDefaultConfig()
	require.NoError(t, err)
	config.Chunker.MaxChunkTokens = 500
	config.Chunker.MergeThresholdTokens = 750

	errors := config.Validate()
	require.Len(t, errors, 1)
	assert.Equal(t, "chunker.merge_threshold_tokens", errors[0].Field)
}

func TestEnvironmentOverrides(t *testing.T) {
	// Set environment variables
	os.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	os.Setenv("OPENAI_API_KEY", "sk-test")
	os.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	defer func() {
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("OPENAI_API_KEY")
		os.Unsetenv("ANTHROPIC_API_KEY")
	}()

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "postgres://env-db:5432/test", config.Database.URL)
	assert.Equal(t, "sk-test", config.Embedding.APIKey)
	assert.Equal(t, "sk-ant-test", config.Labeler.APIKey)
}
