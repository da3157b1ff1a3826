package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Embedding struct {
		Model      string  `yaml:"model"`
		Dimensions int     `yaml:"dimensions"`
		BatchSize  int     `yaml:"batch_size"`
		APIKey     string  `yaml:"api_key"`
		RateLimit  float64 `yaml:"rate_limit"`
	} `yaml:"embedding"`

	Database struct {
		URL            string `yaml:"url"`
		ArticleTable   string `yaml:"article_table"`
		ChunkTable     string `yaml:"chunk_table"`
		ChunkBatchSize int    `yaml:"chunk_batch_size"`
	} `yaml:"database"`

	Chunker struct {
		MaxChunkTokens       int `yaml:"max_chunk_tokens"`
		MergeThresholdTokens int `yaml:"merge_threshold_tokens"`
		MinArticleBytes      int `yaml:"min_article_bytes"`
	} `yaml:"chunker"`

	Analysis struct {
		ClusterCount        int     `yaml:"cluster_count"`
		SimilarChunks       int     `yaml:"similar_chunks"`
		LinkSuggestions     int     `yaml:"link_suggestions"`
		SimilarityThreshold float64 `yaml:"similarity_threshold"`
		Seed                int64   `yaml:"seed"`
		Restarts            int     `yaml:"restarts"`
		MaxIterations       int     `yaml:"max_iterations"`
	} `yaml:"analysis"`

	Labeler struct {
		Model     string `yaml:"model"`
		MaxTokens int    `yaml:"max_tokens"`
		APIKey    string `yaml:"api_key"`
	} `yaml:"labeler"`

	Newsletter struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"newsletter"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/memoscope/config.yaml"),
			"/etc/memoscope/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Embedding.Model == "" {
		config.Embedding.Model = "text-embedding-3-small"
	}
	if config.Embedding.Dimensions == 0 {
		config.Embedding.Dimensions = 1536
	}
	if config.Embedding.BatchSize == 0 {
		config.Embedding.BatchSize = 100
	}
	if config.Embedding.RateLimit == 0 {
		config.Embedding.RateLimit = 5.0
	}

	if config.Database.ArticleTable == "" {
		config.Database.ArticleTable = "articles"
	}
	if config.Database.ChunkTable == "" {
		config.Database.ChunkTable = "chunks"
	}
	if config.Database.ChunkBatchSize == 0 {
		config.Database.ChunkBatchSize = 5
	}

	if config.Chunker.MaxChunkTokens == 0 {
		config.Chunker.MaxChunkTokens = 1000
	}
	if config.Chunker.MergeThresholdTokens == 0 {
		config.Chunker.MergeThresholdTokens = 750
	}
	if config.Chunker.MinArticleBytes == 0 {
		config.Chunker.MinArticleBytes = 100
	}

	if config.Analysis.ClusterCount == 0 {
		config.Analysis.ClusterCount = 15
	}
	if config.Analysis.SimilarChunks == 0 {
		config.Analysis.SimilarChunks = 15
	}
	if config.Analysis.LinkSuggestions == 0 {
		config.Analysis.LinkSuggestions = 8
	}
	if config.Analysis.SimilarityThreshold == 0 {
		config.Analysis.SimilarityThreshold = 0.5
	}
	if config.Analysis.Seed == 0 {
		config.Analysis.Seed = 42
	}
	if config.Analysis.Restarts == 0 {
		config.Analysis.Restarts = 10
	}
	if config.Analysis.MaxIterations == 0 {
		config.Analysis.MaxIterations = 300
	}

	if config.Labeler.Model == "" {
		config.Labeler.Model = "claude-sonnet-4-5-20250929"
	}
	if config.Labeler.MaxTokens == 0 {
		config.Labeler.MaxTokens = 2000
	}

	if config.Newsletter.BaseURL == "" {
		config.Newsletter.BaseURL = "https://www.growth-memo.com"
	}
}

func mergeWithEnv(config *Config) {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.Embedding.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.Labeler.APIKey = key
	}
}
