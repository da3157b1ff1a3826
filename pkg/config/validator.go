package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Embedding config
	if c.Embedding.Dimensions < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.dimensions",
			Message: "dimensions must be positive",
		})
	}

	if c.Embedding.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if c.Embedding.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "embedding.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	// Validate Database config
	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.ChunkBatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.chunk_batch_size",
			Message: "chunk_batch_size must be positive",
		})
	}

	// Validate Chunker config
	if c.Chunker.MaxChunkTokens < 1 {
		errors = append(errors, ValidationError{
			Field:   "chunker.max_chunk_tokens",
			Message: "max_chunk_tokens must be positive",
		})
	}

	if c.Chunker.MergeThresholdTokens < 1 {
		errors = append(errors, ValidationError{
			Field:   "chunker.merge_threshold_tokens",
			Message: "merge_threshold_tokens must be positive",
		})
	}

	if c.Chunker.MergeThresholdTokens > c.Chunker.MaxChunkTokens {
		errors = append(errors, ValidationError{
			Field:   "chunker.merge_threshold_tokens",
			Message: "merge_threshold_tokens must not exceed max_chunk_tokens",
		})
	}

	if c.Chunker.MinArticleBytes < 0 {
		errors = append(errors, ValidationError{
			Field:   "chunker.min_article_bytes",
			Message: "min_article_bytes must be non-negative",
		})
	}

	// Validate Analysis config
	if c.Analysis.ClusterCount < 1 {
		errors = append(errors, ValidationError{
			Field:   "analysis.cluster_count",
			Message: "cluster_count must be positive",
		})
	}

	if c.Analysis.SimilarityThreshold < 0 || c.Analysis.SimilarityThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "analysis.similarity_threshold",
			Message: "similarity_threshold must be between 0 and 1",
		})
	}

	if c.Analysis.Restarts < 1 {
		errors = append(errors, ValidationError{
			Field:   "analysis.restarts",
			Message: "restarts must be positive",
		})
	}

	if c.Analysis.MaxIterations < 1 {
		errors = append(errors, ValidationError{
			Field:   "analysis.max_iterations",
			Message: "max_iterations must be positive",
		})
	}

	// Validate Labeler config
	if c.Labeler.MaxTokens < 1 || c.Labeler.MaxTokens > 8192 {
		errors = append(errors, ValidationError{
			Field:   "labeler.max_tokens",
			Message: "max_tokens must be between 1 and 8192",
		})
	}

	// Validate newsletter base URL format
	if _, err := url.Parse(c.Newsletter.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "newsletter.base_url",
			Message: "invalid newsletter base URL",
		})
	}

	return errors
}
