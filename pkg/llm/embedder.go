package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

// EmbedderConfig represents the configuration for the embedding gateway.
type EmbedderConfig struct {
	Model      string
	Dimensions int
	BatchSize  int
	APIKey     string
	RateLimit  float64 // requests per second
	MaxRetries int
}

// Embedder maps texts to fixed-dimension vectors through the OpenAI
// embeddings API. Requests are batched, rate limited, and retried with
// backoff on transient failures.
type Embedder struct {
	config  EmbedderConfig
	client  *openai.LLM
	limiter *rate.Limiter
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "text-embedding-3-small"
	}
	if config.Dimensions == 0 {
		config.Dimensions = 1536
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 5
	}

	opts := []openai.Option{openai.WithEmbeddingModel(config.Model)}
	if config.APIKey != "" {
		opts = append(opts, openai.WithToken(config.APIKey))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
	}

	return &Embedder{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}, nil
}

// EmbedTexts embeds texts in batches of the configured size. The output is
// order-preserving: the i-th vector corresponds to the i-th input text.
// Cancellation is checked between batches, so a long backlog can be stopped
// cleanly between calls to the gateway.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	all := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += e.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := i + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch starting at %d: %w", i, err)
		}
		all = append(all, batch...)
	}

	return all, nil
}

// EmbedSingle embeds one text and returns its vector.
func (e *Embedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error

	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vectors, err := e.client.CreateEmbedding(ctx, batch)
		if err == nil {
			if len(vectors) != len(batch) {
				return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(batch), len(vectors))
			}
			for _, v := range vectors {
				if len(v) != e.config.Dimensions {
					return nil, fmt.Errorf("embedding dimension mismatch: want %d, got %d", e.config.Dimensions, len(v))
				}
			}
			return vectors, nil
		}

		if !isRetryable(err) {
			return nil, err
		}

		lastErr = err
		if attempt < e.config.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay(attempt)):
			}
		}
	}

	return nil, fmt.Errorf("embedding failed after %d retries: %w", e.config.MaxRetries, lastErr)
}

// isRetryable classifies collaborator failures: auth and malformed-input
// errors propagate immediately, everything else (timeouts, rate limits,
// upstream 5xx) is worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, fatal := range []string{"401", "403", "unauthorized", "invalid api key", "invalid_request_error"} {
		if strings.Contains(msg, fatal) {
			return false
		}
	}
	return true
}

func retryDelay(attempt int) time.Duration {
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
