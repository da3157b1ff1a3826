package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Encoding is the fixed tokenization contract for chunk budgets. cl100k_base
// matches the embedding model's tokenizer, so counted budgets line up with
// what the gateway actually sees.
const Encoding = "cl100k_base"

// Counter counts tokens with a tiktoken encoding. It is safe for concurrent
// use and deterministic: identical text always yields the same count.
type Counter struct {
	enc *tiktoken.Tiktoken
}

func New() (*Counter, error) {
	enc, err := tiktoken.GetEncoding(Encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", Encoding, err)
	}
	return &Counter{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}
