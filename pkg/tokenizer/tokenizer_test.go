package tokenizer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/memoscope/memoscope/pkg/tokenizer"
)

func TestCount(t *testing.T) {
	c, err := tokenizer.New()
	require.NoError(t, err)

	assert.Equal(t, 0, c.Count(""))
	assert.Greater(t, c.Count("hello world"), 0)

	// A word repeated n times costs n times the single-word count.
	one := c.Count(" hello")
	assert.Equal(t, one*50, c.Count(repeat(" hello", 50)))
}

func TestCountDeterministic(t *testing.T) {
	c, err := tokenizer.New()
	require.NoError(t, err)

	text := "## Heading\n\nSome paragraph with enough words to span multiple tokens."
	first := c.Count(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Count(text))
	}
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
