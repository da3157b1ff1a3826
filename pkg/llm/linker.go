package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"

	"github.com/memoscope/memoscope/internal/models"
)

// LinkerConfig represents the configuration for the link suggester.
type LinkerConfig struct {
	Model          string
	MaxTokens      int
	APIKey         string
	BaseURL        string // newsletter base URL for building post links
	MaxSuggestions int
}

// LinkSuggester turns retrieval results into concrete internal-link
// suggestions (anchor text, target URL, rationale) for a draft article.
type LinkSuggester struct {
	config LinkerConfig
	llm    llms.Model
}

func NewLinkSuggester(config LinkerConfig) (*LinkSuggester, error) {
	if config.Model == "" {
		config.Model = "claude-sonnet-4-5-20250929"
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.MaxSuggestions == 0 {
		config.MaxSuggestions = 8
	}

	opts := []anthropic.Option{anthropic.WithModel(config.Model)}
	if config.APIKey != "" {
		opts = append(opts, anthropic.WithToken(config.APIKey))
	}

	llm, err := anthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize link suggester: %w", err)
	}

	return &LinkSuggester{
		config: config,
		llm:    llm,
	}, nil
}

// slugPrefix strips the numeric export prefix some slugs carry, e.g.
// "123456.my-article" -> "my-article".
var slugPrefix = regexp.MustCompile(`^\d+\.`)

// SlugToURL converts a stored slug into a full post URL.
func (ls *LinkSuggester) SlugToURL(slug string) string {
	return fmt.Sprintf("%s/p/%s", ls.config.BaseURL, slugPrefix.ReplaceAllString(slug, ""))
}

// Suggest proposes internal links from the source article to the most
// similar chunks of other articles. The caller is expected to have excluded
// the source article from the retrieval results already.
func (ls *LinkSuggester) Suggest(ctx context.Context, sourceTitle, sourceText string, similar []models.RetrievalResult) (string, error) {
	var chunksContext []string
	for i, result := range similar {
		heading := result.Chunk.Heading
		if heading == "" {
			heading = "N/A"
		}
		text := result.Chunk.Text
		if len(text) > 500 {
			text = text[:500]
		}
		chunksContext = append(chunksContext, fmt.Sprintf(
			"[%d] Article: %q (URL: %s)\nSection: %s\nContent: %s\nSimilarity: %.3f",
			i+1, result.Chunk.ArticleTitle, ls.SlugToURL(result.Chunk.ArticleSlug), heading, text, result.Similarity))
	}

	if len(sourceText) > 2000 {
		sourceText = sourceText[:2000]
	}

	prompt := fmt.Sprintf(`You are an internal linking specialist for a newsletter about SEO, organic growth, and digital marketing.

SOURCE ARTICLE: %q
%s

SIMILAR CONTENT FROM OTHER ARTICLES:
%s

Suggest %d specific internal links to add to the source article. For each suggestion:
1. Quote the exact phrase in the source article that should become the anchor text
2. Specify which article to link to with its full URL
3. Explain why this link adds value for the reader

Format each suggestion in markdown:
### Link [number]
**Anchor text:** "[exact phrase from source]"
**Link to:** [article title](full URL)
**Reason:** [brief explanation]
`, sourceTitle, sourceText, strings.Join(chunksContext, "\n\n"), ls.config.MaxSuggestions)

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	response, err := ls.llm.GenerateContent(ctx, content, llms.WithMaxTokens(ls.config.MaxTokens))
	if err != nil {
		return "", fmt.Errorf("link suggestion error: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("link suggestion error: empty response")
	}

	return response.Choices[0].Content, nil
}
