package chunker

import (
	"regexp"
	"strings"

	"github.com/memoscope/memoscope/internal/types"
)

type ChunkerConfig struct {
	MaxChunkTokens       int
	MergeThresholdTokens int
}

// Chunker splits markdown into token-bounded, heading-aware chunks. Chunking
// is a pure function of the input text and configuration: no I/O, identical
// input always yields identical chunk boundaries.
type Chunker struct {
	config ChunkerConfig
	tokens types.Tokenizer
}

// Piece is one chunk-shaped record before it is attached to an article.
// Heading is empty for text that preceded the first heading.
type Piece struct {
	Index      int
	Text       string
	Heading    string
	TokenCount int
}

func NewWithConfig(config ChunkerConfig, tokens types.Tokenizer) *Chunker {
	if config.MaxChunkTokens == 0 {
		config.MaxChunkTokens = 1000
	}
	if config.MergeThresholdTokens == 0 {
		config.MergeThresholdTokens = 750
	}

	return &Chunker{
		config: config,
		tokens: tokens,
	}
}

// headingPattern matches h2/h3 markdown headings. h1 is the article title and
// h4+ is too fine-grained to start a retrieval unit.
var headingPattern = regexp.MustCompile(`^(#{2,3})\s+(.+)$`)

// paragraphPattern splits on blank-line boundaries (one or more empty lines).
var paragraphPattern = regexp.MustCompile(`\n{2,}`)

type section struct {
	heading string
	text    string
}

// Chunk splits an article's markdown into an ordered list of pieces:
// segment by h2/h3 headings, merge small adjacent sections, split oversized
// sections on paragraph boundaries, then index and count tokens.
func (c *Chunker) Chunk(markdown string) []Piece {
	sections := splitByHeadings(markdown)

	// No headings anywhere: the whole text is one section
	if len(sections) == 0 {
		if strings.TrimSpace(markdown) == "" {
			return nil
		}
		sections = []section{{text: markdown}}
	}

	sections = c.mergeSmallSections(sections)

	var final []section
	for _, sec := range sections {
		if c.tokens.Count(sec.text) > c.config.MaxChunkTokens {
			for _, sub := range c.splitByParagraphs(sec.text) {
				final = append(final, section{heading: sec.heading, text: sub})
			}
		} else {
			final = append(final, sec)
		}
	}

	var pieces []Piece
	for _, sec := range final {
		text := strings.TrimSpace(sec.text)
		if text == "" {
			continue
		}
		pieces = append(pieces, Piece{
			Index:      len(pieces),
			Text:       text,
			Heading:    sec.heading,
			TokenCount: c.tokens.Count(text),
		})
	}
	return pieces
}

// splitByHeadings segments markdown into sections on h2/h3 lines. Each
// heading starts a new section carrying its label; lines before the first
// heading form a section with no heading.
func splitByHeadings(markdown string) []section {
	var sections []section
	var heading string
	var lines []string

	flush := func() {
		if len(lines) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(lines, "\n"))
		if text != "" {
			sections = append(sections, section{heading: heading, text: text})
		}
		lines = nil
	}

	for _, line := range strings.Split(markdown, "\n") {
		if match := headingPattern.FindStringSubmatch(line); match != nil {
			flush()
			heading = strings.TrimSpace(match[2])
			continue
		}
		lines = append(lines, line)
	}
	flush()

	return sections
}

// mergeSmallSections merges consecutive sections forward while the combined
// token count stays within the merge threshold. The merge only ever looks at
// the immediately preceding running section; this greedy packing is the
// defined behavior. The earlier non-empty heading wins.
func (c *Chunker) mergeSmallSections(sections []section) []section {
	if len(sections) == 0 {
		return sections
	}

	merged := []section{sections[0]}
	for _, sec := range sections[1:] {
		last := &merged[len(merged)-1]
		if c.tokens.Count(last.text)+c.tokens.Count(sec.text) <= c.config.MergeThresholdTokens {
			last.text += "\n\n" + sec.text
			if last.heading == "" {
				last.heading = sec.heading
			}
		} else {
			merged = append(merged, sec)
		}
	}
	return merged
}

// splitByParagraphs packs consecutive blank-line-separated paragraphs into
// sub-chunks within the token budget. A single paragraph that alone exceeds
// the budget is emitted whole rather than split mid-paragraph.
func (c *Chunker) splitByParagraphs(text string) []string {
	paragraphs := paragraphPattern.Split(text, -1)

	var chunks []string
	var current []string
	currentTokens := 0

	for _, para := range paragraphs {
		paraTokens := c.tokens.Count(para)
		if currentTokens+paraTokens > c.config.MaxChunkTokens && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n\n"))
			current = []string{para}
			currentTokens = paraTokens
		} else {
			current = append(current, para)
			currentTokens += paraTokens
		}
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n\n"))
	}
	return chunks
}
