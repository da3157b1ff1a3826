package parser

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/memoscope/memoscope/internal/models"
)

// ParserConfig controls which export entries become articles.
type ParserConfig struct {
	// MinArticleBytes drops tiny HTML files (redirects, stubs) before any
	// conversion work.
	MinArticleBytes int
}

// Parser reads a Substack export ZIP: posts.csv metadata plus one HTML file
// per post, converted to markdown for chunking.
type Parser struct {
	config ParserConfig
}

func NewWithConfig(config ParserConfig) *Parser {
	if config.MinArticleBytes == 0 {
		config.MinArticleBytes = 100
	}
	return &Parser{config: config}
}

// ParseExport reads the export at zipPath and returns its articles sorted
// by post date, newest first.
func (p *Parser) ParseExport(zipPath string) ([]models.Article, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open export: %v", err)
	}
	defer zr.Close()

	return p.Parse(&zr.Reader)
}

// Parse reads an already-opened export archive.
func (p *Parser) Parse(zr *zip.Reader) ([]models.Article, error) {
	files := make(map[string]string)
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".html") && path.Base(f.Name) != "posts.csv" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %v", f.Name, err)
		}
		files[f.Name] = string(data)
	}

	metadata := make(map[string]map[string]string)
	for name, content := range files {
		if path.Base(name) == "posts.csv" {
			metadata = parseCSVMetadata(content)
			break
		}
	}

	var articles []models.Article
	for name, content := range files {
		if !strings.HasSuffix(name, ".html") {
			continue
		}
		if len(content) < p.config.MinArticleBytes {
			continue
		}

		markdown, err := HTMLToMarkdown(content)
		if err != nil || len(strings.TrimSpace(markdown)) < 50 {
			continue
		}

		slug := strings.TrimSuffix(path.Base(name), ".html")
		meta := metadata[slug]

		title := meta["title"]
		if title == "" {
			title = titleFromSlug(slug)
		}
		postID := meta["post_id"]
		if postID == "" {
			postID = slug
		}
		postType := meta["type"]
		if postType == "" {
			postType = "newsletter"
		}
		audience := meta["audience"]
		if audience == "" {
			audience = "everyone"
		}
		postDate := meta["post_date"]
		if postDate == "" {
			postDate = meta["published_at"]
		}

		articles = append(articles, models.Article{
			PostID:    postID,
			Title:     title,
			Subtitle:  meta["subtitle"],
			PostDate:  postDate,
			Type:      postType,
			Audience:  audience,
			URLSlug:   slug,
			Markdown:  markdown,
			WordCount: len(strings.Fields(markdown)),
		})
	}

	// Newest first; slug as a stable tiebreak for undated posts
	sort.Slice(articles, func(i, j int) bool {
		if articles[i].PostDate != articles[j].PostDate {
			return articles[i].PostDate > articles[j].PostDate
		}
		return articles[i].URLSlug < articles[j].URLSlug
	})
	return articles, nil
}

// parseCSVMetadata indexes posts.csv rows by the slug at the end of each
// post URL, falling back to the post id.
func parseCSVMetadata(csvText string) map[string]map[string]string {
	reader := csv.NewReader(strings.NewReader(csvText))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil || len(records) < 2 {
		return map[string]map[string]string{}
	}

	header := records[0]
	metadata := make(map[string]map[string]string)
	for _, record := range records[1:] {
		row := make(map[string]string, len(header))
		for i, field := range record {
			if i < len(header) {
				row[header[i]] = field
			}
		}

		url := row["post_url"]
		if url == "" {
			url = row["url"]
		}
		if url != "" {
			parts := strings.Split(strings.TrimRight(url, "/"), "/")
			metadata[parts[len(parts)-1]] = row
		}
		if pid := row["post_id"]; pid != "" {
			metadata[pid] = row
		}
	}
	return metadata
}

// blockSelector lists the elements rendered as markdown blocks, in document
// order.
const blockSelector = "h1, h2, h3, h4, h5, h6, p, li, blockquote, pre"

// HTMLToMarkdown converts an exported post body to markdown with ATX
// headings. Scripts, styles and images are dropped; only the heading levels
// and paragraph boundaries matter downstream, not faithful inline styling.
func HTMLToMarkdown(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, img").Remove()

	var blocks []string
	doc.Find(blockSelector).Each(func(_ int, sel *goquery.Selection) {
		// Nested block elements are rendered by their outermost container
		if sel.ParentsFiltered("blockquote, pre, li").Length() > 0 {
			return
		}

		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}

		switch goquery.NodeName(sel) {
		case "h1":
			blocks = append(blocks, "# "+collapseSpace(text))
		case "h2":
			blocks = append(blocks, "## "+collapseSpace(text))
		case "h3":
			blocks = append(blocks, "### "+collapseSpace(text))
		case "h4", "h5", "h6":
			blocks = append(blocks, "#### "+collapseSpace(text))
		case "li":
			blocks = append(blocks, "- "+collapseSpace(text))
		case "blockquote":
			blocks = append(blocks, "> "+collapseSpace(text))
		case "pre":
			blocks = append(blocks, "```\n"+text+"\n```")
		default:
			blocks = append(blocks, collapseSpace(text))
		}
	})

	return strings.Join(blocks, "\n\n"), nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func titleFromSlug(slug string) string {
	words := strings.Split(strings.ReplaceAll(slug, "-", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
