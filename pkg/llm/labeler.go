package llm

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"

	"github.com/memoscope/memoscope/internal/models"
)

// LabelerConfig represents the configuration for the cluster labeler.
type LabelerConfig struct {
	Model     string
	MaxTokens int
	APIKey    string
}

// ClusterLabeler asks an LLM to name each topic cluster and suggest content
// gaps. It consumes only {cluster id -> titles} and produces structured
// labels; all prose parsing stays inside this adapter, and a cluster the
// model skipped or garbled falls back to a placeholder label rather than
// failing the run.
type ClusterLabeler struct {
	config LabelerConfig
	llm    llms.Model
}

func NewClusterLabeler(config LabelerConfig) (*ClusterLabeler, error) {
	if config.Model == "" {
		config.Model = "claude-sonnet-4-5-20250929"
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}

	opts := []anthropic.Option{anthropic.WithModel(config.Model)}
	if config.APIKey != "" {
		opts = append(opts, anthropic.WithToken(config.APIKey))
	}

	llm, err := anthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize labeler: %w", err)
	}

	return &ClusterLabeler{
		config: config,
		llm:    llm,
	}, nil
}

// Label names every cluster and suggests uncovered subtopics for each.
func (cl *ClusterLabeler) Label(ctx context.Context, clusters map[int][]string) (map[int]models.ClusterLabel, error) {
	prompt := buildLabelPrompt(clusters)

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	response, err := cl.llm.GenerateContent(ctx, content, llms.WithMaxTokens(cl.config.MaxTokens))
	if err != nil {
		return nil, fmt.Errorf("labeling error: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("labeling error: empty response")
	}

	ids := make([]int, 0, len(clusters))
	for cid := range clusters {
		ids = append(ids, cid)
	}
	return parseLabelResponse(response.Choices[0].Content, ids), nil
}

func buildLabelPrompt(clusters map[int][]string) string {
	ids := make([]int, 0, len(clusters))
	for cid := range clusters {
		ids = append(ids, cid)
	}
	sort.Ints(ids)

	var descriptions []string
	for _, cid := range ids {
		titles := clusters[cid]
		// Cap the title list so huge clusters don't blow the prompt budget
		shown := titles
		if len(shown) > 20 {
			shown = shown[:20]
		}
		var lines []string
		for _, title := range shown {
			lines = append(lines, fmt.Sprintf("  - %s", title))
		}
		descriptions = append(descriptions, fmt.Sprintf("Cluster %d (%d articles):\n%s", cid, len(titles), strings.Join(lines, "\n")))
	}

	return fmt.Sprintf(`You are analyzing topic clusters from a newsletter about SEO, organic growth, and digital marketing.

Below are article clusters with their titles. For each cluster:
1. Give a short topic label (2-4 words)
2. Suggest 2-3 specific subtopics NOT yet covered that would be valuable additions

Format your response as one block per cluster:
CLUSTER [number]
Label: [topic label]
Gaps:
- [gap 1]
- [gap 2]
- [gap 3]

%s`, strings.Join(descriptions, "\n\n"))
}

// parseLabelResponse recovers structured labels from the model's free-text
// reply. Any cluster missing from the reply gets a "Topic N" placeholder and
// no gaps.
func parseLabelResponse(text string, clusterIDs []int) map[int]models.ClusterLabel {
	results := make(map[int]models.ClusterLabel)
	currentID := -1

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "CLUSTER"):
			fields := strings.Fields(line)
			id, err := strconv.Atoi(strings.Trim(fields[len(fields)-1], "[]"))
			if err != nil {
				currentID = -1
				continue
			}
			currentID = id
		case strings.HasPrefix(line, "Label:") && currentID >= 0:
			entry := results[currentID]
			entry.Label = strings.TrimSpace(strings.TrimPrefix(line, "Label:"))
			results[currentID] = entry
		case strings.HasPrefix(line, "- ") && currentID >= 0:
			entry := results[currentID]
			entry.Gaps = append(entry.Gaps, strings.TrimSpace(line[2:]))
			results[currentID] = entry
		}
	}

	// Fill in any clusters the model skipped
	for _, cid := range clusterIDs {
		if _, ok := results[cid]; !ok {
			results[cid] = models.ClusterLabel{Label: fmt.Sprintf("Topic %d", cid)}
		}
	}

	return results
}
