package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"

	"github.com/memoscope/memoscope/pkg/analysis"
	"github.com/memoscope/memoscope/pkg/chunker"
	cfgPkg "github.com/memoscope/memoscope/pkg/config"
	"github.com/memoscope/memoscope/pkg/ingest"
	"github.com/memoscope/memoscope/pkg/llm"
	"github.com/memoscope/memoscope/pkg/parser"
	"github.com/memoscope/memoscope/pkg/retrieval"
	"github.com/memoscope/memoscope/pkg/store"
	"github.com/memoscope/memoscope/pkg/tokenizer"
	"github.com/memoscope/memoscope/server"
)

type Flags struct {
	ConfigPath string
	ExportPath string
	Analyze    bool
	LinksPath  string
	LinksTitle string
	Serve      bool
	Port       string
	Clusters   int
	Threshold  float64
}

func main() {
	// Local .env carries the API keys and database URL during development
	godotenv.Load()

	flags := parseFlags()

	if err := run(flags); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() Flags {
	var flags Flags

	flag.StringVar(&flags.ConfigPath, "config", "", "Path to config file")
	flag.StringVar(&flags.ExportPath, "export", "", "Substack export ZIP to ingest")
	flag.BoolVar(&flags.Analyze, "analyze", false, "Run topic clustering over the stored corpus")
	flag.StringVar(&flags.LinksPath, "links", "", "Markdown draft to suggest internal links for")
	flag.StringVar(&flags.LinksTitle, "title", "", "Title of the draft passed to -links")
	flag.BoolVar(&flags.Serve, "serve", false, "Start the WebSocket API server")
	flag.StringVar(&flags.Port, "port", "8080", "Port for the API server")
	flag.IntVar(&flags.Clusters, "clusters", 0, "Cluster count for analysis (default from config)")
	flag.Float64Var(&flags.Threshold, "threshold", 0, "Similarity threshold for search (default from config)")
	flag.Parse()

	return flags
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("articles"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(flags Flags) error {
	cfg, err := cfgPkg.LoadConfig(flags.ConfigPath)
	if err != nil {
		return err
	}
	if flags.Clusters > 0 {
		cfg.Analysis.ClusterCount = flags.Clusters
	}
	if flags.Threshold > 0 {
		cfg.Analysis.SimilarityThreshold = flags.Threshold
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config error: %v", e)
		}
		return fmt.Errorf("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		BatchSize:  cfg.Embedding.BatchSize,
		APIKey:     cfg.Embedding.APIKey,
		RateLimit:  cfg.Embedding.RateLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %v", err)
	}

	vectorStore, err := store.NewWithConfig(store.VectorStoreConfig{
		ConnString:     cfg.Database.URL,
		ArticleTable:   cfg.Database.ArticleTable,
		ChunkTable:     cfg.Database.ChunkTable,
		VectorDim:      cfg.Embedding.Dimensions,
		ChunkBatchSize: cfg.Database.ChunkBatchSize,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %v", err)
	}
	defer vectorStore.Close()

	if flags.ExportPath != "" {
		if err := runIngest(ctx, cfg, flags.ExportPath, embedder, vectorStore); err != nil {
			return err
		}
	}

	if flags.Analyze {
		return runAnalysis(ctx, cfg, vectorStore)
	}

	if flags.LinksPath != "" {
		return runLinks(ctx, cfg, flags, embedder, vectorStore)
	}

	if flags.Serve {
		srv, err := server.New(server.Config{
			Embedder:            embedder,
			Store:               vectorStore,
			SimilarChunks:       cfg.Analysis.SimilarChunks,
			SimilarityThreshold: cfg.Analysis.SimilarityThreshold,
			ClusterCount:        cfg.Analysis.ClusterCount,
			Seed:                cfg.Analysis.Seed,
			Restarts:            cfg.Analysis.Restarts,
			MaxIterations:       cfg.Analysis.MaxIterations,
		})
		if err != nil {
			return err
		}
		return srv.ListenAndServe(flags.Port)
	}

	if flags.ExportPath != "" {
		return nil
	}

	return searchLoop(ctx, cfg, embedder, vectorStore)
}

func runIngest(ctx context.Context, cfg *cfgPkg.Config, exportPath string, embedder *llm.Embedder, vectorStore *store.VectorStore) error {
	color.Blue("\nIngesting export %s\n", exportPath)

	p := parser.NewWithConfig(parser.ParserConfig{
		MinArticleBytes: cfg.Chunker.MinArticleBytes,
	})
	articles, err := p.ParseExport(exportPath)
	if err != nil {
		return fmt.Errorf("failed to parse export: %v", err)
	}
	color.Green("✓ Parsed %d articles\n", len(articles))

	counter, err := tokenizer.New()
	if err != nil {
		return err
	}

	pipeline := ingest.New(chunker.NewWithConfig(chunker.ChunkerConfig{
		MaxChunkTokens:       cfg.Chunker.MaxChunkTokens,
		MergeThresholdTokens: cfg.Chunker.MergeThresholdTokens,
	}, counter), embedder, vectorStore)

	bar := getProgressBar(len(articles), "Embedding and storing articles")
	pipeline.OnProgress = func(done int) { bar.Set(done) }

	result, err := pipeline.Run(ctx, articles)
	bar.Finish()
	if err != nil {
		return err
	}

	color.Green("\n✓ Ingestion complete: %d processed, %d skipped, %d failed, %d chunks\n",
		result.Processed, result.Skipped, result.Failed, result.Chunks)

	totalArticles, _ := vectorStore.ArticleCount(ctx)
	totalChunks, _ := vectorStore.ChunkCount(ctx)
	color.Cyan("Corpus now holds %d articles and %d chunks\n", totalArticles, totalChunks)
	return nil
}

func runAnalysis(ctx context.Context, cfg *cfgPkg.Config, vectorStore *store.VectorStore) error {
	spinner := getSpinner("Loading chunk embeddings...")
	chunks, err := vectorStore.AllChunkEmbeddings(ctx)
	spinner.Finish()
	if err != nil {
		return fmt.Errorf("failed to load embeddings: %v", err)
	}

	articles, err := analysis.ArticleEmbeddings(chunks)
	if err != nil {
		return err
	}
	color.Blue("\nClustering %d articles into %d topics\n", len(articles), cfg.Analysis.ClusterCount)

	result, err := analysis.Cluster(articles, analysis.ClusterConfig{
		K:             cfg.Analysis.ClusterCount,
		Seed:          cfg.Analysis.Seed,
		Restarts:      cfg.Analysis.Restarts,
		MaxIterations: cfg.Analysis.MaxIterations,
	})
	if err != nil {
		return err
	}

	titles := analysis.ClusterTitles(articles, result)

	labeler, err := llm.NewClusterLabeler(llm.LabelerConfig{
		Model:     cfg.Labeler.Model,
		MaxTokens: cfg.Labeler.MaxTokens,
		APIKey:    cfg.Labeler.APIKey,
	})
	if err != nil {
		return err
	}

	spinner = getSpinner("Labeling clusters...")
	labels, err := labeler.Label(ctx, titles)
	spinner.Finish()
	if err != nil {
		return fmt.Errorf("failed to label clusters: %v", err)
	}

	for cid := 0; cid < len(result.Centroids); cid++ {
		label := labels[cid]
		color.Cyan("\n[%d] %s (%d articles)", cid, label.Label, len(titles[cid]))
		for _, title := range titles[cid] {
			fmt.Printf("    %s\n", title)
		}
		if len(label.Gaps) > 0 {
			color.Yellow("  Content gaps:")
			for _, gap := range label.Gaps {
				color.Yellow("    - %s", gap)
			}
		}
	}
	return nil
}

func runLinks(ctx context.Context, cfg *cfgPkg.Config, flags Flags, embedder *llm.Embedder, vectorStore *store.VectorStore) error {
	draft, err := os.ReadFile(flags.LinksPath)
	if err != nil {
		return fmt.Errorf("failed to read draft: %v", err)
	}
	title := flags.LinksTitle
	if title == "" {
		title = flags.LinksPath
	}

	engine := retrieval.New(embedder, vectorStore)

	spinner := getSpinner("Finding related chunks...")
	similar, err := engine.Retrieve(ctx, string(draft), retrieval.Options{
		MatchCount:          cfg.Analysis.LinkSuggestions,
		SimilarityThreshold: cfg.Analysis.SimilarityThreshold,
	})
	spinner.Finish()
	if err != nil {
		return err
	}
	if len(similar) == 0 {
		color.Yellow("No related chunks above similarity %.2f\n", cfg.Analysis.SimilarityThreshold)
		return nil
	}

	suggester, err := llm.NewLinkSuggester(llm.LinkerConfig{
		Model:          cfg.Labeler.Model,
		MaxTokens:      cfg.Labeler.MaxTokens,
		APIKey:         cfg.Labeler.APIKey,
		BaseURL:        cfg.Newsletter.BaseURL,
		MaxSuggestions: cfg.Analysis.LinkSuggestions,
	})
	if err != nil {
		return err
	}

	spinner = getSpinner("Drafting link suggestions...")
	suggestions, err := suggester.Suggest(ctx, title, string(draft), similar)
	spinner.Finish()
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(suggestions)
	return nil
}

func searchLoop(ctx context.Context, cfg *cfgPkg.Config, embedder *llm.Embedder, vectorStore *store.VectorStore) error {
	engine := retrieval.New(embedder, vectorStore)

	color.Cyan("\nSearch the corpus (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	prompt := color.New(color.FgGreen).PrintfFunc()

	for {
		prompt("\nQuery: ")
		if !scanner.Scan() {
			break
		}

		query := scanner.Text()
		if strings.ToLower(query) == "exit" {
			break
		}
		if strings.TrimSpace(query) == "" {
			continue
		}

		spinner := getSpinner("Searching corpus...")
		results, err := engine.Retrieve(ctx, query, retrieval.Options{
			MatchCount:          cfg.Analysis.SimilarChunks,
			SimilarityThreshold: cfg.Analysis.SimilarityThreshold,
		})
		spinner.Finish()
		fmt.Print("\r")

		if err != nil {
			color.Red("Error searching: %v\n", err)
			continue
		}
		if len(results) == 0 {
			color.Yellow("No chunks above similarity %.2f\n", cfg.Analysis.SimilarityThreshold)
			continue
		}

		for _, r := range results {
			heading := r.Chunk.Heading
			if heading == "" {
				heading = "(no heading)"
			}
			color.Cyan("\n%.3f  %s / %s", r.Similarity, r.Chunk.ArticleTitle, heading)
			text := r.Chunk.Text
			if len(text) > 300 {
				text = text[:300] + "..."
			}
			fmt.Println(text)
		}
	}

	return nil
}
