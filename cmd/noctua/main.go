package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/noctua-systems/noctua"
	"github.com/noctua-systems/noctua/ai"
	"github.com/noctua-systems/noctua/chunk"
	"github.com/noctua-systems/noctua/core"
	"github.com/noctua-systems/noctua/ingest"
	"github.com/noctua-systems/noctua/reindex"
	"github.com/noctua-systems/noctua/retrieval"
)

func main() {
	dbFlag := &cli.StringFlag{
		Name:     "db",
		Aliases:  []string{"d"},
		Usage:    "Path to BadgerDB database directory",
		Required: true,
	}
	ownerFlag := &cli.Uint64Flag{
		Name:     "owner",
		Aliases:  []string{"o"},
		Usage:    "Owner ID scoping the operation",
		Required: true,
	}
	aiFlags := []cli.Flag{
		&cli.StringFlag{
			Name:  "ai-host",
			Usage: "OpenAI-compatible service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.StringFlag{
			Name:  "completion-model",
			Usage: "Chat completion model name",
			Value: "qwen2.5:3b",
		},
	}

	app := &cli.App{
		Name:  "noctua",
		Usage: "Personal knowledge base with semantic retrieval and spaced repetition",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Submit content and run it through the full pipeline",
				ArgsUsage: "<text or URL>",
				Action:    ingestCommand,
				Flags: append([]cli.Flag{
					dbFlag,
					ownerFlag,
					&cli.StringFlag{
						Name:  "kind",
						Usage: "Content kind (text, url, pdf, image, audio, video, document)",
						Value: "text",
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "Optional capture title",
					},
					&cli.StringFlag{
						Name:  "strategy",
						Usage: "Chunking strategy (balanced, fine, coarse)",
						Value: "balanced",
					},
					&cli.Uint64Flag{
						Name:  "context",
						Usage: "Optional context group ID",
					},
				}, aiFlags...),
			},
			{
				Name:      "search",
				Usage:     "Semantic search over the owner's chunks",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: append([]cli.Flag{
					dbFlag,
					ownerFlag,
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum results",
						Value: 10,
					},
					&cli.BoolFlag{
						Name:  "grouped",
						Usage: "Group results by source type",
					},
				}, aiFlags...),
			},
			{
				Name:   "dedup",
				Usage:  "Run a deduplication pass for an owner",
				Action: dedupCommand,
				Flags:  append([]cli.Flag{dbFlag, ownerFlag}, aiFlags...),
			},
			{
				Name:   "reindex",
				Usage:  "Re-embed all chunks and canonical chunks",
				Action: reindexCommand,
				Flags: append([]cli.Flag{
					dbFlag,
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for retry backoff",
						Value: 1 * time.Second,
					},
				}, aiFlags...),
			},
			{
				Name:  "recall",
				Usage: "Spaced-repetition recall operations",
				Subcommands: []*cli.Command{
					{
						Name:      "activate",
						Usage:     "Turn content into an active flashcard",
						ArgsUsage: "<content>",
						Action:    recallActivateCommand,
						Flags:     append([]cli.Flag{dbFlag, ownerFlag}, aiFlags...),
					},
					{
						Name:   "suggest",
						Usage:  "Scan the last day of chunks for facts worth remembering",
						Action: recallSuggestCommand,
						Flags:  append([]cli.Flag{dbFlag, ownerFlag}, aiFlags...),
					},
					{
						Name:   "due",
						Usage:  "List recall items due for review",
						Action: recallDueCommand,
						Flags:  append([]cli.Flag{dbFlag, ownerFlag}, aiFlags...),
					},
					{
						Name:      "review",
						Usage:     "Submit a review rating for a recall item",
						ArgsUsage: "<item-id> <quality 0-5>",
						Action:    recallReviewCommand,
						Flags:     append([]cli.Flag{dbFlag, ownerFlag}, aiFlags...),
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openDatabase opens the store with the AI configuration from flags.
func openDatabase(c *cli.Context) (*noctua.Database, error) {
	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("ai-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithCompletionModel(c.String("completion-model")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	db, err := noctua.NewDatabase(c.String("db"), noctua.WithAIConfig(aiConfig))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func ingestCommand(c *cli.Context) error {
	input := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if input == "" {
		return fmt.Errorf("content or URL argument is required")
	}

	kind := core.ParseContentKind(c.String("kind"))
	strategy, err := chunk.StrategyByName(c.String("strategy"))
	if err != nil {
		return err
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	pipeline, err := db.NewIngestionPipeline(ingest.WithStrategy(strategy))
	if err != nil {
		return err
	}
	if _, err := db.NewDedupEngine(); err != nil {
		return err
	}
	if _, err := db.NewGraphExtractor(); err != nil {
		return err
	}

	req := ingest.Request{
		OwnerId:   core.ID(c.Uint64("owner")),
		Kind:      kind,
		Title:     c.String("title"),
		ContextId: core.ID(c.Uint64("context")),
	}
	if kind == core.KindText {
		req.Content = input
	} else {
		req.Source = input
	}

	capture, err := pipeline.Submit(context.Background(), req)
	if err != nil {
		return err
	}

	// Drain the queues so the one-shot invocation finishes its jobs.
	db.Broker().Wait()

	final, err := db.CaptureRepository().GetCapture(context.Background(), capture.Id)
	if err != nil {
		return err
	}
	fmt.Printf("capture %d: %s\n", final.Id, final.Status)
	if final.ErrorReason != "" {
		fmt.Printf("  error: %s\n", final.ErrorReason)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("query argument is required")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	retriever, err := db.NewRetriever()
	if err != nil {
		return err
	}

	ctx := context.Background()
	results, err := retriever.Search(ctx, core.ID(c.Uint64("owner")), query, retrieval.Options{
		Limit: c.Int("limit"),
	})
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}

	if c.Bool("grouped") {
		groups, err := retriever.GroupByKind(ctx, results)
		if err != nil {
			return err
		}
		for group, members := range groups {
			fmt.Printf("[%s]\n", group)
			for _, result := range members {
				printResult(result)
			}
		}
		return nil
	}

	for _, result := range results {
		printResult(result)
	}
	return nil
}

func printResult(result *core.RankedResult) {
	content := result.Chunk.Content
	if len(content) > 120 {
		content = content[:120] + "..."
	}
	fmt.Printf("  %.3f (sim %.3f) chunk %d: %s\n", result.Score, result.Similarity, result.Chunk.Id, content)
}

func dedupCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	engine, err := db.NewDedupEngine()
	if err != nil {
		return err
	}
	if _, err := db.NewGraphExtractor(); err != nil {
		return err
	}

	if err := engine.Run(context.Background(), core.ID(c.Uint64("owner"))); err != nil {
		return err
	}
	db.Broker().Wait()
	return nil
}

func reindexCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	config := &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	reindexer, err := db.NewReindexer(config, os.Stderr)
	if err != nil {
		return err
	}
	return reindexer.Run(context.Background())
}

func recallActivateCommand(c *cli.Context) error {
	content := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if content == "" {
		return fmt.Errorf("content argument is required")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	scheduler, err := db.NewRecallScheduler()
	if err != nil {
		return err
	}

	item, err := scheduler.Activate(context.Background(), core.ID(c.Uint64("owner")), content, 0)
	if err != nil {
		return err
	}
	fmt.Printf("item %d activated\n  Q: %s\n", item.Id, item.Question)
	if item.Answer != "" {
		fmt.Printf("  A: %s\n", item.Answer)
	}
	return nil
}

func recallSuggestCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	scheduler, err := db.NewRecallScheduler()
	if err != nil {
		return err
	}

	items, err := scheduler.Suggest(context.Background(), core.ID(c.Uint64("owner")))
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("nothing worth remembering today")
		return nil
	}
	for _, item := range items {
		fmt.Printf("item %d (suggested): %s\n", item.Id, item.Question)
	}
	return nil
}

func recallDueCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	scheduler, err := db.NewRecallScheduler()
	if err != nil {
		return err
	}

	items, err := scheduler.DueItems(context.Background(), core.ID(c.Uint64("owner")))
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("nothing due")
		return nil
	}
	for _, item := range items {
		fmt.Printf("item %d: %s\n", item.Id, item.Question)
	}
	return nil
}

func recallReviewCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: recall review <item-id> <quality 0-5>")
	}
	itemID, err := strconv.ParseUint(c.Args().Get(0), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid item ID: %w", err)
	}
	quality, err := strconv.Atoi(c.Args().Get(1))
	if err != nil {
		return fmt.Errorf("invalid quality: %w", err)
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	scheduler, err := db.NewRecallScheduler()
	if err != nil {
		return err
	}

	strength, err := scheduler.SubmitReview(context.Background(), core.ID(itemID), quality)
	if err != nil {
		return err
	}
	fmt.Printf("item %d: interval %.0f days, next review %s\n",
		itemID, strength.IntervalDays, strength.NextReviewAt.Format(time.RFC3339))
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
