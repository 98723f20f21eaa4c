package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/bull/corpus-pipeline/internal/config"
	"github.com/bull/corpus-pipeline/internal/curated"
	"github.com/bull/corpus-pipeline/internal/migrator"
	"github.com/bull/corpus-pipeline/internal/tokenizer"
)

var curateCmd = &cobra.Command{
	Use:   "curate",
	Short: "Tokenize staged rows into the curated document store",
	Long: `Streams every staged row in id order, tokenizes it and writes one document per row
to the curated collection in batches. The collection is cleared first.

Rows that fail to tokenize are logged and skipped. A failed bulk insert aborts the run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.ValidateCurate(); err != nil {
			return err
		}
		_, err = runCurate(cmd.Context(), cfg, newLogger(cfg))
		return err
	},
}

func init() {
	addStagingFlags(curateCmd.Flags())
	addCuratedFlags(curateCmd.Flags())
	rootCmd.AddCommand(curateCmd)
}

func runCurate(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*migrator.MigrateResult, error) {
	logger = logger.With("stage", "curate")

	source, err := openStaging(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer source.Close()

	fmt.Printf("Loading tokenizer %s...\n", cfg.Tokenizer.Name)
	encoder, err := tokenizer.Load(cfg.Tokenizer.Name)
	if err != nil {
		return nil, fmt.Errorf("Failed to load tokenizer: %w", err)
	}

	fmt.Printf("Connecting to %s document store...\n", cfg.Curated.Backend)
	sink, err := curated.Open(ctx, cfg.CuratedOptions())
	if err != nil {
		return nil, fmt.Errorf("Failed to connect to document store: %w", err)
	}
	defer sink.Close()

	fmt.Printf("Migrating rows into collection %s...\n", cfg.Curated.Collection)
	result, err := migrator.NewPipeline(source, encoder, sink, cfg.MigratorOptions(), logger).MigrateAll(ctx)
	if err != nil {
		if result != nil {
			fmt.Printf("  Documents written before failure: %d\n", result.Inserted)
		}
		return nil, fmt.Errorf("Curation failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Curate complete!")
	fmt.Printf("  Documents: %d/%d\n", result.Inserted, result.TotalRows)
	fmt.Printf("  Batches: %d\n", result.Batches)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Millisecond))

	if result.Verified {
		fmt.Printf("  Documents in collection: %d\n", result.Count)
		if result.Stats.Documents > 0 {
			fmt.Printf("  Average tokens per text: %.2f\n", result.Stats.AvgTokens)
			fmt.Printf("  Token count range: %d - %d\n", result.Stats.MinTokens, result.Stats.MaxTokens)
		}
		printSample(result.Sample)
	}

	if len(result.FailedRows) > 0 {
		fmt.Println()
		fmt.Println("Failed rows:")
		for _, failed := range result.FailedRows {
			fmt.Printf("  - %d: %s\n", failed.ID, failed.Reason)
		}
	}
	return result, nil
}

func printSample(docs []*curated.Document) {
	if len(docs) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Sample documents:")
	for i, doc := range docs {
		tokens := doc.Tokens
		if len(tokens) > 10 {
			tokens = tokens[:10]
		}
		fmt.Printf("  %d. id=%d tokens=%d %q\n", i+1, doc.ID, doc.Metadata.TokenCount, preview(doc.Text, 80))
		fmt.Printf("     first tokens: %v\n", tokens)
	}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
