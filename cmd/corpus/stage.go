package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bull/corpus-pipeline/internal/config"
	"github.com/bull/corpus-pipeline/internal/staging"
)

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Clean the raw corpus and load it into the staging table",
	Long: `Downloads the raw corpus blob, trims lines, drops empty ones and removes duplicates
keeping the first occurrence, then truncates the staging table and inserts the result in
batches, one transaction per batch.

A failed batch aborts the run; batches committed before it are kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.ValidateStage(); err != nil {
			return err
		}
		_, err = runStage(cmd.Context(), cfg, newLogger(cfg))
		return err
	},
}

func init() {
	addBlobFlags(stageCmd.Flags())
	addStagingFlags(stageCmd.Flags())
	rootCmd.AddCommand(stageCmd)
}

func openStaging(ctx context.Context, cfg *config.Config) (*staging.Store, error) {
	fmt.Printf("Connecting to %s staging database...\n", cfg.Staging.Driver)
	store, err := staging.Open(ctx, cfg.StagingOptions())
	if err != nil {
		return nil, fmt.Errorf("Failed to connect to staging database: %w", err)
	}
	return store, nil
}

func runStage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*staging.LoadResult, error) {
	logger = logger.With("stage", "stage")

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer blobs.Close()

	store, err := openStaging(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	fmt.Printf("Loading %s/%s into table %s...\n", cfg.Blob.Bucket, cfg.Blob.Key, store.Table())
	result, err := staging.NewLoader(blobs, store, cfg.Staging.BatchSize, logger).
		Load(ctx, cfg.Blob.Bucket, cfg.Blob.Key)
	if err != nil {
		if result != nil {
			fmt.Printf("  Rows committed before failure: %d\n", result.Inserted)
		}
		return nil, fmt.Errorf("Staging failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Stage complete!")
	fmt.Printf("  Lines: %d raw, %d non-empty, %d unique\n", result.RawLines, result.NonEmpty, result.Unique)
	fmt.Printf("  Inserted: %d rows in %d batches\n", result.Inserted, result.Batches)
	if result.Verified {
		fmt.Printf("  Rows in %s: %d\n", store.Table(), result.Count)
		if len(result.Preview) > 0 {
			fmt.Println()
			fmt.Println("Preview:")
			for _, row := range result.Preview {
				fmt.Printf("  %d: %s\n", row.ID, row.Text)
			}
		}
	}
	return result, nil
}
