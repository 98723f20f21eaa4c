package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bull/corpus-pipeline/internal/blobstore"
	"github.com/bull/corpus-pipeline/internal/config"
	"github.com/bull/corpus-pipeline/internal/container"
	"github.com/bull/corpus-pipeline/internal/corpus"
)

var unpackCmd = &cobra.Command{
	Use:   "unpack",
	Short: "Extract texts from container files and upload them as one blob",
	Long: `Reads every .arrow and .parquet file under <root>/<split> for each split in order,
extracts the text column and uploads the non-blank values, one per line, as a single object.

Unreadable files and missing splits are logged and skipped. When no text is found nothing
is uploaded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.ValidateUnpack(); err != nil {
			return err
		}
		_, err = runUnpack(cmd.Context(), cfg, newLogger(cfg))
		return err
	},
}

func init() {
	addSourceFlags(unpackCmd.Flags())
	addBlobFlags(unpackCmd.Flags())
	rootCmd.AddCommand(unpackCmd)
}

// blobStore is the object storage a stage talks to.
type blobStore interface {
	Ping(ctx context.Context, bucket string) error
	Put(ctx context.Context, bucket, key string, body io.Reader) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Close() error
}

func openBlobStore(ctx context.Context, cfg *config.Config) (blobStore, error) {
	var store blobStore
	switch cfg.Blob.Backend {
	case config.BlobDir:
		store = blobstore.NewDirStore(cfg.Blob.Dir.Path)
		fmt.Printf("Using blob directory %s\n", cfg.Blob.Dir.Path)
	default:
		s3Store, err := blobstore.NewS3Store(ctx, cfg.S3Options())
		if err != nil {
			return nil, err
		}
		store = s3Store
		fmt.Printf("Connecting to object storage at %s...\n", cfg.Blob.S3.Endpoint)
	}

	if err := store.Ping(ctx, cfg.Blob.Bucket); err != nil {
		store.Close()
		return nil, fmt.Errorf("Failed to reach bucket %s: %w", cfg.Blob.Bucket, err)
	}
	return store, nil
}

func runUnpack(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*corpus.AssembleResult, error) {
	logger = logger.With("stage", "unpack")

	fmt.Printf("Reading container files under %s...\n", cfg.Source.Root)
	read, err := container.NewReader(cfg.ReaderOptions(), logger).ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("Reading containers failed: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Files: %d (%d skipped)\n", read.Files, len(read.Skipped))
	for _, split := range cfg.Source.Splits {
		fmt.Printf("  %s: %d texts\n", split, read.SplitCounts[split])
	}
	for _, skipped := range read.Skipped {
		fmt.Printf("  - skipped %s: %s\n", skipped.Path, skipped.Reason)
	}

	if len(read.Texts) == 0 {
		fmt.Println()
		fmt.Println("No texts found, nothing uploaded")
		return &corpus.AssembleResult{Bucket: cfg.Blob.Bucket, Key: cfg.Blob.Key}, nil
	}

	store, err := openBlobStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	result, err := corpus.NewAssembler(store, cfg.Blob.ScratchDir, logger).
		Assemble(ctx, read.Texts, cfg.Blob.Bucket, cfg.Blob.Key)
	if err != nil {
		return nil, fmt.Errorf("Assembling corpus failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Unpack complete!")
	fmt.Printf("  Lines: %d\n", result.Lines)
	fmt.Printf("  Bytes: %d\n", result.Bytes)
	fmt.Printf("  Object: %s/%s\n", result.Bucket, result.Key)
	return result, nil
}
