// Package migrator tokenizes staged rows and writes them to the curated store.
package migrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bull/corpus-pipeline/internal/curated"
	"github.com/bull/corpus-pipeline/internal/staging"
	"github.com/bull/corpus-pipeline/internal/tokenizer"
)

const (
	DefaultBatchSize = 100
	DefaultMaxLength = 128

	sampleSize = 3
)

// RowSource streams staged rows in id order.
type RowSource interface {
	Count(ctx context.Context) (int64, error)
	EachRow(ctx context.Context, fn func(staging.Row) error) error
}

// Sink is the curated side of a migration.
type Sink interface {
	Clear(ctx context.Context) (int64, error)
	InsertBatch(ctx context.Context, docs []*curated.Document) error
	Count(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*curated.TokenStats, error)
	Sample(ctx context.Context, n int) ([]*curated.Document, error)
}

// Options tunes a migration.
type Options struct {
	BatchSize int
	MaxLength int
	// Source is recorded in metadata.source.
	Source string
}

// MigrateResult contains statistics about a migration run.
type MigrateResult struct {
	TotalRows  int64
	Cleared    int64
	Inserted   int
	Batches    int
	FailedRows []FailedRow
	Verified   bool
	Count      int64
	Stats      curated.TokenStats
	Sample     []*curated.Document
	Duration   time.Duration
}

// FailedRow is a staged row that produced no document.
type FailedRow struct {
	ID     int64
	Reason string
}

// Pipeline moves every staged row through the tokenizer into the sink.
type Pipeline struct {
	source  RowSource
	encoder tokenizer.Encoder
	sink    Sink
	opts    Options
	logger  *slog.Logger
}

// NewPipeline creates a migration pipeline. Zero options take the package defaults.
func NewPipeline(source RowSource, encoder tokenizer.Encoder, sink Sink, opts Options, logger *slog.Logger) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultMaxLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:  source,
		encoder: encoder,
		sink:    sink,
		opts:    opts,
		logger:  logger,
	}
}

// MigrateAll clears the sink and refills it from the source. Rows that fail to tokenize
// are logged and skipped. A failed insert stops the run; earlier batches stay written.
func (p *Pipeline) MigrateAll(ctx context.Context) (*MigrateResult, error) {
	start := time.Now()
	result := &MigrateResult{}

	total, err := p.source.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}
	result.TotalRows = total
	p.logger.Info("Starting migration", "rows", total, "tokenizer", p.encoder.Name(), "batch_size", p.opts.BatchSize)

	cleared, err := p.sink.Clear(ctx)
	if err != nil {
		return nil, fmt.Errorf("clear collection: %w", err)
	}
	result.Cleared = cleared
	p.logger.Info("Cleared collection", "removed", cleared)

	batch := make([]*curated.Document, 0, p.opts.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.sink.InsertBatch(ctx, batch); err != nil {
			return fmt.Errorf("insert batch %d: %w", result.Batches+1, err)
		}
		result.Batches++
		result.Inserted += len(batch)
		p.logger.Debug("Inserted batch", "batch", result.Batches, "documents", len(batch), "total", result.Inserted)
		batch = make([]*curated.Document, 0, p.opts.BatchSize)
		return nil
	}

	err = p.source.EachRow(ctx, func(row staging.Row) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		tokens, err := p.encoder.Encode(row.Text, p.opts.MaxLength)
		if err != nil {
			p.logger.Warn("Failed to tokenize row", "id", row.ID, "error", err)
			result.FailedRows = append(result.FailedRows, FailedRow{
				ID:     row.ID,
				Reason: err.Error(),
			})
			return nil
		}

		batch = append(batch, curated.NewDocument(row.ID, row.Text, tokens, p.opts.Source, p.encoder.Name(), time.Now()))
		if len(batch) >= p.opts.BatchSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		result.Duration = time.Since(start)
		if errors.Is(err, curated.ErrBatchWrite) {
			p.logger.Error("Batch insert failed", "inserted", result.Inserted, "error", err)
		}
		return result, err
	}

	if result.Inserted == 0 {
		p.logger.Info("No documents written")
	}

	p.verify(ctx, result)

	result.Duration = time.Since(start)
	p.logger.Info("Migration complete",
		"inserted", result.Inserted,
		"failed", len(result.FailedRows),
		"batches", result.Batches,
		"duration", result.Duration,
	)

	return result, nil
}

func (p *Pipeline) verify(ctx context.Context, result *MigrateResult) {
	count, err := p.sink.Count(ctx)
	if err != nil {
		p.logger.Warn("Verification count failed", "error", err)
		return
	}
	stats, err := p.sink.Stats(ctx)
	if err != nil {
		p.logger.Warn("Verification stats failed", "error", err)
		return
	}
	sample, err := p.sink.Sample(ctx, sampleSize)
	if err != nil {
		p.logger.Warn("Verification sample failed", "error", err)
		return
	}

	result.Count = count
	result.Stats = *stats
	result.Sample = sample
	result.Verified = true
	p.logger.Info("Verified collection",
		"documents", count,
		"avg_tokens", stats.AvgTokens,
		"min_tokens", stats.MinTokens,
		"max_tokens", stats.MaxTokens,
	)
}
