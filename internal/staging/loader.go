package staging

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	// DefaultBatchSize is the number of rows per insert transaction.
	DefaultBatchSize = 1000
	// MaxBatchSize keeps one multi-row insert under SQLite's bound-variable limit.
	MaxBatchSize = 10000

	previewRows  = 5
	previewWidth = 100
)

// Downloader is the object-storage read side the loader needs.
type Downloader interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}

// LoadResult summarizes one load run.
type LoadResult struct {
	RawLines int
	NonEmpty int
	Unique   int
	Inserted int
	Batches  int
	Verified bool
	Count    int64
	Preview  []Row
}

// Loader fetches the raw corpus, cleans it and fully refreshes the staging table.
type Loader struct {
	blobs     Downloader
	store     *Store
	batchSize int
	logger    *slog.Logger
}

// NewLoader creates a Loader. A non-positive batchSize uses DefaultBatchSize.
func NewLoader(blobs Downloader, store *Store, batchSize int, logger *slog.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		blobs:     blobs,
		store:     store,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Load runs the stage. A failed batch aborts the run with ErrBatchWrite; batches committed
// before it stay in the table. Verification problems are logged only.
func (l *Loader) Load(ctx context.Context, bucket, key string) (*LoadResult, error) {
	data, err := l.blobs.Get(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("fetch %s/%s: %w", bucket, key, err)
	}
	l.logger.Info("Fetched raw corpus", "bucket", bucket, "key", key, "bytes", len(data))

	lines, stats := Clean(SplitLines(data))
	result := &LoadResult{
		RawLines: stats.Raw,
		NonEmpty: stats.NonEmpty,
		Unique:   stats.Unique,
	}
	l.logger.Info("Cleaned corpus", "raw", stats.Raw, "non_empty", stats.NonEmpty, "unique", stats.Unique)

	if err := l.store.EnsureTable(ctx); err != nil {
		return nil, err
	}
	if err := l.store.Truncate(ctx); err != nil {
		return nil, err
	}

	if len(lines) == 0 {
		l.logger.Info("No lines to load after cleaning")
	}

	for start := 0; start < len(lines); start += l.batchSize {
		end := start + l.batchSize
		if end > len(lines) {
			end = len(lines)
		}
		if err := l.store.InsertBatch(ctx, lines[start:end]); err != nil {
			l.logger.Error("Batch insert failed", "batch", result.Batches+1, "offset", start, "error", err)
			return result, fmt.Errorf("batch %d: %w", result.Batches+1, err)
		}
		result.Batches++
		result.Inserted += end - start
		l.logger.Debug("Inserted batch", "batch", result.Batches, "rows", end-start, "total", result.Inserted)
	}

	l.verify(ctx, result)
	return result, nil
}

func (l *Loader) verify(ctx context.Context, result *LoadResult) {
	count, err := l.store.Count(ctx)
	if err != nil {
		l.logger.Warn("Verification count failed", "error", err)
		return
	}
	preview, err := l.store.Preview(ctx, previewRows, previewWidth)
	if err != nil {
		l.logger.Warn("Verification preview failed", "error", err)
		return
	}

	result.Count = count
	result.Preview = preview
	result.Verified = true
	l.logger.Info("Verified staging table", "table", l.store.Table(), "rows", count)
	if count != int64(result.Inserted) {
		l.logger.Warn("Row count differs from inserted lines", "rows", count, "inserted", result.Inserted)
	}
}
