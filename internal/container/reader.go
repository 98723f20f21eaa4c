// Package container extracts text records from columnar container files (Arrow IPC and
// Parquet) laid out as one directory per split.
package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

// DefaultSplits is the split visiting order used when none is configured.
var DefaultSplits = []string{"train", "test", "dev"}

// DefaultTextField is the column holding the text in each container file.
const DefaultTextField = "text"

// SupportedExtensions lists container file extensions (lower-case) the reader parses.
var SupportedExtensions = map[string]bool{
	".arrow":   true,
	".parquet": true,
}

// Options configures a Reader.
type Options struct {
	Root      string
	Splits    []string
	TextField string
}

// SkippedFile records a container file that contributed no records.
type SkippedFile struct {
	Path   string
	Reason string
}

// ReadResult holds the extracted texts in discovery order plus per-file statistics.
type ReadResult struct {
	Texts         []string
	Files         int
	SplitCounts   map[string]int
	MissingSplits []string
	Skipped       []SkippedFile
}

// Reader walks split directories and extracts the text field from every container file.
type Reader struct {
	opts   Options
	mem    memory.Allocator
	logger *slog.Logger
}

// NewReader creates a Reader. Empty Splits or TextField fall back to the defaults.
func NewReader(opts Options, logger *slog.Logger) *Reader {
	if len(opts.Splits) == 0 {
		opts.Splits = DefaultSplits
	}
	if opts.TextField == "" {
		opts.TextField = DefaultTextField
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		opts:   opts,
		mem:    memory.NewGoAllocator(),
		logger: logger,
	}
}

// ReadAll visits splits in configured order, files in directory-listing order and rows in
// on-disk order. Unreadable files and missing splits are logged and skipped; only a
// split directory that exists but cannot be listed is an error.
func (r *Reader) ReadAll(ctx context.Context) (*ReadResult, error) {
	result := &ReadResult{SplitCounts: make(map[string]int, len(r.opts.Splits))}

	for _, split := range r.opts.Splits {
		dir := filepath.Join(r.opts.Root, split)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			r.logger.Warn("Split directory missing", "split", split, "path", dir)
			result.MissingSplits = append(result.MissingSplits, split)
			continue
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("list split %s: %w", split, err)
		}
		r.logger.Info("Processing split", "split", split, "entries", len(entries))

		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			path := filepath.Join(dir, entry.Name())
			if !isRegularFile(path) || !IsSupported(entry.Name()) {
				continue
			}
			result.Files++

			texts, err := r.ReadFile(ctx, path)
			if err != nil {
				r.logger.Warn("Skipping container file", "path", path, "error", err)
				result.Skipped = append(result.Skipped, SkippedFile{Path: path, Reason: err.Error()})
				continue
			}
			r.logger.Debug("Extracted texts", "path", path, "count", len(texts))
			result.Texts = append(result.Texts, texts...)
			result.SplitCounts[split] += len(texts)
		}
	}

	return result, nil
}

// ReadFile extracts the non-blank, trimmed text values of one container file.
// Parse failures wrap ErrSourceUnreadable; a missing field returns ErrFieldMissing.
func (r *Reader) ReadFile(ctx context.Context, path string) ([]string, error) {
	var (
		texts []string
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".arrow":
		texts, err = r.readArrow(path)
	case ".parquet":
		texts, err = readParquet(ctx, path, r.opts.TextField, r.mem)
	default:
		return nil, fmt.Errorf("%w: unsupported extension %s", ErrSourceUnreadable, filepath.Ext(path))
	}

	switch {
	case err == nil:
		return texts, nil
	case errors.Is(err, ErrFieldMissing), errors.Is(err, ErrSourceUnreadable):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}
}

func (r *Reader) readArrow(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for _, fr := range arrowFramings {
		batches, release, err := fr.open(f, r.mem)
		if errors.Is(err, ErrUnrecognizedFraming) {
			r.logger.Debug("Framing not recognized", "path", path, "framing", fr.name)
			continue
		}
		if err != nil {
			return nil, err
		}

		texts, err := extractTexts(batches, r.opts.TextField)
		release()
		return texts, err
	}
	return nil, fmt.Errorf("%w: no arrow framing recognized", ErrSourceUnreadable)
}

// IsSupported reports whether filename has a container extension.
func IsSupported(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
