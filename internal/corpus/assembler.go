// Package corpus consolidates extracted texts into one newline-delimited blob.
package corpus

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Uploader is the object-storage write side the assembler needs.
type Uploader interface {
	Put(ctx context.Context, bucket, key string, body io.Reader) error
}

// AssembleResult describes what was written.
type AssembleResult struct {
	Lines    int
	Bytes    int64
	Uploaded bool
	Bucket   string
	Key      string
}

// Assembler writes texts to a scratch file and uploads it as a single object.
type Assembler struct {
	uploader   Uploader
	scratchDir string
	logger     *slog.Logger
}

// NewAssembler creates an Assembler. An empty scratchDir uses os.TempDir().
func NewAssembler(uploader Uploader, scratchDir string, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		uploader:   uploader,
		scratchDir: scratchDir,
		logger:     logger,
	}
}

// Assemble uploads texts as one line each under bucket/key. With no texts nothing is
// uploaded and the result has Uploaded=false. The scratch file is removed on every path.
func (a *Assembler) Assemble(ctx context.Context, texts []string, bucket, key string) (*AssembleResult, error) {
	result := &AssembleResult{Bucket: bucket, Key: key}
	if len(texts) == 0 {
		a.logger.Info("No texts found, skipping upload")
		return result, nil
	}

	scratch, err := os.CreateTemp(a.scratchDir, "corpus-*.txt")
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}
	defer os.Remove(scratch.Name())
	defer scratch.Close()

	n, err := WriteLines(scratch, texts)
	if err != nil {
		return nil, fmt.Errorf("write scratch file: %w", err)
	}
	result.Lines = len(texts)
	result.Bytes = n
	a.logger.Debug("Wrote scratch file", "path", scratch.Name(), "lines", len(texts), "bytes", n)

	if _, err := scratch.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind scratch file: %w", err)
	}
	if err := a.uploader.Put(ctx, bucket, key, scratch); err != nil {
		return nil, fmt.Errorf("upload corpus: %w", err)
	}

	result.Uploaded = true
	a.logger.Info("Uploaded corpus", "bucket", bucket, "key", key, "lines", result.Lines, "bytes", result.Bytes)
	return result, nil
}

// lineBreaks collapses embedded line terminators so each text stays on one line.
var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// WriteLines writes every text followed by '\n', including the last one.
func WriteLines(w io.Writer, texts []string) (int64, error) {
	bw := bufio.NewWriter(w)
	var total int64
	for _, text := range texts {
		n, err := bw.WriteString(lineBreaks.Replace(text))
		total += int64(n)
		if err != nil {
			return total, err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return total, err
		}
		total++
	}
	return total, bw.Flush()
}
