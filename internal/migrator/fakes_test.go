package migrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bull/corpus-pipeline/internal/curated"
	"github.com/bull/corpus-pipeline/internal/staging"
	"github.com/bull/corpus-pipeline/internal/tokenizer"
)

// wordEncoder emits one id per whitespace-separated word, the word's byte length.
type wordEncoder struct {
	reject map[string]bool
}

func (e *wordEncoder) Name() string { return "words" }

func (e *wordEncoder) Encode(text string, maxLen int) ([]int, error) {
	if e.reject[text] || !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: rejected %q", tokenizer.ErrEncode, text)
	}
	var ids []int
	for _, w := range strings.Fields(text) {
		ids = append(ids, len(w))
	}
	return tokenizer.Truncate(ids, maxLen), nil
}

type sliceSource struct {
	rows []staging.Row
}

func (s *sliceSource) Count(context.Context) (int64, error) {
	return int64(len(s.rows)), nil
}

func (s *sliceSource) EachRow(_ context.Context, fn func(staging.Row) error) error {
	for _, r := range s.rows {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// memorySink keeps documents in memory and can fail a chosen batch.
type memorySink struct {
	docs      []*curated.Document
	batches   []int
	failBatch int
}

func (m *memorySink) Clear(context.Context) (int64, error) {
	n := int64(len(m.docs))
	m.docs = nil
	m.batches = nil
	return n, nil
}

func (m *memorySink) InsertBatch(_ context.Context, docs []*curated.Document) error {
	if m.failBatch > 0 && len(m.batches)+1 == m.failBatch {
		return fmt.Errorf("%w: injected", curated.ErrBatchWrite)
	}
	m.docs = append(m.docs, docs...)
	m.batches = append(m.batches, len(docs))
	return nil
}

func (m *memorySink) Count(context.Context) (int64, error) {
	return int64(len(m.docs)), nil
}

func (m *memorySink) Stats(context.Context) (*curated.TokenStats, error) {
	counts := make([]int, len(m.docs))
	for i, d := range m.docs {
		counts[i] = d.Metadata.TokenCount
	}
	stats := curated.SummarizeTokenCounts(counts)
	return &stats, nil
}

func (m *memorySink) Sample(_ context.Context, n int) ([]*curated.Document, error) {
	docs := append([]*curated.Document(nil), m.docs...)
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	if len(docs) > n {
		docs = docs[:n]
	}
	return docs, nil
}
