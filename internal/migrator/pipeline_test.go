package migrator

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/corpus-pipeline/internal/curated"
	"github.com/bull/corpus-pipeline/internal/staging"
)

func numberedRows(n int) []staging.Row {
	rows := make([]staging.Row, n)
	for i := range rows {
		rows[i] = staging.Row{ID: int64(i + 1), Text: fmt.Sprintf("row %d text", i+1)}
	}
	return rows
}

func TestMigrateAll_SkipsFailedRows(t *testing.T) {
	rows := numberedRows(10)
	enc := &wordEncoder{reject: map[string]bool{rows[6].Text: true}}
	sink := &memorySink{}

	result, err := NewPipeline(&sliceSource{rows: rows}, enc, sink, Options{Source: "sqlite"}, nil).
		MigrateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(10), result.TotalRows)
	assert.Equal(t, 9, result.Inserted)
	require.Len(t, result.FailedRows, 1)
	assert.Equal(t, int64(7), result.FailedRows[0].ID)
	assert.Contains(t, result.FailedRows[0].Reason, "rejected")

	for _, doc := range sink.docs {
		assert.NotEqual(t, int64(7), doc.ID)
	}
}

func TestMigrateAll_DocumentShape(t *testing.T) {
	rows := []staging.Row{
		{ID: 1, Text: "Hello world"},
		{ID: 2, Text: strings.Repeat("w ", 300)},
	}
	sink := &memorySink{}

	before := time.Now().UTC()
	_, err := NewPipeline(&sliceSource{rows: rows}, &wordEncoder{}, sink, Options{MaxLength: 128, Source: "mysql"}, nil).
		MigrateAll(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.docs, 2)

	first := sink.docs[0]
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, "Hello world", first.Text)
	assert.Equal(t, []int{5, 5}, first.Tokens)
	assert.Equal(t, "mysql", first.Metadata.Source)
	assert.Equal(t, "words", first.Metadata.Tokenizer)

	processed, err := time.Parse(time.RFC3339Nano, first.Metadata.ProcessedAt)
	require.NoError(t, err)
	assert.False(t, processed.Before(before.Add(-time.Second)))

	assert.Len(t, sink.docs[1].Tokens, 128)
	for _, doc := range sink.docs {
		assert.Equal(t, len(doc.Tokens), doc.Metadata.TokenCount)
	}
}

func TestMigrateAll_FlushesInBatches(t *testing.T) {
	sink := &memorySink{}

	result, err := NewPipeline(&sliceSource{rows: numberedRows(7)}, &wordEncoder{}, sink, Options{BatchSize: 3}, nil).
		MigrateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{3, 3, 1}, sink.batches)
	assert.Equal(t, 3, result.Batches)
	assert.Equal(t, 7, result.Inserted)
	assert.True(t, result.Verified)
	assert.Equal(t, int64(7), result.Count)
	assert.Len(t, result.Sample, 3)
	assert.Equal(t, int64(1), result.Sample[0].ID)
	assert.Equal(t, 3, result.Stats.MinTokens)
}

func TestMigrateAll_BatchFailureIsFatal(t *testing.T) {
	sink := &memorySink{failBatch: 2}

	result, err := NewPipeline(&sliceSource{rows: numberedRows(7)}, &wordEncoder{}, sink, Options{BatchSize: 3}, nil).
		MigrateAll(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, curated.ErrBatchWrite)
	assert.Equal(t, 3, result.Inserted)
	assert.Len(t, sink.docs, 3)
	assert.False(t, result.Verified)
}

func TestMigrateAll_EmptySourceClearsSink(t *testing.T) {
	sink := &memorySink{docs: []*curated.Document{{ID: 99}}}

	result, err := NewPipeline(&sliceSource{}, &wordEncoder{}, sink, Options{}, nil).
		MigrateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Cleared)
	assert.Zero(t, result.Inserted)
	assert.Zero(t, result.Batches)
	assert.Empty(t, sink.docs)
	assert.Equal(t, curated.TokenStats{}, result.Stats)
}

func TestMigrateAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPipeline(&sliceSource{rows: numberedRows(3)}, &wordEncoder{}, &memorySink{}, Options{}, nil).
		MigrateAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewPipeline_Defaults(t *testing.T) {
	p := NewPipeline(nil, nil, nil, Options{}, nil)

	assert.Equal(t, DefaultBatchSize, p.opts.BatchSize)
	assert.Equal(t, DefaultMaxLength, p.opts.MaxLength)
}
