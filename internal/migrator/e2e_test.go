package migrator_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/corpus-pipeline/internal/blobstore"
	"github.com/bull/corpus-pipeline/internal/container"
	"github.com/bull/corpus-pipeline/internal/corpus"
	"github.com/bull/corpus-pipeline/internal/curated"
	"github.com/bull/corpus-pipeline/internal/migrator"
	"github.com/bull/corpus-pipeline/internal/staging"
)

const (
	rawBucket = "raw"
	rawKey    = "wikitext/corpus.txt"
)

// lengthEncoder maps each rune to its code point.
type lengthEncoder struct{}

func (lengthEncoder) Name() string { return "runes" }

func (lengthEncoder) Encode(text string, maxLen int) ([]int, error) {
	var ids []int
	for _, r := range text {
		if maxLen > 0 && len(ids) == maxLen {
			break
		}
		ids = append(ids, int(r))
	}
	return ids, nil
}

type collectSink struct {
	docs []*curated.Document
}

func (c *collectSink) Clear(context.Context) (int64, error) {
	n := int64(len(c.docs))
	c.docs = nil
	return n, nil
}

func (c *collectSink) InsertBatch(_ context.Context, docs []*curated.Document) error {
	c.docs = append(c.docs, docs...)
	return nil
}

func (c *collectSink) Count(context.Context) (int64, error) { return int64(len(c.docs)), nil }

func (c *collectSink) Stats(context.Context) (*curated.TokenStats, error) {
	counts := make([]int, len(c.docs))
	for i, d := range c.docs {
		counts[i] = d.Metadata.TokenCount
	}
	s := curated.SummarizeTokenCounts(counts)
	return &s, nil
}

func (c *collectSink) Sample(_ context.Context, n int) ([]*curated.Document, error) {
	if len(c.docs) < n {
		n = len(c.docs)
	}
	return c.docs[:n], nil
}

func writeTexts(t *testing.T, path string, texts []string) {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{{Name: "text", Type: arrow.BinaryTypes.String}}, nil)
	b := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer b.Release()
	b.Field(0).(*array.StringBuilder).AppendValues(texts, nil)
	rec := b.NewRecord()
	defer rec.Release()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := ipc.NewWriter(f, ipc.WithSchema(schema))
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())
}

func writeParquetTexts(t *testing.T, path string, texts []string) {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{{Name: "text", Type: arrow.BinaryTypes.String}}, nil)
	b := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer b.Release()
	b.Field(0).(*array.StringBuilder).AppendValues(texts, nil)
	rec := b.NewRecord()
	defer rec.Release()

	tbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer tbl.Release()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, pqarrow.WriteTable(tbl, f, 1024, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps()))
}

type stages struct {
	blobs *blobstore.DirStore
	store *staging.Store
	sink  *collectSink
}

func newStages(t *testing.T) *stages {
	t.Helper()
	store, err := staging.Open(context.Background(), staging.Options{
		Driver: staging.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "staging.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &stages{
		blobs: blobstore.NewDirStore(t.TempDir()),
		store: store,
		sink:  &collectSink{},
	}
}

func TestPipeline_EndToEnd(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeTexts(t, filepath.Join(root, "train", "data-00000.arrow"),
		[]string{"Hello world", "", "  ", "Hello world"})
	writeParquetTexts(t, filepath.Join(root, "test", "data-00000.parquet"),
		[]string{"Second line", " "})

	s := newStages(t)

	read, err := container.NewReader(container.Options{Root: root}, nil).ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dev"}, read.MissingSplits)
	assert.Empty(t, read.Skipped)
	assert.Equal(t, 1, read.SplitCounts["test"])

	assembled, err := corpus.NewAssembler(s.blobs, t.TempDir(), nil).Assemble(ctx, read.Texts, rawBucket, rawKey)
	require.NoError(t, err)
	require.True(t, assembled.Uploaded)

	blob, err := s.blobs.Get(ctx, rawBucket, rawKey)
	require.NoError(t, err)
	assert.Equal(t, "Hello world\nHello world\nSecond line\n", string(blob))

	loaded, err := staging.NewLoader(s.blobs, s.store, 0, nil).Load(ctx, rawBucket, rawKey)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Inserted)
	assert.Equal(t, []staging.Row{{ID: 1, Text: "Hello world"}, {ID: 2, Text: "Second line"}}, loaded.Preview)

	migrated, err := migrator.NewPipeline(s.store, lengthEncoder{}, s.sink, migrator.Options{Source: s.store.Driver()}, nil).
		MigrateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, migrated.Inserted)
	assert.Empty(t, migrated.FailedRows)

	require.Len(t, s.sink.docs, 2)
	for i, doc := range s.sink.docs {
		assert.Equal(t, int64(i+1), doc.ID)
		assert.NotEmpty(t, doc.Tokens)
		assert.Equal(t, len(doc.Tokens), doc.Metadata.TokenCount)
		assert.Equal(t, "sqlite", doc.Metadata.Source)
	}
	assert.Equal(t, "Hello world", s.sink.docs[0].Text)
}

func TestPipeline_EmptyInput(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeTexts(t, filepath.Join(root, "train", "blank.arrow"), []string{"", "   ", "\t"})

	s := newStages(t)

	read, err := container.NewReader(container.Options{Root: root}, nil).ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, read.Texts)

	assembled, err := corpus.NewAssembler(s.blobs, t.TempDir(), nil).Assemble(ctx, read.Texts, rawBucket, rawKey)
	require.NoError(t, err)
	assert.False(t, assembled.Uploaded)
	assert.False(t, s.blobs.Exists(rawBucket, rawKey))
}

func TestPipeline_MultilineValuesStayOneRow(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeTexts(t, filepath.Join(root, "dev", "part.arrow"), []string{"first\nhalf", "plain"})

	s := newStages(t)
	read, err := container.NewReader(container.Options{Root: root}, nil).ReadAll(ctx)
	require.NoError(t, err)

	_, err = corpus.NewAssembler(s.blobs, "", nil).Assemble(ctx, read.Texts, rawBucket, rawKey)
	require.NoError(t, err)

	loaded, err := staging.NewLoader(s.blobs, s.store, 0, nil).Load(ctx, rawBucket, rawKey)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Inserted)
	assert.True(t, strings.HasPrefix(loaded.Preview[0].Text, "first half"))
}
