package curated

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocument(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 0, 123456789, time.FixedZone("X", 3600))
	doc := NewDocument(42, "hello", []int{9, 8, 7}, "mysql", "cl100k_base", at)

	assert.Equal(t, int64(42), doc.ID)
	assert.Equal(t, 3, doc.Metadata.TokenCount)
	assert.Equal(t, "mysql", doc.Metadata.Source)
	assert.Equal(t, "cl100k_base", doc.Metadata.Tokenizer)
	assert.Equal(t, "2024-03-01T11:30:00.123456789Z", doc.Metadata.ProcessedAt)

	parsed, err := time.Parse(time.RFC3339Nano, doc.Metadata.ProcessedAt)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(at))
}

func TestNewDocument_EmptyTokens(t *testing.T) {
	doc := NewDocument(1, "x", nil, "sqlite", "gpt-4", time.Now())
	assert.Zero(t, doc.Metadata.TokenCount)
}

func TestSummarizeTokenCounts(t *testing.T) {
	stats := SummarizeTokenCounts([]int{4, 10, 1})

	assert.Equal(t, int64(3), stats.Documents)
	assert.Equal(t, 1, stats.MinTokens)
	assert.Equal(t, 10, stats.MaxTokens)
	assert.InDelta(t, 5.0, stats.AvgTokens, 1e-9)

	assert.Equal(t, TokenStats{}, SummarizeTokenCounts(nil))
}
