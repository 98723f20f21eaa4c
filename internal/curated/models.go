package curated

import "time"

// Document is one tokenized staging row.
type Document struct {
	ID       int64    `bson:"id" json:"id"`
	Text     string   `bson:"text" json:"text"`
	Tokens   []int    `bson:"tokens" json:"tokens"`
	Metadata Metadata `bson:"metadata" json:"metadata"`
}

// Metadata records where and how a document was produced.
type Metadata struct {
	Source      string `bson:"source" json:"source"`
	ProcessedAt string `bson:"processed_at" json:"processed_at"` // UTC, RFC 3339 with nanoseconds
	Tokenizer   string `bson:"tokenizer" json:"tokenizer"`
	TokenCount  int    `bson:"token_count" json:"token_count"`
}

// NewDocument builds a document whose TokenCount always matches len(tokens).
func NewDocument(id int64, text string, tokens []int, source, tokenizer string, processedAt time.Time) *Document {
	return &Document{
		ID:     id,
		Text:   text,
		Tokens: tokens,
		Metadata: Metadata{
			Source:      source,
			ProcessedAt: processedAt.UTC().Format(time.RFC3339Nano),
			Tokenizer:   tokenizer,
			TokenCount:  len(tokens),
		},
	}
}

// TokenStats aggregates metadata.token_count over a collection.
type TokenStats struct {
	Documents int64
	AvgTokens float64
	MinTokens int
	MaxTokens int
}

// SummarizeTokenCounts computes TokenStats for stores without server-side aggregation.
func SummarizeTokenCounts(counts []int) TokenStats {
	if len(counts) == 0 {
		return TokenStats{}
	}
	stats := TokenStats{
		Documents: int64(len(counts)),
		MinTokens: counts[0],
		MaxTokens: counts[0],
	}
	total := 0
	for _, c := range counts {
		total += c
		if c < stats.MinTokens {
			stats.MinTokens = c
		}
		if c > stats.MaxTokens {
			stats.MaxTokens = c
		}
	}
	stats.AvgTokens = float64(total) / float64(len(counts))
	return stats
}

// DefaultCollection is the curated collection name.
const DefaultCollection = "wikitext"
