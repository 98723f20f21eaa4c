package curated

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/bull/corpus-pipeline/internal/connect"
)

// QdrantOptions configures a QdrantStore.
type QdrantOptions struct {
	Host           string
	Port           int
	APIKey         string
	UseTLS         bool
	Collection     string
	ConnectRetries int
}

// QdrantStore keeps curated documents as payload-only points keyed by staging row id.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

// scrollPage is the page size for Scroll walks.
const scrollPage = uint32(256)

// NewQdrantStore creates a gRPC client and validates it with a health check.
func NewQdrantStore(ctx context.Context, opts QdrantOptions) (*QdrantStore, error) {
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   opts.Host,
		Port:   opts.Port,
		APIKey: opts.APIKey,
		UseTLS: opts.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	store := &QdrantStore{
		client:     client,
		collection: opts.Collection,
	}

	if err := connect.Ping(ctx, opts.ConnectRetries, store.Health); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return store, nil
}

// Health performs a single health check against Qdrant.
func (s *QdrantStore) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}

	return nil
}

func (s *QdrantStore) exists(ctx context.Context) (bool, error) {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range collections {
		if name == s.collection {
			return true, nil
		}
	}
	return false, nil
}

// EnsureCollection creates the collection without vectors, plus an integer index on
// metadata.token_count. Idempotent.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	ok, err := s.exists(ctx)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig:  qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collection,
		FieldName:      "metadata.token_count",
		FieldType:      qdrant.FieldType_FieldTypeInteger.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to create index for metadata.token_count: %w", err)
	}

	return nil
}

// Clear drops and recreates the collection.
func (s *QdrantStore) Clear(ctx context.Context) (int64, error) {
	ok, err := s.exists(ctx)
	if err != nil {
		return 0, err
	}

	var removed int64
	if ok {
		if removed, err = s.Count(ctx); err != nil {
			return 0, err
		}
		if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
			return 0, fmt.Errorf("failed to delete collection: %w", err)
		}
	}

	return removed, s.EnsureCollection(ctx)
}

// InsertBatch upserts docs in one request and waits for the write to apply.
func (s *QdrantStore) InsertBatch(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(docs))
	for i, doc := range docs {
		point, err := documentPoint(doc)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBatchWrite, err)
		}
		points[i] = point
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBatchWrite, err)
	}
	return nil
}

func (s *QdrantStore) Count(ctx context.Context) (int64, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int64(n), nil
}

// Stats walks every point's metadata; Qdrant has no aggregation API.
func (s *QdrantStore) Stats(ctx context.Context) (*TokenStats, error) {
	var counts []int
	var offset *qdrant.PointId

	for {
		results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Limit:          qdrant.PtrOf(scrollPage),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayloadInclude("metadata"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll points: %w", err)
		}

		for _, point := range results {
			meta := point.Payload["metadata"].GetStructValue()
			counts = append(counts, int(meta.GetFields()["token_count"].GetIntegerValue()))
		}

		if uint32(len(results)) < scrollPage {
			break
		}
		// Scroll offsets are inclusive; resume after the last id seen.
		offset = qdrant.NewIDNum(results[len(results)-1].Id.GetNum() + 1)
	}

	stats := SummarizeTokenCounts(counts)
	return &stats, nil
}

// Sample returns the n points with the lowest ids.
func (s *QdrantStore) Sample(ctx context.Context, n int) ([]*Document, error) {
	results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Limit:          qdrant.PtrOf(uint32(n)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scroll sample: %w", err)
	}

	docs := make([]*Document, 0, len(results))
	for _, point := range results {
		docs = append(docs, documentFromPayload(point.Id.GetNum(), point.Payload))
	}
	return docs, nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func documentPoint(doc *Document) (*qdrant.PointStruct, error) {
	if doc.ID < 0 {
		return nil, fmt.Errorf("document id %d cannot be a point id", doc.ID)
	}

	tokens := make([]any, len(doc.Tokens))
	for i, tok := range doc.Tokens {
		tokens[i] = int64(tok)
	}

	payload, err := qdrant.TryValueMap(map[string]any{
		"id":     doc.ID,
		"text":   doc.Text,
		"tokens": tokens,
		"metadata": map[string]any{
			"source":       doc.Metadata.Source,
			"processed_at": doc.Metadata.ProcessedAt,
			"tokenizer":    doc.Metadata.Tokenizer,
			"token_count":  int64(doc.Metadata.TokenCount),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("document %d payload: %w", doc.ID, err)
	}

	return &qdrant.PointStruct{
		Id:      qdrant.NewIDNum(uint64(doc.ID)),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{}),
		Payload: payload,
	}, nil
}

func documentFromPayload(id uint64, payload map[string]*qdrant.Value) *Document {
	var tokens []int
	if list := payload["tokens"].GetListValue(); list != nil {
		tokens = make([]int, 0, len(list.GetValues()))
		for _, v := range list.GetValues() {
			tokens = append(tokens, int(v.GetIntegerValue()))
		}
	}

	meta := payload["metadata"].GetStructValue().GetFields()
	return &Document{
		ID:     int64(id),
		Text:   payload["text"].GetStringValue(),
		Tokens: tokens,
		Metadata: Metadata{
			Source:      meta["source"].GetStringValue(),
			ProcessedAt: meta["processed_at"].GetStringValue(),
			Tokenizer:   meta["tokenizer"].GetStringValue(),
			TokenCount:  int(meta["token_count"].GetIntegerValue()),
		},
	}
}
