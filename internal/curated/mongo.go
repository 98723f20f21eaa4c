package curated

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/bull/corpus-pipeline/internal/connect"
)

// MongoOptions configures a MongoStore.
type MongoOptions struct {
	URI            string
	Database       string
	Collection     string
	ConnectRetries int
}

// MongoStore keeps curated documents in one MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects and pings the primary. It fails fast when MongoDB is unreachable.
func NewMongoStore(ctx context.Context, opts MongoOptions) (*MongoStore, error) {
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}

	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetServerSelectionTimeout(10 * time.Second)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	err = connect.Ping(ctx, opts.ConnectRetries, func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return &MongoStore{
		client: client,
		coll:   client.Database(opts.Database).Collection(opts.Collection),
	}, nil
}

func (m *MongoStore) Clear(ctx context.Context) (int64, error) {
	res, err := m.coll.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to clear collection: %w", err)
	}
	return res.DeletedCount, nil
}

// InsertBatch writes docs with one InsertMany call.
func (m *MongoStore) InsertBatch(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}
	batch := make([]any, len(docs))
	for i, doc := range docs {
		batch[i] = doc
	}
	if _, err := m.coll.InsertMany(ctx, batch); err != nil {
		return fmt.Errorf("%w: %v", ErrBatchWrite, err)
	}
	return nil
}

func (m *MongoStore) Count(ctx context.Context) (int64, error) {
	n, err := m.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// Stats aggregates metadata.token_count server-side.
func (m *MongoStore) Stats(ctx context.Context) (*TokenStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "documents", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "avg_tokens", Value: bson.D{{Key: "$avg", Value: "$metadata.token_count"}}},
			{Key: "min_tokens", Value: bson.D{{Key: "$min", Value: "$metadata.token_count"}}},
			{Key: "max_tokens", Value: bson.D{{Key: "$max", Value: "$metadata.token_count"}}},
		}}},
	}

	cursor, err := m.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate token counts: %w", err)
	}

	var rows []struct {
		Documents int64   `bson:"documents"`
		AvgTokens float64 `bson:"avg_tokens"`
		MinTokens int     `bson:"min_tokens"`
		MaxTokens int     `bson:"max_tokens"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode token stats: %w", err)
	}
	if len(rows) == 0 {
		return &TokenStats{}, nil
	}

	return &TokenStats{
		Documents: rows[0].Documents,
		AvgTokens: rows[0].AvgTokens,
		MinTokens: rows[0].MinTokens,
		MaxTokens: rows[0].MaxTokens,
	}, nil
}

func (m *MongoStore) Sample(ctx context.Context, n int) ([]*Document, error) {
	findOpts := options.Find().
		SetSort(bson.D{{Key: "id", Value: 1}}).
		SetLimit(int64(n))
	cursor, err := m.coll.Find(ctx, bson.D{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to find sample documents: %w", err)
	}

	var docs []*Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode sample documents: %w", err)
	}
	return docs, nil
}

// Close disconnects the client.
func (m *MongoStore) Close() error {
	if m.client != nil {
		return m.client.Disconnect(context.Background())
	}
	return nil
}
