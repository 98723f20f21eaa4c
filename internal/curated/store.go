// Package curated writes tokenized documents to a document store.
package curated

import (
	"context"
	"fmt"
)

// Supported backends.
const (
	BackendMongo  = "mongo"
	BackendQdrant = "qdrant"
)

// Store is a curated document collection.
type Store interface {
	// Clear removes every document and reports how many were removed.
	Clear(ctx context.Context) (int64, error)
	InsertBatch(ctx context.Context, docs []*Document) error
	Count(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*TokenStats, error)
	// Sample returns up to n documents ordered by id.
	Sample(ctx context.Context, n int) ([]*Document, error)
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend string
	Mongo   MongoOptions
	Qdrant  QdrantOptions
}

// Open connects to the configured backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendMongo:
		store, err := NewMongoStore(ctx, opts.Mongo)
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendQdrant:
		store, err := NewQdrantStore(ctx, opts.Qdrant)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, opts.Backend)
	}
}
