//go:build integration

package blobstore

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupS3 connects to LocalStack (or S3_ENDPOINT) and skips when it is not running.
func setupS3(t *testing.T) (*S3Store, string) {
	endpoint := os.Getenv("S3_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}
	bucket := os.Getenv("S3_TEST_BUCKET")
	if bucket == "" {
		bucket = "raw"
	}

	store, err := NewS3Store(context.Background(), S3Options{
		Endpoint:        endpoint,
		Region:          "us-east-1",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		UsePathStyle:    true,
	})
	require.NoError(t, err)

	if err := store.Ping(context.Background(), bucket); err != nil {
		t.Skipf("S3 not available: %v", err)
	}
	return store, bucket
}

func TestS3RoundTrip(t *testing.T) {
	store, bucket := setupS3(t)
	ctx := context.Background()

	key := "test/" + uuid.New().String() + ".txt"
	require.NoError(t, store.Put(ctx, bucket, key, strings.NewReader("Hello world\nSecond line\n")))

	data, err := store.Get(ctx, bucket, key)
	require.NoError(t, err)
	assert.Equal(t, "Hello world\nSecond line\n", string(data))
}

func TestS3MissingKey(t *testing.T) {
	store, bucket := setupS3(t)

	_, err := store.Get(context.Background(), bucket, "missing/"+uuid.New().String())
	assert.ErrorIs(t, err, ErrNotFound)
}
