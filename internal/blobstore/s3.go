// Package blobstore implements the object-storage boundary: whole-object put and get
// addressed by bucket and key.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/bull/corpus-pipeline/internal/connect"
)

// S3Options configures an S3-compatible endpoint.
type S3Options struct {
	Endpoint        string // e.g. http://localhost:4566 for LocalStack; empty uses AWS
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	ConnectRetries  int
}

// S3Store stores blobs in an S3-compatible service.
type S3Store struct {
	client *s3.Client
	opts   S3Options
}

// NewS3Store builds an S3 client. No request is made until Ping, Put or Get.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	return &S3Store{client: client, opts: opts}, nil
}

// Ping checks that the bucket is reachable, retrying per ConnectRetries.
func (s *S3Store) Ping(ctx context.Context, bucket string) error {
	err := connect.Ping(ctx, s.opts.ConnectRetries, func(ctx context.Context) error {
		_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: bucket %s: %v", ErrUnreachable, bucket, err)
	}
	return nil
}

// Put uploads body as a single object.
func (s *S3Store) Put(ctx context.Context, bucket, key string, body io.Reader) error {
	if key == "" {
		return ErrInvalidKey
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// Get downloads an object fully into memory.
func (s *S3Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, bucket, key)
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Close is a no-op; the SDK client holds no connection that needs releasing.
func (s *S3Store) Close() error {
	return nil
}
