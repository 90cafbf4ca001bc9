package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectStore moves artifacts between durable storage and the per-job
// scratch directory.
type ObjectStore interface {
	Download(ctx context.Context, key, localPath string) error
	Upload(ctx context.Context, key string, body []byte) error
}

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store is the production ObjectStore over one bucket.
type S3Store struct {
	api    S3API
	bucket string
	logger *slog.Logger
}

// NewS3Store creates a store bound to a bucket.
func NewS3Store(api S3API, bucket string, logger *slog.Logger) *S3Store {
	return &S3Store{
		api:    api,
		bucket: bucket,
		logger: logger,
	}
}

// Download fetches an object into a local file.
func (s *S3Store) Download(ctx context.Context, key, localPath string) error {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	defer f.Close()

	n, err := io.Copy(f, out.Body)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", localPath, err)
	}

	s.logger.Debug("Object downloaded",
		slog.String("key", key),
		slog.Int64("bytes", n),
	)
	return nil
}

// Upload writes an object from memory.
func (s *S3Store) Upload(ctx context.Context, key string, body []byte) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("failed to put s3://%s/%s: %w", s.bucket, key, err)
	}

	s.logger.Debug("Object uploaded",
		slog.String("key", key),
		slog.Int("bytes", len(body)),
	)
	return nil
}
