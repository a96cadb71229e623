package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GCSStorage stores deal documents as objects in a Google Cloud Storage bucket
type GCSStorage struct {
	client *gcs.Client
	bucket string
	logger *zap.Logger
}

// NewGCSStorage creates a bucket client. Without a credentials file the
// application default credentials are used.
func NewGCSStorage(ctx context.Context, bucket, credentialsFile string, logger *zap.Logger) (*GCSStorage, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", credentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	logger.Info("Google Cloud Storage initialized", zap.String("bucket", bucket))

	return &GCSStorage{
		client: client,
		bucket: bucket,
		logger: logger,
	}, nil
}

// Upload streams data to the object named key
func (s *GCSStorage) Upload(ctx context.Context, key, contentType string, data io.Reader) (int64, error) {
	writer := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	size, err := io.Copy(writer, data)
	if err != nil {
		writer.Close()
		return 0, fmt.Errorf("failed to copy data to GCS object %s: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("failed to close GCS writer for %s: %w", key, err)
	}

	s.logger.Debug("Object uploaded",
		zap.String("key", key),
		zap.String("bucket", s.bucket),
		zap.Int64("size", size),
	)
	return size, nil
}

// Download opens the object named key
func (s *GCSStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to read GCS object %s: %w", key, err)
	}
	return reader, nil
}

// Delete removes the object named key
func (s *GCSStorage) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete GCS object %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying client
func (s *GCSStorage) Close() error {
	return s.client.Close()
}
