package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/deal-engine/internal/config"
	"go.uber.org/zap"
)

// ErrObjectNotFound is returned by Download when the key does not exist
var ErrObjectNotFound = errors.New("object not found")

// Storage is the object store holding uploaded deal documents. Keys are
// slash separated and chosen by the caller.
type Storage interface {
	Upload(ctx context.Context, key, contentType string, data io.Reader) (int64, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// NewStorage creates a new storage instance based on configuration.
// For local mode, files are stored on the local filesystem.
// For azure mode, files are stored in Azure Blob Storage and for gcs mode in
// a Google Cloud Storage bucket.
func NewStorage(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (Storage, error) {
	switch cfg.Mode {
	case "local":
		return NewLocalStorage(cfg.LocalBasePath)
	case "cloud", "azure":
		if cfg.CloudConnectionString == "" {
			return nil, fmt.Errorf("cloud connection string required for azure storage")
		}
		return NewAzureBlobStorage(cfg.CloudConnectionString, cfg.CloudContainer, logger)
	case "gcs":
		if cfg.GCSBucket == "" {
			return nil, fmt.Errorf("bucket name required for gcs storage")
		}
		return NewGCSStorage(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile, logger)
	default:
		return nil, fmt.Errorf("unsupported storage mode: %s", cfg.Mode)
	}
}

// ObjectKey builds a unique key under prefix that keeps the extension of the
// uploaded file name.
func ObjectKey(prefix, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join(prefix, uuid.New().String()+ext)
}

// LocalStorage implements Storage interface for local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// resolve maps a key to a path below the base directory
func (s *LocalStorage) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid storage key: %q", key)
	}
	return filepath.Join(s.basePath, filepath.FromSlash(clean)), nil
}

// Upload writes data to the file at key
func (s *LocalStorage) Upload(ctx context.Context, key, contentType string, data io.Reader) (int64, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	size, err := io.Copy(file, data)
	if err != nil {
		os.Remove(fullPath)
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	return size, nil
}

// Download opens the file at key
func (s *LocalStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Delete removes the file at key
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}
