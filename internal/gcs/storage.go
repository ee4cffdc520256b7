// Package gcs reads and writes billing files in Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// DefaultUploadTimeout bounds a single UploadFile call.
const DefaultUploadTimeout = 2 * time.Minute

// Service is a Cloud Storage client shared by all fetches and uploads of a
// process. It implements source.Fetcher for "gs://" locations.
type Service struct {
	client        *storage.Client
	uploadTimeout time.Duration
}

// NewService creates a Service with its own storage client. Without options
// it uses Application Default Credentials.
func NewService(ctx context.Context, opts ...option.ClientOption) (*Service, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewService: create storage client: %w", err)
	}
	return NewServiceWithClient(client), nil
}

// NewServiceWithClient wraps an existing client.
func NewServiceWithClient(client *storage.Client) *Service {
	return &Service{client: client, uploadTimeout: DefaultUploadTimeout}
}

// Close releases the underlying client.
func (s *Service) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Fetch downloads the object bytes for a "gs://bucket/object" URI.
func (s *Service) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	rc, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}

	return data, nil
}

// UploadFile uploads a local file to bucket under objectName and returns
// the resulting gs:// URI. Uploading into a watched bucket is what triggers
// an analysis in production.
func (s *Service) UploadFile(ctx context.Context, bucket, objectName, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("UploadFile: open file %q: %w", filePath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()

	w := s.client.Bucket(bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "text/plain; charset=utf-8"

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("UploadFile: copy file to GCS writer: %w", err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("UploadFile: finalize upload: %w", err)
	}

	return BuildURI(bucket, objectName), nil
}
