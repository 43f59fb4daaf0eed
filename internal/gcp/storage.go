package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/rmreedy/docpipe/internal/pipeline"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// DocStore publishes cleaned PDFs to a GCS bucket and mirrors the remote
// prefix against the local artifacts.
type DocStore struct {
	client *storage.Client
	bucket string
}

func NewDocStore(ctx context.Context, bucket string) (*DocStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewDocStore: bucket cannot be empty")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &DocStore{client: client, bucket: bucket}, nil
}

func (s *DocStore) Close() error {
	return s.client.Close()
}

// PublicURL returns the browser-facing URL for an uploaded object.
func (s *DocStore) PublicURL(key string) string {
	return fmt.Sprintf("https://storage.cloud.google.com/%s/%s", s.bucket, key)
}

// Upload writes localPath to key, makes the object public, and returns its
// public URL. Transient failures are retried with exponential backoff.
func (s *DocStore) Upload(ctx context.Context, localPath, key string) (string, error) {
	const maxRetries = 4
	backoff := 1 * time.Second
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := func() error {
			localFile, err := os.Open(localPath)
			if err != nil {
				return fmt.Errorf("could not open local file %s: %w", localPath, err)
			}
			defer localFile.Close()

			writeCtx, cancel := context.WithTimeout(ctx, 50*time.Second)
			defer cancel()

			writer := s.client.Bucket(s.bucket).Object(key).NewWriter(writeCtx)
			if _, err := io.Copy(writer, localFile); err != nil {
				_ = writer.Close()
				return fmt.Errorf("io.Copy to GCS failed: %w", err)
			}
			if err := writer.Close(); err != nil {
				return fmt.Errorf("failed to close GCS writer (finalize upload): %w", err)
			}
			return nil
		}()

		if err == nil {
			acl := s.client.Bucket(s.bucket).Object(key).ACL()
			if err := acl.Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
				return "", &pipeline.RemoteError{Service: "gcs", Retryable: true,
					Err: fmt.Errorf("make public %s: %w", key, err)}
			}
			return s.PublicURL(key), nil
		}

		lastErr = err
		slog.Warn("Upload failed, will retry.",
			"gcsObject", key,
			"attempt", i+1,
			"maxRetries", maxRetries,
			"backoff", backoff.String(),
			"error", err,
		)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", &pipeline.RemoteError{Service: "gcs", Retryable: false,
		Err: fmt.Errorf("upload for %s failed after all retries: %w", key, lastErr)}
}

// Delete removes key from the bucket. A missing object is not an error.
func (s *DocStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return &pipeline.RemoteError{Service: "gcs", Retryable: true,
			Err: fmt.Errorf("delete %s: %w", key, err)}
	}
	return nil
}

// List returns every object key under prefix.
func (s *DocStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, &pipeline.RemoteError{Service: "gcs", Retryable: true,
				Err: fmt.Errorf("list %s: %w", prefix, err)}
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}
