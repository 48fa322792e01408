package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	storage "github.com/supabase-community/storage-go"

	"garment-studio/internal/domain"
	"garment-studio/internal/domain/ports/adapter"
	"garment-studio/internal/infra/metrics"
)

var _ adapter.BlobStore = (*SupabaseStore)(nil)

// SupabaseStore implements the blob store port on Supabase Storage.
// Each upload gets a fresh UUID-prefixed object key, so writes are
// append-only by URL and Replace can safely delete the old object
// after the new one landed.
type SupabaseStore struct {
	client  *storage.Client
	bucket  string
	baseURL string
	timeout time.Duration
}

func NewSupabaseStore(projectURL, serviceKey, bucket string, timeout time.Duration) (*SupabaseStore, error) {
	if projectURL == "" || bucket == "" {
		return nil, domain.ErrInvalidArgument
	}
	baseURL := strings.TrimSuffix(projectURL, "/")
	client := storage.NewClient(baseURL+"/storage/v1", serviceKey, nil)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SupabaseStore{
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
		timeout: timeout,
	}, nil
}

func (s *SupabaseStore) Upload(ctx context.Context, r io.Reader, filename, folder string) (string, error) {
	if r == nil || strings.TrimSpace(filename) == "" {
		return "", domain.ErrInvalidArgument
	}
	objectPath := fmt.Sprintf("%s/%s_%s", folder, uuid.NewString(), sanitizeFilename(filename))
	contentType := contentTypeFor(filename)
	upsert := false
	err := s.withTimeout(ctx, func() error {
		_, uerr := s.client.UploadFile(s.bucket, objectPath, r, storage.FileOptions{
			ContentType: &contentType,
			Upsert:      &upsert,
		})
		return uerr
	})
	if err != nil {
		metrics.IncStorageOp("upload", false)
		return "", domain.NewStorageError("upload", err)
	}
	metrics.IncStorageOp("upload", true)
	return s.publicURL(objectPath), nil
}

// Replace uploads the new object first and only then deletes the old
// one; a failed delete leaves an orphan, never a missing asset.
func (s *SupabaseStore) Replace(ctx context.Context, r io.Reader, filename, oldURL, folder string) (string, error) {
	url, err := s.Upload(ctx, r, filename, folder)
	if err != nil {
		return "", err
	}
	if oldURL != "" {
		if err := s.Delete(ctx, oldURL); err != nil {
			metrics.IncStorageOp("replace_delete", false)
		}
	}
	return url, nil
}

func (s *SupabaseStore) Delete(ctx context.Context, url string) error {
	objectPath, ok := s.objectPath(url)
	if !ok {
		return domain.ErrInvalidArgument
	}
	err := s.withTimeout(ctx, func() error {
		_, derr := s.client.RemoveFile(s.bucket, []string{objectPath})
		return derr
	})
	if err != nil {
		metrics.IncStorageOp("delete", false)
		return domain.NewStorageError("delete", err)
	}
	metrics.IncStorageOp("delete", true)
	return nil
}

// withTimeout bounds an SDK call that does not take a context itself.
func (s *SupabaseStore) withTimeout(ctx context.Context, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SupabaseStore) publicURL(objectPath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, objectPath)
}

// objectPath inverts publicURL; only URLs from this bucket resolve.
func (s *SupabaseStore) objectPath(url string) (string, bool) {
	prefix := fmt.Sprintf("%s/storage/v1/object/public/%s/", s.baseURL, s.bucket)
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
