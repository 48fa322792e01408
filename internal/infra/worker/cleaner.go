package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"garment-studio/internal/domain/ports/adapter"
	"garment-studio/internal/usecase"
)

var _ usecase.AsyncCleaner = (*BlobCleaner)(nil)

// BlobCleaner deletes orphaned uploads in the background. An upload
// becomes an orphan when the step after it fails or is canceled; the
// request returns immediately and the delete happens here.
type BlobCleaner struct {
	pool    *Pool
	blob    adapter.BlobStore
	timeout time.Duration
	log     zerolog.Logger
}

func NewBlobCleaner(pool *Pool, blob adapter.BlobStore, log zerolog.Logger) *BlobCleaner {
	return &BlobCleaner{
		pool:    pool,
		blob:    blob,
		timeout: 30 * time.Second,
		log:     log,
	}
}

func (c *BlobCleaner) ScheduleDelete(url string) {
	if url == "" {
		return
	}
	err := c.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return c.blob.Delete(ctx, url)
	})
	if err != nil {
		// Leaked blobs are recoverable by a storage sweep; a full queue
		// must not surface to the caller.
		c.log.Warn().Str("url", url).Err(err).Msg("cleanup not scheduled")
	}
}
