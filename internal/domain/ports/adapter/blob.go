package adapter

import (
	"context"
	"io"
)

// BlobStore is the port for the opaque image store. Every write yields
// a new stable URL; Replace deletes the old object only after the new
// upload succeeded.
type BlobStore interface {
	Upload(ctx context.Context, r io.Reader, filename, folder string) (url string, err error)
	Replace(ctx context.Context, r io.Reader, filename, oldURL, folder string) (url string, err error)
	Delete(ctx context.Context, url string) error
}
