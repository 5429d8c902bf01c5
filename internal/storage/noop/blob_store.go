// Package noop provides a blob store that discards writes, for dry runs
// where the rendered document is only returned inline.
package noop

import "context"

// BlobStore discards every object.
type BlobStore struct{}

// New returns a discarding blob store.
func New() *BlobStore { return &BlobStore{} }

// PutObject drops the data and returns an empty URI.
func (BlobStore) PutObject(_ context.Context, _ string, _ string, _ []byte) (string, error) {
	return "", nil
}
