package artifact

import (
	"bytes"
	"context"
	"io"

	"github.com/rotisserie/eris"
)

// BlobStore is the subset of the run database that holds artifact blobs.
type BlobStore interface {
	PutArtifact(ctx context.Context, key string, data []byte) error
	GetArtifact(ctx context.Context, key string) ([]byte, error)
}

// DBStore keeps artifacts next to the runs in the database. Downloads are
// always streamed.
type DBStore struct {
	blobs BlobStore
}

var _ Store = (*DBStore)(nil)

// NewDBStore wraps blobs.
func NewDBStore(blobs BlobStore) *DBStore {
	return &DBStore{blobs: blobs}
}

// Put stores data under key; the key is the reference.
func (s *DBStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := s.blobs.PutArtifact(ctx, key, data); err != nil {
		return "", err
	}
	return key, nil
}

// Open returns a reader over the stored blob.
func (s *DBStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	data, err := s.blobs.GetArtifact(ctx, ref)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, eris.Errorf("artifact %s not found", ref)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// RedirectURL always reports false.
func (s *DBStore) RedirectURL(string) (string, bool) {
	return "", false
}
