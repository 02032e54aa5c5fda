package artifact

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// FileStore keeps artifacts in a local directory. References are the
// slash-separated keys relative to the directory.
type FileStore struct {
	dir           string
	publicBaseURL string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates dir if needed. When publicBaseURL is set, downloads
// redirect to publicBaseURL + "/" + ref instead of streaming.
func NewFileStore(dir, publicBaseURL string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "create artifact dir %s", dir)
	}
	return &FileStore{dir: dir, publicBaseURL: strings.TrimSuffix(publicBaseURL, "/")}, nil
}

// Put writes data atomically via a temp file and rename.
func (s *FileStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	target := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", eris.Wrapf(err, "create dir for %s", key)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", eris.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", eris.Wrapf(err, "write %s", key)
	}
	if err := tmp.Close(); err != nil {
		return "", eris.Wrapf(err, "close %s", key)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", eris.Wrapf(err, "rename into %s", key)
	}
	return key, nil
}

// Open opens the file behind ref.
func (s *FileStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	key, err := cleanKey(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, filepath.FromSlash(key)))
	if err != nil {
		return nil, eris.Wrapf(err, "open artifact %s", ref)
	}
	return f, nil
}

// RedirectURL returns the public location of ref when one is configured.
func (s *FileStore) RedirectURL(ref string) (string, bool) {
	if s.publicBaseURL == "" {
		return "", false
	}
	return s.publicBaseURL + "/" + strings.TrimPrefix(ref, "/"), true
}

// cleanKey roots key inside the store so ".." cannot escape it.
func cleanKey(key string) (string, error) {
	clean := strings.TrimPrefix(path.Clean("/"+key), "/")
	if clean == "" {
		return "", eris.Errorf("invalid artifact key %q", key)
	}
	return clean, nil
}
