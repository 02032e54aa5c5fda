// Package artifact stores generated workbooks.
package artifact

import (
	"context"
	"fmt"
	"io"
)

// Store puts artifacts and serves them back by reference.
type Store interface {
	// Put stores data under key and returns a reference to it.
	Put(ctx context.Context, key string, data []byte) (string, error)
	// Open streams the artifact behind ref.
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	// RedirectURL returns an externally hosted location for ref, if any.
	RedirectURL(ref string) (string, bool)
}

// RunKey is the storage key of a run's workbook.
func RunKey(runID string) string {
	return fmt.Sprintf("runs/%s.xlsx", runID)
}
