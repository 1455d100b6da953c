package object

import (
	"context"
	"io"
)

// ObjectStore saves uploaded contract files and resolves them to local paths
// the document reader can open.
type ObjectStore interface {
	Save(ctx context.Context, userID string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Path(storageKey string) (string, error)
	Delete(ctx context.Context, storageKey string) error
}
