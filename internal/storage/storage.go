package storage

import (
	"context"
	"io"
)

// Uploader stores export files and returns where they were written.
type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (storedPath string, err error)
}
