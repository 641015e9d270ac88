package core

import (
	"context"
	"io"
)

// Blob is the result of a finished upload.
type Blob struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Uploader is any service that can store a file blob and hand back a stable
// URL for it. Storage/transport mechanics live behind this interface.
type Uploader interface {
	UploadBlob(ctx context.Context, name string, r io.Reader) (Blob, error)
}
