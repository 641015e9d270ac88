package uploadsvc

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/kurin/blazer/b2"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// B2Uploader stores blobs in a Backblaze B2 bucket and hands back the public
// download URL.
type B2Uploader struct {
	bucket  *b2.Bucket
	baseURL string
}

var _ core.Uploader = (*B2Uploader)(nil)

func NewB2Uploader(ctx context.Context, conf *core.Config) (*B2Uploader, error) {
	client, err := b2.NewClient(ctx, conf.Upload.B2KeyID, conf.Upload.B2AppKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating b2 client")
	}
	bucket, err := client.Bucket(ctx, conf.Upload.B2Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "getting b2 bucket")
	}
	return &B2Uploader{
		bucket:  bucket,
		baseURL: strings.TrimRight(conf.Upload.B2BaseURL, "/"),
	}, nil
}

func (u *B2Uploader) UploadBlob(ctx context.Context, name string, r io.Reader) (core.Blob, error) {
	key := fmt.Sprintf("%d-%s", time.Now().UnixNano(), path.Base(name))
	w := u.bucket.Object(key).NewWriter(ctx)

	size, err := io.Copy(w, r)
	if err != nil {
		return core.Blob{}, errors.Wrap(err, "writing object")
	}
	if err = w.Close(); err != nil {
		return core.Blob{}, errors.Wrap(err, "closing writer")
	}

	return core.Blob{
		URL:  u.baseURL + "/file/" + u.bucket.Name() + "/" + key,
		Name: name,
		Size: size,
	}, nil
}
