package dummyupload

import (
	"context"
	"io"
	"io/ioutil"

	"github.com/trezcool/darasa/core"
)

// UploadedBlobs records every blob stored through the dummy uploader, for
// test assertions.
var UploadedBlobs = make([]core.Blob, 0)

type uploader struct {
	baseURL string
}

var _ core.Uploader = (*uploader)(nil)

func NewUploader() core.Uploader {
	return &uploader{baseURL: "https://files.test"}
}

func (u uploader) UploadBlob(ctx context.Context, name string, r io.Reader) (core.Blob, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return core.Blob{}, err
	}
	blob := core.Blob{
		URL:  u.baseURL + "/" + name,
		Name: name,
		Size: int64(len(data)),
	}
	UploadedBlobs = append(UploadedBlobs, blob)
	return blob, nil
}
