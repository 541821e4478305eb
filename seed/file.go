package seed

import (
	"context"
	"io"
	"os"
)

// FileSource reads a seed snapshot from local disk
type FileSource struct {
	Path string
}

func (f *FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(f.Path)
}
