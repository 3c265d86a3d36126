package fileset

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/moyoez/gfpgan-client/tool"
)

// Blob is the opaque content of one candidate file.
type Blob interface {
	Name() string
	Size() int64
	ContentType() string
	Open() (io.ReadCloser, error)
}

// FileBlob reads its content from a local path on every Open.
type FileBlob struct {
	path        string
	name        string
	size        int64
	contentType string
}

func NewFileBlob(path string) (*FileBlob, error) {
	name, size, fileType, err := tool.GetFileInfoFromPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file info of %s: %v", path, err)
	}
	return &FileBlob{path: path, name: name, size: size, contentType: fileType}, nil
}

func (b *FileBlob) Name() string        { return b.name }
func (b *FileBlob) Size() int64         { return b.size }
func (b *FileBlob) ContentType() string { return b.contentType }
func (b *FileBlob) Path() string        { return b.path }

func (b *FileBlob) Open() (io.ReadCloser, error) {
	return os.Open(b.path)
}

// BytesBlob holds its content in memory, e.g. a file received by the control server.
type BytesBlob struct {
	name        string
	contentType string
	data        []byte
}

func NewBytesBlob(name string, data []byte) *BytesBlob {
	return &BytesBlob{name: name, contentType: tool.DetectContentType(name, data), data: data}
}

func (b *BytesBlob) Name() string        { return b.name }
func (b *BytesBlob) Size() int64         { return int64(len(b.data)) }
func (b *BytesBlob) ContentType() string { return b.contentType }

func (b *BytesBlob) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}
