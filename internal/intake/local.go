package intake

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalFile adapts a file on disk to Descriptor. Type is always empty so
// only the extension rules apply.
type LocalFile struct {
	path string
	size int64
}

// Local stats path and wraps it as a Descriptor.
func Local(path string) (*LocalFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &LocalFile{path: path, size: info.Size()}, nil
}

func (f *LocalFile) Name() string { return filepath.Base(f.path) }

func (f *LocalFile) Size() int64 { return f.size }

func (f *LocalFile) Type() string { return "" }

func (f *LocalFile) Open() (io.ReadCloser, error) { return os.Open(f.path) }

// Path returns the wrapped path.
func (f *LocalFile) Path() string { return f.path }
