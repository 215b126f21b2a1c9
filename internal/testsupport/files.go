package testsupport

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, Payload(size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Payload returns size bytes of filler data.
func Payload(size int64) []byte {
	return bytes.Repeat([]byte{0x42}, int(size))
}

// Upload is an in-memory intake descriptor.
type Upload struct {
	FileName string
	MIME     string
	Data     []byte
	// DeclaredSize overrides len(Data) when non-zero.
	DeclaredSize int64
}

// NewUpload builds an upload of size filler bytes.
func NewUpload(name, mime string, size int64) *Upload {
	return &Upload{FileName: name, MIME: mime, Data: Payload(size)}
}

func (u *Upload) Name() string { return u.FileName }

func (u *Upload) Type() string { return u.MIME }

func (u *Upload) Size() int64 {
	if u.DeclaredSize != 0 {
		return u.DeclaredSize
	}
	return int64(len(u.Data))
}

func (u *Upload) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(u.Data)), nil
}
