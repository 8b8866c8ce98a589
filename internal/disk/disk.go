// Package disk provides the raw byte-addressed medium a volume lives on.
// Image files stand in for block devices; the filesystem they live on is an
// afero.Fs so tests can keep whole volumes in memory.
package disk

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
)

var ErrOutOfRange = errors.New("disk: access outside of medium")

// Medium is byte-addressed read/write of arbitrary length at arbitrary offset.
type Medium interface {
	io.ReaderAt
	io.WriterAt
	Size() int64
	Sync() error
	Close() error
}

// Image is a Medium backed by a single file.
type Image struct {
	file afero.File
	path string
	size int64
}

// Opener opens a named medium. Backends receive one so that the mount
// source can be any string the opener understands.
type Opener interface {
	Open(name string) (Medium, error)
}

// FileOpener opens image files on an afero filesystem.
type FileOpener struct {
	Fs afero.Fs
}

func NewFileOpener(fs afero.Fs) *FileOpener {
	return &FileOpener{Fs: fs}
}

func (o *FileOpener) Open(name string) (Medium, error) {
	return Open(o.Fs, name)
}

// Open opens an existing image read-write.
func Open(fs afero.Fs, path string) (*Image, error) {
	f, err := fs.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("disk: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("disk: stat %s: %w", path, err)
	}

	return &Image{file: f, path: path, size: info.Size()}, nil
}

// Create creates or truncates an image to exactly size zero-filled bytes.
func Create(fs afero.Fs, path string, size int64) (*Image, error) {
	if size <= 0 {
		return nil, fmt.Errorf("disk: invalid image size %d", size)
	}

	f, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("disk: create %s: %w", path, err)
	}

	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("disk: truncate %s to %d: %w", path, size, err)
	}

	return &Image{file: f, path: path, size: size}, nil
}

func (m *Image) Path() string { return m.path }

func (m *Image) Size() int64 { return m.size }

func (m *Image) ReadAt(p []byte, off int64) (int, error) {
	if err := m.checkRange(off, len(p)); err != nil {
		return 0, err
	}

	n, err := m.file.ReadAt(p, off)
	if n < len(p) {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return n, fmt.Errorf("disk: read %d bytes at %d: %w", len(p), off, err)
	}

	return n, nil
}

func (m *Image) WriteAt(p []byte, off int64) (int, error) {
	if err := m.checkRange(off, len(p)); err != nil {
		return 0, err
	}

	n, err := m.file.WriteAt(p, off)
	if err != nil {
		return n, fmt.Errorf("disk: write %d bytes at %d: %w", len(p), off, err)
	}
	if n < len(p) {
		return n, fmt.Errorf("disk: write %d bytes at %d: %w", len(p), off, io.ErrShortWrite)
	}

	return n, nil
}

func (m *Image) Sync() error {
	return m.file.Sync()
}

func (m *Image) Close() error {
	return m.file.Close()
}

func (m *Image) checkRange(off int64, n int) error {
	if off < 0 || off+int64(n) > m.size {
		return fmt.Errorf("%w: offset %d length %d size %d", ErrOutOfRange, off, n, m.size)
	}
	return nil
}
