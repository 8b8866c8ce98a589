// Package rfs is an in-memory backend. Files are growable byte slices and
// directories keep their children in creation order. Nothing is persisted.
package rfs

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/S1riyS/vifs/internal/vfs"
	"github.com/S1riyS/vifs/pkg/logging"
)

type node struct {
	kind     vfs.InodeKind
	name     string
	data     []byte
	children []vfs.InodeID
	open     int
}

type FS struct {
	mu    sync.Mutex
	alloc vfs.Allocator
	nodes map[vfs.InodeID]*node
}

func New(alloc vfs.Allocator) *FS {
	return &FS{
		alloc: alloc,
		nodes: make(map[vfs.InodeID]*node),
	}
}

// Mount makes mountID the root of an empty tree. source is ignored.
func (f *FS) Mount(ctx context.Context, mountID vfs.InodeID, path, source string) error {
	const op = "rfs.FS.Mount"

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.nodes[mountID]; ok {
		return fmt.Errorf("%s: inode %d: %w", op, mountID, vfs.ErrAlreadyMounted)
	}

	f.nodes[mountID] = &node{kind: vfs.KindDirectory, name: path}

	logging.GetLoggerFromContextWithOp(ctx, op).Debug("Mounted in-memory tree", slog.String("path", path))

	return nil
}

func (f *FS) get(id vfs.InodeID) (*node, error) {
	n, ok := f.nodes[id]
	if !ok {
		return nil, fmt.Errorf("inode %d: %w", id, vfs.ErrFileNotFound)
	}
	return n, nil
}

func (f *FS) Create(ctx context.Context, parent vfs.InodeID, kind vfs.InodeKind, path, name string) (vfs.InodeID, error) {
	const op = "rfs.FS.Create"

	f.mu.Lock()
	defer f.mu.Unlock()

	dir, err := f.get(parent)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if dir.kind != vfs.KindDirectory {
		return 0, fmt.Errorf("%s: %w", op, vfs.ErrNotADirectory)
	}

	inode := f.alloc.Allocate(kind, vfs.FSRFS)
	f.nodes[inode.ID] = &node{kind: kind, name: name}
	dir.children = append(dir.children, inode.ID)

	return inode.ID, nil
}

func (f *FS) file(id vfs.InodeID) (*node, error) {
	n, err := f.get(id)
	if err != nil {
		return nil, err
	}
	if n.kind != vfs.KindFile {
		return nil, fmt.Errorf("inode %d: %w", id, vfs.ErrNotAFile)
	}
	return n, nil
}

// Read copies from offset up to the end of the file. Reading at or past the
// end returns 0 bytes.
func (f *FS) Read(ctx context.Context, id vfs.InodeID, buf []byte, offset uint64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.file(id)
	if err != nil {
		return 0, fmt.Errorf("rfs.FS.Read: %w", err)
	}

	if offset >= uint64(len(n.data)) {
		return 0, nil
	}

	return copy(buf, n.data[offset:]), nil
}

// Write stores data at offset, growing the file and zero-filling any gap.
func (f *FS) Write(ctx context.Context, id vfs.InodeID, data []byte, offset uint64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.file(id)
	if err != nil {
		return 0, fmt.Errorf("rfs.FS.Write: %w", err)
	}

	if offset > math.MaxUint32 || uint64(len(data)) > math.MaxUint32-offset {
		return 0, fmt.Errorf("rfs.FS.Write: offset %d length %d: %w", offset, len(data), vfs.ErrOutOfMemory)
	}

	end := offset + uint64(len(data))
	if end > uint64(len(n.data)) {
		grown := make([]byte, end)
		copy(grown, n.data)
		n.data = grown
	}
	copy(n.data[offset:], data)

	return len(data), nil
}

func (f *FS) Open(ctx context.Context, id vfs.InodeID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.get(id)
	if err != nil {
		return fmt.Errorf("rfs.FS.Open: %w", err)
	}
	n.open++

	return nil
}

func (f *FS) Close(ctx context.Context, id vfs.InodeID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.get(id)
	if err != nil {
		return fmt.Errorf("rfs.FS.Close: %w", err)
	}
	if n.open > 0 {
		n.open--
	}

	return nil
}

// Stat reports the byte length of files and the entry count of directories.
func (f *FS) Stat(ctx context.Context, id vfs.InodeID) (vfs.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.get(id)
	if err != nil {
		return vfs.Stat{}, fmt.Errorf("rfs.FS.Stat: %w", err)
	}

	size := uint64(len(n.data))
	if n.kind == vfs.KindDirectory {
		size = uint64(len(n.children))
	}

	return vfs.Stat{ID: id, Kind: n.kind, Size: size}, nil
}

func (f *FS) DirList(ctx context.Context, id vfs.InodeID) ([]vfs.DirEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.get(id)
	if err != nil {
		return nil, fmt.Errorf("rfs.FS.DirList: %w", err)
	}
	if n.kind != vfs.KindDirectory {
		return nil, fmt.Errorf("rfs.FS.DirList: inode %d: %w", id, vfs.ErrNotADirectory)
	}

	entries := make([]vfs.DirEntry, 0, len(n.children))
	for _, child := range n.children {
		entries = append(entries, vfs.DirEntry{Name: f.nodes[child].name, ID: child})
	}

	return entries, nil
}
