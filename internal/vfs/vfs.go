// Package vfs routes filesystem operations to pluggable backends.
//
// A VFS owns the inode arena, the backend registry and the mount table.
// Every inode carries the kind of the backend that owns it; mounting a
// backend on a directory retags that directory so operations on it, and on
// everything the backend creates below it, dispatch to the new backend.
package vfs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/S1riyS/vifs/pkg/logging"
	"github.com/S1riyS/vifs/pkg/logging/slogext"
)

// VFS serialises every public operation behind one lock, so backends only
// ever see a single caller at a time.
type VFS struct {
	mu       sync.Mutex
	arena    *Arena
	backends map[FSKind]Backend
	mounts   []MountPoint
}

func New() *VFS {
	return &VFS{
		arena:    NewArena(),
		backends: make(map[FSKind]Backend),
	}
}

// Inodes exposes the arena so backends can allocate ids.
func (v *VFS) Inodes() *Arena {
	return v.arena
}

func (v *VFS) Register(kind FSKind, backend Backend) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.backends[kind]; ok {
		return fmt.Errorf("vfs.VFS.Register: %s: %w", kind, ErrAlreadyRegistered)
	}

	v.backends[kind] = backend
	return nil
}

func (v *VFS) Backend(kind FSKind) (Backend, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.backend(kind)
}

func (v *VFS) backend(kind FSKind) (Backend, error) {
	b, ok := v.backends[kind]
	if !ok {
		return nil, fmt.Errorf("%s: %w", kind, ErrUnknownFilesystem)
	}

	return b, nil
}

// Mount binds the backend of the given kind to the directory at path.
// source is passed to the backend verbatim.
func (v *VFS) Mount(ctx context.Context, kind FSKind, source, path string) error {
	const op = "vfs.VFS.Mount"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	v.mu.Lock()
	defer v.mu.Unlock()

	b, err := v.backend(kind)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	node, err := v.resolve(ctx, path)
	if err != nil {
		logger.Debug("Mount point not found", slog.String("path", path), slogext.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if node.MountPoint && node.FS != kind {
		return fmt.Errorf("%s: %s is %s: %w", op, path, node.FS, ErrAlreadyMounted)
	}

	if !node.IsDir() {
		return fmt.Errorf("%s: %s: %w", op, path, ErrNotADirectory)
	}

	path = Clean(path)
	if err := b.Mount(ctx, node.ID, path, source); err != nil {
		logger.Error("Backend mount failed", slog.String("fs", kind.String()), slog.String("path", path), slogext.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	v.arena.markMountPoint(node.ID, kind)
	v.mounts = append(v.mounts, MountPoint{Path: path, ID: node.ID, FS: kind})

	logger.Info("Mounted filesystem", slog.String("fs", kind.String()), slog.String("path", path), slog.Uint64("inode", uint64(node.ID)))

	return nil
}

func (v *VFS) MountPoints() []MountPoint {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]MountPoint, len(v.mounts))
	copy(out, v.mounts)

	return out
}

// Lookup resolves an absolute path to its inode.
func (v *VFS) Lookup(ctx context.Context, path string) (Inode, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	node, err := v.resolve(ctx, path)
	if err != nil {
		return Inode{}, fmt.Errorf("vfs.VFS.Lookup: %w", err)
	}

	return node, nil
}

func (v *VFS) LookupInode(id InodeID) (Inode, error) {
	node, ok := v.arena.Get(id)
	if !ok {
		return Inode{}, fmt.Errorf("vfs.VFS.LookupInode: inode %d: %w", id, ErrFileNotFound)
	}

	return node, nil
}

func (v *VFS) resolve(ctx context.Context, path string) (Inode, error) {
	current := RootID

	for _, name := range Components(path) {
		next, err := v.getFromDir(ctx, current, name)
		if err != nil {
			if errors.Is(err, ErrFileNotFound) {
				return Inode{}, fmt.Errorf("%s: %w", path, ErrPathNotFound)
			}
			return Inode{}, err
		}
		current = next
	}

	node, ok := v.arena.Get(current)
	if !ok {
		return Inode{}, fmt.Errorf("%s: %w", path, ErrPathNotFound)
	}

	return node, nil
}

// GetFromDir finds name among the entries of directory dir.
func (v *VFS) GetFromDir(ctx context.Context, dir InodeID, name string) (InodeID, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	id, err := v.getFromDir(ctx, dir, name)
	if err != nil {
		return 0, fmt.Errorf("vfs.VFS.GetFromDir: %w", err)
	}

	return id, nil
}

func (v *VFS) getFromDir(ctx context.Context, dir InodeID, name string) (InodeID, error) {
	entries, err := v.list(ctx, dir)
	if err != nil {
		return 0, err
	}

	for _, e := range entries {
		if e.Name == name {
			return e.ID, nil
		}
	}

	return 0, fmt.Errorf("%s: %w", name, ErrFileNotFound)
}

// List returns the entries of a directory in the backend's order.
func (v *VFS) List(ctx context.Context, id InodeID) ([]DirEntry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	entries, err := v.list(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("vfs.VFS.List: %w", err)
	}

	return entries, nil
}

func (v *VFS) list(ctx context.Context, id InodeID) ([]DirEntry, error) {
	node, b, err := v.dispatch(id)
	if err != nil {
		return nil, err
	}

	if !node.IsDir() {
		return nil, fmt.Errorf("inode %d: %w", id, ErrNotADirectory)
	}

	return b.DirList(ctx, id)
}

// dispatch finds an inode and the backend that owns it.
func (v *VFS) dispatch(id InodeID) (Inode, Backend, error) {
	node, ok := v.arena.Get(id)
	if !ok {
		return Inode{}, nil, fmt.Errorf("inode %d: %w", id, ErrFileNotFound)
	}

	b, err := v.backend(node.FS)
	if err != nil {
		return Inode{}, nil, err
	}

	return node, b, nil
}

// Create makes a new file or directory called name inside the directory at
// path and returns its inode id.
func (v *VFS) Create(ctx context.Context, kind InodeKind, path, name string) (InodeID, error) {
	const op = "vfs.VFS.Create"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	if kind != KindFile && kind != KindDirectory {
		return 0, fmt.Errorf("%s: %s: %w", op, kind, ErrUnknown)
	}

	if err := ValidateName(name); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	parent, err := v.resolve(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if !parent.IsDir() {
		return 0, fmt.Errorf("%s: %s: %w", op, path, ErrNotADirectory)
	}

	b, err := v.backend(parent.FS)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	entries, err := b.DirList(ctx, parent.ID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	for _, e := range entries {
		if e.Name == name {
			return 0, fmt.Errorf("%s: %s: %w", op, Join(path, name), ErrExists)
		}
	}

	id, err := b.Create(ctx, parent.ID, kind, Clean(path), name)
	if err != nil {
		logger.Debug("Backend create failed", slog.String("path", path), slog.String("name", name), slogext.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	logger.Debug("Created inode",
		slog.String("path", Join(path, name)),
		slog.String("kind", kind.String()),
		slog.Uint64("inode", uint64(id)),
	)

	return id, nil
}

func (v *VFS) Mkdir(ctx context.Context, path, name string) (InodeID, error) {
	return v.Create(ctx, KindDirectory, path, name)
}

func (v *VFS) Read(ctx context.Context, id InodeID, buf []byte, offset uint64) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	b, err := v.fileBackend(id)
	if err != nil {
		return 0, fmt.Errorf("vfs.VFS.Read: %w", err)
	}

	n, err := b.Read(ctx, id, buf, offset)
	if err != nil {
		return n, fmt.Errorf("vfs.VFS.Read: %w", err)
	}

	return n, nil
}

func (v *VFS) Write(ctx context.Context, id InodeID, data []byte, offset uint64) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	b, err := v.fileBackend(id)
	if err != nil {
		return 0, fmt.Errorf("vfs.VFS.Write: %w", err)
	}

	n, err := b.Write(ctx, id, data, offset)
	if err != nil {
		return n, fmt.Errorf("vfs.VFS.Write: %w", err)
	}

	return n, nil
}

func (v *VFS) fileBackend(id InodeID) (Backend, error) {
	node, b, err := v.dispatch(id)
	if err != nil {
		return nil, err
	}

	if node.Kind != KindFile {
		return nil, fmt.Errorf("inode %d: %w", id, ErrNotAFile)
	}

	return b, nil
}

func (v *VFS) Open(ctx context.Context, id InodeID) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	_, b, err := v.dispatch(id)
	if err != nil {
		return fmt.Errorf("vfs.VFS.Open: %w", err)
	}

	if err := b.Open(ctx, id); err != nil {
		return fmt.Errorf("vfs.VFS.Open: %w", err)
	}

	return nil
}

func (v *VFS) Close(ctx context.Context, id InodeID) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	_, b, err := v.dispatch(id)
	if err != nil {
		return fmt.Errorf("vfs.VFS.Close: %w", err)
	}

	if err := b.Close(ctx, id); err != nil {
		return fmt.Errorf("vfs.VFS.Close: %w", err)
	}

	return nil
}

func (v *VFS) Stat(ctx context.Context, id InodeID) (Stat, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	_, b, err := v.dispatch(id)
	if err != nil {
		return Stat{}, fmt.Errorf("vfs.VFS.Stat: %w", err)
	}

	st, err := b.Stat(ctx, id)
	if err != nil {
		return Stat{}, fmt.Errorf("vfs.VFS.Stat: %w", err)
	}

	return st, nil
}

// Sync flushes every registered backend that buffers writes. All backends
// are attempted even if one fails.
func (v *VFS) Sync(ctx context.Context) error {
	const op = "vfs.VFS.Sync"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	v.mu.Lock()
	defer v.mu.Unlock()

	var errs []error
	for kind, b := range v.backends {
		s, ok := b.(Syncer)
		if !ok {
			continue
		}

		if err := s.Sync(ctx); err != nil {
			logger.Error("Failed to sync backend", slog.String("fs", kind.String()), slogext.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
