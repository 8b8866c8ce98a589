package vfs

import "context"

// Backend is the operation table every filesystem implementation provides.
// Inode ids passed in are always ones the backend bound itself, either the
// mount point handed to Mount or ids it allocated from the shared arena.
type Backend interface {
	Mount(ctx context.Context, mountID InodeID, path, source string) error
	Create(ctx context.Context, parent InodeID, kind InodeKind, path, name string) (InodeID, error)
	Read(ctx context.Context, id InodeID, buf []byte, offset uint64) (int, error)
	Write(ctx context.Context, id InodeID, data []byte, offset uint64) (int, error)
	Open(ctx context.Context, id InodeID) error
	Close(ctx context.Context, id InodeID) error
	Stat(ctx context.Context, id InodeID) (Stat, error)
	DirList(ctx context.Context, id InodeID) ([]DirEntry, error)
}

// Syncer is implemented by backends that buffer writes.
type Syncer interface {
	Sync(ctx context.Context) error
}

// Allocator hands out inode ids. Backends receive one at construction.
type Allocator interface {
	Allocate(kind InodeKind, fs FSKind) Inode
}
