// Package afs implements the AFS block filesystem as a vfs backend.
//
// A volume is laid out as [descriptor][metadata table][root directory][free
// space]. Blocks are handed out by a bump allocator over the descriptor's
// next_free cursor and are never reclaimed; there is no delete operation.
// A file's data occupies one contiguous run of blocks starting at the
// record's starting_block. When a file has to grow and its run does not end
// at the cursor, the whole file moves to a fresh run and the old blocks are
// left orphaned.
//
// Create and Write persist several structures one after another (block,
// metadata record, parent directory, descriptor) with no journaling. If the
// process stops part way, whatever reached the medium last wins.
package afs

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/S1riyS/vifs/internal/cache"
	"github.com/S1riyS/vifs/internal/disk"
	"github.com/S1riyS/vifs/internal/vfs"
	"github.com/S1riyS/vifs/pkg/logging"
	"github.com/S1riyS/vifs/pkg/logging/slogext"
)

type Options struct {
	// CacheMaxBytes bounds the block cache; 0 means unbounded.
	CacheMaxBytes int64
}

// Engine serves one AFS volume at a time. The mount source is the name the
// opener resolves to a medium, normally an image path.
type Engine struct {
	mu     sync.Mutex
	alloc  vfs.Allocator
	opener disk.Opener
	opts   Options
	vol    *volume
}

func New(alloc vfs.Allocator, opener disk.Opener, opts Options) *Engine {
	return &Engine{
		alloc:  alloc,
		opener: opener,
		opts:   opts,
	}
}

func (e *Engine) mounted() (*volume, error) {
	if e.vol == nil {
		return nil, vfs.ErrNotMounted
	}
	return e.vol, nil
}

func (e *Engine) Mount(ctx context.Context, mountID vfs.InodeID, path, source string) error {
	const op = "afs.Engine.Mount"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.vol != nil {
		return fmt.Errorf("%s: %s already mounted at %s: %w", op, e.vol.source, e.vol.path, vfs.ErrAlreadyMounted)
	}

	medium, err := e.opener.Open(source)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	vol, err := loadVolume(medium, e.alloc, e.opts)
	if err != nil {
		medium.Close()
		logger.Error("Failed to load volume", slog.String("source", source), slogext.Err(err))
		return fmt.Errorf("%s: %s: %w", op, source, err)
	}

	vol.source = source
	vol.path = path
	vol.mountID = mountID
	vol.bind(mountID, vol.desc.RootDirectory)
	e.vol = vol

	logger.Info("Mounted AFS volume",
		slog.String("source", source),
		slog.String("path", path),
		slog.Uint64("block_size", uint64(vol.desc.BlockSize)),
		slog.Uint64("block_count", uint64(vol.desc.BlockCount)),
		slog.Uint64("next_free", uint64(vol.desc.NextFree)),
	)

	return nil
}

// Unmount flushes the cache, syncs and closes the medium.
func (e *Engine) Unmount(ctx context.Context) error {
	const op = "afs.Engine.Unmount"

	e.mu.Lock()
	defer e.mu.Unlock()

	vol, err := e.mounted()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	syncErr := vol.sync()
	closeErr := vol.medium.Close()
	e.vol = nil

	if syncErr != nil {
		return fmt.Errorf("%s: %w", op, syncErr)
	}
	if closeErr != nil {
		return fmt.Errorf("%s: %w", op, closeErr)
	}

	logging.GetLoggerFromContextWithOp(ctx, op).Info("Unmounted AFS volume", slog.String("source", vol.source))

	return nil
}

func (e *Engine) Sync(ctx context.Context) error {
	const op = "afs.Engine.Sync"

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.vol == nil {
		return nil
	}

	if err := e.vol.sync(); err != nil {
		logging.GetLoggerFromContextWithOp(ctx, op).Error("Failed to sync volume", slogext.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DirList binds every child of a directory to an inode, if not already
// bound, and returns the children in creation order.
func (e *Engine) DirList(ctx context.Context, id vfs.InodeID) ([]vfs.DirEntry, error) {
	const op = "afs.Engine.DirList"

	e.mu.Lock()
	defer e.mu.Unlock()

	vol, err := e.mounted()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	b, err := vol.lookup(id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if vol.records[b.block].Type != BlockDirectory {
		return nil, fmt.Errorf("%s: block %d: %w", op, b.block, vfs.ErrNotADirectory)
	}

	dir, err := vol.readDirectory(b.block)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	children := dir.Children()
	entries := make([]vfs.DirEntry, 0, len(children))
	for _, child := range children {
		if child >= vol.desc.BlockCount || !vol.records[child].InUse {
			return nil, fmt.Errorf("%s: directory %d lists block %d: %w", op, b.block, child, vfs.ErrInvalidVolume)
		}

		entries = append(entries, vfs.DirEntry{
			Name: vol.records[child].NameString(),
			ID:   vol.bindBlock(child),
		})
	}

	return entries, nil
}

func (e *Engine) Create(ctx context.Context, parent vfs.InodeID, kind vfs.InodeKind, path, name string) (vfs.InodeID, error) {
	const op = "afs.Engine.Create"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	e.mu.Lock()
	defer e.mu.Unlock()

	vol, err := e.mounted()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var blockType BlockType
	switch kind {
	case vfs.KindFile:
		blockType = BlockFile
	case vfs.KindDirectory:
		blockType = BlockDirectory
	default:
		return 0, fmt.Errorf("%s: %s: %w", op, kind, vfs.ErrUnknown)
	}

	named := Record{Type: blockType, InUse: true}
	if err := named.SetName(name); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	pb, err := vol.lookup(parent)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if vol.records[pb.block].Type != BlockDirectory {
		return 0, fmt.Errorf("%s: block %d: %w", op, pb.block, vfs.ErrNotADirectory)
	}

	dir, err := vol.readDirectory(pb.block)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if dir.NextIndex >= DirectoryCapacity {
		return 0, fmt.Errorf("%s: %s: %w", op, path, vfs.ErrDirectoryFull)
	}

	block, err := vol.allocate(1)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	named.ID = block
	vol.records[block] = named
	rec := &vol.records[block]

	var payload []byte
	if blockType == BlockDirectory {
		empty := NewDirectoryBlock()
		if payload, err = EncodeDirectory(&empty); err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		payload = make([]byte, vol.desc.BlockSize)
		rec.StartingBlock = block
		rec.NumBlocks = 1
	}

	dir.Append(block)

	inode := e.alloc.Allocate(kind, vfs.FSAFS)
	vol.bind(inode.ID, block)

	if err := vol.writeBlock(block, payload); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if err := vol.writeRecord(block); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if err := vol.writeDirectory(pb.block, &dir); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if err := vol.writeDescriptor(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	logger.Debug("Created block",
		slog.String("path", path),
		slog.String("name", name),
		slog.String("type", blockType.String()),
		slog.Uint64("block", uint64(block)),
		slog.Uint64("inode", uint64(inode.ID)),
	)

	return inode.ID, nil
}

func (e *Engine) file(vol *volume, id vfs.InodeID) (*Record, error) {
	b, err := vol.lookup(id)
	if err != nil {
		return nil, err
	}

	rec := &vol.records[b.block]
	if rec.Type != BlockFile {
		return nil, fmt.Errorf("block %d is %s: %w", b.block, rec.Type, vfs.ErrNotAFile)
	}

	return rec, nil
}

// Write stores data at offset. Offset 0 replaces the whole file, so the
// file size becomes len(data); any other offset overwrites or extends.
func (e *Engine) Write(ctx context.Context, id vfs.InodeID, data []byte, offset uint64) (int, error) {
	const op = "afs.Engine.Write"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	e.mu.Lock()
	defer e.mu.Unlock()

	vol, err := e.mounted()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	rec, err := e.file(vol, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	// file_size is a u32, so nothing may end past it.
	if offset > math.MaxUint32 || uint64(len(data)) > math.MaxUint32-offset {
		return 0, fmt.Errorf("%s: offset %d length %d: %w", op, offset, len(data), vfs.ErrVolumeFull)
	}

	size := offset + uint64(len(data))
	if offset != 0 && uint64(rec.FileSize) > size {
		size = uint64(rec.FileSize)
	}
	oldSize := uint64(rec.FileSize)

	bs := uint64(vol.desc.BlockSize)
	need := uint32(1 + size/bs)

	if need > rec.NumBlocks {
		if err := e.grow(ctx, vol, rec, need, offset != 0); err != nil {
			logger.Debug("Failed to grow file", slog.Uint64("block", uint64(rec.ID)), slogext.Err(err))
			return 0, fmt.Errorf("%s: %w", op, err)
		}
	}

	rec.FileSize = uint32(size)

	if err := vol.writeRecord(rec.ID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if err := vol.writeDescriptor(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	// Bytes left over from a truncating write must not show through a gap.
	if offset > oldSize {
		if err := vol.writeData(rec.StartingBlock, make([]byte, offset-oldSize), oldSize); err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
	}
	if err := vol.writeData(rec.StartingBlock, data, offset); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return len(data), nil
}

// grow makes the file's run need blocks long, in place when the run ends at
// the allocation cursor and by moving it otherwise. keep copies the current
// contents into a moved run.
func (e *Engine) grow(ctx context.Context, vol *volume, rec *Record, need uint32, keep bool) error {
	const op = "afs.Engine.grow"

	var first, count uint32
	if rec.StartingBlock+rec.NumBlocks == vol.desc.NextFree {
		count = need - rec.NumBlocks
		start, err := vol.allocate(count)
		if err != nil {
			return err
		}
		first = start
	} else {
		start, err := vol.allocate(need)
		if err != nil {
			return err
		}
		first, count = start, need

		if keep {
			used := uint32(1 + uint64(rec.FileSize)/uint64(vol.desc.BlockSize))
			if used > rec.NumBlocks {
				used = rec.NumBlocks
			}
			if err := vol.copyBlocks(rec.StartingBlock, start, used); err != nil {
				return err
			}
		}

		logging.GetLoggerFromContextWithOp(ctx, op).Debug("Relocated file",
			slog.Uint64("block", uint64(rec.ID)),
			slog.Uint64("from", uint64(rec.StartingBlock)),
			slog.Uint64("to", uint64(start)),
			slog.Uint64("blocks", uint64(need)),
		)

		rec.StartingBlock = start
	}

	for b := first; b < first+count; b++ {
		vol.records[b] = Record{ID: b, Type: BlockFile, InUse: true}
		if err := vol.writeRecord(b); err != nil {
			return err
		}
	}

	rec.NumBlocks = need
	return nil
}

// Read copies file bytes from offset into buf. Reads are clamped to the file
// size; reading at or past the end returns 0.
func (e *Engine) Read(ctx context.Context, id vfs.InodeID, buf []byte, offset uint64) (int, error) {
	const op = "afs.Engine.Read"

	e.mu.Lock()
	defer e.mu.Unlock()

	vol, err := e.mounted()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	rec, err := e.file(vol, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	size := uint64(rec.FileSize)
	if offset >= size {
		return 0, nil
	}

	n := uint64(len(buf))
	if n > size-offset {
		n = size - offset
	}

	if err := vol.readData(rec.StartingBlock, buf[:n], offset); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return int(n), nil
}

func (e *Engine) Stat(ctx context.Context, id vfs.InodeID) (vfs.Stat, error) {
	const op = "afs.Engine.Stat"

	e.mu.Lock()
	defer e.mu.Unlock()

	vol, err := e.mounted()
	if err != nil {
		return vfs.Stat{}, fmt.Errorf("%s: %w", op, err)
	}

	b, err := vol.lookup(id)
	if err != nil {
		return vfs.Stat{}, fmt.Errorf("%s: %w", op, err)
	}

	rec := vol.records[b.block]
	kind := vfs.KindFile
	if rec.Type == BlockDirectory {
		kind = vfs.KindDirectory
	}

	return vfs.Stat{ID: id, Kind: kind, Size: uint64(rec.FileSize)}, nil
}

func (e *Engine) Open(ctx context.Context, id vfs.InodeID) error {
	return e.setOpen(id, true)
}

func (e *Engine) Close(ctx context.Context, id vfs.InodeID) error {
	return e.setOpen(id, false)
}

func (e *Engine) setOpen(id vfs.InodeID, open bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	vol, err := e.mounted()
	if err != nil {
		return fmt.Errorf("afs.Engine.setOpen: %w", err)
	}

	b, err := vol.lookup(id)
	if err != nil {
		return fmt.Errorf("afs.Engine.setOpen: %w", err)
	}

	b.open = open
	return nil
}

// Descriptor returns the in-memory copy of the drive descriptor.
func (e *Engine) Descriptor() (Descriptor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	vol, err := e.mounted()
	if err != nil {
		return Descriptor{}, err
	}

	return vol.desc, nil
}

// Records returns the metadata records accepted by keep, in block order. A
// nil keep returns every record.
func (e *Engine) Records(keep func(Record) bool) ([]Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	vol, err := e.mounted()
	if err != nil {
		return nil, err
	}

	var out []Record
	for _, r := range vol.records {
		if keep == nil || keep(r) {
			out = append(out, r)
		}
	}

	return out, nil
}

// InUse keeps records of allocated file and directory blocks.
func InUse(r Record) bool {
	return r.InUse && (r.Type == BlockFile || r.Type == BlockDirectory)
}

func (e *Engine) RootDirectory() (DirectoryBlock, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	vol, err := e.mounted()
	if err != nil {
		return DirectoryBlock{}, err
	}

	return vol.readDirectory(vol.desc.RootDirectory)
}

// Block reports the block bound to an inode.
func (e *Engine) Block(id vfs.InodeID) (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	vol, err := e.mounted()
	if err != nil {
		return 0, err
	}

	b, err := vol.lookup(id)
	if err != nil {
		return 0, err
	}

	return b.block, nil
}

func (e *Engine) CacheStats() (cache.Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	vol, err := e.mounted()
	if err != nil {
		return cache.Stats{}, err
	}

	return vol.cache.Stats(), nil
}

func (e *Engine) CacheEntries() ([]cache.Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	vol, err := e.mounted()
	if err != nil {
		return nil, err
	}

	return vol.cache.Entries(), nil
}
