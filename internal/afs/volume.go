package afs

import (
	"fmt"

	"github.com/S1riyS/vifs/internal/cache"
	"github.com/S1riyS/vifs/internal/disk"
	"github.com/S1riyS/vifs/internal/vfs"
)

type binding struct {
	block uint32
	open  bool
}

// volume is the in-memory state of one mounted AFS image. All block I/O
// goes through the cache.
type volume struct {
	source  string
	path    string
	mountID vfs.InodeID

	medium disk.Medium
	cache  *cache.Cache
	alloc  vfs.Allocator

	desc    Descriptor
	records []Record

	inodes map[vfs.InodeID]*binding
	blocks map[uint32]vfs.InodeID
}

func loadVolume(medium disk.Medium, alloc vfs.Allocator, opts Options) (*volume, error) {
	c := cache.New(medium, cache.Options{MaxBytes: opts.CacheMaxBytes})

	if medium.Size() < DescriptorSize {
		return nil, fmt.Errorf("medium of %d bytes: %w", medium.Size(), vfs.ErrInvalidVolume)
	}

	raw := make([]byte, DescriptorSize)
	if _, err := c.ReadAt(raw, 0); err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}

	desc, err := DecodeDescriptor(raw)
	if err != nil {
		return nil, err
	}
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", vfs.ErrInvalidVolume, err)
	}

	need := blockOffset(desc.BlockCount, desc.BlockSize)
	if tableEnd := recordOffset(desc.BlockCount); tableEnd > need {
		need = tableEnd
	}
	if medium.Size() < need {
		return nil, fmt.Errorf("%d blocks of %d bytes need %d bytes, medium has %d: %w",
			desc.BlockCount, desc.BlockSize, need, medium.Size(), vfs.ErrInvalidVolume)
	}

	raw = make([]byte, RecordSize*int(desc.BlockCount))
	if _, err := c.ReadAt(raw, recordOffset(0)); err != nil {
		return nil, fmt.Errorf("read metadata table: %w", err)
	}

	records, err := DecodeRecords(raw)
	if err != nil {
		return nil, err
	}

	v := &volume{
		medium:  medium,
		cache:   c,
		alloc:   alloc,
		desc:    desc,
		records: records,
		inodes:  make(map[vfs.InodeID]*binding),
		blocks:  make(map[uint32]vfs.InodeID),
	}

	if v.records[desc.RootDirectory].Type != BlockDirectory {
		return nil, fmt.Errorf("root block %d is %s: %w", desc.RootDirectory, v.records[desc.RootDirectory].Type, vfs.ErrInvalidVolume)
	}
	if _, err := v.readDirectory(desc.RootDirectory); err != nil {
		return nil, err
	}

	return v, nil
}

func (v *volume) bind(id vfs.InodeID, block uint32) {
	v.inodes[id] = &binding{block: block}
	v.blocks[block] = id
}

// bindBlock returns the inode bound to block, allocating one on first use.
func (v *volume) bindBlock(block uint32) vfs.InodeID {
	if id, ok := v.blocks[block]; ok {
		return id
	}

	kind := vfs.KindFile
	if v.records[block].Type == BlockDirectory {
		kind = vfs.KindDirectory
	}

	inode := v.alloc.Allocate(kind, vfs.FSAFS)
	v.bind(inode.ID, block)

	return inode.ID
}

func (v *volume) lookup(id vfs.InodeID) (*binding, error) {
	b, ok := v.inodes[id]
	if !ok {
		return nil, fmt.Errorf("inode %d: %w", id, vfs.ErrFileNotFound)
	}
	return b, nil
}

// allocate hands out n consecutive blocks at the cursor.
func (v *volume) allocate(n uint32) (uint32, error) {
	if n == 0 || uint64(v.desc.NextFree)+uint64(n) > uint64(v.desc.BlockCount) {
		return 0, fmt.Errorf("%d blocks requested, %d free: %w", n, v.desc.BlockCount-v.desc.NextFree, vfs.ErrVolumeFull)
	}

	first := v.desc.NextFree
	v.desc.NextFree += n

	return first, nil
}

func (v *volume) writeDescriptor() error {
	data, err := EncodeDescriptor(&v.desc)
	if err != nil {
		return err
	}

	if _, err := v.cache.WriteAt(data, 0); err != nil {
		return fmt.Errorf("write descriptor: %w", err)
	}
	return nil
}

func (v *volume) writeRecord(block uint32) error {
	data, err := EncodeRecord(&v.records[block])
	if err != nil {
		return err
	}

	if _, err := v.cache.WriteAt(data, recordOffset(block)); err != nil {
		return fmt.Errorf("write record %d: %w", block, err)
	}
	return nil
}

func (v *volume) readDirectory(block uint32) (DirectoryBlock, error) {
	raw := make([]byte, DirectoryBlockSize)
	if _, err := v.cache.ReadAt(raw, blockOffset(block, v.desc.BlockSize)); err != nil {
		return DirectoryBlock{}, fmt.Errorf("read directory block %d: %w", block, err)
	}

	dir, err := DecodeDirectory(raw)
	if err != nil {
		return DirectoryBlock{}, err
	}

	if dir.Type != uint32(BlockDirectory) || dir.NextIndex > DirectoryCapacity {
		return DirectoryBlock{}, fmt.Errorf("block %d is not a directory block: %w", block, vfs.ErrInvalidVolume)
	}

	return dir, nil
}

func (v *volume) writeDirectory(block uint32, dir *DirectoryBlock) error {
	data, err := EncodeDirectory(dir)
	if err != nil {
		return err
	}

	if _, err := v.cache.WriteAt(data, blockOffset(block, v.desc.BlockSize)); err != nil {
		return fmt.Errorf("write directory block %d: %w", block, err)
	}
	return nil
}

// File data is always moved in whole blocks so every cache entry for a
// data block covers exactly that block.

func (v *volume) readBlock(block uint32) ([]byte, error) {
	buf := make([]byte, v.desc.BlockSize)
	if _, err := v.cache.ReadAt(buf, blockOffset(block, v.desc.BlockSize)); err != nil {
		return nil, fmt.Errorf("read block %d: %w", block, err)
	}
	return buf, nil
}

func (v *volume) writeBlock(block uint32, buf []byte) error {
	if _, err := v.cache.WriteAt(buf, blockOffset(block, v.desc.BlockSize)); err != nil {
		return fmt.Errorf("write block %d: %w", block, err)
	}
	return nil
}

// readData copies len(out) bytes starting offset bytes into the run that
// begins at start.
func (v *volume) readData(start uint32, out []byte, offset uint64) error {
	bs := uint64(v.desc.BlockSize)

	for len(out) > 0 {
		block := start + uint32(offset/bs)
		within := offset % bs

		buf, err := v.readBlock(block)
		if err != nil {
			return err
		}

		n := copy(out, buf[within:])
		out = out[n:]
		offset += uint64(n)
	}

	return nil
}

// writeData stores data starting offset bytes into the run that begins at
// start. Partially covered blocks are read first.
func (v *volume) writeData(start uint32, data []byte, offset uint64) error {
	bs := uint64(v.desc.BlockSize)

	for len(data) > 0 {
		block := start + uint32(offset/bs)
		within := offset % bs

		var buf []byte
		if within == 0 && uint64(len(data)) >= bs {
			buf = make([]byte, bs)
		} else {
			var err error
			if buf, err = v.readBlock(block); err != nil {
				return err
			}
		}

		n := copy(buf[within:], data)
		if err := v.writeBlock(block, buf); err != nil {
			return err
		}

		data = data[n:]
		offset += uint64(n)
	}

	return nil
}

// copyBlocks duplicates count blocks from one run to another.
func (v *volume) copyBlocks(from, to, count uint32) error {
	for i := uint32(0); i < count; i++ {
		buf, err := v.readBlock(from + i)
		if err != nil {
			return err
		}
		if err := v.writeBlock(to+i, buf); err != nil {
			return err
		}
	}
	return nil
}

func (v *volume) sync() error {
	if err := v.cache.FlushAll(); err != nil {
		return err
	}
	return v.medium.Sync()
}
