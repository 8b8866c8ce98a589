package afs

import (
	"fmt"
	"io"

	"github.com/S1riyS/vifs/internal/vfs"
)

// Layout is where Bootstrap placed the fixed structures of a fresh volume.
type Layout struct {
	BlockSize     uint32 `json:"block_size" yaml:"block_size"`
	BlockCount    uint32 `json:"block_count" yaml:"block_count"`
	MetaBlocks    uint32 `json:"meta_blocks" yaml:"meta_blocks"`
	RootDirectory uint32 `json:"root_directory" yaml:"root_directory"`
	NextFree      uint32 `json:"next_free" yaml:"next_free"`
}

// PlanLayout computes the canonical
// [descriptor][metadata table][root directory][free space] layout for a
// volume of size bytes.
func PlanLayout(size uint64, blockSize uint32) (Layout, error) {
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	if blockSize < DirectoryBlockSize {
		return Layout{}, fmt.Errorf("block size %d below %d: %w", blockSize, DirectoryBlockSize, vfs.ErrInvalidVolume)
	}

	count := size / uint64(blockSize)
	if count > uint64(^uint32(0)) {
		return Layout{}, fmt.Errorf("%d blocks overflow the block id space: %w", count, vfs.ErrInvalidVolume)
	}

	meta := (RecordSize*count)/uint64(blockSize) + 1
	l := Layout{
		BlockSize:     blockSize,
		BlockCount:    uint32(count),
		MetaBlocks:    uint32(meta),
		RootDirectory: uint32(meta + 1),
		NextFree:      uint32(meta + 2),
	}

	if uint64(l.NextFree) > count {
		return Layout{}, fmt.Errorf("volume of %d bytes cannot hold %d metadata blocks and a root directory: %w",
			size, meta, vfs.ErrInvalidVolume)
	}

	return l, nil
}

// Bootstrap formats a volume. It writes straight to w, so it must not be
// used on a medium that is currently mounted.
func Bootstrap(w io.WriterAt, size uint64, blockSize uint32) (Layout, error) {
	const op = "afs.Bootstrap"

	l, err := PlanLayout(size, blockSize)
	if err != nil {
		return Layout{}, fmt.Errorf("%s: %w", op, err)
	}

	desc := Descriptor{
		Magic:         Magic,
		Version:       Version,
		Size:          size,
		BlockSize:     l.BlockSize,
		BlockCount:    l.BlockCount,
		RootDirectory: l.RootDirectory,
		NextFree:      l.NextFree,
	}

	records := make([]Record, l.BlockCount)
	for i := range records {
		r := &records[i]
		r.ID = uint32(i)

		switch {
		case i == 0:
			r.Type = BlockSystem
			r.InUse = true
		case uint32(i) <= l.MetaBlocks:
			r.Type = BlockMeta
			r.InUse = true
		case uint32(i) == l.RootDirectory:
			r.Type = BlockDirectory
			r.InUse = true
			if err := r.SetName("/"); err != nil {
				return Layout{}, fmt.Errorf("%s: %w", op, err)
			}
		default:
			r.Type = BlockNotSet
		}
	}

	root := NewDirectoryBlock()

	writes := []struct {
		what string
		off  int64
		enc  func() ([]byte, error)
	}{
		{"descriptor", 0, func() ([]byte, error) { return EncodeDescriptor(&desc) }},
		{"metadata table", recordOffset(0), func() ([]byte, error) { return EncodeRecords(records) }},
		{"root directory", blockOffset(l.RootDirectory, l.BlockSize), func() ([]byte, error) { return EncodeDirectory(&root) }},
	}

	for _, wr := range writes {
		data, err := wr.enc()
		if err != nil {
			return Layout{}, fmt.Errorf("%s: %s: %w", op, wr.what, err)
		}
		if _, err := w.WriteAt(data, wr.off); err != nil {
			return Layout{}, fmt.Errorf("%s: write %s: %w", op, wr.what, err)
		}
	}

	return l, nil
}
