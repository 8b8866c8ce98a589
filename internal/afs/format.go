package afs

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/S1riyS/vifs/internal/vfs"
)

// On-disk structures are little-endian and packed; encoding/binary writes
// struct fields back to back, which matches the layout byte for byte.

const (
	Version           = 2
	DefaultBlockSize  = 4096
	NameSize          = 50
	MaxNameLen        = NameSize - 1
	DirectoryCapacity = 256

	DescriptorSize     = 61
	RecordSize         = 96
	DirectoryBlockSize = 1064
)

var Magic = [4]byte{'A', 'F', 'S', ' '}

type BlockType uint8

const (
	BlockUnknown BlockType = iota
	BlockFile
	BlockDirectory
	BlockMeta
	BlockSystem
	BlockNotSet
)

func (t BlockType) String() string {
	switch t {
	case BlockUnknown:
		return "unknown"
	case BlockFile:
		return "file"
	case BlockDirectory:
		return "directory"
	case BlockMeta:
		return "meta"
	case BlockSystem:
		return "system"
	case BlockNotSet:
		return "not_set"
	default:
		return fmt.Sprintf("block_type(%d)", uint8(t))
	}
}

// Descriptor lives at byte 0 of the volume.
type Descriptor struct {
	Magic         [4]byte
	Version       uint8
	Size          uint64
	BlockSize     uint32
	BlockCount    uint32
	RootDirectory uint32
	NextFree      uint32 // allocation cursor, only ever moves forward
	Reserved      [8]uint32
}

func (d Descriptor) Validate() error {
	switch {
	case d.Magic != Magic:
		return fmt.Errorf("bad magic %q", d.Magic[:])
	case d.Version != Version:
		return fmt.Errorf("unsupported version %d", d.Version)
	case d.BlockSize < DirectoryBlockSize:
		return fmt.Errorf("block size %d smaller than a directory block", d.BlockSize)
	case d.RootDirectory >= d.BlockCount:
		return fmt.Errorf("root directory %d outside %d blocks", d.RootDirectory, d.BlockCount)
	case d.NextFree > d.BlockCount:
		return fmt.Errorf("next free %d past %d blocks", d.NextFree, d.BlockCount)
	}

	return nil
}

// Record is one entry of the block metadata table, indexed by block id.
type Record struct {
	ID            uint32
	Type          BlockType
	Name          [NameSize]byte
	FileSize      uint32
	StartingBlock uint32
	NumBlocks     uint32
	InUse         bool
	Reserved      [7]uint32
}

func (r Record) NameString() string {
	if i := bytes.IndexByte(r.Name[:], 0); i >= 0 {
		return string(r.Name[:i])
	}
	return string(r.Name[:])
}

func (r *Record) SetName(name string) error {
	if len(name) > MaxNameLen {
		return fmt.Errorf("name %q is %d bytes, max %d: %w", name, len(name), MaxNameLen, vfs.ErrNameTooLong)
	}

	r.Name = [NameSize]byte{}
	copy(r.Name[:], name)
	return nil
}

// DirectoryBlock holds child block ids in creation order. Names and sizes
// live in the children's metadata records.
type DirectoryBlock struct {
	Type      uint32
	Index     [DirectoryCapacity]uint32
	NextIndex uint32
	Reserved  [8]uint32
}

func NewDirectoryBlock() DirectoryBlock {
	return DirectoryBlock{Type: uint32(BlockDirectory)}
}

// Children returns the used part of the index.
func (d *DirectoryBlock) Children() []uint32 {
	n := d.NextIndex
	if n > DirectoryCapacity {
		n = DirectoryCapacity
	}
	return d.Index[:n]
}

func (d *DirectoryBlock) Append(block uint32) bool {
	if d.NextIndex >= DirectoryCapacity {
		return false
	}

	d.Index[d.NextIndex] = block
	d.NextIndex++
	return true
}

func encode(v any) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte, v any) error {
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, v); err != nil {
		return fmt.Errorf("failed to decode %T: %w", v, err)
	}
	return nil
}

func EncodeDescriptor(d *Descriptor) ([]byte, error) { return encode(d) }

func DecodeDescriptor(data []byte) (Descriptor, error) {
	var d Descriptor
	err := decode(data, &d)
	return d, err
}

func EncodeRecord(r *Record) ([]byte, error) { return encode(r) }

func DecodeRecord(data []byte) (Record, error) {
	var r Record
	err := decode(data, &r)
	return r, err
}

// DecodeRecords splits a raw metadata table into records.
func DecodeRecords(data []byte) ([]Record, error) {
	if len(data)%RecordSize != 0 {
		return nil, fmt.Errorf("metadata table of %d bytes is not a multiple of %d", len(data), RecordSize)
	}

	records := make([]Record, len(data)/RecordSize)
	if err := decode(data, records); err != nil {
		return nil, err
	}

	return records, nil
}

func EncodeRecords(records []Record) ([]byte, error) { return encode(records) }

func EncodeDirectory(d *DirectoryBlock) ([]byte, error) { return encode(d) }

func DecodeDirectory(data []byte) (DirectoryBlock, error) {
	var d DirectoryBlock
	err := decode(data, &d)
	return d, err
}

func recordOffset(block uint32) int64 {
	return DescriptorSize + RecordSize*int64(block)
}

func blockOffset(block, blockSize uint32) int64 {
	return int64(block) * int64(blockSize)
}
