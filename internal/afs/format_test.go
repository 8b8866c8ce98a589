package afs

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/S1riyS/vifs/internal/vfs"
)

func TestStructSizes(t *testing.T) {
	assert.Equal(t, DescriptorSize, binary.Size(Descriptor{}))
	assert.Equal(t, RecordSize, binary.Size(Record{}))
	assert.Equal(t, DirectoryBlockSize, binary.Size(DirectoryBlock{}))
}

func TestDescriptorEncoding(t *testing.T) {
	d := Descriptor{
		Magic:         Magic,
		Version:       Version,
		Size:          1 << 20,
		BlockSize:     4096,
		BlockCount:    256,
		RootDirectory: 8,
		NextFree:      9,
	}

	raw, err := EncodeDescriptor(&d)
	require.NoError(t, err)
	require.Len(t, raw, DescriptorSize)

	assert.Equal(t, "AFS ", string(raw[:4]))
	assert.Equal(t, byte(2), raw[4])
	assert.Equal(t, uint64(1<<20), binary.LittleEndian.Uint64(raw[5:13]))
	assert.Equal(t, uint32(4096), binary.LittleEndian.Uint32(raw[13:17]))
	assert.Equal(t, uint32(9), binary.LittleEndian.Uint32(raw[25:29]))

	back, err := DecodeDescriptor(raw)
	require.NoError(t, err)
	assert.Equal(t, d, back)
	assert.NoError(t, back.Validate())
}

func TestRecordEncoding(t *testing.T) {
	r := Record{ID: 12, Type: BlockFile, FileSize: 5, StartingBlock: 12, NumBlocks: 1, InUse: true}
	require.NoError(t, r.SetName("hello"))

	raw, err := EncodeRecord(&r)
	require.NoError(t, err)
	require.Len(t, raw, RecordSize)

	assert.Equal(t, byte(BlockFile), raw[4])
	assert.Equal(t, "hello", string(raw[5:10]))
	assert.Equal(t, byte(0), raw[10])
	assert.Equal(t, byte(1), raw[67], "in_use follows name and three u32 fields")

	back, err := DecodeRecord(raw)
	require.NoError(t, err)
	assert.Equal(t, "hello", back.NameString())
	assert.Equal(t, r, back)
}

func TestSetNameLimit(t *testing.T) {
	var r Record

	require.NoError(t, r.SetName(string(make([]byte, MaxNameLen))))
	assert.ErrorIs(t, r.SetName(string(make([]byte, MaxNameLen+1))), vfs.ErrNameTooLong)

	require.NoError(t, r.SetName("short"))
	assert.Equal(t, "short", r.NameString())
}

func TestDirectoryAppend(t *testing.T) {
	d := NewDirectoryBlock()
	for i := 0; i < DirectoryCapacity; i++ {
		require.True(t, d.Append(uint32(100+i)))
	}
	assert.False(t, d.Append(1))
	assert.Len(t, d.Children(), DirectoryCapacity)

	raw, err := EncodeDirectory(&d)
	require.NoError(t, err)
	back, err := DecodeDirectory(raw)
	require.NoError(t, err)
	assert.Equal(t, uint32(DirectoryCapacity), back.NextIndex)
	assert.Equal(t, uint32(100), back.Index[0])
}

func TestValidateRejects(t *testing.T) {
	good := Descriptor{Magic: Magic, Version: Version, BlockSize: 4096, BlockCount: 10, RootDirectory: 2, NextFree: 3}
	require.NoError(t, good.Validate())

	bad := good
	bad.Magic = [4]byte{'E', 'X', 'T', '2'}
	assert.Error(t, bad.Validate())

	bad = good
	bad.Version = 1
	assert.Error(t, bad.Validate())

	bad = good
	bad.NextFree = 11
	assert.Error(t, bad.Validate())

	bad = good
	bad.BlockSize = 512
	assert.Error(t, bad.Validate())
}

func TestPlanLayout(t *testing.T) {
	l, err := PlanLayout(1<<20, 4096)
	require.NoError(t, err)
	assert.Equal(t, Layout{BlockSize: 4096, BlockCount: 256, MetaBlocks: 7, RootDirectory: 8, NextFree: 9}, l)

	l, err = PlanLayout(1<<20, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(DefaultBlockSize), l.BlockSize)

	_, err = PlanLayout(4096*2, 4096)
	assert.ErrorIs(t, err, vfs.ErrInvalidVolume)

	_, err = PlanLayout(1<<20, 512)
	assert.ErrorIs(t, err, vfs.ErrInvalidVolume)
}
