package vfs

import "fmt"

type InodeID uint64

// RootID is the id of "/", the only inode that exists before any mount.
const RootID InodeID = 1

type InodeKind uint8

const (
	KindFile      InodeKind = 1
	KindDirectory InodeKind = 2
)

func (k InodeKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// FSKind tags the backend that owns an inode.
type FSKind uint8

const (
	FSNone FSKind = iota
	FSRFS
	FSAFS
	FSPGFS
)

func (k FSKind) String() string {
	switch k {
	case FSNone:
		return "none"
	case FSRFS:
		return "rfs"
	case FSAFS:
		return "afs"
	case FSPGFS:
		return "pgfs"
	default:
		return fmt.Sprintf("fs(%d)", uint8(k))
	}
}

type Inode struct {
	ID         InodeID
	Kind       InodeKind
	FS         FSKind
	MountPoint bool
}

func (i Inode) IsDir() bool {
	return i.Kind == KindDirectory
}

type DirEntry struct {
	Name string  `json:"name" yaml:"name"`
	ID   InodeID `json:"id" yaml:"id"`
}

type Stat struct {
	ID   InodeID   `json:"id" yaml:"id"`
	Kind InodeKind `json:"kind" yaml:"kind"`
	Size uint64    `json:"size" yaml:"size"`
}

type MountPoint struct {
	Path string  `json:"path" yaml:"path"`
	ID   InodeID `json:"id" yaml:"id"`
	FS   FSKind  `json:"fs" yaml:"fs"`
}
