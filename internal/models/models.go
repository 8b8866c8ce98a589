package models

import "time"

type NodeType int16

const (
	NodeTypeDir  NodeType = 0
	NodeTypeFile NodeType = 1
)

// NodeMeta describes one inode on the wire.
type NodeMeta struct {
	Ino        int64    `json:"ino"`
	Type       NodeType `json:"type"`
	FS         uint8    `json:"fs"`
	MountPoint bool     `json:"mount_point"`
	Size       int64    `json:"size"`
}

type Dirent struct {
	Name string   `json:"name"`
	Ino  int64    `json:"ino"`
	Type NodeType `json:"type"`
}

type MountPoint struct {
	Path string `json:"path"`
	Ino  int64  `json:"ino"`
	FS   uint8  `json:"fs"`
}

// Inode is a row of the inodes table.
type Inode struct {
	Ino   int64
	Token string
	Type  NodeType
	Size  int64
}

// Filesystem is a row of the filesystems table; one per mount token.
type Filesystem struct {
	Token     string
	RootIno   int64
	NextIno   int64
	CreatedAt time.Time
}
