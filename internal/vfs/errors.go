package vfs

import "errors"

var (
	ErrUnknown           = errors.New("unknown error")
	ErrOutOfMemory       = errors.New("out of memory")
	ErrPathNotFound      = errors.New("path not found")
	ErrAlreadyMounted    = errors.New("already mounted")
	ErrNotADirectory     = errors.New("not a directory")
	ErrNotAFile          = errors.New("not a file")
	ErrUnknownFilesystem = errors.New("unknown filesystem")
	ErrFileNotFound      = errors.New("file not found")

	ErrExists            = errors.New("file exists")
	ErrDirectoryFull     = errors.New("directory full")
	ErrVolumeFull        = errors.New("volume full")
	ErrNameTooLong       = errors.New("name too long")
	ErrInvalidName       = errors.New("invalid name")
	ErrInvalidVolume     = errors.New("invalid volume")
	ErrNotMounted        = errors.New("not mounted")
	ErrAlreadyRegistered = errors.New("filesystem already registered")
)
