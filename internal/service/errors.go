package service

import (
	"errors"
	"fmt"

	"github.com/S1riyS/vifs/internal/pkg/kerrors"
	"github.com/S1riyS/vifs/internal/vfs"
)

type ServiceError struct {
	Code    int64
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

func (e *ServiceError) GetCode() int64 {
	return e.Code
}

var errnos = []struct {
	err  error
	code int64
}{
	{vfs.ErrPathNotFound, kerrors.ENOENT},
	{vfs.ErrFileNotFound, kerrors.ENOENT},
	{vfs.ErrExists, kerrors.EEXIST},
	{vfs.ErrNotADirectory, kerrors.ENOTDIR},
	{vfs.ErrNotAFile, kerrors.EISDIR},
	{vfs.ErrInvalidName, kerrors.EINVAL},
	{vfs.ErrInvalidVolume, kerrors.EINVAL},
	{vfs.ErrNameTooLong, kerrors.ENAMETOOLONG},
	{vfs.ErrDirectoryFull, kerrors.ENOSPC},
	{vfs.ErrVolumeFull, kerrors.ENOSPC},
	{vfs.ErrOutOfMemory, kerrors.ENOMEM},
	{vfs.ErrAlreadyMounted, kerrors.EBUSY},
	{vfs.ErrAlreadyRegistered, kerrors.EBUSY},
	{vfs.ErrUnknownFilesystem, kerrors.ENODEV},
	{vfs.ErrNotMounted, kerrors.ENXIO},
	{vfs.ErrUnknown, kerrors.EIO},
}

// mapError turns a vfs sentinel into a ServiceError. Anything else is
// returned wrapped and reported as an internal failure.
func mapError(op string, err error) error {
	for _, e := range errnos {
		if errors.Is(err, e.err) {
			return &ServiceError{Code: e.code, Message: err.Error()}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
