package service

import (
	"context"
	"log/slog"

	"github.com/S1riyS/vifs/internal/models"
	"github.com/S1riyS/vifs/internal/pkg/kerrors"
	"github.com/S1riyS/vifs/internal/vfs"
	"github.com/S1riyS/vifs/pkg/logging"
	"github.com/S1riyS/vifs/pkg/logging/slogext"
)

type FileSystemService interface {
	Lookup(ctx context.Context, path string) (*models.NodeMeta, error)
	List(ctx context.Context, path string) ([]models.Dirent, error)
	Create(ctx context.Context, path, name string) (*models.NodeMeta, error)
	Mkdir(ctx context.Context, path, name string) (*models.NodeMeta, error)
	Read(ctx context.Context, ino int64, buffer []byte, offset int64) (int64, error)
	Write(ctx context.Context, ino int64, data []byte, offset int64) (int64, error)
	Stat(ctx context.Context, ino int64) (*models.NodeMeta, error)
	Mounts(ctx context.Context) []models.MountPoint
	Sync(ctx context.Context) error
}

type fileSystemService struct {
	vfs *vfs.VFS
}

func NewFileSystemService(v *vfs.VFS) FileSystemService {
	return &fileSystemService{vfs: v}
}

func (s *fileSystemService) meta(ctx context.Context, inode vfs.Inode) (*models.NodeMeta, error) {
	st, err := s.vfs.Stat(ctx, inode.ID)
	if err != nil {
		return nil, err
	}

	return &models.NodeMeta{
		Ino:        int64(inode.ID),
		Type:       nodeType(inode.Kind),
		FS:         uint8(inode.FS),
		MountPoint: inode.MountPoint,
		Size:       int64(st.Size),
	}, nil
}

func (s *fileSystemService) Lookup(ctx context.Context, path string) (*models.NodeMeta, error) {
	const op = "service.fileSystemService.Lookup"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Lookup", slog.String("path", path))

	inode, err := s.vfs.Lookup(ctx, path)
	if err != nil {
		logger.Debug("Lookup failed", slog.String("path", path), slogext.Err(err))
		return nil, mapError(op, err)
	}

	meta, err := s.meta(ctx, inode)
	if err != nil {
		logger.Error("Failed to stat inode", slogext.Err(err), slog.Uint64("ino", uint64(inode.ID)))
		return nil, mapError(op, err)
	}

	return meta, nil
}

func (s *fileSystemService) List(ctx context.Context, path string) ([]models.Dirent, error) {
	const op = "service.fileSystemService.List"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("List", slog.String("path", path))

	dir, err := s.vfs.Lookup(ctx, path)
	if err != nil {
		return nil, mapError(op, err)
	}

	entries, err := s.vfs.List(ctx, dir.ID)
	if err != nil {
		logger.Debug("List failed", slog.String("path", path), slogext.Err(err))
		return nil, mapError(op, err)
	}

	dirents := make([]models.Dirent, 0, len(entries))
	for _, e := range entries {
		child, err := s.vfs.LookupInode(e.ID)
		if err != nil {
			logger.Error("Entry has no inode", slog.String("name", e.Name), slogext.Err(err))
			return nil, mapError(op, err)
		}
		dirents = append(dirents, models.Dirent{
			Name: e.Name,
			Ino:  int64(e.ID),
			Type: nodeType(child.Kind),
		})
	}

	logger.Debug("Listed directory", slog.String("path", path), slog.Int("entries", len(dirents)))

	return dirents, nil
}

func (s *fileSystemService) create(ctx context.Context, op string, kind vfs.InodeKind, path, name string) (*models.NodeMeta, error) {
	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Create",
		slog.String("path", path),
		slog.String("name", name),
		slog.String("kind", kind.String()),
	)

	id, err := s.vfs.Create(ctx, kind, path, name)
	if err != nil {
		logger.Debug("Create failed", slog.String("path", path), slog.String("name", name), slogext.Err(err))
		return nil, mapError(op, err)
	}

	inode, err := s.vfs.LookupInode(id)
	if err != nil {
		return nil, mapError(op, err)
	}

	meta, err := s.meta(ctx, inode)
	if err != nil {
		return nil, mapError(op, err)
	}

	logger.Debug("Created", slog.String("path", vfs.Join(path, name)), slog.Int64("ino", meta.Ino))

	return meta, nil
}

func (s *fileSystemService) Create(ctx context.Context, path, name string) (*models.NodeMeta, error) {
	return s.create(ctx, "service.fileSystemService.Create", vfs.KindFile, path, name)
}

func (s *fileSystemService) Mkdir(ctx context.Context, path, name string) (*models.NodeMeta, error) {
	return s.create(ctx, "service.fileSystemService.Mkdir", vfs.KindDirectory, path, name)
}

func (s *fileSystemService) Read(ctx context.Context, ino int64, buffer []byte, offset int64) (int64, error) {
	const op = "service.fileSystemService.Read"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Read",
		slog.Int64("ino", ino),
		slog.Int64("offset", offset),
		slog.Int("buffer_len", len(buffer)),
	)

	if ino <= 0 {
		return 0, &ServiceError{Code: kerrors.EINVAL, Message: "invalid ino"}
	}
	if offset < 0 {
		logger.Debug("Invalid offset", slog.Int64("offset", offset))
		return 0, &ServiceError{Code: kerrors.EINVAL, Message: "invalid offset"}
	}

	n, err := s.vfs.Read(ctx, vfs.InodeID(ino), buffer, uint64(offset))
	if err != nil {
		logger.Debug("Read failed", slog.Int64("ino", ino), slogext.Err(err))
		return 0, mapError(op, err)
	}

	return int64(n), nil
}

func (s *fileSystemService) Write(ctx context.Context, ino int64, data []byte, offset int64) (int64, error) {
	const op = "service.fileSystemService.Write"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Write",
		slog.Int64("ino", ino),
		slog.Int64("offset", offset),
		slog.Int("length", len(data)),
	)

	if ino <= 0 {
		return 0, &ServiceError{Code: kerrors.EINVAL, Message: "invalid ino"}
	}
	if offset < 0 {
		logger.Debug("Invalid offset", slog.Int64("offset", offset))
		return 0, &ServiceError{Code: kerrors.EINVAL, Message: "invalid offset"}
	}

	n, err := s.vfs.Write(ctx, vfs.InodeID(ino), data, uint64(offset))
	if err != nil {
		logger.Error("Write failed", slog.Int64("ino", ino), slogext.Err(err))
		return 0, mapError(op, err)
	}

	logger.Debug("Write completed", slog.Int64("ino", ino), slog.Int("written", n))

	return int64(n), nil
}

func (s *fileSystemService) Stat(ctx context.Context, ino int64) (*models.NodeMeta, error) {
	const op = "service.fileSystemService.Stat"

	if ino <= 0 {
		return nil, &ServiceError{Code: kerrors.EINVAL, Message: "invalid ino"}
	}

	inode, err := s.vfs.LookupInode(vfs.InodeID(ino))
	if err != nil {
		return nil, mapError(op, err)
	}

	meta, err := s.meta(ctx, inode)
	if err != nil {
		logging.GetLoggerFromContextWithOp(ctx, op).Debug("Stat failed", slog.Int64("ino", ino), slogext.Err(err))
		return nil, mapError(op, err)
	}

	return meta, nil
}

func (s *fileSystemService) Mounts(ctx context.Context) []models.MountPoint {
	points := s.vfs.MountPoints()

	out := make([]models.MountPoint, 0, len(points))
	for _, p := range points {
		out = append(out, models.MountPoint{Path: p.Path, Ino: int64(p.ID), FS: uint8(p.FS)})
	}

	return out
}

func (s *fileSystemService) Sync(ctx context.Context) error {
	const op = "service.fileSystemService.Sync"

	if err := s.vfs.Sync(ctx); err != nil {
		logging.GetLoggerFromContextWithOp(ctx, op).Error("Failed to sync", slogext.Err(err))
		return mapError(op, err)
	}

	return nil
}

func nodeType(kind vfs.InodeKind) models.NodeType {
	if kind == vfs.KindDirectory {
		return models.NodeTypeDir
	}
	return models.NodeTypeFile
}
