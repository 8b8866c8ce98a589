// Package pgfs is a backend that keeps its tree in PostgreSQL. Each mount
// is one filesystem row identified by the mount source, its token.
package pgfs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/S1riyS/vifs/internal/models"
	"github.com/S1riyS/vifs/internal/repository"
	"github.com/S1riyS/vifs/internal/vfs"
	"github.com/S1riyS/vifs/pkg/database/postgresql"
	"github.com/S1riyS/vifs/pkg/logging"
	"github.com/S1riyS/vifs/pkg/logging/slogext"
)

// ref names a row of the inodes table.
type ref struct {
	token string
	ino   int64
}

type FS struct {
	mu    sync.Mutex
	alloc vfs.Allocator
	tx    postgresql.Transactor

	fsRepo      repository.FilesystemRepository
	inodeRepo   repository.InodeRepository
	dirRepo     repository.DirectoryRepository
	contentRepo repository.ContentRepository

	refs map[vfs.InodeID]ref
	ids  map[ref]vfs.InodeID
}

func New(
	alloc vfs.Allocator,
	tx postgresql.Transactor,
	fsRepo repository.FilesystemRepository,
	inodeRepo repository.InodeRepository,
	dirRepo repository.DirectoryRepository,
	contentRepo repository.ContentRepository,
) *FS {
	return &FS{
		alloc:       alloc,
		tx:          tx,
		fsRepo:      fsRepo,
		inodeRepo:   inodeRepo,
		dirRepo:     dirRepo,
		contentRepo: contentRepo,
		refs:        make(map[vfs.InodeID]ref),
		ids:         make(map[ref]vfs.InodeID),
	}
}

// NewFromClient wires the pgx repositories over db.
func NewFromClient(alloc vfs.Allocator, db postgresql.Client) *FS {
	return New(
		alloc,
		postgresql.NewTransactor(db),
		repository.NewFilesystemRepository(db),
		repository.NewInodeRepository(db),
		repository.NewDirectoryRepository(db),
		repository.NewContentRepository(db),
	)
}

func (f *FS) bind(id vfs.InodeID, r ref) {
	f.refs[id] = r
	f.ids[r] = id
}

// bindLazily returns the vfs inode for r, allocating one the first time r
// is seen.
func (f *FS) bindLazily(r ref, t models.NodeType) vfs.InodeID {
	if id, ok := f.ids[r]; ok {
		return id
	}
	inode := f.alloc.Allocate(kindOf(t), vfs.FSPGFS)
	f.bind(inode.ID, r)
	return inode.ID
}

func (f *FS) lookup(id vfs.InodeID) (ref, error) {
	r, ok := f.refs[id]
	if !ok {
		return ref{}, fmt.Errorf("inode %d: %w", id, vfs.ErrFileNotFound)
	}
	return r, nil
}

// inode loads the row behind id.
func (f *FS) inode(ctx context.Context, id vfs.InodeID) (ref, *models.Inode, error) {
	r, err := f.lookup(id)
	if err != nil {
		return ref{}, nil, err
	}

	inode, err := f.inodeRepo.Get(ctx, r.token, r.ino)
	if err != nil {
		return ref{}, nil, err
	}
	if inode == nil {
		return ref{}, nil, fmt.Errorf("ino %d: %w", r.ino, vfs.ErrFileNotFound)
	}

	return r, inode, nil
}

func (f *FS) file(ctx context.Context, id vfs.InodeID) (ref, *models.Inode, error) {
	r, inode, err := f.inode(ctx, id)
	if err != nil {
		return ref{}, nil, err
	}
	if inode.Type != models.NodeTypeFile {
		return ref{}, nil, fmt.Errorf("ino %d: %w", r.ino, vfs.ErrNotAFile)
	}
	return r, inode, nil
}

// Mount binds mountID to the root of the filesystem named by source,
// creating the filesystem on first use.
func (f *FS) Mount(ctx context.Context, mountID vfs.InodeID, path, source string) error {
	const op = "pgfs.FS.Mount"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	f.mu.Lock()
	defer f.mu.Unlock()

	if source == "" {
		return fmt.Errorf("%s: empty token: %w", op, vfs.ErrInvalidVolume)
	}
	if _, ok := f.refs[mountID]; ok {
		return fmt.Errorf("%s: inode %d: %w", op, mountID, vfs.ErrAlreadyMounted)
	}

	fs, err := f.fsRepo.GetOrCreate(ctx, source)
	if err != nil {
		logger.Error("Failed to get or create filesystem", slogext.Err(err), slog.String("token", source))
		return fmt.Errorf("%s: %w", op, err)
	}

	if fs == nil {
		return fmt.Errorf("%s: token %q: %w", op, source, vfs.ErrFileNotFound)
	}

	root := ref{token: source, ino: fs.RootIno}
	if _, ok := f.ids[root]; ok {
		return fmt.Errorf("%s: token %q: %w", op, source, vfs.ErrAlreadyMounted)
	}
	f.bind(mountID, root)

	logger.Info("Mounted database filesystem",
		slog.String("path", path),
		slog.String("token", source),
		slog.Int64("root_ino", fs.RootIno),
	)

	return nil
}

func (f *FS) Create(ctx context.Context, parent vfs.InodeID, kind vfs.InodeKind, path, name string) (vfs.InodeID, error) {
	const op = "pgfs.FS.Create"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Create",
		slog.Uint64("parent", uint64(parent)),
		slog.String("name", name),
		slog.String("kind", kind.String()),
	)

	f.mu.Lock()
	defer f.mu.Unlock()

	r, dir, err := f.inode(ctx, parent)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if dir.Type != models.NodeTypeDir {
		return 0, fmt.Errorf("%s: %w", op, vfs.ErrNotADirectory)
	}

	exists, err := f.dirRepo.Exists(ctx, r.token, r.ino, name)
	if err != nil {
		logger.Error("Failed to check if entry exists", slogext.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		return 0, fmt.Errorf("%s: %q: %w", op, name, vfs.ErrExists)
	}

	nodeType := typeOf(kind)
	var ino int64

	err = f.tx.WithTransaction(ctx, func(ctx context.Context) error {
		ino, err = f.fsRepo.AllocateIno(ctx, r.token)
		if err != nil {
			return err
		}

		inode := &models.Inode{Ino: ino, Token: r.token, Type: nodeType}
		if err := f.inodeRepo.Create(ctx, inode); err != nil {
			return err
		}

		if err := f.dirRepo.CreateEntry(ctx, r.token, r.ino, name, ino); err != nil {
			return err
		}

		if nodeType == models.NodeTypeFile {
			return f.contentRepo.Set(ctx, r.token, ino, []byte{})
		}

		return nil
	})
	if err != nil {
		if postgresql.IsUniqueViolation(err) {
			logger.Debug("Entry already exists (unique violation)", slog.String("name", name))
			return 0, fmt.Errorf("%s: %q: %w", op, name, vfs.ErrExists)
		}
		logger.Error("Failed to create entry", slogext.Err(err), slog.String("name", name))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id := f.bindLazily(ref{token: r.token, ino: ino}, nodeType)

	logger.Debug("Created entry", slog.String("name", name), slog.Int64("ino", ino))

	return id, nil
}

// Read copies from offset up to the end of the file.
func (f *FS) Read(ctx context.Context, id vfs.InodeID, buf []byte, offset uint64) (int, error) {
	const op = "pgfs.FS.Read"

	f.mu.Lock()
	defer f.mu.Unlock()

	r, inode, err := f.file(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	available := inode.Size - int64(offset)
	if offset >= uint64(inode.Size) || available <= 0 {
		return 0, nil
	}

	toRead := int64(len(buf))
	if toRead > available {
		toRead = available
	}

	data, err := f.contentRepo.GetRange(ctx, r.token, r.ino, int64(offset), toRead)
	if err != nil {
		logging.GetLoggerFromContextWithOp(ctx, op).Error("Failed to read content", slogext.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return copy(buf, data), nil
}

// Write stores data at offset, growing the file and zero-filling any gap.
// Bytes past the end of data are kept.
func (f *FS) Write(ctx context.Context, id vfs.InodeID, data []byte, offset uint64) (int, error) {
	const op = "pgfs.FS.Write"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	f.mu.Lock()
	defer f.mu.Unlock()

	r, _, err := f.file(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	err = f.tx.WithTransaction(ctx, func(ctx context.Context) error {
		current, err := f.contentRepo.Get(ctx, r.token, r.ino)
		if err != nil {
			return err
		}

		end := offset + uint64(len(data))
		if end > uint64(len(current)) {
			extended := make([]byte, end)
			copy(extended, current)
			current = extended
		}
		copy(current[offset:], data)

		if err := f.contentRepo.Set(ctx, r.token, r.ino, current); err != nil {
			return err
		}

		return f.inodeRepo.UpdateSize(ctx, r.token, r.ino, int64(len(current)))
	})
	if err != nil {
		logger.Error("Failed to write content", slogext.Err(err), slog.Int64("ino", r.ino))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return len(data), nil
}

func (f *FS) Open(ctx context.Context, id vfs.InodeID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, _, err := f.inode(ctx, id); err != nil {
		return fmt.Errorf("pgfs.FS.Open: %w", err)
	}
	return nil
}

func (f *FS) Close(ctx context.Context, id vfs.InodeID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.lookup(id); err != nil {
		return fmt.Errorf("pgfs.FS.Close: %w", err)
	}
	return nil
}

// Stat reports the byte length of files and the entry count of directories.
func (f *FS) Stat(ctx context.Context, id vfs.InodeID) (vfs.Stat, error) {
	const op = "pgfs.FS.Stat"

	f.mu.Lock()
	defer f.mu.Unlock()

	r, inode, err := f.inode(ctx, id)
	if err != nil {
		return vfs.Stat{}, fmt.Errorf("%s: %w", op, err)
	}

	size := uint64(inode.Size)
	if inode.Type == models.NodeTypeDir {
		entries, err := f.dirRepo.GetEntries(ctx, r.token, r.ino)
		if err != nil {
			return vfs.Stat{}, fmt.Errorf("%s: %w", op, err)
		}
		size = uint64(len(entries))
	}

	return vfs.Stat{ID: id, Kind: kindOf(inode.Type), Size: size}, nil
}

func (f *FS) DirList(ctx context.Context, id vfs.InodeID) ([]vfs.DirEntry, error) {
	const op = "pgfs.FS.DirList"

	f.mu.Lock()
	defer f.mu.Unlock()

	r, inode, err := f.inode(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if inode.Type != models.NodeTypeDir {
		return nil, fmt.Errorf("%s: ino %d: %w", op, r.ino, vfs.ErrNotADirectory)
	}

	dirents, err := f.dirRepo.GetEntries(ctx, r.token, r.ino)
	if err != nil {
		logging.GetLoggerFromContextWithOp(ctx, op).Error("Failed to list directory", slogext.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	entries := make([]vfs.DirEntry, 0, len(dirents))
	for _, d := range dirents {
		child := f.bindLazily(ref{token: r.token, ino: d.Ino}, d.Type)
		entries = append(entries, vfs.DirEntry{Name: d.Name, ID: child})
	}

	return entries, nil
}

// Ino returns the database ino bound to id.
func (f *FS) Ino(id vfs.InodeID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, err := f.lookup(id)
	if err != nil {
		return 0, err
	}
	return r.ino, nil
}

func kindOf(t models.NodeType) vfs.InodeKind {
	if t == models.NodeTypeDir {
		return vfs.KindDirectory
	}
	return vfs.KindFile
}

func typeOf(k vfs.InodeKind) models.NodeType {
	if k == vfs.KindDirectory {
		return models.NodeTypeDir
	}
	return models.NodeTypeFile
}
