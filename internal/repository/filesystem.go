package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/S1riyS/vifs/internal/models"
	"github.com/S1riyS/vifs/pkg/database/postgresql"
	"github.com/S1riyS/vifs/pkg/logging"
	"github.com/S1riyS/vifs/pkg/logging/slogext"
)

// RootIno is the ino of every filesystem's root directory.
const RootIno = 1000

type FilesystemRepository interface {
	Get(ctx context.Context, token string) (*models.Filesystem, error)
	GetOrCreate(ctx context.Context, token string) (*models.Filesystem, error)
	AllocateIno(ctx context.Context, token string) (int64, error)
}

type filesystemRepository struct {
	db postgresql.Client
}

func NewFilesystemRepository(db postgresql.Client) FilesystemRepository {
	return &filesystemRepository{db: db}
}

func (r *filesystemRepository) Get(ctx context.Context, token string) (*models.Filesystem, error) {
	const op = "repository.filesystemRepository.Get"

	query := `
		SELECT token, root_ino, next_ino, created_at
		FROM filesystems
		WHERE token = $1
	`

	var fs models.Filesystem
	db := postgresql.GetDBClient(ctx, r.db)
	err := db.QueryRow(ctx, query, token).Scan(
		&fs.Token,
		&fs.RootIno,
		&fs.NextIno,
		&fs.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &fs, nil
}

// GetOrCreate returns the filesystem for token, creating it together with
// its root directory inode on first use.
func (r *filesystemRepository) GetOrCreate(ctx context.Context, token string) (*models.Filesystem, error) {
	const op = "repository.filesystemRepository.GetOrCreate"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	fs, err := r.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	if fs != nil {
		return fs, nil
	}

	err = postgresql.WithTransaction(ctx, r.db, func(ctx context.Context) error {
		db := postgresql.GetDBClient(ctx, r.db)

		fsQuery := `
			INSERT INTO filesystems (token, root_ino, next_ino)
			VALUES ($1, $2, $3)
			ON CONFLICT (token) DO NOTHING
		`
		tag, err := db.Exec(ctx, fsQuery, token, RootIno, RootIno+1)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			// created concurrently
			return nil
		}

		inodeQuery := `
			INSERT INTO inodes (token, ino, type, size)
			VALUES ($1, $2, $3, 0)
		`
		_, err = db.Exec(ctx, inodeQuery, token, RootIno, int16(models.NodeTypeDir))
		return err
	})

	if err != nil {
		logger.Error("Failed to create filesystem", slogext.Err(err), "token", token)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return r.Get(ctx, token)
}

// AllocateIno reserves the next ino of a filesystem.
func (r *filesystemRepository) AllocateIno(ctx context.Context, token string) (int64, error) {
	const op = "repository.filesystemRepository.AllocateIno"

	query := `
		UPDATE filesystems
		SET next_ino = next_ino + 1
		WHERE token = $1
		RETURNING next_ino - 1
	`

	var ino int64
	db := postgresql.GetDBClient(ctx, r.db)
	err := db.QueryRow(ctx, query, token).Scan(&ino)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return ino, nil
}
