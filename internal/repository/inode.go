package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/S1riyS/vifs/internal/models"
	"github.com/S1riyS/vifs/pkg/database/postgresql"
)

type InodeRepository interface {
	Get(ctx context.Context, token string, ino int64) (*models.Inode, error)
	Create(ctx context.Context, inode *models.Inode) error
	UpdateSize(ctx context.Context, token string, ino int64, size int64) error
}

type inodeRepository struct {
	db postgresql.Client
}

func NewInodeRepository(db postgresql.Client) InodeRepository {
	return &inodeRepository{db: db}
}

func (r *inodeRepository) Get(ctx context.Context, token string, ino int64) (*models.Inode, error) {
	const op = "repository.inodeRepository.Get"

	query := `
		SELECT ino, token, type, size
		FROM inodes
		WHERE token = $1 AND ino = $2
	`

	var inode models.Inode
	db := postgresql.GetDBClient(ctx, r.db)
	err := db.QueryRow(ctx, query, token, ino).Scan(
		&inode.Ino,
		&inode.Token,
		&inode.Type,
		&inode.Size,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &inode, nil
}

func (r *inodeRepository) Create(ctx context.Context, inode *models.Inode) error {
	const op = "repository.inodeRepository.Create"

	query := `
		INSERT INTO inodes (ino, token, type, size)
		VALUES ($1, $2, $3, $4)
	`

	db := postgresql.GetDBClient(ctx, r.db)
	_, err := db.Exec(ctx, query,
		inode.Ino,
		inode.Token,
		int16(inode.Type),
		inode.Size,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *inodeRepository) UpdateSize(ctx context.Context, token string, ino int64, size int64) error {
	const op = "repository.inodeRepository.UpdateSize"

	query := `
		UPDATE inodes
		SET size = $1, updated_at = NOW()
		WHERE token = $2 AND ino = $3
	`

	db := postgresql.GetDBClient(ctx, r.db)
	_, err := db.Exec(ctx, query, size, token, ino)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
