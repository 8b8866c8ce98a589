package repository

import (
	"context"
	"fmt"

	"github.com/S1riyS/vifs/internal/models"
	"github.com/S1riyS/vifs/pkg/database/postgresql"
)

type DirectoryRepository interface {
	CreateEntry(ctx context.Context, token string, parentIno int64, name string, ino int64) error
	GetEntries(ctx context.Context, token string, parentIno int64) ([]models.Dirent, error)
	Exists(ctx context.Context, token string, parentIno int64, name string) (bool, error)
}

type directoryRepository struct {
	db postgresql.Client
}

func NewDirectoryRepository(db postgresql.Client) DirectoryRepository {
	return &directoryRepository{db: db}
}

func (r *directoryRepository) CreateEntry(ctx context.Context, token string, parentIno int64, name string, ino int64) error {
	const op = "repository.directoryRepository.CreateEntry"

	query := `
		INSERT INTO directory_entries (token, parent_ino, name, ino)
		VALUES ($1, $2, $3, $4)
	`

	db := postgresql.GetDBClient(ctx, r.db)
	_, err := db.Exec(ctx, query, token, parentIno, name, ino)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// GetEntries lists a directory in creation order.
func (r *directoryRepository) GetEntries(ctx context.Context, token string, parentIno int64) ([]models.Dirent, error) {
	const op = "repository.directoryRepository.GetEntries"

	query := `
		SELECT de.name, de.ino, i.type
		FROM directory_entries de
		JOIN inodes i ON de.token = i.token AND de.ino = i.ino
		WHERE de.token = $1 AND de.parent_ino = $2
		ORDER BY de.id
	`

	db := postgresql.GetDBClient(ctx, r.db)
	rows, err := db.Query(ctx, query, token, parentIno)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var entries []models.Dirent
	for rows.Next() {
		var dirent models.Dirent
		var nodeType int16
		err := rows.Scan(&dirent.Name, &dirent.Ino, &nodeType)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		dirent.Type = models.NodeType(nodeType)
		entries = append(entries, dirent)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return entries, nil
}

func (r *directoryRepository) Exists(ctx context.Context, token string, parentIno int64, name string) (bool, error) {
	const op = "repository.directoryRepository.Exists"

	query := `
		SELECT EXISTS(
			SELECT 1
			FROM directory_entries
			WHERE token = $1 AND parent_ino = $2 AND name = $3
		)
	`

	var exists bool
	db := postgresql.GetDBClient(ctx, r.db)
	err := db.QueryRow(ctx, query, token, parentIno, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}
