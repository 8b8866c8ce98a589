// Package app assembles the vfs and its backends from config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/afero"

	"github.com/S1riyS/vifs/internal/afs"
	"github.com/S1riyS/vifs/internal/config"
	"github.com/S1riyS/vifs/internal/disk"
	"github.com/S1riyS/vifs/internal/pgfs"
	"github.com/S1riyS/vifs/internal/rfs"
	"github.com/S1riyS/vifs/internal/vfs"
	"github.com/S1riyS/vifs/pkg/database/postgresql"
	"github.com/S1riyS/vifs/pkg/logging"
	"github.com/S1riyS/vifs/pkg/logging/slogext"
)

type App struct {
	Config *config.Config
	VFS    *vfs.VFS
	AFS    *afs.Engine
	RFS    *rfs.FS
	PGFS   *pgfs.FS

	db *pgxpool.Pool
}

// New registers every backend and mounts them as configured: the AFS image
// at volume.mount_path, the in-memory tree at volume.proc_path and, when the
// database is enabled, the postgres tree at volume.pg_path.
func New(ctx context.Context, cfg *config.Config, fs afero.Fs) (*App, error) {
	const op = "app.New"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	v := vfs.New()
	a := &App{
		Config: cfg,
		VFS:    v,
		AFS:    afs.New(v.Inodes(), disk.NewFileOpener(fs), afs.Options{CacheMaxBytes: cfg.Cache.MaxBytes}),
		RFS:    rfs.New(v.Inodes()),
	}

	if err := v.Register(vfs.FSAFS, a.AFS); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := v.Register(vfs.FSRFS, a.RFS); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := v.Mount(ctx, vfs.FSAFS, cfg.Volume.Image, cfg.Volume.MountPath); err != nil {
		logger.Error("Failed to mount volume", slog.String("image", cfg.Volume.Image), slogext.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.Volume.ProcPath != "" {
		if err := a.mountAt(ctx, vfs.FSRFS, "", cfg.Volume.ProcPath); err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if cfg.Database.Enabled {
		if err := a.mountDatabase(ctx); err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return a, nil
}

func (a *App) mountDatabase(ctx context.Context) error {
	pool, err := postgresql.NewClient(ctx, a.Config.Database.DSN())
	if err != nil {
		return err
	}
	a.db = pool

	if err := postgresql.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	a.PGFS = pgfs.NewFromClient(a.VFS.Inodes(), pool)
	if err := a.VFS.Register(vfs.FSPGFS, a.PGFS); err != nil {
		return err
	}

	return a.mountAt(ctx, vfs.FSPGFS, a.Config.Volume.PGToken, a.Config.Volume.PGPath)
}

// mountAt mounts kind at path, creating the last path component as a
// directory first if it does not exist.
func (a *App) mountAt(ctx context.Context, kind vfs.FSKind, source, path string) error {
	_, err := a.VFS.Lookup(ctx, path)
	if errors.Is(err, vfs.ErrPathNotFound) {
		dir, name := vfs.Split(path)
		_, err = a.VFS.Mkdir(ctx, dir, name)
	}
	if err != nil {
		return err
	}

	return a.VFS.Mount(ctx, kind, source, path)
}

// Close flushes every backend, unmounts the volume and releases the
// database pool.
func (a *App) Close(ctx context.Context) error {
	const op = "app.App.Close"

	var errs []error
	if err := a.VFS.Sync(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.AFS.Unmount(ctx); err != nil && !errors.Is(err, vfs.ErrNotMounted) {
		errs = append(errs, err)
	}
	if a.db != nil {
		a.db.Close()
	}

	if err := errors.Join(errs...); err != nil {
		logging.GetLoggerFromContextWithOp(ctx, op).Error("Failed to close", slogext.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Format creates the image file at cfg.Volume.Image and bootstraps it.
func Format(ctx context.Context, cfg *config.Config, fs afero.Fs) (afs.Layout, error) {
	const op = "app.Format"

	img, err := disk.Create(fs, cfg.Volume.Image, cfg.Volume.Size)
	if err != nil {
		return afs.Layout{}, fmt.Errorf("%s: %w", op, err)
	}
	defer img.Close()

	layout, err := afs.Bootstrap(img, uint64(cfg.Volume.Size), cfg.Volume.BlockSize)
	if err != nil {
		return afs.Layout{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := img.Sync(); err != nil {
		return afs.Layout{}, fmt.Errorf("%s: %w", op, err)
	}

	logging.GetLoggerFromContextWithOp(ctx, op).Info("Formatted volume",
		slog.String("image", cfg.Volume.Image),
		slog.Uint64("block_count", uint64(layout.BlockCount)),
		slog.Uint64("root_directory", uint64(layout.RootDirectory)),
	)

	return layout, nil
}

// Bootstrap formats an existing image in place, keeping its size.
func Bootstrap(ctx context.Context, cfg *config.Config, fs afero.Fs) (afs.Layout, error) {
	const op = "app.Bootstrap"

	img, err := disk.Open(fs, cfg.Volume.Image)
	if err != nil {
		return afs.Layout{}, fmt.Errorf("%s: %w", op, err)
	}
	defer img.Close()

	layout, err := afs.Bootstrap(img, uint64(img.Size()), cfg.Volume.BlockSize)
	if err != nil {
		return afs.Layout{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := img.Sync(); err != nil {
		return afs.Layout{}, fmt.Errorf("%s: %w", op, err)
	}

	logging.GetLoggerFromContextWithOp(ctx, op).Info("Bootstrapped volume",
		slog.String("image", cfg.Volume.Image),
		slog.Uint64("block_count", uint64(layout.BlockCount)),
	)

	return layout, nil
}
