package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/S1riyS/vifs/internal/vfs"
	"github.com/S1riyS/vifs/pkg/logging"
)

// ReadFile returns the whole content of the file at path.
func ReadFile(ctx context.Context, v *vfs.VFS, path string) ([]byte, error) {
	inode, err := v.Lookup(ctx, path)
	if err != nil {
		return nil, err
	}

	st, err := v.Stat(ctx, inode.ID)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, st.Size)
	n, err := v.Read(ctx, inode.ID, buf, 0)
	if err != nil {
		return nil, err
	}

	return buf[:n], nil
}

// WriteFile stores data as the content of the file at path, creating it
// when missing.
func WriteFile(ctx context.Context, v *vfs.VFS, path string, data []byte) (vfs.InodeID, error) {
	dir, name := vfs.Split(path)

	id, err := v.Create(ctx, vfs.KindFile, dir, name)
	if errors.Is(err, vfs.ErrExists) {
		var inode vfs.Inode
		inode, err = v.Lookup(ctx, path)
		id = inode.ID
	}
	if err != nil {
		return 0, err
	}

	if _, err := v.Write(ctx, id, data, 0); err != nil {
		return 0, err
	}

	return id, nil
}

// CopyFile copies a host file to path.
func CopyFile(ctx context.Context, v *vfs.VFS, host afero.Fs, src, path string) error {
	data, err := afero.ReadFile(host, src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}

	if _, err := WriteFile(ctx, v, path, data); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, path, err)
	}

	logging.GetLoggerFromContextWithOp(ctx, "app.CopyFile").Debug("Copied file",
		slog.String("src", src),
		slog.String("dst", path),
		slog.Int("bytes", len(data)),
	)

	return nil
}

// CopyDir recursively copies the contents of a host directory into the
// directory at path. Directories that already exist are reused.
func CopyDir(ctx context.Context, v *vfs.VFS, host afero.Fs, src, path string) error {
	infos, err := afero.ReadDir(host, src)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", src, err)
	}

	for _, info := range infos {
		from := filepath.Join(src, info.Name())
		to := vfs.Join(path, info.Name())

		switch {
		case info.IsDir():
			if err := mkdirExisting(ctx, v, to); err != nil {
				return fmt.Errorf("mkdir %s: %w", to, err)
			}
			if err := CopyDir(ctx, v, host, from, to); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			if err := CopyFile(ctx, v, host, from, to); err != nil {
				return err
			}
		}
	}

	return nil
}

func mkdirExisting(ctx context.Context, v *vfs.VFS, path string) error {
	dir, name := vfs.Split(path)

	_, err := v.Mkdir(ctx, dir, name)
	if errors.Is(err, vfs.ErrExists) {
		inode, lookupErr := v.Lookup(ctx, path)
		if lookupErr != nil {
			return lookupErr
		}
		if !inode.IsDir() {
			return err
		}
		return nil
	}

	return err
}

// Seed fills a fresh volume with a small sample tree.
func Seed(ctx context.Context, v *vfs.VFS) error {
	if _, err := WriteFile(ctx, v, "/hello", []byte("World of AFS!")); err != nil {
		return err
	}

	for _, dir := range []string{"/bin", "/etc", "/usr", "/usr/share", "/usr/share/fonts", "/usr/share/test_data"} {
		if err := mkdirExisting(ctx, v, dir); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	return nil
}

// SeedProc fills the in-memory tree mounted at dir with a few files and a
// nested directory.
func SeedProc(ctx context.Context, v *vfs.VFS, dir string) error {
	files := []struct {
		path string
		data string
	}{
		{"test.txt", "Hello, world!"},
		{"test_2.txt", "Another testing file.\nMulti-line?\nWooho!\n"},
		{"magic", "NCC-1701-D"},
		{"build/number", "1984"},
	}

	if err := mkdirExisting(ctx, v, vfs.Join(dir, "build")); err != nil {
		return fmt.Errorf("mkdir %s: %w", vfs.Join(dir, "build"), err)
	}

	for _, f := range files {
		p := vfs.Join(dir, f.path)
		if _, err := WriteFile(ctx, v, p, []byte(f.data)); err != nil {
			return fmt.Errorf("write %s: %w", p, err)
		}
	}

	return nil
}
