package app_test

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/S1riyS/vifs/internal/app"
	"github.com/S1riyS/vifs/internal/vfs"
)

func newApp(t *testing.T) (*app.App, afero.Fs) {
	t.Helper()

	ctx := context.Background()
	fs := afero.NewMemMapFs()
	cfg := testConfig()

	_, err := app.Format(ctx, cfg, fs)
	require.NoError(t, err)

	a, err := app.New(ctx, cfg, fs)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(ctx) })

	return a, fs
}

func TestWriteReadFile(t *testing.T) {
	ctx := context.Background()
	a, _ := newApp(t)

	_, err := app.WriteFile(ctx, a.VFS, "/note", []byte("first version"))
	require.NoError(t, err)
	_, err = app.WriteFile(ctx, a.VFS, "/note", []byte("second"))
	require.NoError(t, err)

	data, err := app.ReadFile(ctx, a.VFS, "/note")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestCopyDir(t *testing.T) {
	ctx := context.Background()
	a, fs := newApp(t)

	big := strings.Repeat("x", 4096+10)
	require.NoError(t, afero.WriteFile(fs, "/host/a.txt", []byte("alpha"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/host/sub/b.txt", []byte(big), 0o644))

	_, err := a.VFS.Mkdir(ctx, "/", "dst")
	require.NoError(t, err)
	require.NoError(t, app.CopyDir(ctx, a.VFS, fs, "/host", "/dst"))

	data, err := app.ReadFile(ctx, a.VFS, "/dst/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))

	data, err = app.ReadFile(ctx, a.VFS, "/dst/sub/b.txt")
	require.NoError(t, err)
	assert.Equal(t, big, string(data))

	// copying again reuses the directories and replaces the files
	require.NoError(t, app.CopyDir(ctx, a.VFS, fs, "/host", "/dst"))
	entries, err := a.VFS.List(ctx, mustLookup(t, a, "/dst").ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestCopyFileMissingSource(t *testing.T) {
	a, fs := newApp(t)

	err := app.CopyFile(context.Background(), a.VFS, fs, "nope.txt", "/nope.txt")
	assert.Error(t, err)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	a, _ := newApp(t)

	require.NoError(t, app.Seed(ctx, a.VFS))

	data, err := app.ReadFile(ctx, a.VFS, "/hello")
	require.NoError(t, err)
	assert.Equal(t, "World of AFS!", string(data))

	share := mustLookup(t, a, "/usr/share")
	entries, err := a.VFS.List(ctx, share.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "fonts", entries[0].Name)
	assert.Equal(t, "test_data", entries[1].Name)
}

func mustLookup(t *testing.T, a *app.App, path string) vfs.Inode {
	t.Helper()

	inode, err := a.VFS.Lookup(context.Background(), path)
	require.NoError(t, err)
	return inode
}

func TestSeedProc(t *testing.T) {
	ctx := context.Background()
	a, _ := newApp(t)

	require.NoError(t, app.SeedProc(ctx, a.VFS, "/proc"))

	data, err := app.ReadFile(ctx, a.VFS, "/proc/build/number")
	require.NoError(t, err)
	assert.Equal(t, "1984", string(data))

	node, err := a.VFS.Lookup(ctx, "/proc/magic")
	require.NoError(t, err)
	assert.Equal(t, vfs.FSRFS, node.FS)

	proc, err := a.VFS.Lookup(ctx, "/proc")
	require.NoError(t, err)
	entries, err := a.VFS.List(ctx, proc.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"build", "test.txt", "test_2.txt", "magic"}, names)
}
