package pgfs_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/S1riyS/vifs/internal/models"
	"github.com/S1riyS/vifs/internal/pgfs"
	"github.com/S1riyS/vifs/internal/repository"
	"github.com/S1riyS/vifs/internal/vfs"
	"github.com/S1riyS/vifs/pkg/database/postgresql"
)

type key struct {
	token string
	ino   int64
}

// store is an in-memory stand-in for the four tables.
type store struct {
	filesystems map[string]*models.Filesystem
	inodes      map[key]*models.Inode
	entries     map[key][]models.Dirent
	contents    map[key][]byte

	createEntryErr error
	txs            int
}

func newStore() *store {
	return &store{
		filesystems: make(map[string]*models.Filesystem),
		inodes:      make(map[key]*models.Inode),
		entries:     make(map[key][]models.Dirent),
		contents:    make(map[key][]byte),
	}
}

func (s *store) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	s.txs++
	return fn(ctx)
}

type fakeFilesystems struct{ s *store }

func (r fakeFilesystems) Get(ctx context.Context, token string) (*models.Filesystem, error) {
	fs, ok := r.s.filesystems[token]
	if !ok {
		return nil, nil
	}
	cp := *fs
	return &cp, nil
}

func (r fakeFilesystems) GetOrCreate(ctx context.Context, token string) (*models.Filesystem, error) {
	if _, ok := r.s.filesystems[token]; !ok {
		r.s.filesystems[token] = &models.Filesystem{
			Token:     token,
			RootIno:   repository.RootIno,
			NextIno:   repository.RootIno + 1,
			CreatedAt: time.Now(),
		}
		r.s.inodes[key{token, repository.RootIno}] = &models.Inode{
			Ino:   repository.RootIno,
			Token: token,
			Type:  models.NodeTypeDir,
		}
	}
	return r.Get(ctx, token)
}

func (r fakeFilesystems) AllocateIno(ctx context.Context, token string) (int64, error) {
	fs, ok := r.s.filesystems[token]
	if !ok {
		return 0, fmt.Errorf("no filesystem %q", token)
	}
	ino := fs.NextIno
	fs.NextIno++
	return ino, nil
}

type fakeInodes struct{ s *store }

func (r fakeInodes) Get(ctx context.Context, token string, ino int64) (*models.Inode, error) {
	inode, ok := r.s.inodes[key{token, ino}]
	if !ok {
		return nil, nil
	}
	cp := *inode
	return &cp, nil
}

func (r fakeInodes) Create(ctx context.Context, inode *models.Inode) error {
	cp := *inode
	r.s.inodes[key{inode.Token, inode.Ino}] = &cp
	return nil
}

func (r fakeInodes) UpdateSize(ctx context.Context, token string, ino int64, size int64) error {
	r.s.inodes[key{token, ino}].Size = size
	return nil
}

type fakeDirectories struct{ s *store }

func (r fakeDirectories) CreateEntry(ctx context.Context, token string, parentIno int64, name string, ino int64) error {
	if r.s.createEntryErr != nil {
		return r.s.createEntryErr
	}
	k := key{token, parentIno}
	r.s.entries[k] = append(r.s.entries[k], models.Dirent{
		Name: name,
		Ino:  ino,
		Type: r.s.inodes[key{token, ino}].Type,
	})
	return nil
}

func (r fakeDirectories) GetEntries(ctx context.Context, token string, parentIno int64) ([]models.Dirent, error) {
	return append([]models.Dirent(nil), r.s.entries[key{token, parentIno}]...), nil
}

func (r fakeDirectories) Exists(ctx context.Context, token string, parentIno int64, name string) (bool, error) {
	for _, d := range r.s.entries[key{token, parentIno}] {
		if d.Name == name {
			return true, nil
		}
	}
	return false, nil
}

type fakeContents struct{ s *store }

func (r fakeContents) Get(ctx context.Context, token string, ino int64) ([]byte, error) {
	return append([]byte{}, r.s.contents[key{token, ino}]...), nil
}

func (r fakeContents) GetRange(ctx context.Context, token string, ino int64, offset int64, length int64) ([]byte, error) {
	data := r.s.contents[key{token, ino}]
	if offset >= int64(len(data)) {
		return []byte{}, nil
	}
	end := min(offset+length, int64(len(data)))
	return append([]byte{}, data[offset:end]...), nil
}

func (r fakeContents) Set(ctx context.Context, token string, ino int64, data []byte) error {
	r.s.contents[key{token, ino}] = append([]byte{}, data...)
	return nil
}

func newFS(s *store, alloc vfs.Allocator) *pgfs.FS {
	return pgfs.New(alloc, s, fakeFilesystems{s}, fakeInodes{s}, fakeDirectories{s}, fakeContents{s})
}

func mountVFS(t *testing.T, s *store, token string) (*vfs.VFS, *pgfs.FS) {
	t.Helper()

	v := vfs.New()
	fs := newFS(s, v.Inodes())
	require.NoError(t, v.Register(vfs.FSPGFS, fs))
	require.NoError(t, v.Mount(context.Background(), vfs.FSPGFS, token, "/"))

	return v, fs
}

func TestMount(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	arena := vfs.NewArena()
	fs := newFS(s, arena)

	err := fs.Mount(ctx, vfs.RootID, "/", "")
	assert.ErrorIs(t, err, vfs.ErrInvalidVolume)

	require.NoError(t, fs.Mount(ctx, vfs.RootID, "/", "alpha"))
	require.Contains(t, s.filesystems, "alpha")

	ino, err := fs.Ino(vfs.RootID)
	require.NoError(t, err)
	assert.Equal(t, int64(repository.RootIno), ino)

	err = fs.Mount(ctx, vfs.RootID, "/", "beta")
	assert.ErrorIs(t, err, vfs.ErrAlreadyMounted)

	other := arena.Allocate(vfs.KindDirectory, vfs.FSNone)
	err = fs.Mount(ctx, other.ID, "/again", "alpha")
	assert.ErrorIs(t, err, vfs.ErrAlreadyMounted)
}

func TestCreateListStat(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	v, _ := mountVFS(t, s, "alpha")

	docs, err := v.Mkdir(ctx, "/", "docs")
	require.NoError(t, err)
	file, err := v.Create(ctx, vfs.KindFile, "/docs", "a.txt")
	require.NoError(t, err)
	_, err = v.Create(ctx, vfs.KindFile, "/docs", "b.txt")
	require.NoError(t, err)

	found, err := v.Lookup(ctx, "/docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, file, found.ID)
	assert.Equal(t, vfs.FSPGFS, found.FS)

	entries, err := v.List(ctx, docs)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.txt", entries[0].Name)
	assert.Equal(t, "b.txt", entries[1].Name)

	st, err := v.Stat(ctx, docs)
	require.NoError(t, err)
	assert.Equal(t, vfs.KindDirectory, st.Kind)
	assert.Equal(t, uint64(2), st.Size)

	_, err = v.Create(ctx, vfs.KindFile, "/docs", "a.txt")
	assert.ErrorIs(t, err, vfs.ErrExists)

	// contents row is created with the file
	assert.Contains(t, s.contents, key{"alpha", repository.RootIno + 2})
}

func TestWriteRead(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	v, _ := mountVFS(t, s, "alpha")

	id, err := v.Create(ctx, vfs.KindFile, "/", "note")
	require.NoError(t, err)

	n, err := v.Write(ctx, id, []byte("hello world"), 0)
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	_, err = v.Write(ctx, id, []byte("HE"), 0)
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err = v.Read(ctx, id, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "HEllo world", string(buf[:n]))

	_, err = v.Write(ctx, id, []byte("!"), 13)
	require.NoError(t, err)

	st, err := v.Stat(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(14), st.Size)

	n, err = v.Read(ctx, id, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("HEllo world\x00\x00!"), buf[:n])

	n, err = v.Read(ctx, id, buf[:3], 6)
	require.NoError(t, err)
	assert.Equal(t, "wor", string(buf[:n]))

	n, err = v.Read(ctx, id, buf, 100)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBackendErrors(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	fs := newFS(s, vfs.NewArena())
	require.NoError(t, fs.Mount(ctx, vfs.RootID, "/", "alpha"))

	_, err := fs.Read(ctx, vfs.RootID, make([]byte, 4), 0)
	assert.ErrorIs(t, err, vfs.ErrNotAFile)

	_, err = fs.Write(ctx, vfs.RootID, []byte("x"), 0)
	assert.ErrorIs(t, err, vfs.ErrNotAFile)

	_, err = fs.Stat(ctx, 99)
	assert.ErrorIs(t, err, vfs.ErrFileNotFound)

	file, err := fs.Create(ctx, vfs.RootID, vfs.KindFile, "/", "f")
	require.NoError(t, err)

	_, err = fs.DirList(ctx, file)
	assert.ErrorIs(t, err, vfs.ErrNotADirectory)

	_, err = fs.Create(ctx, file, vfs.KindFile, "/f", "g")
	assert.ErrorIs(t, err, vfs.ErrNotADirectory)

	assert.NoError(t, fs.Open(ctx, file))
	assert.NoError(t, fs.Close(ctx, file))
	assert.ErrorIs(t, fs.Close(ctx, 99), vfs.ErrFileNotFound)
}

func TestCreateUniqueViolation(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	fs := newFS(s, vfs.NewArena())
	require.NoError(t, fs.Mount(ctx, vfs.RootID, "/", "alpha"))

	s.createEntryErr = fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})

	_, err := fs.Create(ctx, vfs.RootID, vfs.KindFile, "/", "raced")
	assert.ErrorIs(t, err, vfs.ErrExists)
	assert.Equal(t, 1, s.txs)
}

func TestRemountBindsExistingTree(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	v, _ := mountVFS(t, s, "alpha")
	_, err := v.Mkdir(ctx, "/", "bin")
	require.NoError(t, err)
	id, err := v.Create(ctx, vfs.KindFile, "/bin", "hello")
	require.NoError(t, err)
	_, err = v.Write(ctx, id, []byte("hi"), 0)
	require.NoError(t, err)

	// a second process over the same tables
	v2, _ := mountVFS(t, s, "alpha")

	found, err := v2.Lookup(ctx, "/bin/hello")
	require.NoError(t, err)
	assert.Equal(t, vfs.KindFile, found.Kind)

	buf := make([]byte, 8)
	n, err := v2.Read(ctx, found.ID, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(buf[:n]))

	again, err := v2.Lookup(ctx, "/bin/hello")
	require.NoError(t, err)
	assert.Equal(t, found.ID, again.ID)
}

func TestPostgresIntegration(t *testing.T) {
	dsn := os.Getenv("VIFS_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("VIFS_TEST_PG_DSN is not set")
	}

	ctx := context.Background()
	pool, err := postgresql.NewClient(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, postgresql.EnsureSchema(ctx, pool))

	v := vfs.New()
	fs := pgfs.NewFromClient(v.Inodes(), pool)
	require.NoError(t, v.Register(vfs.FSPGFS, fs))
	require.NoError(t, v.Mount(ctx, vfs.FSPGFS, uuid.NewString(), "/"))

	_, err = v.Mkdir(ctx, "/", "dir")
	require.NoError(t, err)
	id, err := v.Create(ctx, vfs.KindFile, "/dir", "file")
	require.NoError(t, err)

	_, err = v.Write(ctx, id, []byte("persisted"), 0)
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, err := v.Read(ctx, id, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(buf[:n]))

	_, err = v.Create(ctx, vfs.KindFile, "/dir", "file")
	assert.ErrorIs(t, err, vfs.ErrExists)
}
