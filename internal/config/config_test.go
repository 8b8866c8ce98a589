package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("VIFS_TEST_IMAGE", "/tmp/disk.img")

	path := writeConfig(t, `
app:
  port: 9090
volume:
  image: ${VIFS_TEST_IMAGE}
  block_size: 512
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, 10*time.Second, cfg.App.DefaultTimeout)
	assert.Equal(t, "/tmp/disk.img", cfg.Volume.Image)
	assert.Equal(t, uint32(512), cfg.Volume.BlockSize)
	assert.Equal(t, int64(1048576), cfg.Volume.Size)
	assert.Equal(t, "/proc", cfg.Volume.ProcPath)
	assert.False(t, cfg.Database.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = Load("")
	assert.Error(t, err)
}

func TestMustLoadPanicsOnMissingFile(t *testing.T) {
	assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "nope.yaml")) })
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5433, User: "vifs", Password: "p@ss", Name: "fs", SSLMode: "disable"}
	assert.Equal(t, "postgres://vifs:p%40ss@db:5433/fs?sslmode=disable", c.DSN())
}
