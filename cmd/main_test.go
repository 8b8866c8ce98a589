package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func run(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), "vifs %v", args)

	return out.String()
}

func TestParseSize(t *testing.T) {
	for in, want := range map[string]int64{
		"4096": 4096,
		"1K":   1 << 10,
		"2M":   2 << 20,
		"1G":   1 << 30,
	} {
		got, err := parseSize(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseSize("0")
	assert.Error(t, err)
	_, err = parseSize("abcM")
	assert.Error(t, err)
}

func TestCommands(t *testing.T) {
	hostFs = afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(hostFs, "/src/readme.txt", []byte("read me"), 0o644))
	require.NoError(t, afero.WriteFile(hostFs, "/src/docs/guide.txt", []byte("guide"), 0o644))

	run(t, "new", "1M", "--image", "/test.img", "--format")
	run(t, "mkdir", "/bin", "--image", "/test.img")
	run(t, "cp", "/src/readme.txt", "/bin/readme", "--image", "/test.img")
	run(t, "cpdir", "/src", "/", "--image", "/test.img")

	assert.Equal(t, "read me", run(t, "cat", "/bin/readme", "--image", "/test.img"))
	assert.Equal(t, "guide", run(t, "cat", "/docs/guide.txt", "--image", "/test.img"))

	var rows []listing
	require.NoError(t, json.Unmarshal([]byte(run(t, "ls", "/", "--image", "/test.img", "-o", "json")), &rows))
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"bin", "docs", "readme.txt"}, names)

	var info statInfo
	require.NoError(t, yaml.Unmarshal([]byte(run(t, "stat", "/bin/readme", "--image", "/test.img", "-o", "yaml")), &info))
	assert.Equal(t, uint64(7), info.Size)
	assert.Equal(t, "afs", info.FS)
	require.NotNil(t, info.Block)

	var dump dumpView
	require.NoError(t, json.Unmarshal([]byte(run(t, "dump", "--image", "/test.img", "-o", "json")), &dump))
	assert.Equal(t, "AFS ", dump.Descriptor.Magic)
	assert.Equal(t, []uint32{dump.Descriptor.RootDirectory + 1, dump.Descriptor.RootDirectory + 3, dump.Descriptor.RootDirectory + 5}, dump.RootDirectory)

	table := run(t, "ls", "/", "--image", "/test.img", "-o", "table")
	assert.Contains(t, table, "NAME")
	assert.Contains(t, table, "readme.txt")
}

func TestReadOnlyCommandsLeaveImageUntouched(t *testing.T) {
	hostFs = afero.NewMemMapFs()

	run(t, "new", "1M", "--image", "/empty.img", "--format")
	before, err := afero.ReadFile(hostFs, "/empty.img")
	require.NoError(t, err)

	run(t, "ls", "/", "--image", "/empty.img")
	run(t, "dump", "--image", "/empty.img")

	after, err := afero.ReadFile(hostFs, "/empty.img")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSelftest(t *testing.T) {
	hostFs = afero.NewMemMapFs()

	run(t, "new", "1M", "--image", "/self.img", "--format")
	out := run(t, "selftest", "--image", "/self.img")

	assert.Contains(t, out, "/proc:\n")
	assert.Contains(t, out, "test_2.txt")
	assert.Contains(t, out, "/proc/magic: NCC-1701-D\n")
	assert.Contains(t, out, "/proc/build/number: 1984\n")

	var rows []listing
	require.NoError(t, json.Unmarshal([]byte(run(t, "ls", "/", "--image", "/self.img", "-o", "json")), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "proc", rows[0].Name)
	assert.Equal(t, "afs", rows[0].FS)
}
