package handler_test

import (
	"bytes"
	"context"
	stdbinary "encoding/binary"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/S1riyS/vifs/internal/handler"
	"github.com/S1riyS/vifs/internal/pkg/kerrors"
	"github.com/S1riyS/vifs/internal/rfs"
	"github.com/S1riyS/vifs/internal/service"
	"github.com/S1riyS/vifs/internal/vfs"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	v := vfs.New()
	require.NoError(t, v.Register(vfs.FSRFS, rfs.New(v.Inodes())))
	require.NoError(t, v.Mount(context.Background(), vfs.FSRFS, "", "/"))

	mux := http.NewServeMux()
	handler.NewHandler(service.NewFileSystemService(v)).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

// call returns the response code and payload.
func call(t *testing.T, srv *httptest.Server, method, target string, body []byte) (int64, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, srv.URL+target, bytes.NewReader(body))
	require.NoError(t, err)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	require.GreaterOrEqual(t, buf.Len(), 8)

	raw := buf.Bytes()
	return int64(stdbinary.LittleEndian.Uint64(raw[:8])), raw[8:]
}

func TestCreateWriteRead(t *testing.T) {
	srv := newServer(t)

	code, meta := call(t, srv, http.MethodGet, "/api/create?path=/&name=hello", nil)
	require.Zero(t, code)
	ino := int64(stdbinary.LittleEndian.Uint64(meta[:8]))

	code, payload := call(t, srv, http.MethodPost, "/api/write?ino="+itoa(ino)+"&offset=0", []byte("hi there"))
	require.Zero(t, code)
	assert.Equal(t, int64(8), int64(stdbinary.LittleEndian.Uint64(payload)))

	code, payload = call(t, srv, http.MethodGet, "/api/read?ino="+itoa(ino)+"&len=64&offset=3", nil)
	require.Zero(t, code)
	assert.Equal(t, "there", string(payload))

	code, meta = call(t, srv, http.MethodGet, "/api/stat?ino="+itoa(ino), nil)
	require.Zero(t, code)
	assert.Equal(t, int64(8), int64(stdbinary.LittleEndian.Uint64(meta[12:20])))
}

func TestListAndMounts(t *testing.T) {
	srv := newServer(t)

	code, _ := call(t, srv, http.MethodGet, "/api/mkdir?path=/&name=bin", nil)
	require.Zero(t, code)
	code, _ = call(t, srv, http.MethodGet, "/api/create?path=/bin&name=a", nil)
	require.Zero(t, code)

	code, payload := call(t, srv, http.MethodGet, "/api/list?path=/bin", nil)
	require.Zero(t, code)
	assert.Equal(t, uint32(1), stdbinary.LittleEndian.Uint32(payload[:4]))

	code, payload = call(t, srv, http.MethodGet, "/api/mounts", nil)
	require.Zero(t, code)
	assert.Equal(t, uint32(1), stdbinary.LittleEndian.Uint32(payload[:4]))

	code, _ = call(t, srv, http.MethodPost, "/api/sync", nil)
	assert.Zero(t, code)
}

func TestErrorResponses(t *testing.T) {
	srv := newServer(t)

	code, _ := call(t, srv, http.MethodGet, "/api/lookup?path=/nope", nil)
	assert.Equal(t, -kerrors.ENOENT, code)

	code, _ = call(t, srv, http.MethodGet, "/api/lookup", nil)
	assert.Equal(t, kerrors.EINVAL_NEG, code)

	code, _ = call(t, srv, http.MethodGet, "/api/create?path=/&name=x", nil)
	require.Zero(t, code)
	code, _ = call(t, srv, http.MethodGet, "/api/create?path=/&name=x", nil)
	assert.Equal(t, -kerrors.EEXIST, code)

	code, _ = call(t, srv, http.MethodGet, "/api/read?ino=abc&len=1&offset=0", nil)
	assert.Equal(t, kerrors.EINVAL_NEG, code)

	code, _ = call(t, srv, http.MethodPost, "/api/write?ino=1&offset=0", []byte("x"))
	assert.Equal(t, -kerrors.EISDIR, code)

	resp, err := srv.Client().Get(srv.URL + "/api/write?ino=1&offset=0")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv := newServer(t)

	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
