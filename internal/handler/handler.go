package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/S1riyS/vifs/internal/pkg/kerrors"
	"github.com/S1riyS/vifs/internal/service"
	"github.com/S1riyS/vifs/pkg/binary"
	"github.com/S1riyS/vifs/pkg/logging"
	"github.com/S1riyS/vifs/pkg/logging/slogext"
)

// MaxWriteSize caps the body accepted by /api/write.
const MaxWriteSize = 16 << 20

type Handler struct {
	service service.FileSystemService
}

func NewHandler(service service.FileSystemService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := r.URL.Query().Get("path")
	if path == "" {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	meta, err := h.service.Lookup(ctx, path)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	data, err := binary.EncodeNodeMeta(meta)
	if err != nil {
		binary.WriteResponse(w, kerrors.ENOMEM_NEG, nil)
		return
	}

	binary.WriteResponse(w, 0, data)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const op = "handler.HandleList"

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := r.URL.Query().Get("path")
	if path == "" {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	dirents, err := h.service.List(ctx, path)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	data, err := binary.EncodeDirents(dirents)
	if err != nil {
		logging.GetLoggerFromContextWithOp(ctx, op).Error("Failed to encode entries", slogext.Err(err))
		binary.WriteResponse(w, kerrors.ENOMEM_NEG, nil)
		return
	}

	binary.WriteResponse(w, 0, data)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request, dir bool) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := r.URL.Query().Get("path")
	name := r.URL.Query().Get("name")
	if path == "" || name == "" {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	create := h.service.Create
	if dir {
		create = h.service.Mkdir
	}

	meta, err := create(ctx, path, name)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	data, err := binary.EncodeNodeMeta(meta)
	if err != nil {
		binary.WriteResponse(w, kerrors.ENOMEM_NEG, nil)
		return
	}

	binary.WriteResponse(w, 0, data)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	h.handleCreate(w, r, false)
}

func (h *Handler) HandleMkdir(w http.ResponseWriter, r *http.Request) {
	h.handleCreate(w, r, true)
}

func (h *Handler) HandleRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	inoStr := r.URL.Query().Get("ino")
	lenStr := r.URL.Query().Get("len")
	offsetStr := r.URL.Query().Get("offset")

	if inoStr == "" || lenStr == "" || offsetStr == "" {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	ino, err := strconv.ParseInt(inoStr, 10, 64)
	if err != nil {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	length, err := strconv.ParseUint(lenStr, 10, 64)
	if err != nil || length > MaxWriteSize {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	offset, err := strconv.ParseInt(offsetStr, 10, 64)
	if err != nil {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	buffer := make([]byte, length)
	read, err := h.service.Read(ctx, ino, buffer, offset)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	// Only the bytes actually read
	binary.WriteResponse(w, 0, buffer[:read])
}

// HandleWrite takes the bytes to write as the request body.
func (h *Handler) HandleWrite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const op = "handler.HandleWrite"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Info("Write request received",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("query", r.URL.RawQuery),
		slog.String("remote_addr", r.RemoteAddr))

	if r.Method != http.MethodPost {
		logger.Warn("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	inoStr := r.URL.Query().Get("ino")
	offsetStr := r.URL.Query().Get("offset")

	if inoStr == "" || offsetStr == "" {
		logger.Warn("Missing required parameters",
			slog.Bool("has_ino", inoStr != ""),
			slog.Bool("has_offset", offsetStr != ""))
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	ino, err := strconv.ParseInt(inoStr, 10, 64)
	if err != nil {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	offset, err := strconv.ParseInt(offsetStr, 10, 64)
	if err != nil {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWriteSize))
	if err != nil {
		logger.Warn("Failed to read body", slogext.Err(err))
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
			return
		}
		binary.WriteResponse(w, -kerrors.EIO, nil)
		return
	}

	logger.Debug("Calling service.Write",
		slog.Int64("ino", ino),
		slog.Int64("offset", offset),
		slog.Int("data_size", len(data)))

	written, err := h.service.Write(ctx, ino, data, offset)
	if err != nil {
		logger.Error("Service.Write failed", slogext.Err(err), slog.Int64("ino", ino))
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	binary.WriteInt64Response(w, 0, written)
}

func (h *Handler) HandleStat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ino, err := strconv.ParseInt(r.URL.Query().Get("ino"), 10, 64)
	if err != nil {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	meta, err := h.service.Stat(ctx, ino)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	data, err := binary.EncodeNodeMeta(meta)
	if err != nil {
		binary.WriteResponse(w, kerrors.ENOMEM_NEG, nil)
		return
	}

	binary.WriteResponse(w, 0, data)
}

func (h *Handler) HandleMounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := binary.EncodeMountPoints(h.service.Mounts(ctx))
	if err != nil {
		binary.WriteResponse(w, kerrors.ENOMEM_NEG, nil)
		return
	}

	binary.WriteResponse(w, 0, data)
}

func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.service.Sync(ctx); err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	binary.WriteResponse(w, 0, nil)
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok","service":"vifs"}`))
}

// mapErrorToCode returns the negated errno for err. Failures that are not
// service errors are reported as ENOMEM.
func mapErrorToCode(err error) int64 {
	var serviceErr *service.ServiceError
	if errors.As(err, &serviceErr) {
		return -serviceErr.Code
	}
	return kerrors.ENOMEM_NEG
}
