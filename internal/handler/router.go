package handler

import (
	"net/http"
)

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// System endpoints
	mux.HandleFunc("/health", h.HandleHealthCheck)

	// API endpoints
	mux.HandleFunc("/api/lookup", h.HandleLookup)
	mux.HandleFunc("/api/list", h.HandleList)
	mux.HandleFunc("/api/create", h.HandleCreate)
	mux.HandleFunc("/api/mkdir", h.HandleMkdir)
	mux.HandleFunc("/api/read", h.HandleRead)
	mux.HandleFunc("/api/write", h.HandleWrite)
	mux.HandleFunc("/api/stat", h.HandleStat)
	mux.HandleFunc("/api/mounts", h.HandleMounts)
	mux.HandleFunc("/api/sync", h.HandleSync)
}
