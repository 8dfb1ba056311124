package server

import (
	"log/slog"
	"net/http"
)

// Config holds router options.
type Config struct {
	// AllowedOrigins are the CORS origins answered; "*" allows all.
	AllowedOrigins []string
}

// DefaultConfig allows every origin.
func DefaultConfig() Config {
	return Config{AllowedOrigins: []string{"*"}}
}

// NewRouter mounts the session, export and progress endpoints behind the
// middleware chain.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("GET /session", h.GetSession)
	mux.HandleFunc("DELETE /session", h.ResetSession)
	mux.HandleFunc("POST /session/files", h.UploadFiles)

	mux.HandleFunc("POST /export", h.Export)
	mux.HandleFunc("GET /exports", h.ListExports)
	mux.HandleFunc("GET /exports/{id}", h.GetExport)

	mux.HandleFunc("GET /progress", h.Progress)

	return ChainMiddleware(
		RequestIDMiddleware(),
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)(mux)
}
