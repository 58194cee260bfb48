package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config that admits local front ends only.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	// Register routes with method-based patterns (Go 1.22+)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /session", h.GetSession)
	mux.HandleFunc("POST /session/file", h.SelectFile)
	mux.HandleFunc("POST /session/drop", h.Drop)
	mux.HandleFunc("POST /session/url", h.EnterURL)
	mux.HandleFunc("POST /session/crop/start", h.StartCrop)
	mux.HandleFunc("POST /session/crop", h.AdjustCrop)
	mux.HandleFunc("GET /session/crop/preview", h.GetCropPreview)
	mux.HandleFunc("GET /session/frame", h.GetFrame)
	mux.HandleFunc("POST /session/submit", h.Submit)
	mux.HandleFunc("GET /history", h.GetHistory)
	mux.HandleFunc("DELETE /history", h.ClearHistory)

	// Apply middleware chain
	chain := ChainMiddleware(
		RequestIDMiddleware(),
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
