package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/vid2gif/internal/crop"
	"github.com/maauso/vid2gif/internal/form"
	"github.com/maauso/vid2gif/internal/history"
	"github.com/maauso/vid2gif/internal/session"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Session is the interaction session the handlers drive.
type Session interface {
	View() session.View
	SelectFile(ctx context.Context, path string) (session.View, error)
	Drop(ctx context.Context, paths []string) (session.View, error)
	EnterURL(ctx context.Context, rawURL string) (session.View, error)
	StartCrop(ctx context.Context, atSeconds float64) (session.View, error)
	AdjustCrop(ctx context.Context, r crop.Rect) (session.View, error)
	Submit(ctx context.Context, opts form.Options) (session.View, error)
	ClearHistory(ctx context.Context) (session.View, error)
	Frame() (crop.Frame, bool)
	CropPreview() ([]byte, error)
}

// Handlers contains the HTTP handlers for the control API.
type Handlers struct {
	session   Session
	validator *validator.Validate
	logger    *slog.Logger
	timeout   time.Duration
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithRequestTimeout bounds how long a handler waits for the session loop.
func WithRequestTimeout(d time.Duration) HandlerOption {
	return func(h *Handlers) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(sess Session, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		session:   sess,
		validator: validator.New(),
		logger:    logger,
		timeout:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// GetSession handles GET /session requests.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.View())
}

// SelectFile handles POST /session/file requests.
func (h *Handlers) SelectFile(w http.ResponseWriter, r *http.Request) {
	var req SelectFileRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, r, func(ctx context.Context) (session.View, error) {
		return h.session.SelectFile(ctx, req.Path)
	})
}

// Drop handles POST /session/drop requests.
func (h *Handlers) Drop(w http.ResponseWriter, r *http.Request) {
	var req DropRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, r, func(ctx context.Context) (session.View, error) {
		return h.session.Drop(ctx, req.Paths)
	})
}

// EnterURL handles POST /session/url requests.
func (h *Handlers) EnterURL(w http.ResponseWriter, r *http.Request) {
	var req URLRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, r, func(ctx context.Context) (session.View, error) {
		return h.session.EnterURL(ctx, req.URL)
	})
}

// StartCrop handles POST /session/crop/start requests.
func (h *Handlers) StartCrop(w http.ResponseWriter, r *http.Request) {
	var req CropStartRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, r, func(ctx context.Context) (session.View, error) {
		return h.session.StartCrop(ctx, req.AtSeconds)
	})
}

// AdjustCrop handles POST /session/crop requests.
func (h *Handlers) AdjustCrop(w http.ResponseWriter, r *http.Request) {
	var req CropRequest
	if !h.decode(w, r, &req) {
		return
	}
	rect := crop.Rect{X: req.X, Y: req.Y, Width: req.Width, Height: req.Height}
	h.respond(w, r, func(ctx context.Context) (session.View, error) {
		return h.session.AdjustCrop(ctx, rect)
	})
}

// GetFrame handles GET /session/frame requests.
func (h *Handlers) GetFrame(w http.ResponseWriter, r *http.Request) {
	frame, ok := h.session.Frame()
	if !ok {
		writeError(w, http.StatusNotFound, "no frame captured", "NO_FRAME")
		return
	}
	writePNG(w, frame.PNG)
}

// GetCropPreview handles GET /session/crop/preview requests.
func (h *Handlers) GetCropPreview(w http.ResponseWriter, r *http.Request) {
	data, err := h.session.CropPreview()
	if err != nil {
		if errors.Is(err, crop.ErrNotLoaded) {
			writeError(w, http.StatusNotFound, "no frame captured", "NO_FRAME")
			return
		}
		h.logger.Error("failed to render crop preview", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to render crop preview", "PREVIEW_FAILED")
		return
	}
	writePNG(w, data)
}

// Submit handles POST /session/submit requests.
func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !h.decode(w, r, &req) {
		return
	}
	opts, err := req.Options()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	h.respond(w, r, func(ctx context.Context) (session.View, error) {
		return h.session.Submit(ctx, opts)
	})
}

// GetHistory handles GET /history requests.
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, historyResponse(h.session.View().History))
}

// ClearHistory handles DELETE /history requests.
func (h *Handlers) ClearHistory(w http.ResponseWriter, r *http.Request) {
	v, err := h.call(r, h.session.ClearHistory)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse(v.History))
}

// Options converts the request into form options, running the colors
// through the form controls.
func (r SubmitRequest) Options() (form.Options, error) {
	opts := form.DefaultOptions()
	opts.StartTime = r.StartTime
	opts.EndTime = r.EndTime
	opts.TextOverlay = r.TextOverlay
	if r.FPS != 0 {
		opts.FPS = r.FPS
	}
	if r.Resize != "" {
		opts.Resize = r.Resize
	}
	if r.Speed != 0 {
		opts.Speed = r.Speed
	}
	if r.TextSize != 0 {
		opts.TextSize = r.TextSize
	}

	controls := form.NewControls()
	if r.TextColor != "" {
		if err := controls.TextColor.SetSwatch(r.TextColor); err != nil {
			return form.Options{}, fmt.Errorf("text_color: %w", err)
		}
	}
	if r.NoBackground {
		controls.Background.SetNone(true)
	} else if r.BgColor != "" {
		if err := controls.Background.SetSwatch(r.BgColor); err != nil {
			return form.Options{}, fmt.Errorf("bg_color: %w", err)
		}
	}
	return controls.Apply(opts), nil
}

func historyResponse(entries []history.Entry) HistoryResponse {
	if entries == nil {
		entries = []history.Entry{}
	}
	return HistoryResponse{Entries: entries}
}

// decode reads and validates a JSON body into dst. It writes the error
// response and returns false on failure.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

func (h *Handlers) call(r *http.Request, fn func(ctx context.Context) (session.View, error)) (session.View, error) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	return fn(ctx)
}

func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context) (session.View, error)) {
	v, err := h.call(r, fn)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handlers) sessionError(w http.ResponseWriter, err error) {
	h.logger.Error("session unavailable", slog.String("error", err.Error()))
	if errors.Is(err, session.ErrStopped) {
		writeError(w, http.StatusServiceUnavailable, "session stopped", "SESSION_STOPPED")
		return
	}
	writeError(w, http.StatusServiceUnavailable, "session busy", "SESSION_TIMEOUT")
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Error("failed to write image response", slog.String("error", err.Error()))
	}
}
