package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/maauso/vid2gif/internal/media"
)

// DefaultMaxBytes matches the backend's request size limit.
const DefaultMaxBytes int64 = 50 * 1024 * 1024

// DefaultExtensions are the container formats the backend accepts.
var DefaultExtensions = []string{"mp4", "mov", "avi", "mkv", "webm"}

// Static errors for intake validation.
var (
	// ErrNoFile is returned when a picker or drop yields no file.
	ErrNoFile = errors.New("intake: no file selected")
	// ErrNotRegular is returned for directories and other non-regular files.
	ErrNotRegular = errors.New("intake: not a regular file")
	// ErrUnsupportedType is returned for extensions the backend rejects.
	ErrUnsupportedType = errors.New("intake: file type not allowed")
	// ErrTooLarge is returned when the file exceeds the upload limit.
	ErrTooLarge = errors.New("intake: file exceeds upload limit")
	// ErrURLRequired is returned when an empty URL is submitted for resolution.
	ErrURLRequired = errors.New("intake: video URL is required")
	// ErrInvalidURL is returned for URLs that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("intake: video URL must be an absolute http or https URL")
	// ErrNoResolver is returned when URL intake is used without a resolver.
	ErrNoResolver = errors.New("intake: no resolver configured")
	// ErrUnreadable is returned when a local file cannot be probed as video.
	ErrUnreadable = errors.New("intake: file could not be read as video")
)

// Resolver turns a remote video URL into a backend-hosted preview URL.
type Resolver interface {
	ResolveURL(ctx context.Context, videoURL string) (previewURL string, err error)
}

// Controller validates and probes incoming media.
type Controller struct {
	processor media.Processor
	resolver  Resolver
	baseURL   *url.URL
	maxBytes  int64
	allowed   map[string]bool
	logger    *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithProcessor sets the media processor used for probing. Without one,
// files are accepted with no duration or frame size.
func WithProcessor(p media.Processor) Option {
	return func(c *Controller) { c.processor = p }
}

// WithResolver sets the resolver used for remote URLs.
func WithResolver(r Resolver) Option {
	return func(c *Controller) { c.resolver = r }
}

// WithBaseURL sets the origin relative preview URLs are resolved against.
func WithBaseURL(u *url.URL) Option {
	return func(c *Controller) { c.baseURL = u }
}

// WithMaxBytes sets the upload limit. Non-positive means unlimited.
func WithMaxBytes(n int64) Option {
	return func(c *Controller) { c.maxBytes = n }
}

// WithAllowedExtensions replaces the accepted extensions (without dots).
func WithAllowedExtensions(exts ...string) Option {
	return func(c *Controller) {
		c.allowed = make(map[string]bool, len(exts))
		for _, e := range exts {
			c.allowed[strings.ToLower(strings.TrimPrefix(e, "."))] = true
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewController creates a Controller with the backend's default limits.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		maxBytes: DefaultMaxBytes,
		logger:   slog.Default(),
	}
	WithAllowedExtensions(DefaultExtensions...)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ValidateFile checks that path names an acceptable video file.
func (c *Controller) ValidateFile(path string) (os.FileInfo, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrNoFile
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if !c.allowed[ext] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, filepath.Base(path))
	}

	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoFile, path)
		}
		return nil, fmt.Errorf("intake: stat %s: %w", path, err)
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegular, path)
	}
	if c.maxBytes > 0 && fi.Size() > c.maxBytes {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, fi.Size(), c.maxBytes)
	}
	return fi, nil
}

// OpenFile validates and probes a file chosen with the picker.
func (c *Controller) OpenFile(ctx context.Context, path string) (Media, error) {
	fi, err := c.ValidateFile(path)
	if err != nil {
		return Media{}, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return Media{}, fmt.Errorf("intake: resolve path: %w", err)
	}

	m := Media{
		Source:   FileSource(abs),
		Name:     fi.Name(),
		Size:     fi.Size(),
		Location: abs,
	}

	if c.processor == nil {
		return m, nil
	}

	info, err := c.processor.Probe(ctx, abs)
	if err != nil {
		if ctx.Err() != nil {
			return Media{}, ctx.Err()
		}
		return Media{}, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	m.applyProbe(info)

	c.logger.Debug("file probed",
		slog.String("path", abs),
		slog.Float64("duration", info.Duration),
		slog.Int("width", info.Width),
		slog.Int("height", info.Height),
	)
	return m, nil
}

// OpenDrop handles a drag-and-drop; only the first dropped path is used.
func (c *Controller) OpenDrop(ctx context.Context, paths []string) (Media, error) {
	if len(paths) == 0 {
		return Media{}, ErrNoFile
	}
	if len(paths) > 1 {
		c.logger.Debug("ignoring extra dropped files", slog.Int("count", len(paths)-1))
	}
	return c.OpenFile(ctx, paths[0])
}

// ValidateURL checks that raw is an absolute http(s) URL.
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrURLRequired
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return u.String(), nil
}

// ResolveURL asks the backend to fetch raw and returns Media for the
// resulting preview. Probing the preview is best effort; when it fails the
// trim end stays unset.
func (c *Controller) ResolveURL(ctx context.Context, raw string) (Media, error) {
	videoURL, err := ValidateURL(raw)
	if err != nil {
		return Media{}, err
	}
	if c.resolver == nil {
		return Media{}, ErrNoResolver
	}

	previewURL, err := c.resolver.ResolveURL(ctx, videoURL)
	if err != nil {
		return Media{}, err
	}

	m := Media{
		Source:   URLSource(previewURL),
		Name:     videoURL,
		Location: c.absolute(previewURL),
	}

	if c.processor == nil {
		return m, nil
	}

	info, err := c.processor.Probe(ctx, m.Location)
	if err != nil {
		if ctx.Err() != nil {
			return Media{}, ctx.Err()
		}
		c.logger.Warn("preview probe failed",
			slog.String("preview_url", previewURL),
			slog.String("error", err.Error()),
		)
		return m, nil
	}
	m.applyProbe(info)
	return m, nil
}

// absolute resolves a possibly relative preview URL against the base URL.
func (c *Controller) absolute(previewURL string) string {
	if c.baseURL == nil {
		return previewURL
	}
	ref, err := url.Parse(previewURL)
	if err != nil {
		return previewURL
	}
	return c.baseURL.ResolveReference(ref).String()
}
