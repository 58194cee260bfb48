// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// History backends.
const (
	HistoryBackendLocal  = "local"
	HistoryBackendS3     = "s3"
	HistoryBackendMemory = "memory"
)

// Static errors for configuration validation.
var (
	// ErrAPIURLRequired is returned when GIF_API_URL is empty.
	ErrAPIURLRequired = errors.New("config: GIF_API_URL is required")
	// ErrUnknownHistoryBackend is returned when HISTORY_BACKEND is not recognised.
	ErrUnknownHistoryBackend = errors.New("config: HISTORY_BACKEND must be one of local, s3, memory")
	// ErrS3SettingsRequired is returned when the s3 backend is selected without bucket and region.
	ErrS3SettingsRequired = errors.New("config: S3_BUCKET and S3_REGION are required for the s3 history backend")
	// ErrInvalidPollInterval is returned when POLL_INTERVAL is not positive.
	ErrInvalidPollInterval = errors.New("config: POLL_INTERVAL must be positive")
)

// Config holds all configuration for the application.
type Config struct {
	// Conversion backend
	APIURL         string        `env:"GIF_API_URL, default=http://localhost:5000" json:"api_url"`
	PollInterval   time.Duration `env:"POLL_INTERVAL, default=2500ms" json:"poll_interval"`
	HTTPTimeout    time.Duration `env:"HTTP_TIMEOUT, default=60s" json:"http_timeout"`
	HTTPMaxRetries int           `env:"HTTP_MAX_RETRIES, default=2" json:"http_max_retries"`
	HTTPRateLimit  float64       `env:"HTTP_RATE_LIMIT, default=0" json:"http_rate_limit"` // requests per second, 0 = unlimited

	// History settings
	HistoryBackend string `env:"HISTORY_BACKEND, default=local" json:"history_backend"`
	HistoryDir     string `env:"HISTORY_DIR" json:"history_dir,omitempty"`
	HistoryKey     string `env:"HISTORY_KEY, default=gifHistory" json:"history_key"`

	// Optional S3 settings for the s3 history backend
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Media intake
	FFmpegPath  string `env:"FFMPEG_PATH" json:"ffmpeg_path,omitempty"`
	FFprobePath string `env:"FFPROBE_PATH" json:"ffprobe_path,omitempty"`
	TempDir     string `env:"TEMP_DIR, default=/tmp/vid2gif" json:"temp_dir"`
	MaxUploadMB int    `env:"MAX_UPLOAD_MB, default=50" json:"max_upload_mb"`

	// Local control API
	Port int `env:"PORT, default=8080" json:"port"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// Load reads configuration from environment variables using go-envconfig
// and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if cfg.HistoryDir == "" {
		cfg.HistoryDir = defaultHistoryDir()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return ErrAPIURLRequired
	}
	if c.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}
	switch c.HistoryBackend {
	case HistoryBackendLocal, HistoryBackendMemory:
	case HistoryBackendS3:
		if !c.S3Enabled() {
			return ErrS3SettingsRequired
		}
	default:
		return fmt.Errorf("%w: got %q", ErrUnknownHistoryBackend, c.HistoryBackend)
	}
	return nil
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

// NewLogger creates a structured logger based on the configuration.
// Logs are written to stderr so command output on stdout stays clean.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stderr)
}

// NewLoggerTo creates a structured logger that writes to w.
// When LogFormat is "json", it outputs JSON logs. Otherwise, it outputs
// human-readable text logs.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{APIURL: %s, PollInterval: %s, HistoryBackend: %s, HistoryDir: %s, S3Bucket: %s, S3Region: %s, TempDir: %s, Port: %d, LogFormat: %s, LogLevel: %s}",
		c.APIURL,
		c.PollInterval,
		c.HistoryBackend,
		c.HistoryDir,
		c.S3Bucket,
		c.S3Region,
		c.TempDir,
		c.Port,
		c.LogFormat,
		c.LogLevel,
	)
}

func defaultHistoryDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "vid2gif")
	}
	return filepath.Join(dir, "vid2gif")
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
