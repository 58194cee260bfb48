package config

import (
	"bytes"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvVars = []string{
	"GIF_API_URL",
	"POLL_INTERVAL",
	"HTTP_TIMEOUT",
	"HTTP_MAX_RETRIES",
	"HTTP_RATE_LIMIT",
	"HISTORY_BACKEND",
	"HISTORY_DIR",
	"HISTORY_KEY",
	"S3_BUCKET",
	"S3_REGION",
	"S3_ENDPOINT",
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"FFMPEG_PATH",
	"FFPROBE_PATH",
	"TEMP_DIR",
	"MAX_UPLOAD_MB",
	"PORT",
	"LOG_FORMAT",
	"LOG_LEVEL",
}

// clearEnv unsets every variable Load reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvVars {
		if prev, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { _ = os.Setenv(key, prev) })
		}
		_ = os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("HISTORY_DIR", "/var/lib/vid2gif")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000", cfg.APIURL)
	assert.Equal(t, 2500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 60*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 2, cfg.HTTPMaxRetries)
	assert.Zero(t, cfg.HTTPRateLimit)
	assert.Equal(t, HistoryBackendLocal, cfg.HistoryBackend)
	assert.Equal(t, "/var/lib/vid2gif", cfg.HistoryDir)
	assert.Equal(t, "gifHistory", cfg.HistoryKey)
	assert.Equal(t, "/tmp/vid2gif", cfg.TempDir)
	assert.Equal(t, 50, cfg.MaxUploadMB)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_DefaultHistoryDir(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.HistoryDir)
	assert.Contains(t, cfg.HistoryDir, "vid2gif")
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("GIF_API_URL", "https://gifs.example.com")
	t.Setenv("POLL_INTERVAL", "1s")
	t.Setenv("HTTP_MAX_RETRIES", "5")
	t.Setenv("HTTP_RATE_LIMIT", "2.5")
	t.Setenv("HISTORY_BACKEND", "s3")
	t.Setenv("HISTORY_KEY", "recent")
	t.Setenv("S3_BUCKET", "my-bucket")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "access-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret-key")
	t.Setenv("MAX_UPLOAD_MB", "10")
	t.Setenv("PORT", "3000")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://gifs.example.com", cfg.APIURL)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 5, cfg.HTTPMaxRetries)
	assert.InDelta(t, 2.5, cfg.HTTPRateLimit, 0.0001)
	assert.Equal(t, HistoryBackendS3, cfg.HistoryBackend)
	assert.Equal(t, "recent", cfg.HistoryKey)
	assert.Equal(t, "my-bucket", cfg.S3Bucket)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, "access-key", cfg.AWSAccessKeyID)
	assert.Equal(t, "secret-key", cfg.AWSSecretAccessKey)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxUploadBytes())
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidInteger(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-number")

	// go-envconfig returns an error when parsing fails
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_S3BackendWithoutBucket(t *testing.T) {
	clearEnv(t)
	t.Setenv("HISTORY_BACKEND", "s3")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrS3SettingsRequired)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			APIURL:         "http://localhost:5000",
			PollInterval:   time.Second,
			HistoryBackend: HistoryBackendLocal,
		}
	}

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing API URL", func(t *testing.T) {
		cfg := valid()
		cfg.APIURL = " "
		assert.ErrorIs(t, cfg.Validate(), ErrAPIURLRequired)
	})

	t.Run("non-positive poll interval", func(t *testing.T) {
		cfg := valid()
		cfg.PollInterval = 0
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidPollInterval)
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := valid()
		cfg.HistoryBackend = "redis"
		assert.ErrorIs(t, cfg.Validate(), ErrUnknownHistoryBackend)
	})

	t.Run("memory backend", func(t *testing.T) {
		cfg := valid()
		cfg.HistoryBackend = HistoryBackendMemory
		assert.NoError(t, cfg.Validate())
	})
}

func TestConfig_S3Enabled(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		region   string
		expected bool
	}{
		{"both set", "bucket", "region", true},
		{"only bucket", "bucket", "", false},
		{"only region", "", "region", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				S3Bucket: tt.bucket,
				S3Region: tt.region,
			}
			assert.Equal(t, tt.expected, cfg.S3Enabled())
		})
	}
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		APIURL:             "https://gifs.example.com",
		PollInterval:       2500 * time.Millisecond,
		HistoryBackend:     HistoryBackendS3,
		S3Bucket:           "bucket",
		S3Region:           "region",
		AWSSecretAccessKey: "secret-key",
		TempDir:            "/tmp/test",
		Port:               8080,
	}

	str := cfg.String()

	assert.Contains(t, str, "https://gifs.example.com")
	assert.Contains(t, str, "2.5s")
	assert.Contains(t, str, "/tmp/test")

	// Should NOT contain sensitive values
	assert.NotContains(t, str, "secret-key")
}

func TestConfig_NewLoggerTo_JSON(t *testing.T) {
	cfg := &Config{
		LogFormat: "json",
		LogLevel:  "info",
	}

	var buf bytes.Buffer
	logger := cfg.NewLoggerTo(&buf)
	require.NotNil(t, logger)

	logger.Info("test message")
	logger.Debug("hidden")

	assert.Contains(t, buf.String(), `"msg":"test message"`)
	assert.NotContains(t, buf.String(), "hidden")
}

func TestConfig_NewLoggerTo_Text(t *testing.T) {
	cfg := &Config{
		LogFormat: "text",
		LogLevel:  "debug",
	}

	var buf bytes.Buffer
	logger := cfg.NewLoggerTo(&buf)
	logger.Debug("visible")

	assert.Contains(t, buf.String(), "msg=visible")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo}, // defaults to info
		{"", slog.LevelInfo},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}
