// Package bootstrap wires the client's dependencies from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os/exec"

	"github.com/maauso/vid2gif/internal/config"
	"github.com/maauso/vid2gif/internal/gifapi"
	"github.com/maauso/vid2gif/internal/history"
	"github.com/maauso/vid2gif/internal/intake"
	"github.com/maauso/vid2gif/internal/media"
	"github.com/maauso/vid2gif/internal/session"
	"github.com/maauso/vid2gif/internal/storage"
)

// rateBurst is the request burst allowed when HTTP_RATE_LIMIT is set.
const rateBurst = 2

// Dependencies holds all initialized dependencies of one client session.
type Dependencies struct {
	API     *gifapi.HTTPClient
	History *history.Store
	Intake  *intake.Controller
	Temp    storage.TempStore
	Session *session.Coordinator

	// Processor is nil when ffmpeg/ffprobe are not installed.
	Processor *media.FFmpegProcessor
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	kv, err := initKV(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	store := history.NewStore(kv, history.WithKey(cfg.HistoryKey), history.WithLogger(logger))

	temp, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create temp storage: %w", err)
	}

	clientOpts := []gifapi.ClientOption{
		gifapi.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		gifapi.WithMaxRetries(cfg.HTTPMaxRetries),
		gifapi.WithLogger(logger),
	}
	if cfg.HTTPRateLimit > 0 {
		clientOpts = append(clientOpts, gifapi.WithRateLimit(cfg.HTTPRateLimit, rateBurst))
	}
	api, err := gifapi.NewClient(cfg.APIURL, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create GIF API client: %w", err)
	}
	base, err := url.Parse(api.BaseURL())
	if err != nil {
		return nil, fmt.Errorf("parse GIF API URL: %w", err)
	}

	processor := initProcessor(cfg, logger)

	intakeOpts := []intake.Option{
		intake.WithResolver(api),
		intake.WithBaseURL(base),
		intake.WithMaxBytes(cfg.MaxUploadBytes()),
		intake.WithLogger(logger),
	}
	sessionOpts := []session.Option{
		session.WithHistory(store),
		session.WithPollInterval(cfg.PollInterval),
		session.WithLogger(logger),
	}
	// A nil *FFmpegProcessor must not reach the interfaces as a typed nil.
	if processor != nil {
		intakeOpts = append(intakeOpts, intake.WithProcessor(processor))
		sessionOpts = append(sessionOpts, session.WithFrames(processor))
	}
	in := intake.NewController(intakeOpts...)

	return &Dependencies{
		API:       api,
		History:   store,
		Intake:    in,
		Temp:      temp,
		Session:   session.NewCoordinator(api, in, sessionOpts...),
		Processor: processor,
	}, nil
}

// initKV creates the history backend selected by configuration.
func initKV(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.KV, error) {
	switch cfg.HistoryBackend {
	case config.HistoryBackendS3:
		s3Store, err := storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 history configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil

	case config.HistoryBackendMemory:
		logger.Info("in-memory history configured")
		return storage.NewMemoryStorage(), nil

	default:
		localStore, err := storage.NewLocalStorage(cfg.HistoryDir)
		if err != nil {
			return nil, fmt.Errorf("create local storage: %w", err)
		}
		logger.Info("local history configured",
			slog.String("dir", localStore.Dir()),
		)
		return localStore, nil
	}
}

// initProcessor returns an ffmpeg-backed processor, or nil when the
// binaries cannot be found.
func initProcessor(cfg *config.Config, logger *slog.Logger) *media.FFmpegProcessor {
	ffmpeg := cfg.FFmpegPath
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	ffprobe := cfg.FFprobePath
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	for _, bin := range []string{ffmpeg, ffprobe} {
		if _, err := exec.LookPath(bin); err != nil {
			logger.Warn("media tools unavailable, probing and frame capture disabled",
				slog.String("binary", bin),
				slog.String("error", err.Error()),
			)
			return nil
		}
	}
	return media.NewFFmpegProcessor(ffmpeg, media.WithFFprobePath(ffprobe))
}
