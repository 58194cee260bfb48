package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/maauso/vid2gif/internal/bootstrap"
	"github.com/maauso/vid2gif/internal/config"
)

// Build metadata, overridden with -ldflags "-X main.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func versionInfo() string {
	return fmt.Sprintf("gifctl %s\ncommit: %s\nbuild: %s", Version, Commit, BuildDate)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gifctl",
		Short:         "Convert videos to GIFs through a vid2gif backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Version = versionInfo()
	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newConvertCmd(),
		newHistoryCmd(),
		newFrameCmd(),
		newServeCmd(),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionInfo())
		},
	}
}

// app is the configured environment a command runs in.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	deps   *bootstrap.Dependencies
}

func setup(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := cfg.NewLoggerTo(cmd.ErrOrStderr())
	slog.SetDefault(logger)
	logger.Debug("configuration loaded", slog.String("config", cfg.String()))

	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize dependencies: %w", err)
	}
	return &app{cfg: cfg, logger: logger, deps: deps}, nil
}

// runSession runs the session loop until the returned stop function is
// called. stop waits for the loop and its in-flight work to finish.
func (a *app) runSession(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- a.deps.Session.Run(ctx) }()
	return func() {
		cancel()
		if err := <-errCh; err != nil {
			a.logger.Error("session loop failed", slog.String("error", err.Error()))
		}
	}
}
