package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maauso/vid2gif/internal/server"
	"github.com/maauso/vid2gif/internal/session"
)

var _ server.Session = (*session.Coordinator)(nil)

func newServeCmd() *cobra.Command {
	var origins []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local control API for a browser front end",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, origins)
		},
	}
	cmd.Flags().StringSliceVar(&origins, "allow-origin", server.DefaultConfig().AllowedOrigins, "allowed CORS origins")
	return cmd
}

func runServe(cmd *cobra.Command, origins []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}

	a.logger.Info("starting gifctl control API",
		slog.Int("port", a.cfg.Port),
		slog.String("api_url", a.cfg.APIURL),
		slog.String("history_backend", a.cfg.HistoryBackend),
		slog.Bool("media_tools", a.deps.Processor != nil),
	)

	stopSession := a.runSession(ctx)
	defer stopSession()

	handlers := server.NewHandlers(a.deps.Session, a.logger)
	router := server.NewRouter(handlers, a.logger, server.Config{AllowedOrigins: origins})

	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", a.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown handling
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdownCh)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case sig := <-shutdownCh:
		a.logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.logger.Info("shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	a.logger.Info("server stopped gracefully")
	return nil
}
