package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/1282saa/paperone/internal/config"
	"github.com/1282saa/paperone/internal/di"
	"github.com/1282saa/paperone/internal/observability"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const serviceName = "paperone-api"

var (
	cfgFile string
	addr    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "paperone-api",
		Short:         "Study notes backend: subjects, documents, reviews and AI correction",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "", "HTTP listen address (overrides SERVER_ADDRESS)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Address = addr
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, cleanup, err := di.InitializeContainer(signalCtx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	logger := container.Logger
	defer logger.Sync() //nolint:errcheck

	if cfg.Observability.TracingEnabled {
		tp, err := observability.InitTracing(signalCtx, serviceName, string(cfg.Environment), cfg.Observability.OTLPEndpoint)
		if err != nil {
			logger.Warn("Tracing disabled, exporter setup failed", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					logger.Warn("Tracer shutdown failed", zap.Error(err))
				}
			}()
		}
	}

	watcher, err := config.NewConfigWatcher(cfg, logger)
	if err != nil {
		logger.Warn("Configuration watcher unavailable", zap.Error(err))
	} else {
		watcher.OnChange(container.ApplyConfig)
		defer watcher.Stop()
	}

	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           container.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			zap.String("address", cfg.Server.Address),
			zap.String("version", cfg.Version),
			zap.String("store", cfg.Store.Backend),
			zap.String("blob", cfg.Blob.Backend),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
