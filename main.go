package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/rdara/mock-collector/internal/build"
	"github.com/rdara/mock-collector/internal/collector"
	"github.com/rdara/mock-collector/internal/config"
	"github.com/rdara/mock-collector/internal/keystore"
	"github.com/rdara/mock-collector/internal/logger"
	"github.com/rdara/mock-collector/internal/metrics"
	"github.com/rdara/mock-collector/internal/overrides"
)

const (
	appName           = "mock-collector"
	readHeaderTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}

		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Parse(appName, os.Args[1:], nil, os.Stderr)
	if err != nil {
		return err
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	atomicLevel := zap.NewAtomicLevelAt(level)

	zapLogger, err := logger.New(cfg.LogFormat, atomicLevel)
	if err != nil {
		return err
	}

	zapLogger = zapLogger.With(logFields(cfg.LogFields)...)

	setupLog := logger.NewLogr(zapLogger).WithName("setup")

	defer func() {
		if err := zapLogger.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) {
			fmt.Fprintf(os.Stderr, "Failed to flush logger: %v\n", err)
		}
	}()

	setupLog.Info("Starting mock collector", build.KeysAndValues()...)

	overridesHandler := overrides.New(cfg.Overrides, atomicLevel, setupLog.WithName("overrides"))
	if err := overridesHandler.Reload(); err != nil {
		setupLog.Error(err, "Failed to apply overrides, continuing with the configured log level")
	}

	keystorePath, err := cfg.KeystorePath()
	if err != nil {
		return err
	}

	cert, err := keystore.Load(keystorePath, cfg.KeystorePassword)
	if err != nil {
		setupLog.Error(err, "Failed to load keystore", "keystore", keystorePath)
		return err
	}

	c, err := collector.New(collector.Config{
		Host:        cfg.Host,
		HTTPPort:    cfg.HTTPPort,
		HTTPSPort:   cfg.HTTPSPort,
		Certificate: cert,
		AgentRunID:  cfg.AgentRunID,
	},
		collector.WithLogger(logger.NewLogr(zapLogger)),
		collector.WithErrorLog(logger.NewStdLog(zapLogger)),
	)
	if err != nil {
		setupLog.Error(err, "Failed to create collector")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		c.Stop(shutdownCtx)
		setupLog.Info("Graceful shutdown complete", "calls", c.Counters().Snapshot())

		return nil
	})

	g.Go(func() error {
		watchOverrides(ctx, overridesHandler, atomicLevel, setupLog)
		return nil
	})

	if cfg.MetricsAddr != "" {
		serveMetrics(ctx, g, cfg.MetricsAddr, cfg.ShutdownTimeout, setupLog)
	}

	if c.State() == collector.StatePortConflict {
		setupLog.Info("Another collector already serves the configured ports, waiting for a signal")
	}

	return g.Wait()
}

func logFields(fields map[string]string) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		result = append(result, zap.String(k, fields[k]))
	}

	return result
}

func watchOverrides(ctx context.Context, handler *overrides.Handler, atomicLevel zap.AtomicLevel, log logr.Logger) {
	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)

	defer signal.Stop(hangup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hangup:
			if err := handler.Reload(); err != nil {
				log.Error(err, "Failed to reload overrides")
				continue
			}

			log.Info("Reloaded overrides", "logLevel", atomicLevel.String())
		}
	}
}

func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, shutdownTimeout time.Duration, log logr.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g.Go(func() error {
		log.Info("Serving metrics", "address", addr)

		// When Shutdown is called, ListenAndServe returns http.ErrServerClosed, do not report it
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})
}
