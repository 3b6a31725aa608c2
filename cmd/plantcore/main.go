package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"plantcore/internal/adapters/httpapi"
	"plantcore/internal/blob"
	"plantcore/internal/bus"
	"plantcore/internal/config"
	"plantcore/internal/core"
	"plantcore/internal/infra/persistence/memory"
	"plantcore/internal/seed"
)

var version = "dev"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logger.Error("invalid log level", slog.String("level", cfg.LogLevel))
		os.Exit(1)
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("plantcore stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	layout, err := config.LoadLayout(cfg.LayoutFile)
	if err != nil {
		return err
	}
	policy := layout.Policy()

	store, err := core.OpenPersistentStore(ctx, cfg.Storage, core.NewDefaultRulesEngine(),
		memory.WithBaseline(layout.Stations),
		memory.WithBounds(policy.Bounds),
	)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	var seedOpts []seed.Option
	if cfg.SeedArchive {
		blobs, err := blob.Open(ctx, cfg.Blob)
		if err != nil {
			return fmt.Errorf("open blob store: %w", err)
		}
		archive := seed.NewBlobArchive(blobs, seed.WithRetention(cfg.SeedArchiveKeep))
		seedOpts = append(seedOpts, seed.WithArchive(archive))
		logger.Info("seed archive enabled", slog.String("driver", string(blobs.Driver())), slog.Int("keep", cfg.SeedArchiveKeep))
	}
	seeds := seed.NewStore(seedOpts...)

	routerOpts := httpapi.RouterOptions{RequestTimeout: 10 * time.Second}
	var metrics core.MetricsRecorder
	switch cfg.MetricsBackend {
	case config.MetricsExpvar:
		metrics = core.NewExpvarMetricsRecorder(cfg.MetricsNamespace)
		routerOpts.Expvar = true
	default:
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		prom, err := core.NewPrometheusMetricsRecorder(reg, cfg.MetricsNamespace)
		if err != nil {
			return err
		}
		metrics = prom
		routerOpts.Gatherer = reg
	}
	logger.Info("metrics backend", slog.String("backend", cfg.MetricsBackend))

	opts := []core.ServiceOption{
		core.WithLogger(logger),
		core.WithMetricsRecorder(metrics),
		core.WithTracer(core.NewOTelTracer(nil)),
		core.WithSeedStore(seeds),
		core.WithPolicy(policy),
		core.WithSiteID(cfg.SiteID),
		core.WithEventLimits(cfg.EventLimit, cfg.EventLimitMax),
		core.WithStaleAfter(cfg.SeedStaleAfter),
	}
	if cfg.NATSURL != "" {
		publisher, err := bus.NewPublisher(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer publisher.Close()
		opts = append(opts, core.WithEventPublisher(publisher))
	}
	svc := core.NewService(store, opts...)

	if cfg.SeedRestore {
		restored, err := svc.RestoreSeed(ctx)
		if err != nil {
			return fmt.Errorf("restore seed: %w", err)
		}
		logger.Info("seed restore", slog.Bool("restored", restored))
	}

	handler := &httpapi.Handler{Service: svc, Logger: logger, Timeout: 5 * time.Second, Version: version}
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(handler, routerOpts),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("plantcore listening", slog.String("addr", cfg.HTTPAddr), slog.String("site_id", cfg.SiteID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
