package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/climate-trends-analytics/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/climate-trends-analytics/internal/adapter/kafka"
	"github.com/couchcryptid/climate-trends-analytics/internal/config"
	"github.com/couchcryptid/climate-trends-analytics/internal/loader"
	"github.com/couchcryptid/climate-trends-analytics/internal/observability"
	"github.com/couchcryptid/climate-trends-analytics/internal/pipeline"
	"github.com/couchcryptid/climate-trends-analytics/internal/query"
	"github.com/couchcryptid/climate-trends-analytics/internal/regions"
	"github.com/couchcryptid/climate-trends-analytics/internal/scorer"
	"github.com/couchcryptid/climate-trends-analytics/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: search for .climate-trends.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	table, err := regions.LoadTable(cfg.Normalize.AliasFile)
	if err != nil {
		logger.Error("failed to load region alias table", "error", err)
		os.Exit(1)
	}
	resolver := regions.NewResolver(table)
	logger.Info("region alias table loaded", "version", table.Version, "regions", len(table.Regions))

	schema, err := loader.LoadSchema(cfg.Schema.File)
	if err != nil {
		logger.Error("failed to load schema mapping", "error", err)
		os.Exit(1)
	}

	// Sentiment scorer (feature-flagged via scorer.provider).
	sc, err := scorer.New(cfg.Scorer, logger)
	if err != nil {
		logger.Error("failed to initialize sentiment scorer", "error", err)
		os.Exit(1)
	}
	if sc != nil {
		logger.Info("sentiment scorer enabled", "provider", sc.Name())
	} else {
		logger.Info("sentiment scorer disabled, datasets must carry sentiment")
	}

	engine := query.New(cfg.Correlation.MinSampleSize, cfg.Cache.TTL, logger, metrics)

	builder := pipeline.NewBuilder(pipeline.BuildOptions{
		DataDir:            cfg.Data.Dir,
		SocialGlob:         cfg.Data.SocialGlob,
		EnvGlob:            cfg.Data.EnvGlob,
		Granularity:        cfg.Normalize.Granularity,
		Weights:            cfg.Weights(),
		MinSuccessFraction: cfg.Load.MinSuccessFraction,
	}, schema, resolver, sc, logger, metrics)

	opts := pipeline.RefresherOptions{
		WatchDir:  cfg.Data.Dir,
		Watch:     cfg.Refresh.Watch,
		Debounce:  cfg.Refresh.Debounce,
		Interval:  cfg.Refresh.Interval,
		RateLimit: cfg.Refresh.RateLimit,
	}

	var archive *store.Store
	if cfg.Archive.Enabled {
		archive, err = store.Open(cfg.Archive.Path, logger)
		if err != nil {
			logger.Error("failed to open snapshot archive", "error", err)
			os.Exit(1)
		}
		opts.Archiver = archive
		logger.Info("snapshot archive enabled", "path", cfg.Archive.Path)
	}

	var writer *kafkaadapter.Writer
	if cfg.Kafka.Enabled && cfg.Kafka.MetricsTopic != "" {
		writer = kafkaadapter.NewWriter(cfg.Kafka, logger, metrics)
		opts.Publisher = writer
	}

	refresher := pipeline.NewRefresher(builder, engine, opts, logger, metrics)

	var reader *kafkaadapter.Reader
	if cfg.Kafka.Enabled {
		reader = kafkaadapter.NewReader(cfg.Kafka, refresher, logger, metrics)
	}

	srv := httpadapter.NewServer(cfg.HTTP.Addr, engine, refresher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start refresh loop.
	go func() {
		if err := refresher.Run(ctx); err != nil {
			logger.Error("refresher error", "error", err)
		}
	}()

	// Start Kafka ingest.
	if reader != nil {
		go func() {
			if err := reader.Run(ctx); err != nil {
				logger.Error("kafka reader error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if archive != nil {
		if err := archive.Close(); err != nil {
			logger.Error("archive close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
