package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"golang.org/x/exp/slog"

	"github.com/acaxoxo/gis-rs-kotkup/pkg/api"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/config"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/dataset"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/directions"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/geocode"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/graph"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/logging"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/routing"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	envFile := flag.String("env", ".env", "Path to .env file (ignored when missing)")
	addr := flag.String("addr", "", "Listen address, overrides server.addr")
	snapshot := flag.String("snapshot", "", "Load a preprocessed snapshot instead of the configured dataset source")
	corsOrigin := flag.String("cors-origin", "", "CORS allowed origin (empty = same-origin)")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *snapshot != "" {
		cfg.Dataset.Source, cfg.Dataset.Path = config.SourceSnapshot, *snapshot
	}
	if *corsOrigin != "" {
		cfg.Server.CORSOrigin = *corsOrigin
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	store, err := loadStore(ctx, cfg.Dataset, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	logStore(store, logger)

	geometry, err := directions.New(cfg.Directions)
	if err != nil {
		return err
	}

	strategy, err := routing.ParseStrategy(cfg.Routing.Strategy)
	if err != nil {
		return err
	}
	opts := []routing.Option{
		routing.WithStrategy(strategy),
		routing.WithAverageSpeed(cfg.Routing.AverageSpeedKph),
		routing.WithMaxSnapDistance(cfg.Routing.MaxSnapMeters),
		routing.WithRegion(cfg.Geocode.Region),
		routing.WithLogger(logger),
	}
	if cfg.Geocode.Enabled {
		opts = append(opts, routing.WithGeocoder(geocode.New(cfg.Geocode.Config)))
	}
	engine := routing.NewEngine(store, geometry, opts...)

	logger.Info("ready", "elapsed", time.Since(start).Round(time.Millisecond),
		"strategy", string(strategy), "directions", cfg.Directions.Provider, "geocoding", cfg.Geocode.Enabled)

	srvCfg := api.ServerConfig{
		Addr:           cfg.Server.Addr,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxConcurrent:  cfg.Server.MaxConcurrent,
		CORSOrigin:     cfg.Server.CORSOrigin,
	}
	handlers := api.NewHandlers(engine, store, geometry, api.NewStats(store, string(strategy)), logger)
	return api.ListenAndServe(api.NewServer(srvCfg, handlers, logger), logger)
}

// loadStore reads a snapshot or loads and validates a dataset from its source.
func loadStore(ctx context.Context, cfg dataset.Config, logger *slog.Logger) (*graph.Store, error) {
	if cfg.Source == config.SourceSnapshot {
		logger.Info("loading snapshot", "path", cfg.Path)
		return graph.ReadBinary(cfg.Path)
	}

	logger.Info("loading dataset", "source", cfg.Source)
	src, err := dataset.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer dataset.CloseSource(ctx, src)

	raw, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	return graph.Build(raw)
}

func logStore(store *graph.Store, logger *slog.Logger) {
	logger.Info("graph loaded",
		"nodes", store.Len(),
		"distance_edges", store.Matrix(graph.Distance).EdgeCount(),
		"duration_edges", store.Matrix(graph.Duration).EdgeCount(),
		"components", len(graph.Components(store)))

	if isolated := graph.Isolated(store); len(isolated) > 0 {
		logger.Warn("facilities without any road edge", "nodes", isolated)
	}
	for _, m := range graph.Metrics {
		if bad := store.Matrix(m).DiagonalViolations(); len(bad) > 0 {
			logger.Warn("non-zero diagonal values ignored", "metric", m.String(), "nodes", bad)
		}
	}
}
