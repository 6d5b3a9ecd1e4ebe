package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/exp/slog"

	"github.com/acaxoxo/gis-rs-kotkup/pkg/config"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/dataset"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/directions"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/graph"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/logging"
	osmparser "github.com/acaxoxo/gis-rs-kotkup/pkg/osm"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	envFile := flag.String("env", ".env", "Path to .env file (ignored when missing)")
	source := flag.String("source", "", "Dataset source: file, http or neo4j (overrides dataset.source)")
	input := flag.String("input", "", "Dataset JSON file or URL, depending on -source")
	output := flag.String("output", "graph.bin", "Output snapshot file path")
	osmFile := flag.String("osm", "", "Build the dataset from facilities in this .osm.pbf extract and the ORS matrix API")
	datasetOut := flag.String("dataset-out", "", "With -osm, also write the built dataset document here")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *source != "" {
		cfg.Dataset.Source = *source
	}
	if *input != "" {
		if cfg.Dataset.Source == config.SourceHTTP {
			cfg.Dataset.URL = *input
		} else {
			cfg.Dataset.Path = *input
		}
	}
	if cfg.Dataset.Source == config.SourceSnapshot && *osmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: preprocess [-config cfg.yaml] [-source file|http|neo4j] [-input dataset.json|URL] [-output graph.bin]")
		fmt.Fprintln(os.Stderr, "       preprocess -osm kupang.osm.pbf [-dataset-out dataset.json] [-output graph.bin]")
		os.Exit(1)
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	load := func(ctx context.Context) (*dataset.Raw, error) { return loadSource(ctx, cfg.Dataset, logger) }
	if *osmFile != "" {
		load = func(ctx context.Context) (*dataset.Raw, error) {
			return buildFromOSM(ctx, *osmFile, *datasetOut, cfg, logger)
		}
	}
	if err := run(load, *output, logger); err != nil {
		logger.Error("preprocess failed", "error", err)
		os.Exit(1)
	}
}

func run(load func(context.Context) (*dataset.Raw, error), output string, logger *slog.Logger) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Step 1: Load dataset.
	raw, err := load(ctx)
	if err != nil {
		return err
	}

	// Step 2: Validate and build the store.
	store, err := graph.Build(raw)
	if err != nil {
		return err
	}
	logger.Info("graph built",
		"nodes", store.Len(),
		"distance_edges", store.Matrix(graph.Distance).EdgeCount(),
		"duration_edges", store.Matrix(graph.Duration).EdgeCount())
	if isolated := graph.Isolated(store); len(isolated) > 0 {
		logger.Warn("facilities without any road edge", "nodes", isolated)
	}

	// Step 3: Serialize to binary.
	logger.Info("writing snapshot", "path", output)
	if err := graph.WriteBinary(output, store); err != nil {
		return err
	}

	info, err := os.Stat(output)
	if err != nil {
		return err
	}
	logger.Info("done", "elapsed", time.Since(start).Round(time.Millisecond), "output", output, "bytes", info.Size())
	return nil
}

func loadSource(ctx context.Context, cfg dataset.Config, logger *slog.Logger) (*dataset.Raw, error) {
	logger.Info("loading dataset", "source", cfg.Source)
	src, err := dataset.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer dataset.CloseSource(ctx, src)
	return src.Load(ctx)
}

// buildFromOSM extracts facilities from a PBF extract and asks ORS for the
// road matrices between them.
func buildFromOSM(ctx context.Context, path, datasetOut string, cfg config.Config, logger *slog.Logger) (*dataset.Raw, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open extract: %w", err)
	}
	defer f.Close()

	logger.Info("extracting facilities", "path", path)
	nodes, err := osmparser.Extract(ctx, f, osmparser.ExtractOptions{
		Region:        cfg.Geocode.Region,
		MaxRoadMeters: 500,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	if len(nodes) < 2 {
		return nil, fmt.Errorf("%w: %d facilities found", dataset.ErrIncomplete, len(nodes))
	}

	points := make([]orb.Point, len(nodes))
	for i, n := range nodes {
		points[i] = orb.Point{n.Lng, n.Lat}
	}
	logger.Info("requesting road matrix", "locations", len(points))
	m, err := directions.NewORS(cfg.Directions).Matrix(ctx, points)
	if err != nil {
		return nil, err
	}

	raw := &dataset.Raw{Nodes: nodes, Distances: m.Distances, Durations: m.Durations}
	if datasetOut != "" {
		if err := dataset.WriteFile(datasetOut, raw); err != nil {
			return nil, err
		}
		logger.Info("dataset written", "path", datasetOut)
	}
	return raw, nil
}
