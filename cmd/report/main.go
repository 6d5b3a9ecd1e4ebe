package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/acaxoxo/gis-rs-kotkup/pkg/config"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/dataset"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/graph"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/report"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/shortest"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	envFile := flag.String("env", ".env", "Path to .env file (ignored when missing)")
	input := flag.String("input", "", "Dataset JSON file (overrides the configured source)")
	snapshot := flag.String("snapshot", "", "Preprocessed snapshot file (overrides the configured source)")
	metricName := flag.String("metric", "distance", "Metric to report: distance or duration")
	pairs := flag.Bool("pairs", true, "Also print the table of all reachable pairs")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fatal(err)
	}
	switch {
	case *snapshot != "":
		cfg.Dataset.Source, cfg.Dataset.Path = config.SourceSnapshot, *snapshot
	case *input != "":
		cfg.Dataset.Source, cfg.Dataset.Path = config.SourceFile, *input
	}

	metric, err := graph.ParseMetric(*metricName)
	if err != nil {
		fatal(err)
	}

	store, err := load(cfg.Dataset)
	if err != nil {
		fatal(err)
	}

	res := shortest.AllPairs(store.Matrix(metric))
	if err := report.NewMatrixView(store, metric, res).WriteText(os.Stdout); err != nil {
		fatal(err)
	}
	if !*pairs {
		return
	}

	rows, err := report.Pairs(store, res)
	if err != nil {
		fatal(err)
	}
	fmt.Println()
	if err := report.WritePairs(os.Stdout, store, metric, rows); err != nil {
		fatal(err)
	}
}

func load(cfg dataset.Config) (*graph.Store, error) {
	if cfg.Source == config.SourceSnapshot {
		return graph.ReadBinary(cfg.Path)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

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

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "report: %v\n", err)
	os.Exit(1)
}
