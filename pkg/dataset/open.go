package dataset

import (
	"context"
	"fmt"
	"time"
)

// Source kinds accepted by Open. A snapshot is a compiled graph file and is
// read by package graph, not through a Source.
const (
	KindFile     = "file"
	KindHTTP     = "http"
	KindNeo4j    = "neo4j"
	KindSnapshot = "snapshot"
)

// Config selects and configures a Source.
type Config struct {
	Source  string        `yaml:"source"`
	Path    string        `yaml:"path"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	Neo4j   Neo4jConfig   `yaml:"neo4j"`
}

// Open returns the Source described by cfg. Sources holding a connection
// also implement Close(ctx).
func Open(ctx context.Context, cfg Config) (Source, error) {
	switch cfg.Source {
	case "", KindFile:
		return FileSource{Path: cfg.Path}, nil
	case KindHTTP:
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		return NewHTTPSource(cfg.URL, timeout), nil
	case KindNeo4j:
		src, err := NewNeo4jSource(ctx, cfg.Neo4j)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	return nil, fmt.Errorf("dataset: source %q cannot be opened", cfg.Source)
}

// CloseSource releases src if it holds a connection.
func CloseSource(ctx context.Context, src Source) error {
	if c, ok := src.(interface{ Close(context.Context) error }); ok {
		return c.Close(ctx)
	}
	return nil
}
