// Package config loads service settings from defaults, an optional YAML
// file, an optional .env file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/acaxoxo/gis-rs-kotkup/pkg/dataset"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/directions"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/geo"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/geocode"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/routing"
)

// Dataset source kinds.
const (
	SourceFile     = dataset.KindFile
	SourceHTTP     = dataset.KindHTTP
	SourceNeo4j    = dataset.KindNeo4j
	SourceSnapshot = dataset.KindSnapshot
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Dataset    dataset.Config    `yaml:"dataset"`
	Routing    RoutingConfig     `yaml:"routing"`
	Directions directions.Config `yaml:"directions"`
	Geocode    GeocodeConfig     `yaml:"geocode"`
	Log        LogConfig         `yaml:"log"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	CORSOrigin     string        `yaml:"cors_origin"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxConcurrent  int           `yaml:"max_concurrent"`
}

type RoutingConfig struct {
	Strategy        string  `yaml:"strategy"`
	AverageSpeedKph float64 `yaml:"average_speed_kph"`
	MaxSnapMeters   float64 `yaml:"max_snap_meters"`
}

// GeocodeConfig extends the Nominatim client settings with the switch and
// the region accepted matches must fall in.
type GeocodeConfig struct {
	Enabled        bool       `yaml:"enabled"`
	geocode.Config `yaml:",inline"`
	Region         geo.Region `yaml:"region"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// KupangRegion is the default service area.
var KupangRegion = geo.Region{MinLat: -10.5, MaxLat: -9.8, MinLng: 123.3, MaxLng: 124.0}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			ReadTimeout:    5 * time.Second,
			WriteTimeout:   30 * time.Second,
			RequestTimeout: 20 * time.Second,
			MaxConcurrent:  runtime.NumCPU() * 2,
		},
		Dataset: dataset.Config{
			Source:  SourceFile,
			Path:    "dataset.json",
			Timeout: 30 * time.Second,
		},
		Routing: RoutingConfig{
			Strategy:        string(routing.StrategyAllPairs),
			AverageSpeedKph: routing.DefaultAverageSpeedKph,
			MaxSnapMeters:   routing.DefaultMaxSnapMeters,
		},
		Directions: directions.Config{
			Provider: "ors",
			Timeout:  15 * time.Second,
		},
		Geocode: GeocodeConfig{
			Enabled: true,
			Region:  KupangRegion,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration. path and envFile may be empty; a missing
// .env file is not an error, a missing YAML file is.
func Load(path, envFile string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("%w: PORT %q", ErrInvalid, v)
		}
		c.Server.Addr = ":" + v
	}
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set("ORS_API_KEY", &c.Directions.APIKey)
	set("NEO4J_URI", &c.Dataset.Neo4j.URI)
	set("NEO4J_USER", &c.Dataset.Neo4j.User)
	set("NEO4J_PASSWORD", &c.Dataset.Neo4j.Password)
	set("DATASET_URL", &c.Dataset.URL)
	return nil
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	switch c.Dataset.Source {
	case SourceFile, SourceSnapshot:
		if c.Dataset.Path == "" {
			return fmt.Errorf("%w: dataset.path is required for source %q", ErrInvalid, c.Dataset.Source)
		}
	case SourceHTTP:
		if c.Dataset.URL == "" {
			return fmt.Errorf("%w: dataset.url is required for source http", ErrInvalid)
		}
	case SourceNeo4j:
		if c.Dataset.Neo4j.URI == "" {
			return fmt.Errorf("%w: dataset.neo4j.uri is required for source neo4j", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown dataset source %q", ErrInvalid, c.Dataset.Source)
	}

	if _, err := routing.ParseStrategy(c.Routing.Strategy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Routing.AverageSpeedKph <= 0 {
		return fmt.Errorf("%w: routing.average_speed_kph must be positive", ErrInvalid)
	}
	if c.Routing.MaxSnapMeters < 0 {
		return fmt.Errorf("%w: routing.max_snap_meters must not be negative", ErrInvalid)
	}

	switch c.Directions.Provider {
	case "", "ors", "osrm":
	default:
		return fmt.Errorf("%w: unknown directions provider %q", ErrInvalid, c.Directions.Provider)
	}

	r := c.Geocode.Region
	if !r.IsZero() && (r.MinLat > r.MaxLat || r.MinLng > r.MaxLng) {
		return fmt.Errorf("%w: geocode.region is inverted", ErrInvalid)
	}

	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.Log.Format)
	}
	if c.Server.MaxConcurrent <= 0 {
		return fmt.Errorf("%w: server.max_concurrent must be positive", ErrInvalid)
	}
	return nil
}
