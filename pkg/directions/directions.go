// Package directions fetches road geometry for an ordered list of
// coordinates from OpenRouteService or OSRM.
package directions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

var (
	// ErrNoGeometry is returned when the service answered without a usable line.
	ErrNoGeometry = errors.New("directions: no geometry returned")

	// ErrTooFewPoints is returned for requests with fewer than two coordinates.
	ErrTooFewPoints = errors.New("directions: at least two coordinates required")
)

// Provider returns the road polyline through coords, in order.
type Provider interface {
	Directions(ctx context.Context, coords []orb.Point) (orb.LineString, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider string        `yaml:"provider"` // "ors" or "osrm"
	BaseURL  string        `yaml:"base_url"`
	Profile  string        `yaml:"profile"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// New builds the provider named by cfg.Provider.
func New(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "ors":
		return NewORS(cfg), nil
	case "osrm":
		return NewOSRM(cfg), nil
	}
	return nil, fmt.Errorf("unknown directions provider %q", cfg.Provider)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
