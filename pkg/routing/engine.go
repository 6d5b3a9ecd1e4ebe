package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"golang.org/x/exp/slog"

	"github.com/acaxoxo/gis-rs-kotkup/pkg/geo"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/geocode"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/graph"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/shortest"
)

// DefaultAverageSpeedKph is the speed used to estimate off-graph travel time.
const DefaultAverageSpeedKph = 40.0

// GeometryProvider turns an ordered coordinate list into a road polyline.
type GeometryProvider interface {
	Directions(ctx context.Context, coords []orb.Point) (orb.LineString, error)
}

// Geocoder resolves a free-form address.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*geocode.Match, error)
}

// Router is the interface for route queries.
type Router interface {
	Route(ctx context.Context, req RouteRequest) (*RouteResult, error)
	RouteFromPoint(ctx context.Context, req OffGraphRequest) (*OffGraphRoute, error)
}

// Locator resolves user input into locations.
type Locator interface {
	Locate(ctx context.Context, address string) (*CustomLocation, error)
	Nearest(lat, lng float64) (*NearestNode, error)
}

// Analyzer exposes the full all-pairs solution for reports.
type Analyzer interface {
	Analyze(metric graph.Metric) *shortest.Result
}

// Strategy selects how single routes are computed.
type Strategy string

const (
	StrategyAllPairs     Strategy = "all-pairs"
	StrategySingleSource Strategy = "single-source"
)

// ParseStrategy validates a configured strategy name. Empty means all-pairs.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyAllPairs:
		return StrategyAllPairs, nil
	case StrategySingleSource:
		return StrategySingleSource, nil
	}
	return "", fmt.Errorf("unknown routing strategy %q", s)
}

// RouteRequest asks for the best route between two facilities.
type RouteRequest struct {
	From   graph.NodeID
	To     graph.NodeID
	Metric graph.Metric
}

// Segment is one hop of a route with costs taken from the matrices.
type Segment struct {
	From            graph.NodeID
	To              graph.NodeID
	DistanceMeters  float64
	DurationSeconds float64
}

// Indirect reports, per metric, whether the optimum for the requested pair
// goes through other nodes instead of the direct edge.
type Indirect struct {
	Distance bool
	Duration bool
}

// RouteResult is the output of a route query.
type RouteResult struct {
	Metric               graph.Metric
	Path                 shortest.Path
	Nodes                []graph.Node
	Segments             []Segment
	TotalDistanceMeters  float64
	TotalDurationSeconds float64
	Stops                int
	Geometry             orb.LineString
	Indirect             Indirect

	// Set only with StrategyAllPairs.
	Distances *shortest.Result
	Durations *shortest.Result
}

// Engine implements Router, Locator and Analyzer over an immutable store.
type Engine struct {
	store    *graph.Store
	geometry GeometryProvider
	geocoder Geocoder
	index    *NodeIndex
	strategy Strategy
	speedKph float64
	maxSnap  float64
	region   geo.Region
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

func WithStrategy(s Strategy) Option { return func(e *Engine) { e.strategy = s } }

func WithGeocoder(g Geocoder) Option { return func(e *Engine) { e.geocoder = g } }

func WithRegion(r geo.Region) Option { return func(e *Engine) { e.region = r } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithAverageSpeed sets the off-graph speed estimate; non-positive values are ignored.
func WithAverageSpeed(kph float64) Option {
	return func(e *Engine) {
		if kph > 0 {
			e.speedKph = kph
		}
	}
}

// WithMaxSnapDistance bounds Nearest; 0 disables the bound.
func WithMaxSnapDistance(meters float64) Option {
	return func(e *Engine) { e.maxSnap = meters }
}

// NewEngine creates a routing engine over store. geometry must not be nil.
func NewEngine(store *graph.Store, geometry GeometryProvider, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		geometry: geometry,
		strategy: StrategyAllPairs,
		speedKph: DefaultAverageSpeedKph,
		maxSnap:  DefaultMaxSnapMeters,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.index = NewNodeIndex(store.Nodes(), e.maxSnap)
	return e
}

// Store returns the graph the engine routes on.
func (e *Engine) Store() *graph.Store { return e.store }

// Strategy returns the configured strategy.
func (e *Engine) Strategy() Strategy { return e.strategy }

// Analyze computes the all-pairs solution of one metric.
func (e *Engine) Analyze(metric graph.Metric) *shortest.Result {
	return shortest.AllPairs(e.store.Matrix(metric))
}

// Route computes the best route between two facilities for req.Metric.
// Inputs are validated before any computation.
func (e *Engine) Route(ctx context.Context, req RouteRequest) (*RouteResult, error) {
	if req.To == graph.NoNode {
		return nil, ErrNoTarget
	}
	if req.From == graph.NoNode {
		return nil, ErrNoOrigin
	}
	if !e.store.Contains(req.From) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, req.From)
	}
	if !e.store.Contains(req.To) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, req.To)
	}
	if req.From == req.To {
		return nil, ErrSameNode
	}

	var (
		plan *routePlan
		err  error
	)
	if e.strategy == StrategySingleSource {
		plan, err = e.planSingleSource(req)
	} else {
		plan, err = e.planAllPairs(req)
	}
	if err != nil {
		if errors.Is(err, shortest.ErrCorruptNextHop) {
			e.logger.Error("path reconstruction failed",
				"invariant", true, "from", req.From, "to", req.To, "metric", req.Metric.String(), "error", err)
			return nil, fmt.Errorf("%w: %v", ErrInternal, err)
		}
		return nil, err
	}

	if !plan.path.Valid() {
		return nil, ErrNoRoute
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := e.compose(ctx, plan.path, plan.distance, plan.duration)
	if err != nil {
		return nil, err
	}
	result.Metric = req.Metric
	result.Indirect = plan.indirect
	result.Distances = plan.distances
	result.Durations = plan.durations

	e.logger.Debug("route computed",
		"from", req.From, "to", req.To, "metric", req.Metric.String(),
		"stops", result.Stops, "distance_m", result.TotalDistanceMeters,
		"duration_s", result.TotalDurationSeconds)
	return result, nil
}

// routePlan is the path plus the cost tables used to price its segments.
type routePlan struct {
	path     shortest.Path
	distance CostTable
	duration CostTable
	indirect Indirect

	distances *shortest.Result
	durations *shortest.Result
}

func (e *Engine) planAllPairs(req RouteRequest) (*routePlan, error) {
	dist := shortest.AllPairs(e.store.Matrix(graph.Distance))
	dur := shortest.AllPairs(e.store.Matrix(graph.Duration))

	selected := dist
	if req.Metric == graph.Duration {
		selected = dur
	}
	path, err := selected.Path(req.From, req.To)
	if err != nil {
		return nil, err
	}
	return &routePlan{
		path:     path,
		distance: dist,
		duration: dur,
		indirect: Indirect{
			Distance: dist.Changed(req.From, req.To),
			Duration: dur.Changed(req.From, req.To),
		},
		distances: dist,
		durations: dur,
	}, nil
}

func (e *Engine) planSingleSource(req RouteRequest) (*routePlan, error) {
	dist := newTreeCosts(e.store.Matrix(graph.Distance))
	dur := newTreeCosts(e.store.Matrix(graph.Duration))

	selected := dist
	if req.Metric == graph.Duration {
		selected = dur
	}
	tree, err := selected.tree(req.From)
	if err != nil {
		return nil, err
	}
	path, err := tree.Path(req.To)
	if err != nil {
		return nil, err
	}

	distTree, err := dist.tree(req.From)
	if err != nil {
		return nil, err
	}
	durTree, err := dur.tree(req.From)
	if err != nil {
		return nil, err
	}
	return &routePlan{
		path:     path,
		distance: dist,
		duration: dur,
		indirect: Indirect{
			Distance: distTree.Changed(req.To),
			Duration: durTree.Changed(req.To),
		},
	}, nil
}

// Locate geocodes an address into a custom location inside the service region.
func (e *Engine) Locate(ctx context.Context, address string) (*CustomLocation, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrNoAddress
	}
	if e.geocoder == nil {
		return nil, ErrGeocoderDisabled
	}

	match, err := e.geocoder.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}
	lat, lng := match.Point.Lat(), match.Point.Lon()
	if !e.region.Contains(lat, lng) {
		return nil, fmt.Errorf("%w: %s (%.5f, %.5f)", ErrOutOfRegion, match.Label, lat, lng)
	}
	return &CustomLocation{Lat: lat, Lng: lng, Label: match.Label}, nil
}

// Nearest returns the facility closest to the given point.
func (e *Engine) Nearest(lat, lng float64) (*NearestNode, error) {
	if err := geo.ValidateLatLng(lat, lng); err != nil {
		return nil, err
	}
	return e.index.Nearest(lat, lng)
}
