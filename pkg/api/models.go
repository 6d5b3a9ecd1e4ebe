package api

import (
	"math"

	"github.com/paulmach/orb/geojson"

	"github.com/acaxoxo/gis-rs-kotkup/pkg/graph"
)

// RouteRequest is the JSON body for POST /api/v1/route. Missing ids mean
// "not selected".
type RouteRequest struct {
	From   *int   `json:"from"`
	To     *int   `json:"to"`
	Metric string `json:"metric"`
}

// LocationJSON is a free point with an optional label.
type LocationJSON struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Label string  `json:"label,omitempty"`
}

// CustomRouteRequest is the JSON body for POST /api/v1/route/custom.
type CustomRouteRequest struct {
	Origin *LocationJSON `json:"origin"`
	To     *int          `json:"to"`
}

// GeocodeRequest is the JSON body for POST /api/v1/geocode.
type GeocodeRequest struct {
	Address string `json:"address"`
}

// DirectionsRequest is the body of the legacy POST /api/route geometry proxy.
type DirectionsRequest struct {
	Coordinates [][2]float64 `json:"coordinates"` // [lng, lat]
}

// DirectionsResponse is the legacy geometry proxy answer.
type DirectionsResponse struct {
	Type     string            `json:"type"`
	Geometry *geojson.Geometry `json:"geometry"`
}

// NodeJSON is one facility.
type NodeJSON struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Type      string  `json:"type,omitempty"`
	RoadClass string  `json:"road_class,omitempty"`
}

func nodeJSON(n graph.Node) NodeJSON {
	return NodeJSON{
		ID:        int(n.ID),
		Name:      n.Name,
		Lat:       n.Lat,
		Lng:       n.Lng,
		Type:      n.Category,
		RoadClass: n.RoadClass,
	}
}

// NodesResponse is the JSON response for GET /api/v1/nodes.
type NodesResponse struct {
	Nodes []NodeJSON `json:"nodes"`
}

// NearestResponse is the JSON response for GET /api/v1/nodes/nearest.
type NearestResponse struct {
	Node           NodeJSON `json:"node"`
	DistanceMeters float64  `json:"distance_meters"`
}

// RouteResponse is the JSON response for a successful route query.
type RouteResponse struct {
	Metric               string            `json:"metric"`
	Path                 []int             `json:"path"`
	Nodes                []NodeJSON        `json:"nodes"`
	Segments             []SegmentJSON     `json:"segments"`
	TotalDistanceMeters  float64           `json:"total_distance_meters"`
	TotalDurationSeconds float64           `json:"total_duration_seconds"`
	Stops                int               `json:"stops"`
	Indirect             IndirectJSON      `json:"indirect"`
	Geometry             *geojson.Geometry `json:"geometry"`
}

// SegmentJSON is one hop of a route.
type SegmentJSON struct {
	From            int     `json:"from"`
	To              int     `json:"to"`
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type IndirectJSON struct {
	Distance bool `json:"distance"`
	Duration bool `json:"duration"`
}

// CustomRouteResponse is the JSON response for an off-graph route.
type CustomRouteResponse struct {
	Origin           LocationJSON      `json:"origin"`
	Target           NodeJSON          `json:"target"`
	DistanceMeters   float64           `json:"distance_meters"`
	EstimatedMinutes float64           `json:"estimated_minutes"`
	DisplayMinutes   int               `json:"display_minutes"`
	AverageSpeedKph  float64           `json:"average_speed_kph"`
	Estimated        bool              `json:"estimated"`
	Geometry         *geojson.Geometry `json:"geometry"`
}

// MatrixResponse is the JSON response for GET /api/v1/matrix.
type MatrixResponse struct {
	Metric string       `json:"metric"`
	Unit   string       `json:"unit"`
	Nodes  []NodeJSON   `json:"nodes"`
	Cells  [][]CellJSON `json:"cells"`
}

// CellJSON carries raw values; non-finite ones are null.
type CellJSON struct {
	Value    *float64 `json:"value"`
	Original *float64 `json:"original"`
	Changed  bool     `json:"changed"`
	Class    string   `json:"class"`
	Display  string   `json:"display"`
}

// PairsResponse is the JSON response for GET /api/v1/pairs.
type PairsResponse struct {
	Metric string     `json:"metric"`
	Unit   string     `json:"unit"`
	Pairs  []PairJSON `json:"pairs"`
}

type PairJSON struct {
	From      int     `json:"from"`
	To        int     `json:"to"`
	Value     float64 `json:"value"`
	Display   string  `json:"display"`
	Path      []int   `json:"path"`
	PathLabel string  `json:"path_label"`
	Indirect  bool    `json:"indirect"`
}

// ErrorResponse is the JSON response for errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
}

// StatsResponse is the JSON response for GET /api/v1/stats.
type StatsResponse struct {
	NumNodes   int            `json:"num_nodes"`
	Edges      map[string]int `json:"edges"`
	Components int            `json:"components"`
	Isolated   []int          `json:"isolated"`
	Strategy   string         `json:"strategy"`
}

// NewStats summarizes a store.
func NewStats(store *graph.Store, strategy string) StatsResponse {
	edges := make(map[string]int, len(graph.Metrics))
	for _, m := range graph.Metrics {
		edges[m.String()] = store.Matrix(m).EdgeCount()
	}
	isolated := ids(graph.Isolated(store))
	return StatsResponse{
		NumNodes:   store.Len(),
		Edges:      edges,
		Components: len(graph.Components(store)),
		Isolated:   isolated,
		Strategy:   strategy,
	}
}

// HealthResponse is the JSON response for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}

func ids(path []graph.NodeID) []int {
	out := make([]int, len(path))
	for i, id := range path {
		out[i] = int(id)
	}
	return out
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}
