package routing

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/acaxoxo/gis-rs-kotkup/pkg/geo"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/graph"
)

// CustomLocation is a user-supplied point that is not a graph node.
type CustomLocation struct {
	Lat   float64
	Lng   float64
	Label string
}

// OffGraphRequest asks for a direct route from a custom location to a facility.
type OffGraphRequest struct {
	Origin *CustomLocation
	To     graph.NodeID
}

// OffGraphRoute is a direct two-point route. Its length is measured on the
// returned geometry and its duration is an estimate from a fixed speed, so
// it is never comparable with matrix results.
type OffGraphRoute struct {
	Origin           CustomLocation
	Target           graph.Node
	Geometry         orb.LineString
	DistanceMeters   float64
	EstimatedMinutes float64
	AverageSpeedKph  float64
	Estimated        bool
}

// RouteFromPoint routes from a custom origin straight to a facility,
// bypassing the matrices.
func (e *Engine) RouteFromPoint(ctx context.Context, req OffGraphRequest) (*OffGraphRoute, error) {
	if req.Origin == nil {
		return nil, ErrNoOrigin
	}
	if err := geo.ValidateLatLng(req.Origin.Lat, req.Origin.Lng); err != nil {
		return nil, err
	}
	if req.To == graph.NoNode {
		return nil, ErrNoTarget
	}
	target, ok := e.store.Node(req.To)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, req.To)
	}

	line, err := e.directions(ctx, []orb.Point{
		{req.Origin.Lng, req.Origin.Lat},
		{target.Lng, target.Lat},
	})
	if err != nil {
		return nil, err
	}

	meters := geo.PolylineLength(line)
	route := &OffGraphRoute{
		Origin:           *req.Origin,
		Target:           target,
		Geometry:         line,
		DistanceMeters:   meters,
		EstimatedMinutes: EstimateMinutes(meters, e.speedKph),
		AverageSpeedKph:  e.speedKph,
		Estimated:        true,
	}

	e.logger.Debug("off-graph route computed",
		"to", req.To, "distance_m", meters, "estimated_min", route.EstimatedMinutes)
	return route, nil
}

// EstimateMinutes converts a length to minutes at a constant speed.
func EstimateMinutes(meters, speedKph float64) float64 {
	return meters / 1000 / speedKph * 60
}
