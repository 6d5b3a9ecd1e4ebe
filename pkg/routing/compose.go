package routing

import (
	"context"
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/acaxoxo/gis-rs-kotkup/pkg/graph"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/shortest"
)

// CostTable gives the shortest cost between two nodes in one metric.
type CostTable interface {
	Cost(from, to graph.NodeID) float64
}

// treeCosts answers Cost from single-source trees, built on first use per
// source. It is confined to one request.
type treeCosts struct {
	m     *graph.Matrix
	trees map[graph.NodeID]*shortest.Tree
}

func newTreeCosts(m *graph.Matrix) *treeCosts {
	return &treeCosts{m: m, trees: make(map[graph.NodeID]*shortest.Tree)}
}

func (tc *treeCosts) tree(src graph.NodeID) (*shortest.Tree, error) {
	if t, ok := tc.trees[src]; ok {
		return t, nil
	}
	t, err := shortest.SingleSource(tc.m, src)
	if err != nil {
		return nil, err
	}
	tc.trees[src] = t
	return t, nil
}

func (tc *treeCosts) Cost(from, to graph.NodeID) float64 {
	t, err := tc.tree(from)
	if err != nil {
		return math.Inf(1)
	}
	return t.Distance(to)
}

// compose prices every hop of path from the cost tables and fetches the road
// geometry. Totals come from the tables only; the geometry is never measured.
func (e *Engine) compose(ctx context.Context, path shortest.Path, distance, duration CostTable) (*RouteResult, error) {
	nodes := make([]graph.Node, len(path))
	coords := make([]orb.Point, len(path))
	for i, id := range path {
		n, ok := e.store.Node(id)
		if !ok {
			return nil, fmt.Errorf("%w: path node %d", ErrInternal, id)
		}
		nodes[i] = n
		coords[i] = orb.Point{n.Lng, n.Lat}
	}

	segments := make([]Segment, 0, len(path)-1)
	var totalDist, totalDur float64
	for i := 0; i+1 < len(path); i++ {
		from, to := path[i], path[i+1]
		d := distance.Cost(from, to)
		t := duration.Cost(from, to)
		if math.IsInf(d, 1) || math.IsInf(t, 1) {
			return nil, fmt.Errorf("%w: segment %d→%d has no cost in both metrics", ErrNoRoute, from, to)
		}
		segments = append(segments, Segment{From: from, To: to, DistanceMeters: d, DurationSeconds: t})
		totalDist += d
		totalDur += t
	}

	line, err := e.directions(ctx, coords)
	if err != nil {
		return nil, err
	}

	return &RouteResult{
		Path:                 path,
		Nodes:                nodes,
		Segments:             segments,
		TotalDistanceMeters:  totalDist,
		TotalDurationSeconds: totalDur,
		Stops:                path.Stops(),
		Geometry:             line,
	}, nil
}

// directions calls the geometry provider. Cancellation is reported as the
// context error; every other failure is ErrGeometry.
func (e *Engine) directions(ctx context.Context, coords []orb.Point) (orb.LineString, error) {
	line, err := e.geometry.Directions(ctx, coords)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeometry, err)
	}
	if len(line) < 2 {
		return nil, fmt.Errorf("%w: %d points returned", ErrGeometry, len(line))
	}
	return line, nil
}
