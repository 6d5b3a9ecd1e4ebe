package routing

import (
	"math"

	"github.com/tidwall/rtree"

	"github.com/acaxoxo/gis-rs-kotkup/pkg/geo"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/graph"
)

// DefaultMaxSnapMeters bounds how far a point may be from its nearest facility.
const DefaultMaxSnapMeters = 5_000.0

// Initial search half-width in degrees. 0.005° ≈ 550 m of latitude.
const initialWindowDeg = 0.005

// metersPerDegree is the length of one degree of latitude.
const metersPerDegree = 111_320.0

// NearestNode is a facility matched to a query point.
type NearestNode struct {
	Node           graph.Node
	DistanceMeters float64
}

// NodeIndex provides nearest-facility lookup using an R-tree over node
// coordinates ([lng, lat]).
type NodeIndex struct {
	tree    rtree.RTreeG[int] // position in nodes
	nodes   []graph.Node
	maxDist float64
}

// NewNodeIndex indexes nodes. maxDistMeters <= 0 disables the distance bound.
func NewNodeIndex(nodes []graph.Node, maxDistMeters float64) *NodeIndex {
	ix := &NodeIndex{nodes: nodes, maxDist: maxDistMeters}
	for i, n := range nodes {
		p := [2]float64{n.Lng, n.Lat}
		ix.tree.Insert(p, p, i)
	}
	return ix
}

// Nearest finds the closest node by haversine distance. The window grows
// until it contains a node; a final search at twice that width makes sure
// no closer node sits just outside the box.
func (ix *NodeIndex) Nearest(lat, lng float64) (*NearestNode, error) {
	if len(ix.nodes) == 0 {
		return nil, ErrPointTooFar
	}

	maxWindow := 180.0
	if ix.maxDist > 0 {
		maxWindow = 2 * ix.maxDist / metersPerDegree
	}

	window := initialWindowDeg
	for ix.count(lat, lng, window) == 0 {
		if window >= maxWindow {
			return nil, ErrPointTooFar
		}
		window *= 2
	}

	best := -1
	bestDist := math.Inf(1)
	ix.search(lat, lng, 2*window, func(i int) {
		n := ix.nodes[i]
		d := geo.Haversine(lat, lng, n.Lat, n.Lng)
		if d < bestDist || (d == bestDist && n.ID < ix.nodes[best].ID) {
			best, bestDist = i, d
		}
	})

	if best < 0 || (ix.maxDist > 0 && bestDist > ix.maxDist) {
		return nil, ErrPointTooFar
	}
	return &NearestNode{Node: ix.nodes[best], DistanceMeters: bestDist}, nil
}

func (ix *NodeIndex) count(lat, lng, window float64) int {
	n := 0
	ix.search(lat, lng, window, func(int) { n++ })
	return n
}

// search visits nodes inside a box of half-width window degrees of latitude,
// widened in longitude by 1/cos(lat).
func (ix *NodeIndex) search(lat, lng, window float64, visit func(int)) {
	lngWindow := window / math.Max(math.Cos(lat*math.Pi/180), 0.01)
	lo := [2]float64{lng - lngWindow, lat - window}
	hi := [2]float64{lng + lngWindow, lat + window}
	ix.tree.Search(lo, hi, func(_, _ [2]float64, i int) bool {
		visit(i)
		return true
	})
}
