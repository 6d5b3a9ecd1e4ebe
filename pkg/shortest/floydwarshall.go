// Package shortest computes shortest paths over a graph.Matrix.
//
// AllPairs runs Floyd–Warshall with a next-hop table and records, per pair,
// whether the optimum differs from the direct edge. SingleSource runs
// Dijkstra from one node and is used when only one route is needed.
//
// Both treat the matrix through graph.Matrix.Cost: the diagonal is 0, edges
// are positive finite values and everything else is +Inf.
package shortest

import (
	"math"

	"github.com/acaxoxo/gis-rs-kotkup/pkg/graph"
)

// NoHop marks an undefined next hop.
const NoHop graph.NodeID = -1

// Result is the all-pairs solution for one metric. It is computed once and
// never mutated afterwards, so it may be shared between goroutines.
type Result struct {
	n       int
	dist    []float64
	next    []graph.NodeID
	changed []bool
}

// AllPairs computes shortest distances and next hops for every pair of m.
// It never fails: unreachable pairs keep +Inf and NoHop.
func AllPairs(m *graph.Matrix) *Result {
	n := m.Size()
	dist := make([]float64, n*n)
	next := make([]graph.NodeID, n*n)

	// Working copy: normalized costs and direct next hops.
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			dist[i*n+j] = m.Cost(i, j)
			next[i*n+j] = NoHop
			if _, ok := m.Edge(i, j); ok {
				next[i*n+j] = graph.NodeID(j)
			}
		}
	}

	var (
		baseK, baseI int
		ik, kj, cand float64
	)
	for k := 0; k < n; k++ {
		baseK = k * n
		for i := 0; i < n; i++ {
			ik = dist[i*n+k]
			if math.IsInf(ik, 1) {
				continue
			}
			baseI = i * n
			for j := 0; j < n; j++ {
				kj = dist[baseK+j]
				if math.IsInf(kj, 1) {
					continue
				}
				cand = ik + kj
				if cand < dist[baseI+j] { // strict: ties keep the earlier hop
					dist[baseI+j] = cand
					next[baseI+j] = next[baseI+k]
				}
			}
		}
	}

	changed := make([]bool, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				changed[i*n+j] = dist[i*n+j] != m.Cost(i, j)
			}
		}
	}

	return &Result{n: n, dist: dist, next: next, changed: changed}
}

// Size returns the number of nodes.
func (r *Result) Size() int { return r.n }

func (r *Result) contains(id graph.NodeID) bool {
	return id >= 0 && int(id) < r.n
}

// Distance returns the shortest cost from i to j, +Inf when unreachable.
func (r *Result) Distance(i, j graph.NodeID) float64 {
	return r.dist[int(i)*r.n+int(j)]
}

// Cost is Distance; it lets a Result serve as a cost table.
func (r *Result) Cost(i, j graph.NodeID) float64 {
	return r.Distance(i, j)
}

// NextHop returns the node after i on the shortest path to j, or NoHop.
func (r *Result) NextHop(i, j graph.NodeID) graph.NodeID {
	return r.next[int(i)*r.n+int(j)]
}

// Changed reports whether the optimum for i→j differs from the direct value,
// including a missing edge that became reachable through other nodes.
func (r *Result) Changed(i, j graph.NodeID) bool {
	return r.changed[int(i)*r.n+int(j)]
}

// Reachable reports whether j can be reached from i.
func (r *Result) Reachable(i, j graph.NodeID) bool {
	return !math.IsInf(r.Distance(i, j), 1)
}
