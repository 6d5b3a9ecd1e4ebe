package shortest

import (
	"fmt"
	"math"

	"github.com/acaxoxo/gis-rs-kotkup/pkg/graph"
)

// MinHeap is a concrete-typed min-heap for Dijkstra priority queue.
// Avoids interface boxing overhead of container/heap.
type MinHeap struct {
	items []PQItem
}

// PQItem is a priority queue entry.
type PQItem struct {
	Node graph.NodeID
	Dist float64
}

func (h *MinHeap) Len() int { return len(h.items) }

func (h *MinHeap) Push(node graph.NodeID, dist float64) {
	h.items = append(h.items, PQItem{node, dist})
	h.siftUp(len(h.items) - 1)
}

func (h *MinHeap) Pop() PQItem {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return item
}

func (h *MinHeap) PeekDist() float64 {
	if len(h.items) == 0 {
		return math.Inf(1)
	}
	return h.items[0].Dist
}

func (h *MinHeap) Reset() {
	h.items = h.items[:0]
}

func (h *MinHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[i].Dist >= h.items[parent].Dist {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *MinHeap) siftDown(i int) {
	n := len(h.items)
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < n && h.items[left].Dist < h.items[smallest].Dist {
			smallest = left
		}
		if right < n && h.items[right].Dist < h.items[smallest].Dist {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}

// Tree is a single-source shortest-path tree.
type Tree struct {
	src  graph.NodeID
	m    *graph.Matrix
	dist []float64
	pred []graph.NodeID
}

// SingleSource runs Dijkstra from src over m. src must be a node of m.
func SingleSource(m *graph.Matrix, src graph.NodeID) (*Tree, error) {
	n := m.Size()
	if src < 0 || int(src) >= n {
		return nil, fmt.Errorf("%w: source %d", ErrNodeOutOfRange, src)
	}

	dist := make([]float64, n)
	pred := make([]graph.NodeID, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		pred[i] = NoHop
	}
	dist[src] = 0

	pq := MinHeap{items: make([]PQItem, 0, n)}
	pq.Push(src, 0)
	settled := make([]bool, n)

	for pq.Len() > 0 {
		cur := pq.Pop()
		u := int(cur.Node)
		if settled[u] {
			continue
		}
		settled[u] = true

		for v := 0; v < n; v++ {
			w, ok := m.Edge(u, v)
			if !ok || settled[v] {
				continue
			}
			if nd := cur.Dist + w; nd < dist[v] {
				dist[v] = nd
				pred[v] = cur.Node
				pq.Push(graph.NodeID(v), nd)
			}
		}
	}

	return &Tree{src: src, m: m, dist: dist, pred: pred}, nil
}

// Source returns the tree's root.
func (t *Tree) Source() graph.NodeID { return t.src }

// Distance returns the shortest cost to dst, +Inf when unreachable.
func (t *Tree) Distance(dst graph.NodeID) float64 {
	return t.dist[dst]
}

// Reachable reports whether dst can be reached from the source.
func (t *Tree) Reachable(dst graph.NodeID) bool {
	return !math.IsInf(t.dist[dst], 1)
}

// Changed reports whether the optimum to dst differs from the direct value.
func (t *Tree) Changed(dst graph.NodeID) bool {
	if dst == t.src {
		return false
	}
	return t.dist[dst] != t.m.Cost(int(t.src), int(dst))
}

// Path reconstructs the route to dst by following predecessors. An
// unreachable dst yields an empty path.
func (t *Tree) Path(dst graph.NodeID) (Path, error) {
	n := len(t.dist)
	if dst < 0 || int(dst) >= n {
		return nil, fmt.Errorf("%w: target %d", ErrNodeOutOfRange, dst)
	}
	if dst == t.src {
		return Path{dst}, nil
	}
	if !t.Reachable(dst) {
		return nil, nil
	}

	var rev Path
	for cur := dst; cur != t.src; cur = t.pred[cur] {
		if len(rev) >= n || cur == NoHop {
			return nil, fmt.Errorf("%w: predecessor chain to %d", ErrCorruptNextHop, dst)
		}
		rev = append(rev, cur)
	}
	rev = append(rev, t.src)

	path := make(Path, len(rev))
	for i, id := range rev {
		path[len(rev)-1-i] = id
	}
	return path, nil
}
