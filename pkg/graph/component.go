package graph

import "sort"

// UnionFind implements a disjoint-set data structure with path compression
// and union by rank.
type UnionFind struct {
	parent []int
	rank   []byte
	size   []int
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n int) *UnionFind {
	parent := make([]int, n)
	size := make([]int, n)
	for i := range n {
		parent[i] = i
		size[i] = 1
	}
	return &UnionFind{
		parent: parent,
		rank:   make([]byte, n),
		size:   size,
	}
}

// Find returns the representative of the set containing x, with path halving.
func (uf *UnionFind) Find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]] // path halving
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already same set.
func (uf *UnionFind) Union(x, y int) bool {
	rx := uf.Find(x)
	ry := uf.Find(y)
	if rx == ry {
		return false
	}

	// Union by rank.
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

// Size returns the number of elements in x's set.
func (uf *UnionFind) Size(x int) int {
	return uf.size[uf.Find(x)]
}

// Components returns the weakly connected components of the store, treating
// an edge in either metric as an undirected link. The largest component is
// first; ties are ordered by smallest member id. Members are sorted.
func Components(s *Store) [][]NodeID {
	n := s.Len()
	if n == 0 {
		return nil
	}

	uf := NewUnionFind(n)
	for _, metric := range Metrics {
		m := s.Matrix(metric)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if _, ok := m.Edge(i, j); ok {
					uf.Union(i, j)
				}
			}
		}
	}

	byRoot := make(map[int][]NodeID)
	var roots []int
	for i := 0; i < n; i++ {
		root := uf.Find(i)
		if _, ok := byRoot[root]; !ok {
			roots = append(roots, root)
		}
		byRoot[root] = append(byRoot[root], NodeID(i))
	}

	out := make([][]NodeID, 0, len(roots))
	for _, r := range roots {
		out = append(out, byRoot[r])
	}
	// Members are appended in id order, so out[i][0] is each component's smallest id.
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i][0] < out[j][0]
	})
	return out
}

// Isolated returns the nodes with no incoming or outgoing edge in any metric.
// Every route to or from them is unreachable.
func Isolated(s *Store) []NodeID {
	var out []NodeID
	for _, c := range Components(s) {
		if len(c) == 1 {
			out = append(out, c[0])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
