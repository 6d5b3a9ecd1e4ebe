package graph

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/acaxoxo/gis-rs-kotkup/pkg/dataset"
)

// NodeID is a dense facility index in 0..N-1.
type NodeID int

// NoNode marks a missing selection (e.g. no destination chosen).
const NoNode NodeID = -1

// ErrUnknownMetric is returned by ParseMetric.
var ErrUnknownMetric = errors.New("unknown metric")

// Node is an immutable facility.
type Node struct {
	ID        NodeID
	Name      string
	Lat       float64
	Lng       float64
	Category  string
	RoadClass string
}

// Metric selects which weight matrix a computation runs on.
type Metric int

const (
	Distance Metric = iota // meters
	Duration               // seconds
)

// Metrics lists every metric in a stable order.
var Metrics = []Metric{Distance, Duration}

func (m Metric) String() string {
	switch m {
	case Distance:
		return "distance"
	case Duration:
		return "duration"
	default:
		return fmt.Sprintf("metric(%d)", int(m))
	}
}

// Unit is the SI unit of the metric's raw values.
func (m Metric) Unit() string {
	if m == Duration {
		return "s"
	}
	return "m"
}

// ParseMetric accepts "distance" or "duration", case-insensitively.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "distance":
		return Distance, nil
	case "duration":
		return Duration, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

func (m Metric) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Metric) UnmarshalText(b []byte) error {
	v, err := ParseMetric(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Matrix is an N×N weight matrix holding the values exactly as loaded.
// Row-major: raw[i*n+j] is the weight of i→j.
type Matrix struct {
	n   int
	raw []float64
}

// NewMatrix copies rows into a Matrix. Every row must have len(rows) cells.
func NewMatrix(rows [][]float64) (*Matrix, error) {
	n := len(rows)
	raw := make([]float64, n*n)
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrDimensionMismatch, i, len(row), n)
		}
		copy(raw[i*n:], row)
	}
	return &Matrix{n: n, raw: raw}, nil
}

// Size returns N.
func (m *Matrix) Size() int { return m.n }

// Raw returns the stored value for i→j, sentinels included.
func (m *Matrix) Raw(i, j int) float64 {
	return m.raw[i*m.n+j]
}

// Edge reports the direct edge weight i→j. Only positive finite values off
// the diagonal are edges; zero, negative, NaN and infinite values are not.
func (m *Matrix) Edge(i, j int) (float64, bool) {
	if i == j {
		return 0, false
	}
	w := m.raw[i*m.n+j]
	if w > 0 && !math.IsInf(w, 1) {
		return w, true
	}
	return 0, false
}

// Cost is the normalized direct cost: 0 on the diagonal, the edge weight
// when present and +Inf otherwise.
func (m *Matrix) Cost(i, j int) float64 {
	if i == j {
		return 0
	}
	if w, ok := m.Edge(i, j); ok {
		return w
	}
	return math.Inf(1)
}

// Rows returns a copy of the raw values as a slice of rows.
func (m *Matrix) Rows() [][]float64 {
	rows := make([][]float64, m.n)
	for i := range rows {
		rows[i] = make([]float64, m.n)
		copy(rows[i], m.raw[i*m.n:(i+1)*m.n])
	}
	return rows
}

// EdgeCount returns the number of direct edges.
func (m *Matrix) EdgeCount() int {
	count := 0
	for i := 0; i < m.n; i++ {
		for j := 0; j < m.n; j++ {
			if _, ok := m.Edge(i, j); ok {
				count++
			}
		}
	}
	return count
}

// DiagonalViolations returns the indices whose stored diagonal value is not
// zero. Such values are ignored by Cost.
func (m *Matrix) DiagonalViolations() []int {
	var out []int
	for i := 0; i < m.n; i++ {
		if m.raw[i*m.n+i] != 0 {
			out = append(out, i)
		}
	}
	return out
}

// Store is the loaded, read-only graph: the nodes and one matrix per metric.
// It is safe for concurrent use.
type Store struct {
	nodes     []Node
	distances *Matrix
	durations *Matrix
}

// Len returns the number of nodes.
func (s *Store) Len() int { return len(s.nodes) }

// Nodes returns a copy of the node list ordered by ID.
func (s *Store) Nodes() []Node {
	out := make([]Node, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// Contains reports whether id names a node.
func (s *Store) Contains(id NodeID) bool {
	return id >= 0 && int(id) < len(s.nodes)
}

// Node returns the node with the given id.
func (s *Store) Node(id NodeID) (Node, bool) {
	if !s.Contains(id) {
		return Node{}, false
	}
	return s.nodes[id], true
}

// Matrix returns the weight matrix of the metric.
func (s *Store) Matrix(m Metric) *Matrix {
	if m == Duration {
		return s.durations
	}
	return s.distances
}

// Dataset converts the store back to its raw form.
func (s *Store) Dataset() *dataset.Raw {
	nodes := make([]dataset.RawNode, len(s.nodes))
	for i, n := range s.nodes {
		nodes[i] = dataset.RawNode{
			ID:        int(n.ID),
			Name:      n.Name,
			Lat:       n.Lat,
			Lng:       n.Lng,
			Type:      n.Category,
			RoadClass: n.RoadClass,
		}
	}
	return &dataset.Raw{
		Nodes:     nodes,
		Distances: s.distances.Rows(),
		Durations: s.durations.Rows(),
	}
}
