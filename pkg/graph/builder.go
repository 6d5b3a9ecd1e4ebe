package graph

import (
	"errors"
	"fmt"

	"github.com/acaxoxo/gis-rs-kotkup/pkg/dataset"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/geo"
)

var (
	ErrEmpty             = errors.New("graph: no nodes")
	ErrDimensionMismatch = errors.New("graph: matrix dimensions do not match node count")
	ErrInconsistentNodes = errors.New("graph: node ids are not 0..N-1")
)

// Build validates a raw dataset and creates an immutable Store.
// Either the whole dataset is accepted or an error is returned.
func Build(raw *dataset.Raw) (*Store, error) {
	if raw == nil || len(raw.Nodes) == 0 {
		return nil, ErrEmpty
	}
	n := len(raw.Nodes)

	// Step 1: Nodes must be a permutation of 0..N-1; order them by id.
	nodes := make([]Node, n)
	seen := make([]bool, n)
	for _, rn := range raw.Nodes {
		if rn.ID < 0 || rn.ID >= n {
			return nil, fmt.Errorf("%w: id %d out of range for %d nodes", ErrInconsistentNodes, rn.ID, n)
		}
		if seen[rn.ID] {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrInconsistentNodes, rn.ID)
		}
		if err := geo.ValidateLatLng(rn.Lat, rn.Lng); err != nil {
			return nil, fmt.Errorf("node %d: %w", rn.ID, err)
		}
		seen[rn.ID] = true
		nodes[rn.ID] = Node{
			ID:        NodeID(rn.ID),
			Name:      rn.Name,
			Lat:       rn.Lat,
			Lng:       rn.Lng,
			Category:  rn.Type,
			RoadClass: rn.RoadClass,
		}
	}

	// Step 2: Both matrices must be N×N.
	if len(raw.Distances) != n {
		return nil, fmt.Errorf("%w: distances has %d rows, want %d", ErrDimensionMismatch, len(raw.Distances), n)
	}
	if len(raw.Durations) != n {
		return nil, fmt.Errorf("%w: durations has %d rows, want %d", ErrDimensionMismatch, len(raw.Durations), n)
	}
	dist, err := NewMatrix(raw.Distances)
	if err != nil {
		return nil, fmt.Errorf("distances: %w", err)
	}
	dur, err := NewMatrix(raw.Durations)
	if err != nil {
		return nil, fmt.Errorf("durations: %w", err)
	}

	return &Store{nodes: nodes, distances: dist, durations: dur}, nil
}
