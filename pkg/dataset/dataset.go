// Package dataset loads the facility node set and its distance and duration
// matrices from a file, an HTTP endpoint or a Neo4j database.
//
// A Source returns the data exactly as stored: sentinel values for missing
// edges are kept so later stages can compare against the original numbers.
package dataset

import (
	"context"
	"errors"
)

var (
	// ErrIncomplete is returned when the node set or the matrices are missing.
	ErrIncomplete = errors.New("dataset: incomplete document")

	// ErrSource is returned when the collaborator could not be read.
	ErrSource = errors.New("dataset: source unavailable")
)

// MissingEdge is the sentinel written for pairs without a direct edge when
// a source has to materialize a value (e.g. Neo4j with no relationship).
const MissingEdge = -1.0

// RawNode is a facility as delivered by the dataset collaborator.
type RawNode struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Type      string  `json:"type"`
	RoadClass string  `json:"road_class,omitempty"`
}

// Raw is one atomically loaded dataset. Matrices are indexed by node ID.
type Raw struct {
	Nodes     []RawNode
	Distances [][]float64 // meters
	Durations [][]float64 // seconds
}

// Source loads a dataset.
type Source interface {
	Load(ctx context.Context) (*Raw, error)
}
