package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
)

// maxDocumentBytes bounds the size of a dataset document.
const maxDocumentBytes = 16 << 20

// Document is the wire format of the dataset endpoint.
type Document struct {
	Hospitals *NodeSet  `json:"hospitals"`
	Matrices  *Matrices `json:"matrices"`
}

// Matrices holds both weight matrices.
type Matrices struct {
	DistancesM Grid `json:"distances_m"`
	DurationsS Grid `json:"durations_s"`
}

// Grid is a matrix whose non-finite cells are encoded as JSON null.
type Grid [][]float64

// MarshalJSON writes NaN and ±Inf as null.
func (g Grid) MarshalJSON() ([]byte, error) {
	if g == nil {
		return []byte("null"), nil
	}
	rows := make([][]*float64, len(g))
	for i, row := range g {
		rows[i] = make([]*float64, len(row))
		for j := range row {
			v := row[j]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			rows[i][j] = &v
		}
	}
	return json.Marshal(rows)
}

// UnmarshalJSON reads null cells as NaN, which means "no edge".
func (g *Grid) UnmarshalJSON(b []byte) error {
	var rows [][]*float64
	if err := json.Unmarshal(b, &rows); err != nil {
		return err
	}
	if rows == nil {
		*g = nil
		return nil
	}
	out := make(Grid, len(rows))
	for i, row := range rows {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			if v == nil {
				out[i][j] = math.NaN()
				continue
			}
			out[i][j] = *v
		}
	}
	*g = out
	return nil
}

// NodeSet is the facility list. It decodes from either a JSON array or an
// object keyed by node id, and encodes as the object form.
type NodeSet []RawNode

// UnmarshalJSON accepts both array and object encodings.
func (s *NodeSet) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return fmt.Errorf("dataset: empty node set")
	}
	switch trimmed[0] {
	case '[':
		var nodes []RawNode
		if err := json.Unmarshal(trimmed, &nodes); err != nil {
			return err
		}
		*s = nodes
	case '{':
		var byKey map[string]RawNode
		if err := json.Unmarshal(trimmed, &byKey); err != nil {
			return err
		}
		nodes := make([]RawNode, 0, len(byKey))
		for _, n := range byKey {
			nodes = append(nodes, n)
		}
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
		*s = nodes
	case 'n':
		*s = nil
	default:
		return fmt.Errorf("dataset: node set must be an array or an object")
	}
	return nil
}

// MarshalJSON encodes the set as an object keyed by node id.
func (s NodeSet) MarshalJSON() ([]byte, error) {
	byKey := make(map[string]RawNode, len(s))
	for _, n := range s {
		byKey[strconv.Itoa(n.ID)] = n
	}
	return json.Marshal(byKey)
}

// Decode parses a dataset document.
func Decode(r io.Reader) (*Raw, error) {
	var doc Document
	if err := json.NewDecoder(io.LimitReader(r, maxDocumentBytes)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	return doc.Raw()
}

// Raw converts the document into a Raw dataset.
func (d *Document) Raw() (*Raw, error) {
	if d.Hospitals == nil {
		return nil, fmt.Errorf("%w: hospitals missing", ErrIncomplete)
	}
	if d.Matrices == nil || d.Matrices.DistancesM == nil || d.Matrices.DurationsS == nil {
		return nil, fmt.Errorf("%w: matrices missing", ErrIncomplete)
	}
	return &Raw{
		Nodes:     []RawNode(*d.Hospitals),
		Distances: [][]float64(d.Matrices.DistancesM),
		Durations: [][]float64(d.Matrices.DurationsS),
	}, nil
}

// NewDocument wraps a Raw dataset in its wire format.
func NewDocument(raw *Raw) *Document {
	nodes := NodeSet(raw.Nodes)
	return &Document{
		Hospitals: &nodes,
		Matrices: &Matrices{
			DistancesM: Grid(raw.Distances),
			DurationsS: Grid(raw.Durations),
		},
	}
}

// FileSource reads a dataset document from the local filesystem.
type FileSource struct {
	Path string
}

// Load implements Source.
func (s FileSource) Load(ctx context.Context) (*Raw, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrSource, s.Path, err)
	}
	defer f.Close()
	return Decode(f)
}

// WriteFile stores raw as an indented dataset document, atomically.
func WriteFile(path string, raw *Raw) error {
	data, err := json.MarshalIndent(NewDocument(raw), "", "  ")
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
