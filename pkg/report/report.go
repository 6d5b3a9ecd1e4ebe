// Package report renders all-pairs results as a matrix view and as a
// table of every reachable pair.
package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/acaxoxo/gis-rs-kotkup/pkg/graph"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/shortest"
)

// CellClass categorizes one matrix cell.
type CellClass string

const (
	Diagonal    CellClass = "diagonal"
	Indirect    CellClass = "indirect"
	Direct      CellClass = "direct"
	Unreachable CellClass = "unreachable"
)

// Infinity is how unreachable values are printed.
const Infinity = "∞"

// DisplayUnit returns the human unit and the divisor from the metric's raw unit.
func DisplayUnit(m graph.Metric) (unit string, divisor float64) {
	if m == graph.Duration {
		return "min", 60
	}
	return "km", 1000
}

// FormatValue prints a raw value in display units with two decimals.
func FormatValue(v float64, m graph.Metric) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return Infinity
	}
	_, div := DisplayUnit(m)
	return fmt.Sprintf("%.2f", v/div)
}

// Cell is one entry of the matrix view.
type Cell struct {
	Value    float64 // shortest cost, raw unit
	Original float64 // stored value, sentinels included
	Changed  bool
	Class    CellClass
}

// MatrixView is the N×N optimized matrix of one metric.
type MatrixView struct {
	Metric graph.Metric
	Nodes  []graph.Node
	Cells  [][]Cell
}

// NewMatrixView combines the stored matrix and its all-pairs result.
func NewMatrixView(store *graph.Store, metric graph.Metric, res *shortest.Result) *MatrixView {
	m := store.Matrix(metric)
	n := store.Len()
	cells := make([][]Cell, n)
	for i := range cells {
		cells[i] = make([]Cell, n)
		for j := range cells[i] {
			from, to := graph.NodeID(i), graph.NodeID(j)
			c := Cell{
				Value:    res.Distance(from, to),
				Original: m.Raw(i, j),
				Changed:  res.Changed(from, to),
			}
			switch {
			case i == j:
				c.Class = Diagonal
			case c.Changed:
				c.Class = Indirect
			case res.Reachable(from, to):
				c.Class = Direct
			default:
				c.Class = Unreachable
			}
			cells[i][j] = c
		}
	}
	return &MatrixView{Metric: metric, Nodes: store.Nodes(), Cells: cells}
}

// WriteText prints the view as an aligned table with a node legend.
func (v *MatrixView) WriteText(w io.Writer) error {
	unit, _ := DisplayUnit(v.Metric)
	fmt.Fprintf(w, "Floyd-Warshall %s matrix (%s), * = improved via intermediate nodes\n\n", v.Metric, unit)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "from\\to\t")
	for _, n := range v.Nodes {
		fmt.Fprintf(tw, "%d\t", n.ID)
	}
	fmt.Fprintln(tw)
	for i, row := range v.Cells {
		fmt.Fprintf(tw, "%d\t", v.Nodes[i].ID)
		for _, c := range row {
			s := FormatValue(c.Value, v.Metric)
			if c.Class == Indirect {
				s += "*"
			}
			fmt.Fprintf(tw, "%s\t", s)
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nLocations:")
	for _, n := range v.Nodes {
		if _, err := fmt.Fprintf(w, "  %d: %s\n", n.ID, n.Name); err != nil {
			return err
		}
	}
	return nil
}

// PairRow is one reachable ordered pair.
type PairRow struct {
	From     graph.Node
	To       graph.Node
	Value    float64
	Path     shortest.Path
	Indirect bool
}

// Pairs lists every reachable pair i != j in row-major order.
func Pairs(store *graph.Store, res *shortest.Result) ([]PairRow, error) {
	nodes := store.Nodes()
	var rows []PairRow
	for _, from := range nodes {
		for _, to := range nodes {
			if from.ID == to.ID || !res.Reachable(from.ID, to.ID) {
				continue
			}
			path, err := res.Path(from.ID, to.ID)
			if err != nil {
				return nil, fmt.Errorf("pair %d→%d: %w", from.ID, to.ID, err)
			}
			rows = append(rows, PairRow{
				From:     from,
				To:       to,
				Value:    res.Distance(from.ID, to.ID),
				Path:     path,
				Indirect: res.Changed(from.ID, to.ID),
			})
		}
	}
	return rows, nil
}

// PathLabel renders a path as "Name (id) → Name (id)".
func PathLabel(store *graph.Store, p shortest.Path) string {
	parts := make([]string, len(p))
	for i, id := range p {
		n, _ := store.Node(id)
		parts[i] = fmt.Sprintf("%s (%d)", n.Name, id)
	}
	return strings.Join(parts, " → ")
}

// WritePairs prints rows as a table.
func WritePairs(w io.Writer, store *graph.Store, metric graph.Metric, rows []PairRow) error {
	unit, _ := DisplayUnit(metric)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "from\tto\t%s\ttype\tpath\n", unit)
	for _, r := range rows {
		kind := "direct"
		if r.Indirect {
			kind = "indirect"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.From.Name, r.To.Name, FormatValue(r.Value, metric), kind, PathLabel(store, r.Path))
	}
	return tw.Flush()
}
