package report

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acaxoxo/gis-rs-kotkup/pkg/dataset"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/graph"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/shortest"
)

func testStore(t *testing.T) *graph.Store {
	t.Helper()
	s, err := graph.Build(&dataset.Raw{
		Nodes: []dataset.RawNode{
			{ID: 0, Name: "Origin", Lat: -10.15, Lng: 123.60},
			{ID: 1, Name: "RSUD", Lat: -10.16, Lng: 123.61},
			{ID: 2, Name: "Siloam", Lat: -10.17, Lng: 123.62},
			{ID: 3, Name: "Leona", Lat: -10.18, Lng: 123.63},
		},
		Distances: [][]float64{
			{0, 5000, 20000, -1},
			{-1, 0, 5000, -1},
			{-1, -1, 0, -1},
			{-1, -1, -1, 0},
		},
		Durations: [][]float64{
			{0, 300, 1500, -1},
			{-1, 0, 300, -1},
			{-1, -1, 0, -1},
			{-1, -1, -1, 0},
		},
	})
	require.NoError(t, err)
	return s
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "12.35", FormatValue(12345, graph.Distance))
	assert.Equal(t, "2.50", FormatValue(150, graph.Duration))
	assert.Equal(t, Infinity, FormatValue(math.Inf(1), graph.Distance))
}

func TestMatrixViewClasses(t *testing.T) {
	s := testStore(t)
	v := NewMatrixView(s, graph.Distance, shortest.AllPairs(s.Matrix(graph.Distance)))

	require.Len(t, v.Cells, 4)
	assert.Equal(t, Diagonal, v.Cells[1][1].Class)
	assert.Equal(t, Direct, v.Cells[0][1].Class)
	assert.Equal(t, Indirect, v.Cells[0][2].Class)
	assert.Equal(t, Unreachable, v.Cells[0][3].Class)
	assert.Equal(t, Unreachable, v.Cells[2][0].Class)

	assert.Equal(t, 10000.0, v.Cells[0][2].Value)
	assert.Equal(t, 20000.0, v.Cells[0][2].Original)
	assert.Equal(t, -1.0, v.Cells[0][3].Original, "sentinel kept as stored")
}

func TestMatrixViewText(t *testing.T) {
	s := testStore(t)
	v := NewMatrixView(s, graph.Duration, shortest.AllPairs(s.Matrix(graph.Duration)))

	var buf bytes.Buffer
	require.NoError(t, v.WriteText(&buf))
	out := buf.String()

	assert.Contains(t, out, "duration matrix (min)")
	assert.Contains(t, out, "10.00*", "A→C via B is 600 s")
	assert.Contains(t, out, Infinity)
	assert.Contains(t, out, "3: Leona")
}

func TestPairs(t *testing.T) {
	s := testStore(t)
	rows, err := Pairs(s, shortest.AllPairs(s.Matrix(graph.Distance)))
	require.NoError(t, err)

	// Reachable pairs: 0→1, 0→2, 1→2.
	require.Len(t, rows, 3)
	assert.Equal(t, "Siloam", rows[1].To.Name)
	assert.True(t, rows[1].Indirect)
	assert.Equal(t, shortest.Path{0, 1, 2}, rows[1].Path)
	assert.False(t, rows[0].Indirect)

	assert.Equal(t, "Origin (0) → RSUD (1) → Siloam (2)", PathLabel(s, rows[1].Path))

	var buf bytes.Buffer
	require.NoError(t, WritePairs(&buf, s, graph.Distance, rows))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[2], "10.00")
	assert.Contains(t, lines[2], "indirect")
}
