package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acaxoxo/gis-rs-kotkup/pkg/geo"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/graph"
)

func kupangNodes() []graph.Node {
	return []graph.Node{
		{ID: 0, Name: "Titik Awal", Lat: -10.1557, Lng: 123.5968},
		{ID: 1, Name: "RSUD Johannes", Lat: -10.1676, Lng: 123.6051},
		{ID: 2, Name: "RS Siloam", Lat: -10.1652, Lng: 123.6183},
		{ID: 3, Name: "RS Leona", Lat: -10.1603, Lng: 123.6090},
		{ID: 4, Name: "RSU Kupang Timur", Lat: -10.0920, Lng: 123.7330},
	}
}

func TestNearestMatchesBruteForce(t *testing.T) {
	nodes := kupangNodes()
	ix := NewNodeIndex(nodes, 0)

	queries := [][2]float64{
		{-10.1600, 123.6000},
		{-10.1660, 123.6150},
		{-10.1000, 123.7200},
		{-10.1700, 123.6060},
		{-10.4000, 123.4000},
	}
	for _, q := range queries {
		got, err := ix.Nearest(q[0], q[1])
		require.NoError(t, err)

		want := nodes[0]
		best := geo.Haversine(q[0], q[1], want.Lat, want.Lng)
		for _, n := range nodes[1:] {
			if d := geo.Haversine(q[0], q[1], n.Lat, n.Lng); d < best {
				want, best = n, d
			}
		}
		assert.Equal(t, want.ID, got.Node.ID, "query %v", q)
		assert.InDelta(t, best, got.DistanceMeters, 1e-6)
	}
}

func TestNearestTooFar(t *testing.T) {
	ix := NewNodeIndex(kupangNodes(), 2_000)

	_, err := ix.Nearest(-8.65, 115.21)
	assert.ErrorIs(t, err, ErrPointTooFar)

	// Inside a search window but beyond the bound.
	_, err = ix.Nearest(-10.1557, 123.6200)
	assert.NoError(t, err)
	_, err = ix.Nearest(-10.1557, 123.5500)
	assert.ErrorIs(t, err, ErrPointTooFar)
}

func TestNearestEmpty(t *testing.T) {
	_, err := NewNodeIndex(nil, 0).Nearest(-10.16, 123.6)
	assert.ErrorIs(t, err, ErrPointTooFar)
}
