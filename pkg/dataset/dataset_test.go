package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const objectDoc = `{
  "hospitals": {
    "1": {"id": 1, "name": "RSUD Kupang", "lat": -10.1676, "lng": 123.6051, "type": "hospital", "road_class": "primary"},
    "0": {"id": 0, "name": "Origin", "lat": -10.1557, "lng": 123.5968, "type": "origin"}
  },
  "matrices": {
    "distances_m": [[0, 1200.5], [null, 0]],
    "durations_s": [[0, 180], [-1, 0]]
  }
}`

const arrayDoc = `{
  "hospitals": [
    {"id": 0, "name": "Origin", "lat": -10.1557, "lng": 123.5968, "type": "origin"},
    {"id": 1, "name": "RSUD Kupang", "lat": -10.1676, "lng": 123.6051, "type": "hospital"}
  ],
  "matrices": {"distances_m": [[0, 5], [5, 0]], "durations_s": [[0, 1], [1, 0]]}
}`

func TestDecodeObjectForm(t *testing.T) {
	raw, err := Decode(strings.NewReader(objectDoc))
	require.NoError(t, err)

	require.Len(t, raw.Nodes, 2)
	assert.Equal(t, 0, raw.Nodes[0].ID, "object form is ordered by id")
	assert.Equal(t, "RSUD Kupang", raw.Nodes[1].Name)
	assert.Equal(t, "primary", raw.Nodes[1].RoadClass)

	assert.Equal(t, 1200.5, raw.Distances[0][1])
	assert.True(t, math.IsNaN(raw.Distances[1][0]), "null cell decodes as NaN")
	assert.Equal(t, -1.0, raw.Durations[1][0], "sentinels are kept as stored")
}

func TestDecodeArrayForm(t *testing.T) {
	raw, err := Decode(strings.NewReader(arrayDoc))
	require.NoError(t, err)
	require.Len(t, raw.Nodes, 2)
	assert.Equal(t, "Origin", raw.Nodes[0].Name)
	assert.Equal(t, [][]float64{{0, 5}, {5, 0}}, raw.Distances)
}

func TestDecodeIncomplete(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no hospitals", `{"matrices": {"distances_m": [[0]], "durations_s": [[0]]}}`},
		{"no matrices", `{"hospitals": []}`},
		{"no durations", `{"hospitals": [], "matrices": {"distances_m": [[0]]}}`},
		{"null hospitals", `{"hospitals": null, "matrices": {"distances_m": [[0]], "durations_s": [[0]]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, ErrIncomplete)
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"hospitals": "nope"}`))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrIncomplete))
}

func TestDocumentEncoding(t *testing.T) {
	raw := &Raw{
		Nodes:     []RawNode{{ID: 0, Name: "A"}, {ID: 1, Name: "B"}},
		Distances: [][]float64{{0, math.Inf(1)}, {math.NaN(), 0}},
		Durations: [][]float64{{0, -1}, {2, 0}},
	}
	b, err := json.Marshal(NewDocument(raw))
	require.NoError(t, err)

	s := string(b)
	assert.Contains(t, s, `"distances_m":[[0,null],[null,0]]`)
	assert.Contains(t, s, `"durations_s":[[0,-1],[2,0]]`)
	assert.Contains(t, s, `"1":{"id":1,"name":"B"`)

	back, err := Decode(strings.NewReader(s))
	require.NoError(t, err)
	assert.Equal(t, raw.Nodes, back.Nodes)
	assert.Equal(t, raw.Durations, back.Durations)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.json")
	require.NoError(t, os.WriteFile(path, []byte(arrayDoc), 0o644))

	raw, err := FileSource{Path: path}.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, raw.Nodes, 2)

	_, err = FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}.Load(context.Background())
	assert.ErrorIs(t, err, ErrSource)
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		switch r.URL.Path {
		case "/api/dataset":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(objectDoc))
		default:
			http.Error(w, "gone", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	raw, err := NewHTTPSource(srv.URL+"/api/dataset", time.Second).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, raw.Nodes, 2)

	_, err = NewHTTPSource(srv.URL+"/broken", time.Second).Load(context.Background())
	assert.ErrorIs(t, err, ErrSource)
}

func TestAssemble(t *testing.T) {
	five := 5.0
	sixty := 60.0
	nodes := []RawNode{{ID: 0}, {ID: 1}, {ID: 2}}
	edges := []RoadEdge{
		{From: 0, To: 1, Distance: &five, Duration: &sixty},
		{From: 1, To: 2, Distance: &five},
		{From: 2, To: 2, Distance: &five},
	}

	raw, err := Assemble(nodes, edges)
	require.NoError(t, err)

	assert.Equal(t, [][]float64{
		{0, 5, MissingEdge},
		{MissingEdge, 0, 5},
		{MissingEdge, MissingEdge, 0},
	}, raw.Distances)
	assert.Equal(t, [][]float64{
		{0, 60, MissingEdge},
		{MissingEdge, 0, MissingEdge},
		{MissingEdge, MissingEdge, 0},
	}, raw.Durations)
}

func TestAssembleRejects(t *testing.T) {
	_, err := Assemble(nil, nil)
	assert.ErrorIs(t, err, ErrIncomplete)

	_, err = Assemble([]RawNode{{ID: 0}}, []RoadEdge{{From: 0, To: 4}})
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	src, err := Open(context.Background(), Config{Source: KindFile, Path: "x.json"})
	require.NoError(t, err)
	assert.Equal(t, FileSource{Path: "x.json"}, src)

	src, err = Open(context.Background(), Config{Source: KindHTTP, URL: "http://example.test"})
	require.NoError(t, err)
	assert.IsType(t, &HTTPSource{}, src)
	assert.NoError(t, CloseSource(context.Background(), src))

	_, err = Open(context.Background(), Config{Source: KindSnapshot})
	assert.Error(t, err)
}

func TestWriteFileRoundTrip(t *testing.T) {
	raw := &Raw{
		Nodes:     []RawNode{{ID: 0, Name: "A", Lat: -10.15, Lng: 123.6}, {ID: 1, Name: "B", Lat: -10.16, Lng: 123.61}},
		Distances: [][]float64{{0, 1200}, {-1, 0}},
		Durations: [][]float64{{0, 180}, {math.NaN(), 0}},
	}
	path := filepath.Join(t.TempDir(), "dataset.json")
	require.NoError(t, WriteFile(path, raw))

	got, err := FileSource{Path: path}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, raw.Nodes, got.Nodes)
	assert.Equal(t, raw.Distances, got.Distances)
	assert.True(t, math.IsNaN(got.Durations[1][0]))
}
