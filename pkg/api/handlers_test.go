package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acaxoxo/gis-rs-kotkup/pkg/dataset"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/geocode"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/graph"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/logging"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/routing"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/shortest"
)

// mockService implements Service for testing.
type mockService struct {
	route    *routing.RouteResult
	offGraph *routing.OffGraphRoute
	location *routing.CustomLocation
	nearest  *routing.NearestNode
	err      error

	gotRoute    routing.RouteRequest
	gotOffGraph routing.OffGraphRequest
	analyze     func(graph.Metric) *shortest.Result
}

func (m *mockService) Route(ctx context.Context, req routing.RouteRequest) (*routing.RouteResult, error) {
	m.gotRoute = req
	return m.route, m.err
}

func (m *mockService) RouteFromPoint(ctx context.Context, req routing.OffGraphRequest) (*routing.OffGraphRoute, error) {
	m.gotOffGraph = req
	return m.offGraph, m.err
}

func (m *mockService) Locate(ctx context.Context, address string) (*routing.CustomLocation, error) {
	return m.location, m.err
}

func (m *mockService) Nearest(lat, lng float64) (*routing.NearestNode, error) {
	return m.nearest, m.err
}

func (m *mockService) Analyze(metric graph.Metric) *shortest.Result {
	return m.analyze(metric)
}

type stubGeometry struct {
	line orb.LineString
	err  error
}

func (s stubGeometry) Directions(ctx context.Context, coords []orb.Point) (orb.LineString, error) {
	return s.line, s.err
}

func testStore(t *testing.T) *graph.Store {
	t.Helper()
	s, err := graph.Build(&dataset.Raw{
		Nodes: []dataset.RawNode{
			{ID: 0, Name: "A", Lat: -10.15, Lng: 123.60, Type: "hospital"},
			{ID: 1, Name: "B", Lat: -10.16, Lng: 123.61},
			{ID: 2, Name: "C", Lat: -10.17, Lng: 123.62},
		},
		Distances: [][]float64{{0, 5, 20}, {-1, 0, 5}, {-1, -1, 0}},
		Durations: [][]float64{{0, 60, 300}, {-1, 0, 60}, {-1, -1, 0}},
	})
	require.NoError(t, err)
	return s
}

func newTestHandlers(t *testing.T, svc *mockService) *Handlers {
	store := testStore(t)
	if svc.analyze == nil {
		svc.analyze = func(m graph.Metric) *shortest.Result { return shortest.AllPairs(store.Matrix(m)) }
	}
	line := orb.LineString{{123.60, -10.15}, {123.62, -10.17}}
	return NewHandlers(svc, store, stubGeometry{line: line}, NewStats(store, "all-pairs"), logging.Discard())
}

func post(h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandleRoute_Success(t *testing.T) {
	svc := &mockService{
		route: &routing.RouteResult{
			Metric:               graph.Distance,
			Path:                 shortest.Path{0, 1, 2},
			Nodes:                []graph.Node{{ID: 0, Name: "A"}, {ID: 1, Name: "B"}, {ID: 2, Name: "C"}},
			Segments:             []routing.Segment{{From: 0, To: 1, DistanceMeters: 5, DurationSeconds: 60}, {From: 1, To: 2, DistanceMeters: 5, DurationSeconds: 60}},
			TotalDistanceMeters:  10,
			TotalDurationSeconds: 120,
			Stops:                1,
			Geometry:             orb.LineString{{123.60, -10.15}, {123.62, -10.17}},
			Indirect:             routing.Indirect{Distance: true, Duration: true},
		},
	}
	h := newTestHandlers(t, svc)

	w := post(h.HandleRoute, "/api/v1/route", `{"from":0,"to":2,"metric":"distance"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp RouteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []int{0, 1, 2}, resp.Path)
	assert.Equal(t, 10.0, resp.TotalDistanceMeters)
	assert.Equal(t, 120.0, resp.TotalDurationSeconds)
	assert.Equal(t, 1, resp.Stops)
	assert.Len(t, resp.Segments, 2)
	assert.True(t, resp.Indirect.Distance)
	require.NotNil(t, resp.Geometry)
	assert.Equal(t, "LineString", resp.Geometry.Type)

	assert.Equal(t, graph.NodeID(0), svc.gotRoute.From)
	assert.Equal(t, graph.NodeID(2), svc.gotRoute.To)
}

func TestHandleRoute_MissingIDs(t *testing.T) {
	svc := &mockService{err: routing.ErrNoTarget}
	h := newTestHandlers(t, svc)

	w := post(h.HandleRoute, "/api/v1/route", `{"from":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, graph.NoNode, svc.gotRoute.To)
	assert.Equal(t, graph.Distance, svc.gotRoute.Metric, "metric defaults to distance")
	assert.Equal(t, "to", decodeError(t, w).Field)
}

func TestHandleRoute_InvalidJSON(t *testing.T) {
	h := newTestHandlers(t, &mockService{})
	w := post(h.HandleRoute, "/api/v1/route", "not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRoute_MissingContentType(t *testing.T) {
	h := newTestHandlers(t, &mockService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/route", strings.NewReader(`{"from":0,"to":1}`))
	w := httptest.NewRecorder()
	h.HandleRoute(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRoute_BadMetric(t *testing.T) {
	h := newTestHandlers(t, &mockService{})
	w := post(h.HandleRoute, "/api/v1/route", `{"from":0,"to":1,"metric":"fuel"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_metric", decodeError(t, w).Error)
}

func TestHandleRoute_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{routing.ErrNoOrigin, http.StatusBadRequest, "no_origin"},
		{routing.ErrSameNode, http.StatusBadRequest, "same_node"},
		{fmt.Errorf("%w: 9", routing.ErrUnknownNode), http.StatusBadRequest, "unknown_node"},
		{routing.ErrNoRoute, http.StatusNotFound, "no_route_found"},
		{routing.ErrGeometry, http.StatusBadGateway, "geometry_unavailable"},
		{fmt.Errorf("%w: bad table", routing.ErrInternal), http.StatusInternalServerError, "internal_error"},
		{context.DeadlineExceeded, http.StatusServiceUnavailable, "request_timeout"},
		{routing.ErrSuperseded, http.StatusConflict, "superseded"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			h := newTestHandlers(t, &mockService{err: tt.err})
			w := post(h.HandleRoute, "/api/v1/route", `{"from":0,"to":1}`)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Error)
		})
	}
}

func TestHandleCustomRoute(t *testing.T) {
	svc := &mockService{
		offGraph: &routing.OffGraphRoute{
			Origin:           routing.CustomLocation{Lat: -10.15, Lng: 123.59, Label: "x"},
			Target:           graph.Node{ID: 2, Name: "C"},
			Geometry:         orb.LineString{{123.59, -10.15}, {123.62, -10.17}},
			DistanceMeters:   4000,
			EstimatedMinutes: 6.4,
			AverageSpeedKph:  40,
			Estimated:        true,
		},
	}
	h := newTestHandlers(t, svc)

	w := post(h.HandleCustomRoute, "/api/v1/route/custom", `{"origin":{"lat":-10.15,"lng":123.59},"to":2}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp CustomRouteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 6, resp.DisplayMinutes)
	assert.True(t, resp.Estimated)
	assert.Equal(t, "C", resp.Target.Name)

	require.NotNil(t, svc.gotOffGraph.Origin)
	assert.Equal(t, "Custom location (-10.15000, 123.59000)", svc.gotOffGraph.Origin.Label)
}

func TestHandleCustomRoute_NoOrigin(t *testing.T) {
	svc := &mockService{err: routing.ErrNoOrigin}
	h := newTestHandlers(t, svc)

	w := post(h.HandleCustomRoute, "/api/v1/route/custom", `{"to":2}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, svc.gotOffGraph.Origin)
	assert.Equal(t, "origin", decodeError(t, w).Field)
}

func TestHandleGeocode(t *testing.T) {
	svc := &mockService{location: &routing.CustomLocation{Lat: -10.16, Lng: 123.6, Label: "Jalan El Tari"}}
	h := newTestHandlers(t, svc)

	w := post(h.HandleGeocode, "/api/v1/geocode", `{"address":"jalan el tari"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp LocationJSON
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Jalan El Tari", resp.Label)
}

func TestHandleGeocode_Errors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{routing.ErrNoAddress, http.StatusBadRequest, "no_address"},
		{geocode.ErrNotFound, http.StatusNotFound, "address_not_found"},
		{routing.ErrOutOfRegion, http.StatusUnprocessableEntity, "out_of_region"},
		{fmt.Errorf("%w: status 500", geocode.ErrUnavailable), http.StatusBadGateway, "geocoder_unavailable"},
		{routing.ErrGeocoderDisabled, http.StatusServiceUnavailable, "geocoder_disabled"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			h := newTestHandlers(t, &mockService{err: tt.err})
			w := post(h.HandleGeocode, "/api/v1/geocode", `{"address":"x"}`)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Error)
		})
	}
}

func TestHandleDirections(t *testing.T) {
	h := newTestHandlers(t, &mockService{})

	w := post(h.HandleDirections, "/api/route", `{"coordinates":[[123.60,-10.15],[123.62,-10.17]]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp DirectionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Type)
	assert.Equal(t, orb.LineString{{123.60, -10.15}, {123.62, -10.17}}, resp.Geometry.Geometry())

	w = post(h.HandleDirections, "/api/route", `{"coordinates":[[123.60,-10.15]]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	h.geometry = stubGeometry{err: errors.New("upstream down")}
	w = post(h.HandleDirections, "/api/route", `{"coordinates":[[123.60,-10.15],[123.62,-10.17]]}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHandleNearest(t *testing.T) {
	svc := &mockService{nearest: &routing.NearestNode{Node: graph.Node{ID: 1, Name: "B"}, DistanceMeters: 42}}
	h := newTestHandlers(t, svc)

	w := httptest.NewRecorder()
	h.HandleNearest(w, httptest.NewRequest(http.MethodGet, "/api/v1/nodes/nearest?lat=-10.16&lng=123.61", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp NearestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Node.ID)

	w = httptest.NewRecorder()
	h.HandleNearest(w, httptest.NewRequest(http.MethodGet, "/api/v1/nodes/nearest?lat=x", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	h.svc = &mockService{err: routing.ErrPointTooFar}
	w = httptest.NewRecorder()
	h.HandleNearest(w, httptest.NewRequest(http.MethodGet, "/api/v1/nodes/nearest?lat=-8&lng=115", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandleMatrix(t *testing.T) {
	h := newTestHandlers(t, &mockService{})

	w := httptest.NewRecorder()
	h.HandleMatrix(w, httptest.NewRequest(http.MethodGet, "/api/v1/matrix?metric=duration", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp MatrixResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "min", resp.Unit)
	require.Len(t, resp.Cells, 3)

	ac := resp.Cells[0][2]
	assert.Equal(t, "indirect", ac.Class)
	require.NotNil(t, ac.Value)
	assert.Equal(t, 120.0, *ac.Value)
	assert.Equal(t, 300.0, *ac.Original)
	assert.Equal(t, "2.00", ac.Display)

	ca := resp.Cells[2][0]
	assert.Equal(t, "unreachable", ca.Class)
	assert.Nil(t, ca.Value)
	assert.Equal(t, "∞", ca.Display)

	w = httptest.NewRecorder()
	h.HandleMatrix(w, httptest.NewRequest(http.MethodGet, "/api/v1/matrix?metric=fuel", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlePairs(t *testing.T) {
	h := newTestHandlers(t, &mockService{})

	w := httptest.NewRecorder()
	h.HandlePairs(w, httptest.NewRequest(http.MethodGet, "/api/v1/pairs", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp PairsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Pairs, 3)
	assert.Equal(t, "A (0) → B (1) → C (2)", resp.Pairs[1].PathLabel)
	assert.True(t, resp.Pairs[1].Indirect)
}

func TestHandleDataset(t *testing.T) {
	h := newTestHandlers(t, &mockService{})

	w := httptest.NewRecorder()
	h.HandleDataset(w, httptest.NewRequest(http.MethodGet, "/api/v1/dataset", nil))
	require.Equal(t, http.StatusOK, w.Code)

	raw, err := dataset.Decode(strings.NewReader(w.Body.String()))
	require.NoError(t, err)
	assert.Len(t, raw.Nodes, 3)
	assert.Equal(t, -1.0, raw.Distances[1][0])
}

func TestHandleHealth(t *testing.T) {
	h := newTestHandlers(t, &mockService{})

	w := httptest.NewRecorder()
	h.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleStats(t *testing.T) {
	h := newTestHandlers(t, &mockService{})

	w := httptest.NewRecorder()
	h.HandleStats(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.NumNodes)
	assert.Equal(t, 3, resp.Edges["distance"])
	assert.Equal(t, 1, resp.Components)
	assert.Empty(t, resp.Isolated)
}

func TestServerRoutesAndCORS(t *testing.T) {
	h := newTestHandlers(t, &mockService{})
	cfg := DefaultConfig(":0")
	cfg.CORSOrigin = "http://localhost:5500"
	srv := httptest.NewServer(NewServer(cfg, h, logging.Discard()).Handler)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5500")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://localhost:5500", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp2, err := http.Post(srv.URL+"/api/v1/health", "application/json", nil)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp2.StatusCode)
}
