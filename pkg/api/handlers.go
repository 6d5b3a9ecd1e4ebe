package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime"
	"net/http"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/exp/slog"

	"github.com/acaxoxo/gis-rs-kotkup/pkg/dataset"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/geo"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/geocode"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/graph"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/report"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/routing"
)

// SessionHeader identifies a client view; a newer request with the same
// value supersedes the older one.
const SessionHeader = "X-Session-ID"

const maxBodyBytes = 4096

// Service is everything the handlers need from the routing layer.
type Service interface {
	routing.Router
	routing.Locator
	routing.Analyzer
}

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	svc      Service
	store    *graph.Store
	geometry routing.GeometryProvider
	sessions *routing.Sessions
	stats    StatsResponse
	logger   *slog.Logger
}

// NewHandlers creates handlers over svc. geometry serves the legacy
// directions proxy and may be nil.
func NewHandlers(svc Service, store *graph.Store, geometry routing.GeometryProvider, stats StatsResponse, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		svc:      svc,
		store:    store,
		geometry: geometry,
		sessions: routing.NewSessions(),
		stats:    stats,
		logger:   logger,
	}
}

// HandleRoute handles POST /api/v1/route.
func (h *Handlers) HandleRoute(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	metric, err := parseMetric(req.Metric)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_metric", "metric", err.Error())
		return
	}

	ctx, done := h.sessions.Begin(r.Context(), r.Header.Get(SessionHeader))
	defer done()

	result, err := h.svc.Route(ctx, routing.RouteRequest{
		From:   optionalID(req.From),
		To:     optionalID(req.To),
		Metric: metric,
	})
	if err != nil {
		h.writeRoutingError(ctx, w, err, "from")
		return
	}

	resp := RouteResponse{
		Metric:               result.Metric.String(),
		Path:                 ids(result.Path),
		TotalDistanceMeters:  result.TotalDistanceMeters,
		TotalDurationSeconds: result.TotalDurationSeconds,
		Stops:                result.Stops,
		Indirect:             IndirectJSON{Distance: result.Indirect.Distance, Duration: result.Indirect.Duration},
		Geometry:             geojson.NewGeometry(result.Geometry),
	}
	for _, n := range result.Nodes {
		resp.Nodes = append(resp.Nodes, nodeJSON(n))
	}
	for _, seg := range result.Segments {
		resp.Segments = append(resp.Segments, SegmentJSON{
			From:            int(seg.From),
			To:              int(seg.To),
			DistanceMeters:  seg.DistanceMeters,
			DurationSeconds: seg.DurationSeconds,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleCustomRoute handles POST /api/v1/route/custom.
func (h *Handlers) HandleCustomRoute(w http.ResponseWriter, r *http.Request) {
	var req CustomRouteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var origin *routing.CustomLocation
	if req.Origin != nil {
		label := req.Origin.Label
		if label == "" {
			label = fmt.Sprintf("Custom location (%.5f, %.5f)", req.Origin.Lat, req.Origin.Lng)
		}
		origin = &routing.CustomLocation{Lat: req.Origin.Lat, Lng: req.Origin.Lng, Label: label}
	}

	ctx, done := h.sessions.Begin(r.Context(), r.Header.Get(SessionHeader))
	defer done()

	result, err := h.svc.RouteFromPoint(ctx, routing.OffGraphRequest{Origin: origin, To: optionalID(req.To)})
	if err != nil {
		h.writeRoutingError(ctx, w, err, "origin")
		return
	}
	writeJSON(w, http.StatusOK, CustomRouteResponse{
		Origin:           LocationJSON{Lat: result.Origin.Lat, Lng: result.Origin.Lng, Label: result.Origin.Label},
		Target:           nodeJSON(result.Target),
		DistanceMeters:   result.DistanceMeters,
		EstimatedMinutes: result.EstimatedMinutes,
		DisplayMinutes:   int(math.Round(result.EstimatedMinutes)),
		AverageSpeedKph:  result.AverageSpeedKph,
		Estimated:        result.Estimated,
		Geometry:         geojson.NewGeometry(result.Geometry),
	})
}

// HandleGeocode handles POST /api/v1/geocode.
func (h *Handlers) HandleGeocode(w http.ResponseWriter, r *http.Request) {
	var req GeocodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, done := h.sessions.Begin(r.Context(), r.Header.Get(SessionHeader))
	defer done()

	loc, err := h.svc.Locate(ctx, req.Address)
	if err != nil {
		h.writeRoutingError(ctx, w, err, "address")
		return
	}
	writeJSON(w, http.StatusOK, LocationJSON{Lat: loc.Lat, Lng: loc.Lng, Label: loc.Label})
}

// HandleDirections handles the legacy POST /api/route geometry proxy.
func (h *Handlers) HandleDirections(w http.ResponseWriter, r *http.Request) {
	if h.geometry == nil {
		writeError(w, http.StatusServiceUnavailable, "geometry_unavailable", "", "no directions provider configured")
		return
	}
	var req DirectionsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Coordinates) < 2 {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "coordinates", "at least two coordinates are required")
		return
	}
	points := make([]orb.Point, len(req.Coordinates))
	for i, c := range req.Coordinates {
		if err := geo.ValidateLatLng(c[1], c[0]); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_coordinates", "coordinates", err.Error())
			return
		}
		points[i] = orb.Point{c[0], c[1]}
	}

	line, err := h.geometry.Directions(r.Context(), points)
	if err != nil {
		if isTimeout(err) {
			writeError(w, http.StatusServiceUnavailable, "request_timeout", "", err.Error())
			return
		}
		h.logger.Warn("directions proxy failed", "error", err)
		writeError(w, http.StatusBadGateway, "geometry_unavailable", "", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, DirectionsResponse{Type: "success", Geometry: geojson.NewGeometry(line)})
}

// HandleNodes handles GET /api/v1/nodes.
func (h *Handlers) HandleNodes(w http.ResponseWriter, r *http.Request) {
	nodes := h.store.Nodes()
	resp := NodesResponse{Nodes: make([]NodeJSON, len(nodes))}
	for i, n := range nodes {
		resp.Nodes[i] = nodeJSON(n)
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleNearest handles GET /api/v1/nodes/nearest?lat=&lng=.
func (h *Handlers) HandleNearest(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if errLat != nil || errLng != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "lat", "lat and lng query parameters are required")
		return
	}
	near, err := h.svc.Nearest(lat, lng)
	if err != nil {
		h.writeRoutingError(r.Context(), w, err, "lat")
		return
	}
	writeJSON(w, http.StatusOK, NearestResponse{Node: nodeJSON(near.Node), DistanceMeters: near.DistanceMeters})
}

// HandleDataset handles GET /api/v1/dataset.
func (h *Handlers) HandleDataset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dataset.NewDocument(h.store.Dataset()))
}

// HandleMatrix handles GET /api/v1/matrix?metric=.
func (h *Handlers) HandleMatrix(w http.ResponseWriter, r *http.Request) {
	metric, ok := queryMetric(w, r)
	if !ok {
		return
	}
	view := report.NewMatrixView(h.store, metric, h.svc.Analyze(metric))
	unit, _ := report.DisplayUnit(metric)

	resp := MatrixResponse{
		Metric: metric.String(),
		Unit:   unit,
		Nodes:  make([]NodeJSON, len(view.Nodes)),
		Cells:  make([][]CellJSON, len(view.Cells)),
	}
	for i, n := range view.Nodes {
		resp.Nodes[i] = nodeJSON(n)
	}
	for i, row := range view.Cells {
		resp.Cells[i] = make([]CellJSON, len(row))
		for j, c := range row {
			resp.Cells[i][j] = CellJSON{
				Value:    finite(c.Value),
				Original: finite(c.Original),
				Changed:  c.Changed,
				Class:    string(c.Class),
				Display:  report.FormatValue(c.Value, metric),
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandlePairs handles GET /api/v1/pairs?metric=.
func (h *Handlers) HandlePairs(w http.ResponseWriter, r *http.Request) {
	metric, ok := queryMetric(w, r)
	if !ok {
		return
	}
	rows, err := report.Pairs(h.store, h.svc.Analyze(metric))
	if err != nil {
		h.logger.Error("pairs table failed", "invariant", true, "metric", metric.String(), "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "", "")
		return
	}
	unit, _ := report.DisplayUnit(metric)
	resp := PairsResponse{Metric: metric.String(), Unit: unit, Pairs: make([]PairJSON, len(rows))}
	for i, row := range rows {
		resp.Pairs[i] = PairJSON{
			From:      int(row.From.ID),
			To:        int(row.To.ID),
			Value:     row.Value,
			Display:   report.FormatValue(row.Value, metric),
			Path:      ids(row.Path),
			PathLabel: report.PathLabel(h.store, row.Path),
			Indirect:  row.Indirect,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stats)
}

// writeRoutingError maps routing errors to responses. originField names the
// request field an ErrNoOrigin refers to.
func (h *Handlers) writeRoutingError(ctx context.Context, w http.ResponseWriter, err error, originField string) {
	if routing.Superseded(ctx) || errors.Is(err, routing.ErrSuperseded) {
		writeError(w, http.StatusConflict, "superseded", "", routing.ErrSuperseded.Error())
		return
	}

	msg := err.Error()
	switch {
	case errors.Is(err, routing.ErrNoTarget):
		writeError(w, http.StatusBadRequest, "no_target", "to", msg)
	case errors.Is(err, routing.ErrNoOrigin):
		writeError(w, http.StatusBadRequest, "no_origin", originField, msg)
	case errors.Is(err, routing.ErrSameNode):
		writeError(w, http.StatusBadRequest, "same_node", "to", msg)
	case errors.Is(err, routing.ErrUnknownNode):
		writeError(w, http.StatusBadRequest, "unknown_node", "", msg)
	case errors.Is(err, routing.ErrInvalidCoordinates):
		writeError(w, http.StatusBadRequest, "invalid_coordinates", originField, msg)
	case errors.Is(err, routing.ErrNoAddress):
		writeError(w, http.StatusBadRequest, "no_address", "address", msg)
	case errors.Is(err, routing.ErrGeometry):
		h.logger.Warn("geometry collaborator failed", "error", err)
		writeError(w, http.StatusBadGateway, "geometry_unavailable", "", msg)
	case errors.Is(err, routing.ErrNoRoute):
		writeError(w, http.StatusNotFound, "no_route_found", "", msg)
	case errors.Is(err, geocode.ErrNotFound):
		writeError(w, http.StatusNotFound, "address_not_found", "address", msg)
	case errors.Is(err, routing.ErrOutOfRegion):
		writeError(w, http.StatusUnprocessableEntity, "out_of_region", "address", msg)
	case errors.Is(err, routing.ErrPointTooFar):
		writeError(w, http.StatusUnprocessableEntity, "point_too_far", "", msg)
	case errors.Is(err, geocode.ErrUnavailable):
		h.logger.Warn("geocoder failed", "error", err)
		writeError(w, http.StatusBadGateway, "geocoder_unavailable", "", msg)
	case errors.Is(err, routing.ErrGeocoderDisabled):
		writeError(w, http.StatusServiceUnavailable, "geocoder_disabled", "", msg)
	case isTimeout(err):
		writeError(w, http.StatusServiceUnavailable, "request_timeout", "", msg)
	default:
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "", "")
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func optionalID(id *int) graph.NodeID {
	if id == nil {
		return graph.NoNode
	}
	return graph.NodeID(*id)
}

// parseMetric defaults to distance.
func parseMetric(s string) (graph.Metric, error) {
	if s == "" {
		return graph.Distance, nil
	}
	return graph.ParseMetric(s)
}

func queryMetric(w http.ResponseWriter, r *http.Request) (graph.Metric, bool) {
	metric, err := parseMetric(r.URL.Query().Get("metric"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_metric", "metric", err.Error())
		return 0, false
	}
	return metric, true
}

// decodeJSON enforces the content type and decodes a small body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, "invalid_request", "", "content type must be application/json")
		return false
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "", "malformed JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, field, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Field: field, Message: message})
}
