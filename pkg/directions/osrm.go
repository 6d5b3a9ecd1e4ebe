package directions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const (
	defaultOSRMBaseURL = "https://router.project-osrm.org"
	defaultOSRMProfile = "driving"
)

type osrmResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Distance float64           `json:"distance"`
	Duration float64           `json:"duration"`
	Geometry *geojson.Geometry `json:"geometry"`
}

// OSRM is a client for the OSRM route service.
type OSRM struct {
	baseURL    string
	profile    string
	httpClient *http.Client
}

// NewOSRM creates an OSRM client. Empty fields take the public defaults.
func NewOSRM(cfg Config) *OSRM {
	o := &OSRM{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		profile: cfg.Profile,
	}
	if o.baseURL == "" {
		o.baseURL = defaultOSRMBaseURL
	}
	if o.profile == "" {
		o.profile = defaultOSRMProfile
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	o.httpClient = &http.Client{Timeout: timeout}
	return o
}

// Directions implements Provider.
func (o *OSRM) Directions(ctx context.Context, coords []orb.Point) (orb.LineString, error) {
	if len(coords) < 2 {
		return nil, ErrTooFewPoints
	}

	parts := make([]string, len(coords))
	for i, c := range coords {
		parts[i] = strconv.FormatFloat(c.Lon(), 'f', 6, 64) + "," + strconv.FormatFloat(c.Lat(), 'f', 6, 64)
	}
	url := fmt.Sprintf("%s/route/v1/%s/%s?overview=full&geometries=geojson",
		o.baseURL, o.profile, strings.Join(parts, ";"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrNoGeometry, resp.StatusCode, truncate(string(data), 200))
	}

	var r osrmResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: decode failed: %v", ErrNoGeometry, err)
	}
	if r.Code != "Ok" {
		return nil, fmt.Errorf("%w: OSRM code %s: %s", ErrNoGeometry, r.Code, r.Message)
	}
	if len(r.Routes) == 0 || r.Routes[0].Geometry == nil {
		return nil, ErrNoGeometry
	}
	line, ok := r.Routes[0].Geometry.Geometry().(orb.LineString)
	if !ok || len(line) < 2 {
		return nil, fmt.Errorf("%w: route geometry is not a line", ErrNoGeometry)
	}
	return line, nil
}
