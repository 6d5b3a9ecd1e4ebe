package directions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const (
	defaultORSBaseURL = "https://api.openrouteservice.org"
	defaultORSProfile = "driving-car"
)

// ORS is an OpenRouteService directions client.
type ORS struct {
	baseURL    string
	profile    string
	apiKey     string
	httpClient *http.Client
}

// NewORS creates an ORS client. Empty fields take the public defaults.
func NewORS(cfg Config) *ORS {
	o := &ORS{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		profile: cfg.Profile,
		apiKey:  cfg.APIKey,
	}
	if o.baseURL == "" {
		o.baseURL = defaultORSBaseURL
	}
	if o.profile == "" {
		o.profile = defaultORSProfile
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	o.httpClient = &http.Client{Timeout: timeout}
	return o
}

// Directions implements Provider.
func (o *ORS) Directions(ctx context.Context, coords []orb.Point) (orb.LineString, error) {
	if len(coords) < 2 {
		return nil, ErrTooFewPoints
	}

	// ORS uses [lng, lat] order
	pairs := make([][2]float64, len(coords))
	for i, c := range coords {
		pairs[i] = [2]float64{c.Lon(), c.Lat()}
	}
	body, err := json.Marshal(map[string]any{"coordinates": pairs})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v2/directions/%s/geojson", o.baseURL, o.profile)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/geo+json, application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", o.apiKey)
	}

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

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode failed: %v", ErrNoGeometry, err)
	}
	if len(fc.Features) == 0 {
		return nil, ErrNoGeometry
	}
	line, ok := fc.Features[0].Geometry.(orb.LineString)
	if !ok || len(line) < 2 {
		return nil, fmt.Errorf("%w: first feature is not a line", ErrNoGeometry)
	}
	return line, nil
}
