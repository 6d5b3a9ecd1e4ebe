// Package geocode resolves free-form addresses with a Nominatim server.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

var (
	// ErrNotFound is returned when the geocoder has no result for a query.
	ErrNotFound = errors.New("geocode: address not found")

	// ErrUnavailable is returned when the geocoder could not be reached or
	// answered with an error status.
	ErrUnavailable = errors.New("geocode: service unavailable")
)

const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "gis-rs-kotkup/1.0"
	DefaultAnchor    = "kupang"
	DefaultSuffix    = ", Kota Kupang, NTT, Indonesia"
)

// Config configures a Client. Zero fields take the defaults above.
type Config struct {
	BaseURL      string        `yaml:"base_url"`
	UserAgent    string        `yaml:"user_agent"`
	CountryCodes string        `yaml:"country_codes"`
	Limit        int           `yaml:"limit"`
	Anchor       string        `yaml:"anchor"`
	Suffix       string        `yaml:"suffix"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Match is one geocoding result.
type Match struct {
	Point   orb.Point // [lng, lat]
	Label   string
	Feature osm.FeatureID
	Class   string
	Type    string
}

// Client is a Nominatim search client.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New returns a client with defaults applied.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

// Qualify appends suffix to query unless it already mentions anchor
// (case-insensitive). An empty anchor leaves the query unchanged.
func Qualify(query, anchor, suffix string) string {
	if anchor == "" || strings.Contains(strings.ToLower(query), strings.ToLower(anchor)) {
		return query
	}
	return query + suffix
}

// nominatimPlace is one element of the /search JSON response.
type nominatimPlace struct {
	OSMType     string `json:"osm_type"`
	OSMID       int64  `json:"osm_id"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Class       string `json:"class"`
	Type        string `json:"type"`
}

// Search returns every match for query, best first.
func (c *Client) Search(ctx context.Context, query string) ([]Match, error) {
	anchor, suffix := c.cfg.Anchor, c.cfg.Suffix
	if anchor == "" && suffix == "" {
		anchor, suffix = DefaultAnchor, DefaultSuffix
	}

	params := url.Values{}
	params.Set("q", Qualify(query, anchor, suffix))
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(c.cfg.Limit))
	params.Set("addressdetails", "1")
	if c.cfg.CountryCodes != "" {
		params.Set("countrycodes", c.cfg.CountryCodes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, truncate(string(body), 200))
	}

	var places []nominatimPlace
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&places); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	matches := make([]Match, 0, len(places))
	for _, p := range places {
		lat, errLat := strconv.ParseFloat(p.Lat, 64)
		lon, errLon := strconv.ParseFloat(p.Lon, 64)
		if errLat != nil || errLon != nil {
			continue
		}
		label := p.DisplayName
		if label == "" {
			label = query
		}
		matches = append(matches, Match{
			Point:   orb.Point{lon, lat},
			Label:   label,
			Feature: featureID(p.OSMType, p.OSMID),
			Class:   p.Class,
			Type:    p.Type,
		})
	}
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	return matches, nil
}

// Geocode returns the best match for query.
func (c *Client) Geocode(ctx context.Context, query string) (*Match, error) {
	matches, err := c.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return &matches[0], nil
}

func featureID(osmType string, id int64) osm.FeatureID {
	switch osmType {
	case "node":
		return osm.NodeID(id).FeatureID()
	case "way":
		return osm.WayID(id).FeatureID()
	case "relation":
		return osm.RelationID(id).FeatureID()
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
