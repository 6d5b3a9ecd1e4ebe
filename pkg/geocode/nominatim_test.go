package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQualify(t *testing.T) {
	tests := []struct {
		query, want string
	}{
		{"Flobamora Mall", "Flobamora Mall, Kota Kupang, NTT, Indonesia"},
		{"Jl. El Tari, Kupang", "Jl. El Tari, Kupang"},
		{"KUPANG bandara", "KUPANG bandara"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Qualify(tt.query, DefaultAnchor, DefaultSuffix))
	}
	assert.Equal(t, "x", Qualify("x", "", ", suffix"))
}

func TestGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "Flobamora Mall, Kota Kupang, NTT, Indonesia", q.Get("q"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "5", q.Get("limit"))
		assert.Equal(t, "1", q.Get("addressdetails"))
		assert.Equal(t, "id", q.Get("countrycodes"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"osm_type": "way", "osm_id": 123456, "lat": "-10.1630", "lon": "123.6020",
			 "display_name": "Flobamora Mall, Kupang", "class": "shop", "type": "mall"},
			{"osm_type": "node", "osm_id": 9, "lat": "bad", "lon": "123.0"}
		]`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/", UserAgent: "test-agent", CountryCodes: "id"})
	m, err := c.Geocode(context.Background(), "Flobamora Mall")
	require.NoError(t, err)

	assert.InDelta(t, -10.1630, m.Point.Lat(), 1e-9)
	assert.InDelta(t, 123.6020, m.Point.Lon(), 1e-9)
	assert.Equal(t, "Flobamora Mall, Kupang", m.Label)
	assert.Equal(t, osm.WayID(123456).FeatureID(), m.Feature)
	assert.Equal(t, "way/123456", m.Feature.String())

	all, err := c.Search(context.Background(), "Flobamora Mall")
	require.NoError(t, err)
	assert.Len(t, all, 1, "unparseable coordinates are skipped")
}

func TestGeocodeNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).Geocode(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGeocodeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).Geocode(context.Background(), "Oebobo")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NotErrorIs(t, err, ErrNotFound)
}
