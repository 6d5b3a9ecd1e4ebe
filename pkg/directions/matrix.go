package directions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/paulmach/orb"
)

// ErrNoMatrix is returned when the matrix service answered without usable tables.
var ErrNoMatrix = errors.New("directions: no matrix returned")

// Unroutable is written for pairs the matrix service could not route.
const Unroutable = -1.0

// Matrix holds many-to-many road distances (meters) and durations (seconds).
// Cell [i][j] is the cost from location i to location j.
type Matrix struct {
	Distances [][]float64
	Durations [][]float64
}

type orsMatrixResponse struct {
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

// Matrix calls the ORS matrix endpoint for every ordered pair of locations.
func (o *ORS) Matrix(ctx context.Context, locations []orb.Point) (*Matrix, error) {
	if len(locations) < 2 {
		return nil, ErrTooFewPoints
	}

	pairs := make([][2]float64, len(locations))
	for i, c := range locations {
		pairs[i] = [2]float64{c.Lon(), c.Lat()}
	}
	body, err := json.Marshal(map[string]any{
		"locations": pairs,
		"metrics":   []string{"distance", "duration"},
		"units":     "m",
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v2/matrix/%s", o.baseURL, o.profile)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", o.apiKey)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrNoMatrix, resp.StatusCode, truncate(string(data), 200))
	}

	var out orsMatrixResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 16<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode failed: %v", ErrNoMatrix, err)
	}

	n := len(locations)
	dist, err := squareTable(out.Distances, n)
	if err != nil {
		return nil, fmt.Errorf("distances: %w", err)
	}
	dur, err := squareTable(out.Durations, n)
	if err != nil {
		return nil, fmt.Errorf("durations: %w", err)
	}
	return &Matrix{Distances: dist, Durations: dur}, nil
}

// squareTable checks the shape and replaces null cells with Unroutable.
func squareTable(rows [][]*float64, n int) ([][]float64, error) {
	if len(rows) != n {
		return nil, fmt.Errorf("%w: %d rows for %d locations", ErrNoMatrix, len(rows), n)
	}
	out := make([][]float64, n)
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("%w: row %d has %d cells", ErrNoMatrix, i, len(row))
		}
		out[i] = make([]float64, n)
		for j, v := range row {
			if v == nil {
				out[i][j] = Unroutable
			} else {
				out[i][j] = *v
			}
		}
	}
	return out, nil
}
