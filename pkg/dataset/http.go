package dataset

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPSource fetches the dataset document from a read endpoint.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// NewHTTPSource returns a source with a bounded client timeout.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

// Load implements Source.
func (s *HTTPSource) Load(ctx context.Context) (*Raw, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrSource, resp.StatusCode)
	}
	return Decode(resp.Body)
}
