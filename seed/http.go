package seed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/brettbedarf/webvfs/internal/util"
)

// HTTPClient is the subset of [http.Client] used to fetch seeds
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPSource fetches a seed snapshot with a GET request
type HTTPSource struct {
	URL     string
	Headers map[string]string
	client  HTTPClient
}

// NewHTTPSource validates rawURL and returns a source using client, or
// [http.DefaultClient] when client is nil.
// Only http and https URLs with a host and no user info are accepted.
func NewHTTPSource(rawURL string, headers map[string]string, client HTTPClient) (*HTTPSource, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid seed url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid seed url %q: scheme must be http or https", rawURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid seed url %q: missing host", rawURL)
	}
	if u.User != nil {
		return nil, fmt.Errorf("invalid seed url %q: user info not allowed", rawURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{URL: rawURL, Headers: headers, client: client}, nil
}

func (h *HTTPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	logger := util.GetLogger("Seed.HTTP")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		logger.Warn().Str("url", h.URL).Int("status", resp.StatusCode).Msg("Seed request failed")
		return nil, fmt.Errorf("seed request %s: %s", h.URL, resp.Status)
	}
	return resp.Body, nil
}
