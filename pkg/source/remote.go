package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// Fetcher downloads remote CSV/ZIP sources with a bounded per-request timeout.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher. timeout bounds the whole request including the
// body read; zero means no limit.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch downloads one source URL and parses it like a local file would be:
// ZIP archives go through largest-CSV selection, plain bodies are read as CSV.
// Non-2xx responses are an error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, wanted []string) (*Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: HTTP %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", rawURL, err)
	}

	if isZipURL(rawURL) {
		return ReadZip(data, wanted)
	}
	return Read(data, wanted)
}

func isZipURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.HasSuffix(strings.ToLower(rawURL), ".zip")
	}
	return strings.EqualFold(path.Ext(u.Path), ".zip")
}
