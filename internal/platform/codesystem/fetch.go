package codesystem

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Fetcher downloads CodeSystem resources from a terminology server.
type Fetcher struct {
	client *http.Client
}

func NewFetcher(retryMax int, timeout time.Duration) *Fetcher {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.Logger = nil
	rc.HTTPClient = &http.Client{Timeout: timeout}
	return &Fetcher{client: rc.StandardClient()}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/fhir+json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// LoadURL fetches url and loads the result into r.
func (r *Registry) LoadURL(ctx context.Context, f *Fetcher, url string) (int, error) {
	data, err := f.Fetch(ctx, url)
	if err != nil {
		return 0, err
	}
	n, err := r.LoadJSON(data)
	if err != nil {
		return n, fmt.Errorf("load %s: %w", url, err)
	}
	return n, nil
}
