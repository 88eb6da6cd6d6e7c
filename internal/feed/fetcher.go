package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Fetcher retrieves the full body of a feed.
type Fetcher struct {
	client HTTPClient
}

// NewFetcher returns a Fetcher that issues requests through client. If client
// is nil, http.DefaultClient is used instead.
func NewFetcher(client HTTPClient) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}

	return &Fetcher{client: client}
}

// Fetch performs a GET request for the feed and returns the response body.
// Callers must close the returned reader.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	res, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()

		return nil, fmt.Errorf("fetch: %w", &StatusError{
			URL: src.URL, StatusCode: res.StatusCode,
		})
	}

	return res.Body, nil
}
