package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mycok/sdnsync/internal/watermark"
)

//go:generate mockgen -package mocks -destination mocks/mock.go github.com/mycok/sdnsync/internal/feed HTTPClient

// HTTPClient should be implemented by objects that can perform HTTP requests.
// *http.Client satisfies this interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Status describes the outcome of a change check.
type Status int

const (
	// NoChange indicates that the feed was not modified after the stored
	// watermark.
	NoChange Status = iota

	// Changed indicates that the feed was modified after the stored
	// watermark.
	Changed

	// Indeterminate indicates that the feed did not report a usable
	// modification time.
	Indeterminate
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case NoChange:
		return "no-change"
	case Changed:
		return "changed"
	case Indeterminate:
		return "indeterminate"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Decision is returned by Poller.CheckForUpdate.
type Decision struct {
	Status Status

	// The Last-Modified time reported by the feed. Zero unless the status is
	// Changed or NoChange.
	Remote time.Time
}

// Poller checks feeds for modifications using metadata-only requests.
type Poller struct {
	client HTTPClient
}

// NewPoller returns a Poller that issues requests through client. If client
// is nil, http.DefaultClient is used instead.
func NewPoller(client HTTPClient) *Poller {
	if client == nil {
		client = http.DefaultClient
	}

	return &Poller{client: client}
}

// CheckForUpdate issues a HEAD request for the feed and compares its
// Last-Modified header against the stored watermark. A missing or malformed
// header, or one outside the range of storable watermarks, yields an
// Indeterminate decision and a nil error. Transport errors and non-2xx
// responses are returned as errors.
func (p *Poller) CheckForUpdate(
	ctx context.Context, src Source, stored time.Time,
) (Decision, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, src.URL, nil)
	if err != nil {
		return Decision{}, fmt.Errorf("check for update: %w", err)
	}

	res, err := p.client.Do(req)
	if err != nil {
		return Decision{}, fmt.Errorf("check for update: %w", err)
	}
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return Decision{}, fmt.Errorf("check for update: %w", &StatusError{
			URL: src.URL, StatusCode: res.StatusCode,
		})
	}

	header := res.Header.Get("Last-Modified")
	if header == "" {
		return Decision{Status: Indeterminate}, nil
	}

	remote, err := http.ParseTime(header)
	if err != nil {
		return Decision{Status: Indeterminate}, nil
	}

	remote = remote.UTC()
	if !watermark.InRange(remote) {
		return Decision{Status: Indeterminate}, nil
	}

	if remote.After(stored) {
		return Decision{Status: Changed, Remote: remote}, nil
	}

	return Decision{Status: NoChange, Remote: remote}, nil
}

// StatusError is returned when a feed responds with a non-2xx status code.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status code %d", e.URL, e.StatusCode)
}
