package feed

import (
	"fmt"
	"net/url"
)

// The OFAC feeds that are synchronized when no feed list is configured.
const (
	ConsolidatedURL = "https://www.treasury.gov/ofac/downloads/consolidated/consolidated.xml"
	SDNURL          = "https://www.treasury.gov/ofac/downloads/sdn.xml"
)

// Source describes a remote XML feed of sanctions-list entries.
type Source struct {
	// Small ordinal used to namespace the physical index of the feed and
	// tag each indexed entry.
	Ordinal int

	// The feed URL. It uniquely identifies the source.
	URL string

	// A human readable name for the feed.
	Name string
}

// String implements fmt.Stringer.
func (s Source) String() string {
	if s.Name != "" {
		return s.Name
	}

	return s.URL
}

// DefaultSources returns the consolidated and SDN feeds, in processing order.
func DefaultSources() []Source {
	return []Source{
		{Ordinal: 0, URL: ConsolidatedURL, Name: "consolidated"},
		{Ordinal: 1, URL: SDNURL, Name: "sdn"},
	}
}

// ValidateSources ensures that a list of sources is usable: every source has
// an absolute http(s) URL and both URLs and ordinals are unique.
func ValidateSources(sources []Source) error {
	if len(sources) == 0 {
		return fmt.Errorf("no feed sources configured")
	}

	seenURLs := make(map[string]bool, len(sources))
	seenOrdinals := make(map[int]bool, len(sources))

	for _, src := range sources {
		u, err := url.Parse(src.URL)
		if err != nil {
			return fmt.Errorf("feed %q: %w", src.URL, err)
		}

		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("feed %q: unsupported scheme %q", src.URL, u.Scheme)
		}

		if src.Ordinal < 0 {
			return fmt.Errorf("feed %q: ordinal must be >= 0", src.URL)
		}

		if seenURLs[src.URL] {
			return fmt.Errorf("feed %q: duplicate URL", src.URL)
		}

		if seenOrdinals[src.Ordinal] {
			return fmt.Errorf("feed %q: duplicate ordinal %d", src.URL, src.Ordinal)
		}

		seenURLs[src.URL] = true
		seenOrdinals[src.Ordinal] = true
	}

	return nil
}
