package watermark

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Epoch is the watermark of a feed that was never successfully applied.
var Epoch = time.Time{}

// Bounds of the watermarks that can be stored as unix nanoseconds.
var (
	MinTime = time.Unix(0, math.MinInt64).UTC()
	MaxTime = time.Unix(0, math.MaxInt64).UTC()
)

// ErrOutOfRange is returned by stores asked to persist a watermark outside
// [MinTime, MaxTime].
var ErrOutOfRange = errors.New("watermark out of range")

// InRange reports whether ts lies within [MinTime, MaxTime].
func InRange(ts time.Time) bool {
	return !ts.Before(MinTime) && !ts.After(MaxTime)
}

// CheckRange returns ErrOutOfRange if any watermark of m is outside
// [MinTime, MaxTime].
func CheckRange(m Mapping) error {
	for url, ts := range m {
		if !InRange(ts) {
			return fmt.Errorf("%w: %s: %s", ErrOutOfRange, url, ts.Format(time.RFC3339))
		}
	}

	return nil
}

// Mapping associates feed URLs with the Last-Modified time of the last
// update that was successfully applied to the index.
type Mapping map[string]time.Time

// Get returns the watermark for feedURL or Epoch if none is recorded.
func (m Mapping) Get(feedURL string) time.Time {
	if ts, ok := m[feedURL]; ok {
		return ts
	}

	return Epoch
}

// Clone returns a copy of the mapping.
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}

// Store is implemented by types that can durably persist a Mapping.
type Store interface {
	// Load returns the persisted mapping. Implementations return an empty
	// mapping and a nil error when no state has been persisted yet or the
	// persisted state cannot be decoded.
	Load() (Mapping, error)

	// Save replaces the persisted state with m.
	Save(m Mapping) error
}
