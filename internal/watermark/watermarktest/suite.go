package watermarktest

import (
	"time"

	check "gopkg.in/check.v1"

	"github.com/mycok/sdnsync/internal/watermark"
)

// BaseSuite defines a set of re-usable watermark store tests that can be
// executed against any concrete type that implements watermark.Store.
type BaseSuite struct {
	store watermark.Store
}

// SetStore configures the test-suite to run all tests against store.
func (s *BaseSuite) SetStore(store watermark.Store) {
	s.store = store
}

// TestLoadEmpty verifies that a store without persisted state loads as an
// empty mapping.
func (s *BaseSuite) TestLoadEmpty(c *check.C) {
	m, err := s.store.Load()
	c.Assert(err, check.IsNil)
	c.Assert(m, check.NotNil)
	c.Assert(m, check.HasLen, 0)
	c.Assert(m.Get("https://example.com/sdn.xml").Equal(watermark.Epoch), check.Equals, true)
}

// TestSaveAndLoad verifies that saved watermarks round-trip exactly.
func (s *BaseSuite) TestSaveAndLoad(c *check.C) {
	in := watermark.Mapping{
		"https://example.com/sdn.xml":          time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		"https://example.com/consolidated.xml": time.Date(2023, 12, 31, 23, 59, 59, 123456789, time.UTC),
	}

	c.Assert(s.store.Save(in), check.IsNil)

	out, err := s.store.Load()
	c.Assert(err, check.IsNil)
	c.Assert(out, check.HasLen, len(in))

	for url, ts := range in {
		c.Assert(out[url].Equal(ts), check.Equals, true, check.Commentf("watermark mismatch for %s", url))
	}
}

// TestSaveReplacesState verifies that Save writes the mapping wholesale.
func (s *BaseSuite) TestSaveReplacesState(c *check.C) {
	first := watermark.Mapping{
		"https://example.com/a.xml": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"https://example.com/b.xml": time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	c.Assert(s.store.Save(first), check.IsNil)

	second := watermark.Mapping{
		"https://example.com/a.xml": time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	c.Assert(s.store.Save(second), check.IsNil)

	out, err := s.store.Load()
	c.Assert(err, check.IsNil)
	c.Assert(out, check.HasLen, 1)
	c.Assert(out.Get("https://example.com/a.xml").Equal(second["https://example.com/a.xml"]), check.Equals, true)
	c.Assert(out.Get("https://example.com/b.xml").Equal(watermark.Epoch), check.Equals, true)
}

// TestLoadReturnsCopy verifies that mutating a loaded mapping does not
// change the persisted state.
func (s *BaseSuite) TestLoadReturnsCopy(c *check.C) {
	ts := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	c.Assert(s.store.Save(watermark.Mapping{"https://example.com/a.xml": ts}), check.IsNil)

	m, err := s.store.Load()
	c.Assert(err, check.IsNil)
	m["https://example.com/a.xml"] = ts.Add(time.Hour)

	again, err := s.store.Load()
	c.Assert(err, check.IsNil)
	c.Assert(again.Get("https://example.com/a.xml").Equal(ts), check.Equals, true)
}
