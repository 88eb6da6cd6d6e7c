package indextest

import (
	"context"
	"errors"
	"fmt"

	check "gopkg.in/check.v1"

	"github.com/mycok/sdnsync/internal/index"
)

// Schema is a minimal index schema accepted by every backend.
var Schema = []byte(`{"mappings":{"properties":{"source":{"type":"integer"}}}}`)

// BaseSuite defines a set of re-usable tests that can be executed against
// any concrete type that implements index.Backend.
type BaseSuite struct {
	backend index.Backend

	// Prefix for the names of indices and aliases created by the tests.
	// Backends that share state across runs should set a unique one.
	Prefix string
}

// SetBackend configures the test-suite to run all tests against backend.
func (s *BaseSuite) SetBackend(backend index.Backend) {
	s.backend = backend
}

func (s *BaseSuite) name(suffix string) string {
	return fmt.Sprintf("%s%s", s.Prefix, suffix)
}

// TestDeleteMissingIndex verifies that deleting an unknown index reports
// index.ErrNotFound.
func (s *BaseSuite) TestDeleteMissingIndex(c *check.C) {
	err := s.backend.DeleteIndex(context.TODO(), s.name("missing"))
	c.Assert(errors.Is(err, index.ErrNotFound), check.Equals, true, check.Commentf("got %v", err))
}

// TestDetachMissingAlias verifies that detaching an alias that is not
// attached reports index.ErrNotFound, whether or not the index exists.
func (s *BaseSuite) TestDetachMissingAlias(c *check.C) {
	err := s.backend.DetachAlias(context.TODO(), s.name("alias"), s.name("missing"))
	c.Assert(errors.Is(err, index.ErrNotFound), check.Equals, true, check.Commentf("got %v", err))

	name := s.name("detach_0")
	c.Assert(s.backend.CreateIndex(context.TODO(), name, Schema), check.IsNil)
	defer func() { _ = s.backend.DeleteIndex(context.TODO(), name) }()

	err = s.backend.DetachAlias(context.TODO(), s.name("alias"), name)
	c.Assert(errors.Is(err, index.ErrNotFound), check.Equals, true, check.Commentf("got %v", err))
}

// TestCreateExistingIndex verifies that creating an index twice fails with
// an error other than index.ErrNotFound.
func (s *BaseSuite) TestCreateExistingIndex(c *check.C) {
	name := s.name("create_0")
	c.Assert(s.backend.CreateIndex(context.TODO(), name, Schema), check.IsNil)
	defer func() { _ = s.backend.DeleteIndex(context.TODO(), name) }()

	err := s.backend.CreateIndex(context.TODO(), name, Schema)
	c.Assert(err, check.NotNil)
	c.Assert(errors.Is(err, index.ErrNotFound), check.Equals, false)
}

// TestAliasLifecycle verifies the full blue-green sequence against the
// backend.
func (s *BaseSuite) TestAliasLifecycle(c *check.C) {
	var (
		ctx   = context.TODO()
		name  = s.name("lifecycle_0")
		alias = s.name("lifecycle")
	)

	c.Assert(s.backend.CreateIndex(ctx, name, Schema), check.IsNil)
	defer func() { _ = s.backend.DeleteIndex(ctx, name) }()

	doc := map[string]interface{}{
		"uid":         "36",
		"lastName":    "AEROCARIBBEAN AIRLINES",
		"programList": map[string]interface{}{"program": "CUBA"},
		"source":      0,
	}
	c.Assert(s.backend.IndexDocument(ctx, name, "0-36", doc), check.IsNil)

	c.Assert(s.backend.AttachAlias(ctx, alias, name), check.IsNil)
	c.Assert(s.backend.DetachAlias(ctx, alias, name), check.IsNil)

	// Detaching twice reports that the alias is gone.
	err := s.backend.DetachAlias(ctx, alias, name)
	c.Assert(errors.Is(err, index.ErrNotFound), check.Equals, true, check.Commentf("got %v", err))

	c.Assert(s.backend.AttachAlias(ctx, alias, name), check.IsNil)
	c.Assert(s.backend.DeleteIndex(ctx, name), check.IsNil)

	// Deleting the index removes it from the alias as well.
	err = s.backend.DetachAlias(ctx, alias, name)
	c.Assert(errors.Is(err, index.ErrNotFound), check.Equals, true, check.Commentf("got %v", err))
}

// TestAttachAliasToMissingIndex verifies that aliases cannot point at
// unknown indices.
func (s *BaseSuite) TestAttachAliasToMissingIndex(c *check.C) {
	err := s.backend.AttachAlias(context.TODO(), s.name("alias"), s.name("missing"))
	c.Assert(errors.Is(err, index.ErrNotFound), check.Equals, true, check.Commentf("got %v", err))
}
