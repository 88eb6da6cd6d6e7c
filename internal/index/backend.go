package index

import (
	"context"
	"errors"
)

//go:generate mockgen -package mocks -destination mocks/mock.go github.com/mycok/sdnsync/internal/index Backend

var (
	// ErrNotFound is returned (wrapped) by Backend operations when the target
	// index or alias does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned (wrapped) by Backend.CreateIndex when an
	// index with the same name exists.
	ErrAlreadyExists = errors.New("already exists")
)

// Backend is the set of search-store operations the Builder relies on.
// Implementations must wrap ErrNotFound when an operation targets a missing
// index or alias so that callers can tell it apart from other failures.
type Backend interface {
	// DetachAlias removes alias from the index named index.
	DetachAlias(ctx context.Context, alias, index string) error

	// DeleteIndex removes the index named index and all its documents.
	DeleteIndex(ctx context.Context, index string) error

	// CreateIndex creates an empty index using the provided schema. The
	// schema is an opaque JSON document understood by the backend.
	CreateIndex(ctx context.Context, index string, schema []byte) error

	// IndexDocument stores doc in index under the given id.
	IndexDocument(ctx context.Context, index, id string, doc map[string]interface{}) error

	// AttachAlias points alias at the index named index, in addition to any
	// other indices the alias already covers.
	AttachAlias(ctx context.Context, alias, index string) error
}

// Resolver is implemented by backends that can report which physical
// indices an alias currently points at.
type Resolver interface {
	Resolve(ctx context.Context, alias string) ([]string, error)
}

// IsNotFound reports whether err signals a missing index or alias.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
