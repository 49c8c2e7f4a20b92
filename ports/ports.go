// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/artpar/shapekit/core/jsoncodec"
	"github.com/artpar/shapekit/core/runtime"
	"github.com/artpar/shapekit/domain/document"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Shape Ports
// -----------------------------------------------------------------------------

// Shapes resolves shape names to their derived functions.
// core/registry.Registry implements it.
type Shapes interface {
	Mapper(name string) (jsoncodec.Mapper, error)
	StorageMapper(name string) (jsoncodec.Mapper, error)
	Equals(name string) (runtime.EqualsFunc, error)
	HashCode(name string) (runtime.HashFunc, error)
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// DocumentStore persists runtime values, deduplicated by structural
// identity within a shape.
type DocumentStore interface {
	// Put stores value under shape unless an equal value is already
	// stored. It returns the stored document and whether it was created.
	Put(ctx context.Context, shape string, value any) (document.Document, bool, error)

	// Get retrieves a document by id. Returns document.ErrNotFound if absent.
	Get(ctx context.Context, id string) (document.Document, error)

	// List returns the documents of a shape, oldest first.
	List(ctx context.Context, shape string) ([]document.Document, error)

	// Delete removes a document. Returns document.ErrNotFound if absent.
	Delete(ctx context.Context, id string) error

	// Close releases resources.
	Close() error
}
