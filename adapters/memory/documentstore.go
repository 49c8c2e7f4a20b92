// Package memory provides in-memory implementations for testing.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/artpar/shapekit/adapters/clock"
	"github.com/artpar/shapekit/adapters/idgen"
	"github.com/artpar/shapekit/core/runtime"
	"github.com/artpar/shapekit/domain/document"
	"github.com/artpar/shapekit/ports"
)

// DocumentStore is an in-memory implementation of ports.DocumentStore.
// Each shape keeps a HashSet of its stored values, so deduplication uses the
// same equality and hash code as every other set of that shape.
type DocumentStore struct {
	mu     sync.RWMutex
	shapes ports.Shapes
	ids    ports.IDGenerator
	clock  ports.Clock
	opts   document.EncodeOptions

	docs   map[string]document.Document // by ID
	values map[string]*runtime.HashSet  // by shape
	byHash map[string]map[uint64][]string
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore(shapes ports.Shapes, ids ports.IDGenerator, c ports.Clock) *DocumentStore {
	if ids == nil {
		ids = idgen.UUID{}
	}
	if c == nil {
		c = clock.System
	}
	return &DocumentStore{
		shapes: shapes,
		ids:    ids,
		clock:  c,
		docs:   make(map[string]document.Document),
		values: make(map[string]*runtime.HashSet),
		byHash: make(map[string]map[uint64][]string),
	}
}

// SetEncoding sets the digest algorithm used for new documents.
func (s *DocumentStore) SetEncoding(opts document.EncodeOptions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts = opts
}

var _ ports.DocumentStore = (*DocumentStore)(nil)

// Put stores value unless an equal value of the same shape exists.
func (s *DocumentStore) Put(ctx context.Context, shapeName string, value any) (document.Document, bool, error) {
	mapper, err := s.shapes.StorageMapper(shapeName)
	if err != nil {
		return document.Document{}, false, err
	}
	equals, err := s.shapes.Equals(shapeName)
	if err != nil {
		return document.Document{}, false, err
	}
	hashCode, err := s.shapes.HashCode(shapeName)
	if err != nil {
		return document.Document{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	body, err := document.Encode(mapper, value, s.opts)
	if err != nil {
		return document.Document{}, false, fmt.Errorf("encode %s: %w", shapeName, err)
	}
	hash := hashCode(value)

	set, ok := s.values[shapeName]
	if !ok {
		set = runtime.NewHashSet(mapper.Shape())
		s.values[shapeName] = set
		s.byHash[shapeName] = make(map[uint64][]string)
	}
	if set.Has(value) {
		for _, id := range s.byHash[shapeName][hash] {
			if doc := s.docs[id]; equals(doc.Value, value) {
				return doc, false, nil
			}
		}
	}

	doc := document.Document{
		ID:        s.ids.New(),
		Shape:     shapeName,
		Hash:      hash,
		Digest:    body.Digest,
		Value:     value,
		CreatedAt: s.clock.Now(),
	}
	set.Add(value)
	s.docs[doc.ID] = doc
	s.byHash[shapeName][hash] = append(s.byHash[shapeName][hash], doc.ID)
	return doc, true, nil
}

// Get retrieves a document by ID.
func (s *DocumentStore) Get(ctx context.Context, id string) (document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return document.Document{}, document.ErrNotFound
	}
	return doc, nil
}

// List returns the documents of a shape, oldest first.
func (s *DocumentStore) List(ctx context.Context, shapeName string) ([]document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []document.Document
	for _, doc := range s.docs {
		if doc.Shape == shapeName {
			result = append(result, doc)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// Delete removes a document.
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return document.ErrNotFound
	}
	delete(s.docs, id)
	s.values[doc.Shape].Delete(doc.Value)

	ids := s.byHash[doc.Shape][doc.Hash]
	kept := ids[:0:0]
	for _, other := range ids {
		if other != id {
			kept = append(kept, other)
		}
	}
	if len(kept) == 0 {
		delete(s.byHash[doc.Shape], doc.Hash)
	} else {
		s.byHash[doc.Shape][doc.Hash] = kept
	}
	return nil
}

// Len returns the number of stored documents.
func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Close is a no-op.
func (s *DocumentStore) Close() error { return nil }
