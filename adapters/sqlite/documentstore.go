package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/shapekit/adapters/clock"
	"github.com/artpar/shapekit/adapters/idgen"
	"github.com/artpar/shapekit/domain/document"
	"github.com/artpar/shapekit/ports"
)

// DocumentStore implements ports.DocumentStore using SQLite. Bodies are
// stored as deterministic CBOR, optionally compressed, and verified against
// their digest on read.
type DocumentStore struct {
	db     *DB
	shapes ports.Shapes
	opts   document.EncodeOptions
	ids    ports.IDGenerator
	clock  ports.Clock
	logger zerolog.Logger

	// serializes the find-or-insert in Put
	putMu sync.Mutex
}

// DocumentStoreOption configures a DocumentStore.
type DocumentStoreOption func(*DocumentStore)

// WithEncoding sets the digest algorithm and compression for new bodies.
func WithEncoding(opts document.EncodeOptions) DocumentStoreOption {
	return func(s *DocumentStore) { s.opts = opts }
}

// WithIDGenerator overrides the id generator.
func WithIDGenerator(g ports.IDGenerator) DocumentStoreOption {
	return func(s *DocumentStore) { s.ids = g }
}

// WithClock overrides the clock used for creation times.
func WithClock(c ports.Clock) DocumentStoreOption {
	return func(s *DocumentStore) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) DocumentStoreOption {
	return func(s *DocumentStore) { s.logger = l }
}

// NewDocumentStore creates a new SQLite document store.
func NewDocumentStore(db *DB, shapes ports.Shapes, opts ...DocumentStoreOption) *DocumentStore {
	s := &DocumentStore{
		db:     db,
		shapes: shapes,
		ids:    idgen.UUID{},
		clock:  clock.System,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ ports.DocumentStore = (*DocumentStore)(nil)

// Put stores value unless a structurally equal value of the same shape is
// already stored. Candidates are found by hash code and confirmed with the
// shape's equality.
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

	body, err := document.Encode(mapper, value, s.opts)
	if err != nil {
		return document.Document{}, false, fmt.Errorf("encode %s: %w", shapeName, err)
	}
	hash := hashCode(value)

	s.putMu.Lock()
	defer s.putMu.Unlock()

	candidates, err := s.query(ctx, `
		SELECT id, shape, hash, digest, body, compression, size, created_at
		FROM documents
		WHERE shape = ? AND hash = ?
		ORDER BY created_at, id
	`, shapeName, int64(hash))
	if err != nil {
		return document.Document{}, false, err
	}
	for _, c := range candidates {
		v, err := document.Decode(mapper, c.body)
		if err != nil {
			s.logger.Warn().Err(err).Str("id", c.doc.ID).Msg("skipping unreadable candidate")
			continue
		}
		if equals(value, v) {
			c.doc.Value = v
			return c.doc, false, nil
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
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, shape, hash, digest, body, compression, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.Shape, int64(doc.Hash), string(doc.Digest), body.Data, int(body.Compression), body.Size, doc.CreatedAt)
	if err != nil {
		return document.Document{}, false, fmt.Errorf("insert document: %w", err)
	}

	s.logger.Debug().
		Str("id", doc.ID).
		Str("shape", shapeName).
		Str("compression", body.Compression.String()).
		Int("size", body.Size).
		Msg("document stored")
	return doc, true, nil
}

// Get retrieves a document by id.
func (s *DocumentStore) Get(ctx context.Context, id string) (document.Document, error) {
	rows, err := s.query(ctx, `
		SELECT id, shape, hash, digest, body, compression, size, created_at
		FROM documents
		WHERE id = ?
	`, id)
	if err != nil {
		return document.Document{}, err
	}
	if len(rows) == 0 {
		return document.Document{}, document.ErrNotFound
	}
	return s.decode(rows[0])
}

// List returns the documents of a shape, oldest first.
func (s *DocumentStore) List(ctx context.Context, shapeName string) ([]document.Document, error) {
	rows, err := s.query(ctx, `
		SELECT id, shape, hash, digest, body, compression, size, created_at
		FROM documents
		WHERE shape = ?
		ORDER BY created_at, id
	`, shapeName)
	if err != nil {
		return nil, err
	}

	docs := make([]document.Document, 0, len(rows))
	for _, r := range rows {
		doc, err := s.decode(r)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Delete removes a document.
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return document.ErrNotFound
	}
	return nil
}

// Close closes the underlying database.
func (s *DocumentStore) Close() error {
	return s.db.Close()
}

type storedRow struct {
	doc  document.Document
	body document.Body
}

func (s *DocumentStore) query(ctx context.Context, query string, args ...any) ([]storedRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storedRow
	for rows.Next() {
		r, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *DocumentStore) decode(r storedRow) (document.Document, error) {
	mapper, err := s.shapes.StorageMapper(r.doc.Shape)
	if err != nil {
		return document.Document{}, fmt.Errorf("document %s: %w", r.doc.ID, err)
	}
	v, err := document.Decode(mapper, r.body)
	if err != nil {
		return document.Document{}, fmt.Errorf("document %s: %w", r.doc.ID, err)
	}
	r.doc.Value = v
	return r.doc, nil
}

func scanDocument(rows *sql.Rows) (storedRow, error) {
	var (
		r           storedRow
		hash        int64
		digest      string
		compression int
		createdAt   time.Time
	)
	err := rows.Scan(&r.doc.ID, &r.doc.Shape, &hash, &digest, &r.body.Data, &compression, &r.body.Size, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storedRow{}, document.ErrNotFound
	}
	if err != nil {
		return storedRow{}, err
	}

	r.doc.Hash = uint64(hash)
	r.doc.Digest = document.Digest(digest)
	r.doc.CreatedAt = createdAt.UTC()
	r.body.Digest = r.doc.Digest
	r.body.Compression = document.Compression(compression)
	return r, nil
}
