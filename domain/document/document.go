// Package document provides the stored-document value type and the pure
// functions that turn runtime values into their storage form.
//
// A stored body is the canonical wire form of a value encoded as
// deterministic CBOR, optionally compressed. Its digest is computed over the
// uncompressed CBOR, so equal values have equal digests regardless of
// compression or of set iteration order.
package document

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a document id is unknown.
	ErrNotFound = errors.New("document not found")
	// ErrCorrupt is returned when a stored body fails digest verification.
	ErrCorrupt = errors.New("document body corrupt")
)

// Document is a stored runtime value (value type).
type Document struct {
	ID    string `json:"id" yaml:"id"`
	Shape string `json:"shape" yaml:"shape"`

	// Hash is the structural hash code of Value under its shape.
	Hash uint64 `json:"hash" yaml:"hash"`

	// Digest covers the canonical body.
	Digest Digest `json:"digest" yaml:"digest"`

	Value     any       `json:"-" yaml:"-"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// FormatHash renders a hash code as 16 lowercase hex digits. JSON numbers
// cannot carry the full 64 bits in most decoders.
func FormatHash(h uint64) string {
	return fmt.Sprintf("%016x", h)
}
