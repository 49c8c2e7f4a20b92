package document

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
)

// Algorithm names a digest function.
type Algorithm string

const (
	Blake2b Algorithm = "blake2b"
	Blake3  Algorithm = "blake3"
)

// ParseAlgorithm maps a configuration value to an Algorithm. The empty
// string selects blake2b.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case "", Blake2b:
		return Blake2b, nil
	case Blake3:
		return Blake3, nil
	}
	return "", fmt.Errorf("unknown digest algorithm %q", s)
}

// Digest is a self-describing content digest, "<algorithm>:<hex>".
type Digest string

// ComputeDigest hashes data with alg.
func ComputeDigest(alg Algorithm, data []byte) (Digest, error) {
	var sum [32]byte
	switch alg {
	case Blake2b:
		sum = blake2b.Sum256(data)
	case Blake3:
		sum = blake3.Sum256(data)
	default:
		return "", fmt.Errorf("unknown digest algorithm %q", alg)
	}
	return Digest(string(alg) + ":" + hex.EncodeToString(sum[:])), nil
}

// Algorithm returns the algorithm prefix of the digest.
func (d Digest) Algorithm() Algorithm {
	alg, _, _ := strings.Cut(string(d), ":")
	return Algorithm(alg)
}

// Verify recomputes the digest of data and compares it with d.
func (d Digest) Verify(data []byte) error {
	got, err := ComputeDigest(d.Algorithm(), data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if got != d {
		return fmt.Errorf("%w: digest %s, want %s", ErrCorrupt, got, d)
	}
	return nil
}
