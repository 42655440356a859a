// Package hashing implements git's content-addressing digests and the match
// predicate the search runs against every candidate.
package hashing

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	sha256 "github.com/minio/sha256-simd"
)

// Algorithm is the object format of a repository.
type Algorithm int

const (
	SHA1 Algorithm = iota
	SHA256
)

// ParseAlgorithm maps git's extensions.objectformat value onto an Algorithm.
// An empty value means a classic SHA-1 repository.
func ParseAlgorithm(objectFormat string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(objectFormat)) {
	case "", "sha1":
		return SHA1, nil
	case "sha256":
		return SHA256, nil
	default:
		return 0, fmt.Errorf("unsupported object format %q", objectFormat)
	}
}

func (a Algorithm) String() string {
	if a == SHA256 {
		return "sha256"
	}
	return "sha1"
}

// Size is the raw digest length in bytes.
func (a Algorithm) Size() int {
	if a == SHA256 {
		return sha256.Size
	}
	return sha1.Size
}

// HexSize is the length of the digest's hex rendering.
func (a Algorithm) HexSize() int { return a.Size() * 2 }

// New returns a fresh hash.Hash for the algorithm.
func (a Algorithm) New() hash.Hash {
	if a == SHA256 {
		return sha256.New()
	}
	return sha1.New()
}

// Digest hashes b in one call. b must already carry the object header.
func (a Algorithm) Digest(b []byte) []byte {
	h := a.New()
	h.Write(b)
	return h.Sum(nil)
}

// HexDigest is Digest rendered as lowercase hex.
func (a Algorithm) HexDigest(b []byte) string {
	return hex.EncodeToString(a.Digest(b))
}

// Hasher is a reusable per-worker digest state. It is not safe for
// concurrent use; every worker owns one.
type Hasher struct {
	h   hash.Hash
	sum []byte
	hex []byte
}

// NewHasher allocates the buffers a worker reuses for every attempt.
func (a Algorithm) NewHasher() *Hasher {
	return &Hasher{
		h:   a.New(),
		sum: make([]byte, 0, a.Size()),
		hex: make([]byte, a.HexSize()),
	}
}

// Sum digests data and returns the lowercase hex rendering. The returned
// slice is only valid until the next call.
func (h *Hasher) Sum(data []byte) []byte {
	h.h.Reset()
	h.h.Write(data)
	h.sum = h.h.Sum(h.sum[:0])
	hex.Encode(h.hex, h.sum)
	return h.hex
}
