// Package storage persists small records under hex ids, grouped in
// namespaces. Backends shard ids by their first two characters.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gitvanity/pkg/types"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrAmbiguousID    = errors.New("ambiguous id prefix")
	ErrPrefixTooShort = errors.New("id prefix too short")
	ErrInvalidKey     = errors.New("invalid storage key")
)

// MinPrefix is the shortest prefix Expand accepts.
const MinPrefix = 4

// Key addresses one record.
type Key struct {
	Namespace string
	ID        string
}

func (k Key) String() string { return k.Namespace + "/" + k.ID }

// Validate requires a plain namespace and a lowercase hex id.
func (k Key) Validate() error {
	if k.Namespace == "" || strings.ContainsAny(k.Namespace, `/\.`) {
		return fmt.Errorf("%w: namespace %q", ErrInvalidKey, k.Namespace)
	}
	if !types.IsHex(k.ID) || strings.ToLower(k.ID) != k.ID || len(k.ID) < 3 {
		return fmt.Errorf("%w: id %q", ErrInvalidKey, k.ID)
	}
	return nil
}

// Shard splits the id into its shard directory and the rest:
// "aabbcc" -> "aa", "bbcc".
func (k Key) Shard() (string, string) {
	return k.ID[:2], k.ID[2:]
}

// Store is implemented by the disk and s3 adapters.
type Store interface {
	// Put writes data under key, replacing any previous record.
	Put(ctx context.Context, key Key, data []byte) error

	// Get returns the record, ErrNotFound if there is none.
	Get(ctx context.Context, key Key) (io.ReadCloser, error)

	Has(ctx context.Context, key Key) (bool, error)

	// List returns every id in namespace, in no particular order.
	List(ctx context.Context, namespace string) ([]string, error)

	// Expand resolves an abbreviated id within namespace.
	Expand(ctx context.Context, namespace string, prefix types.HashPrefix) (string, error)
}

// ReadAll fetches a whole record.
func ReadAll(ctx context.Context, s Store, key Key) ([]byte, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// CheckPrefix validates an abbreviation before a backend looks it up.
func CheckPrefix(prefix types.HashPrefix) (string, error) {
	p := strings.ToLower(prefix.String())
	if len(p) < MinPrefix {
		return "", fmt.Errorf("%w: %q, need at least %d characters", ErrPrefixTooShort, prefix, MinPrefix)
	}
	if !types.IsHex(p) {
		return "", fmt.Errorf("%w: prefix %q", ErrInvalidKey, prefix)
	}
	return p, nil
}
