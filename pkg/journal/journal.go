// Package journal keeps search checkpoints and receipts of written vanity
// commits in a storage.Store.
package journal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gitvanity/pkg/hashing"
	"gitvanity/pkg/storage"
	"gitvanity/pkg/types"
)

const (
	nsCheckpoints = "checkpoints"
	nsReceipts    = "receipts"
)

var (
	ErrNoCheckpoint = errors.New("no checkpoint for this commit and target")
	ErrNoReceipt    = errors.New("receipt not found")
	ErrCorrupt      = errors.New("corrupt journal record")
)

// Checkpoint records how far a search over one base commit and target got.
// Every nonce below Next has been tried.
type Checkpoint struct {
	Base      types.Hash `cbor:"1,keyasint"`
	Algorithm string     `cbor:"2,keyasint"`
	Prefix    string     `cbor:"3,keyasint,omitempty"`
	Message   string     `cbor:"4,keyasint,omitempty"`
	Next      uint64     `cbor:"5,keyasint"`
	Hashes    uint64     `cbor:"6,keyasint"`
	UpdatedAt time.Time  `cbor:"7,keyasint"`
}

// Receipt describes one vanity commit that was written.
type Receipt struct {
	Old       types.Hash    `cbor:"1,keyasint"`
	New       types.Hash    `cbor:"2,keyasint"`
	Ref       string        `cbor:"3,keyasint"`
	Nonce     uint64        `cbor:"4,keyasint"`
	Algorithm string        `cbor:"5,keyasint"`
	Prefix    string        `cbor:"6,keyasint,omitempty"`
	Message   string        `cbor:"7,keyasint,omitempty"`
	Hashes    uint64        `cbor:"8,keyasint"`
	Duration  time.Duration `cbor:"9,keyasint"`
	CreatedAt time.Time     `cbor:"10,keyasint"`
}

// ReceiptIndex stores receipts. The default keeps them in the journal's
// Store; meta.Repository keeps them in SQL.
type ReceiptIndex interface {
	// IndexReceipt records r under r.New.
	IndexReceipt(ctx context.Context, r Receipt) error
	// ListReceipts returns every receipt, newest first.
	ListReceipts(ctx context.Context) ([]Receipt, error)
	// FindReceipt resolves an abbreviated commit id, ErrNoReceipt if none.
	FindReceipt(ctx context.Context, prefix types.HashPrefix) (*Receipt, error)
}

type Journal struct {
	store    storage.Store
	receipts ReceiptIndex
}

// Option customizes a Journal.
type Option func(*Journal)

// WithReceiptIndex stores receipts in idx instead of the Store.
func WithReceiptIndex(idx ReceiptIndex) Option {
	return func(j *Journal) { j.receipts = idx }
}

func New(store storage.Store, opts ...Option) *Journal {
	j := &Journal{store: store, receipts: storeReceipts{store: store}}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// SearchID identifies a search by its base commit, algorithm and target.
// Checkpoints and shared cursors are keyed by it.
func SearchID(base types.Hash, algo hashing.Algorithm, target hashing.Target) string {
	key := base.String() + "\x00" + algo.String() + "\x00" + target.Prefix + "\x00" + target.Message
	return hashing.SHA1.HexDigest([]byte(key))
}

// SaveCheckpoint replaces the checkpoint for cp's base and target.
func (j *Journal) SaveCheckpoint(ctx context.Context, cp Checkpoint, algo hashing.Algorithm, target hashing.Target) error {
	cp.Algorithm = algo.String()
	cp.Prefix, cp.Message = target.Prefix, target.Message
	data, err := encode(cp)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	key := storage.Key{Namespace: nsCheckpoints, ID: SearchID(cp.Base, algo, target)}
	if err := j.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint returns the checkpoint for base and target, or
// ErrNoCheckpoint.
func (j *Journal) LoadCheckpoint(ctx context.Context, base types.Hash, algo hashing.Algorithm, target hashing.Target) (*Checkpoint, error) {
	key := storage.Key{Namespace: nsCheckpoints, ID: SearchID(base, algo, target)}
	data, err := storage.ReadAll(ctx, j.store, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoCheckpoint
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := decode(data, &cp); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, key, err)
	}
	if cp.Base != base || cp.Algorithm != algo.String() || cp.Prefix != target.Prefix || cp.Message != target.Message {
		return nil, fmt.Errorf("%w: %s belongs to another search", ErrCorrupt, key)
	}
	return &cp, nil
}

func (j *Journal) RecordReceipt(ctx context.Context, r Receipt) error {
	if !r.New.IsValid() {
		return fmt.Errorf("receipt without a valid commit id: %q", r.New)
	}
	return j.receipts.IndexReceipt(ctx, r)
}

// Receipts lists every receipt, newest first.
func (j *Journal) Receipts(ctx context.Context) ([]Receipt, error) {
	return j.receipts.ListReceipts(ctx)
}

// Receipt looks one up by an abbreviated commit id.
func (j *Journal) Receipt(ctx context.Context, prefix types.HashPrefix) (*Receipt, error) {
	return j.receipts.FindReceipt(ctx, prefix)
}

// storeReceipts keeps receipts as cbor records next to the checkpoints.
type storeReceipts struct {
	store storage.Store
}

func (s storeReceipts) IndexReceipt(ctx context.Context, r Receipt) error {
	data, err := encode(r)
	if err != nil {
		return fmt.Errorf("failed to encode receipt: %w", err)
	}
	if err := s.store.Put(ctx, storage.Key{Namespace: nsReceipts, ID: r.New.String()}, data); err != nil {
		return fmt.Errorf("failed to record receipt: %w", err)
	}
	return nil
}

func (s storeReceipts) ListReceipts(ctx context.Context) ([]Receipt, error) {
	ids, err := s.store.List(ctx, nsReceipts)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	out := make([]Receipt, 0, len(ids))
	for _, id := range ids {
		r, err := s.read(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	sort.SliceStable(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.After(out[b].CreatedAt)
		}
		return out[a].New < out[b].New
	})
	return out, nil
}

func (s storeReceipts) FindReceipt(ctx context.Context, prefix types.HashPrefix) (*Receipt, error) {
	id, err := s.store.Expand(ctx, nsReceipts, prefix)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoReceipt, prefix)
	}
	if err != nil {
		return nil, err
	}
	return s.read(ctx, id)
}

func (s storeReceipts) read(ctx context.Context, id string) (*Receipt, error) {
	key := storage.Key{Namespace: nsReceipts, ID: id}
	data, err := storage.ReadAll(ctx, s.store, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt %s: %w", id, err)
	}
	var r Receipt
	if err := decode(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, key, err)
	}
	return &r, nil
}
