package refs

import (
	"context"
	"errors"
	"fmt"

	"gitvanity/pkg/types"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/storage"
)

var (
	ErrNoHead = errors.New("HEAD does not point to a commit (empty repository)")
	// ErrStaleHead means the ref moved between reading and updating it.
	ErrStaleHead = errors.New("HEAD was updated concurrently")
)

// Head is the commit HEAD resolves to and the ref that holds it. Name is
// plumbing.HEAD itself when HEAD is detached.
type Head struct {
	ID   types.Hash
	Name plumbing.ReferenceName
}

func (h Head) Detached() bool { return h.Name == plumbing.HEAD }

// Manager reads and moves HEAD on top of a go-git reference storer.
type Manager struct {
	refs storer.ReferenceStorer
}

func NewManager(refs storer.ReferenceStorer) *Manager {
	return &Manager{refs: refs}
}

// GetHead follows HEAD through symbolic refs to a commit id. An unborn
// branch yields ErrNoHead.
func (m *Manager) GetHead(ctx context.Context) (Head, error) {
	if err := ctx.Err(); err != nil {
		return Head{}, err
	}
	ref, err := storer.ResolveReference(m.refs, plumbing.HEAD)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return Head{}, ErrNoHead
	}
	if err != nil {
		return Head{}, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	if ref.Type() != plumbing.HashReference || ref.Hash().IsZero() {
		return Head{}, ErrNoHead
	}

	name := plumbing.HEAD
	raw, err := m.refs.Reference(plumbing.HEAD)
	if err != nil {
		return Head{}, fmt.Errorf("failed to read HEAD: %w", err)
	}
	if raw.Type() == plumbing.SymbolicReference {
		name = ref.Name()
	}
	return Head{ID: types.Hash(ref.Hash().String()), Name: name}, nil
}

// UpdateHead moves the ref behind head to newID, but only if it still
// points at head.ID. Anything else is ErrStaleHead and nothing changes.
func (m *Manager) UpdateHead(ctx context.Context, head Head, newID types.Hash) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !newID.IsValid() {
		return fmt.Errorf("refusing to point %s at malformed id %q", head.Name, newID)
	}

	next := plumbing.NewHashReference(head.Name, plumbing.NewHash(newID.String()))
	old := plumbing.NewHashReference(head.Name, plumbing.NewHash(head.ID.String()))

	// the memory storer accepts a missing ref as unchanged, check it here
	cur, err := m.refs.Reference(head.Name)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return ErrStaleHead
		}
		return fmt.Errorf("failed to read %s: %w", head.Name, err)
	}
	if cur.Type() != plumbing.HashReference || cur.Hash() != old.Hash() {
		return ErrStaleHead
	}

	if err := m.refs.CheckAndSetReference(next, old); err != nil {
		if errors.Is(err, storage.ErrReferenceHasChanged) {
			return ErrStaleHead
		}
		return fmt.Errorf("failed to update %s: %w", head.Name, err)
	}
	return nil
}
