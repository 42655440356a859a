// Package repository reads the commit HEAD points to and writes the
// accepted vanity commit back, using go-git for object and ref storage.
package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gitvanity/pkg/core"
	"gitvanity/pkg/hashing"
	"gitvanity/pkg/refs"
	"gitvanity/pkg/search"
	"gitvanity/pkg/types"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

var (
	// ErrDigestMismatch means the stored object id differs from the digest
	// the search produced. HEAD is not moved.
	ErrDigestMismatch = errors.New("stored object id does not match searched digest")
	// ErrUnsupportedFormat is returned for object formats the storage
	// backend cannot address.
	ErrUnsupportedFormat = errors.New("unsupported repository object format")
)

// Snapshot is HEAD at the time the search started.
type Snapshot struct {
	Head      refs.Head
	Commit    *core.Commit
	Algorithm hashing.Algorithm
}

// ID is the id of the commit the search rewrites.
func (s *Snapshot) ID() types.Hash { return s.Head.ID }

type Repository struct {
	repo *git.Repository
	refs *refs.Manager
}

// Open finds the repository containing path, walking up to the enclosing
// .git directory like git itself does.
func Open(path string) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository at %s: %w", path, err)
	}
	return New(repo), nil
}

func New(repo *git.Repository) *Repository {
	return &Repository{repo: repo, refs: refs.NewManager(repo.Storer)}
}

// Algorithm reads extensions.objectformat from the repository config.
func (r *Repository) Algorithm() (hashing.Algorithm, error) {
	cfg, err := r.repo.Config()
	if err != nil {
		return 0, fmt.Errorf("failed to read repository config: %w", err)
	}
	format := ""
	if cfg.Raw != nil {
		format = cfg.Raw.Section("extensions").Option("objectformat")
	}
	return hashing.ParseAlgorithm(format)
}

// Head loads and parses the commit HEAD resolves to.
func (r *Repository) Head(ctx context.Context) (*Snapshot, error) {
	algo, err := r.Algorithm()
	if err != nil {
		return nil, err
	}
	// plumbing.Hash is fixed at 20 bytes in this build of go-git
	if algo != hashing.SHA1 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, algo)
	}

	head, err := r.refs.GetHead(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := r.readObject(plumbing.CommitObject, head.ID)
	if err != nil {
		return nil, err
	}
	commit, err := core.ParseCommit(raw)
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", head.ID.Short(), err)
	}
	return &Snapshot{Head: head, Commit: commit, Algorithm: algo}, nil
}

func (r *Repository) readObject(t plumbing.ObjectType, id types.Hash) ([]byte, error) {
	obj, err := r.repo.Storer.EncodedObject(t, plumbing.NewHash(id.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s: %w", t, id.Short(), err)
	}
	rd, err := obj.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s %s: %w", t, id.Short(), err)
	}
	defer rd.Close()
	return io.ReadAll(rd)
}

// WriteCommit stores body as a commit object, checks that its id is want,
// and moves the ref behind base to it. If base moved in the meantime the
// object stays in the store but the ref is left alone (refs.ErrStaleHead).
func (r *Repository) WriteCommit(ctx context.Context, base refs.Head, body []byte, want types.Hash) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := core.ParseCommit(body); err != nil {
		return err
	}

	obj := r.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.CommitObject)
	obj.SetSize(int64(len(body)))
	w, err := obj.Writer()
	if err != nil {
		return fmt.Errorf("failed to open object writer: %w", err)
	}
	if _, err := io.Copy(w, bytes.NewReader(body)); err != nil {
		w.Close()
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}

	id, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return fmt.Errorf("failed to store commit: %w", err)
	}
	if !strings.EqualFold(id.String(), want.String()) {
		return fmt.Errorf("%w: stored %s, searched %s", ErrDigestMismatch, id, want)
	}

	return r.refs.UpdateHead(ctx, base, types.Hash(id.String()))
}

// Writer adapts the repository to search.Writer for one base snapshot.
func (r *Repository) Writer(base *Snapshot) search.Writer {
	return &headWriter{repo: r, base: base}
}

type headWriter struct {
	repo *Repository
	base *Snapshot
}

func (w *headWriter) WriteCommit(ctx context.Context, res *search.Result) error {
	body, err := res.Body()
	if err != nil {
		return err
	}
	return w.repo.WriteCommit(ctx, w.base.Head, body, res.Digest)
}
