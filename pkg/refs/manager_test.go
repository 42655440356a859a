package refs

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"testing"

	"gitvanity/pkg/types"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockHash(input string) types.Hash {
	sum := sha1.Sum([]byte(input))
	return types.Hash(hex.EncodeToString(sum[:]))
}

// setupTestEnv returns a manager over an in-memory ref store with HEAD
// pointing at the unborn branch main.
func setupTestEnv(t *testing.T) (*Manager, *memory.Storage) {
	t.Helper()
	st := memory.NewStorage()
	require.NoError(t, st.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.Main)))
	return NewManager(st), st
}

func TestRefFlow_Lifecycle(t *testing.T) {
	mgr, st := setupTestEnv(t)
	ctx := context.Background()

	_, err := mgr.GetHead(ctx)
	assert.ErrorIs(t, err, ErrNoHead, "unborn branch has no head")

	v1 := mockHash("v1")
	require.NoError(t, st.SetReference(plumbing.NewHashReference(plumbing.Main, plumbing.NewHash(v1.String()))))

	head, err := mgr.GetHead(ctx)
	require.NoError(t, err)
	assert.Equal(t, v1, head.ID)
	assert.Equal(t, plumbing.Main, head.Name)
	assert.False(t, head.Detached())

	v2 := mockHash("v2")
	require.NoError(t, mgr.UpdateHead(ctx, head, v2))

	head, err = mgr.GetHead(ctx)
	require.NoError(t, err)
	assert.Equal(t, v2, head.ID)

	sym, err := st.Reference(plumbing.HEAD)
	require.NoError(t, err)
	assert.Equal(t, plumbing.SymbolicReference, sym.Type(), "HEAD stays attached to the branch")
}

func TestRefFlow_OptimisticLocking(t *testing.T) {
	mgr, st := setupTestEnv(t)
	ctx := context.Background()
	require.NoError(t, st.SetReference(plumbing.NewHashReference(plumbing.Main, plumbing.NewHash(mockHash("v1").String()))))

	seen, err := mgr.GetHead(ctx)
	require.NoError(t, err)

	// someone else commits first
	other := mockHash("other")
	require.NoError(t, mgr.UpdateHead(ctx, seen, other))

	err = mgr.UpdateHead(ctx, seen, mockHash("ours"))
	assert.ErrorIs(t, err, ErrStaleHead)

	cur, err := mgr.GetHead(ctx)
	require.NoError(t, err)
	assert.Equal(t, other, cur.ID, "the concurrent commit is not overwritten")
}

func TestRefFlow_DetachedHead(t *testing.T) {
	st := memory.NewStorage()
	v1 := mockHash("v1")
	require.NoError(t, st.SetReference(plumbing.NewHashReference(plumbing.HEAD, plumbing.NewHash(v1.String()))))
	mgr := NewManager(st)
	ctx := context.Background()

	head, err := mgr.GetHead(ctx)
	require.NoError(t, err)
	assert.True(t, head.Detached())
	assert.Equal(t, v1, head.ID)

	v2 := mockHash("v2")
	require.NoError(t, mgr.UpdateHead(ctx, head, v2))
	head, err = mgr.GetHead(ctx)
	require.NoError(t, err)
	assert.Equal(t, v2, head.ID)
}

func TestUpdateHead_RejectsMalformedID(t *testing.T) {
	mgr, st := setupTestEnv(t)
	v1 := mockHash("v1")
	require.NoError(t, st.SetReference(plumbing.NewHashReference(plumbing.Main, plumbing.NewHash(v1.String()))))

	err := mgr.UpdateHead(context.Background(), Head{ID: v1, Name: plumbing.Main}, "not-a-hash")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrStaleHead)
}
