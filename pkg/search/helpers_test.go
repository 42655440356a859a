package search

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"sync/atomic"
	"testing"

	"gitvanity/pkg/core"
	"gitvanity/pkg/hashing"
	"gitvanity/pkg/types"

	"github.com/stretchr/testify/require"
)

func mockHash(input string) types.Hash {
	sum := sha1.Sum([]byte(input))
	return types.Hash(hex.EncodeToString(sum[:]))
}

func testTemplate(t *testing.T) *core.Template {
	t.Helper()
	tmpl, err := core.NewTemplate(&core.Commit{
		Tree:      mockHash("tree"),
		Parents:   []types.Hash{mockHash("parent")},
		Author:    core.Signature{Name: "Grace Hopper", Email: "grace@example.com", When: 1700000000, Zone: "-0500"},
		Committer: core.Signature{Name: "Grace Hopper", Email: "grace@example.com", When: 1700000000, Zone: "-0500"},
		Message:   "Fix moth in relay\n",
	})
	require.NoError(t, err)
	return tmpl
}

func testTarget(t *testing.T, prefix, message string) hashing.Target {
	t.Helper()
	target, err := hashing.ParseTarget(prefix, message)
	require.NoError(t, err)
	return target
}

// firstMatch scans sequentially from start, the reference answer for a
// single worker run.
func firstMatch(tmpl *core.Template, algo hashing.Algorithm, target hashing.Target, start uint64) uint64 {
	for n := start; ; n++ {
		if target.Matches([]byte(algo.HexDigest(tmpl.Object(n)))) {
			return n
		}
	}
}

// verifyResult checks that res is self-consistent and satisfies target.
func verifyResult(t *testing.T, tmpl *core.Template, algo hashing.Algorithm, target hashing.Target, res *Result) {
	t.Helper()
	require.NotNil(t, res)
	require.Equal(t, tmpl.Object(res.Nonce), res.Object, "object must be the candidate for the nonce")
	require.Equal(t, algo.HexDigest(res.Object), res.Digest.String())
	if target.Prefix != "" {
		require.True(t, strings.HasPrefix(res.Digest.String(), target.Prefix))
	}
	if target.Message != "" {
		require.Contains(t, res.Digest.String(), target.Message)
	}
}

type spyAllocator struct {
	calls atomic.Int64
	inner Allocator
}

func (s *spyAllocator) Reserve(ctx context.Context, n uint64) (uint64, uint64, error) {
	s.calls.Add(1)
	return s.inner.Reserve(ctx, n)
}

type panicAllocator struct{}

func (panicAllocator) Reserve(context.Context, uint64) (uint64, uint64, error) {
	panic("allocator state corrupted")
}

type finishingAllocator struct {
	*NonceAllocator
	finished atomic.Pointer[Result]
}

func (f *finishingAllocator) Finish(_ context.Context, res *Result) error {
	f.finished.Store(res)
	return nil
}
