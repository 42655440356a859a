package core

import (
	"crypto/sha1"
	"encoding/hex"
	"testing"

	"gitvanity/pkg/types"

	"github.com/stretchr/testify/require"
)

// mockHash returns a well-formed 40 character SHA-1 id derived from input.
func mockHash(input string) types.Hash {
	sum := sha1.Sum([]byte(input))
	return types.Hash(hex.EncodeToString(sum[:]))
}

func sampleCommit() *Commit {
	return &Commit{
		Tree:    mockHash("tree"),
		Parents: []types.Hash{mockHash("parent")},
		Author: Signature{
			Name: "Ada Lovelace", Email: "ada@example.com", When: 1700000000, Zone: "+0100",
		},
		Committer: Signature{
			Name: "Ada Lovelace", Email: "ada@example.com", When: 1700000100, Zone: "+0100",
		},
		Message: "Add analytical engine\n",
	}
}

func mustNewTemplate(t *testing.T, c *Commit) *Template {
	t.Helper()
	tmpl, err := NewTemplate(c)
	require.NoError(t, err)
	return tmpl
}

func commitObject(body []byte) []byte {
	return append(AppendHeader(nil, TypeCommit, len(body)), body...)
}
