package core

import (
	"strings"
	"testing"

	"gitvanity/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Commit parsing and encoding
// -----------------------------------------------------------------------------

func TestParseCommit_RoundTrip(t *testing.T) {
	raw := "tree " + mockHash("t").String() + "\n" +
		"parent " + mockHash("p1").String() + "\n" +
		"parent " + mockHash("p2").String() + "\n" +
		"author A U Thor <author@example.com> 1700000000 -0700\n" +
		"committer C O Mitter <committer@example.com> 1700000500 +0000\n" +
		"encoding ISO-8859-1\n" +
		"mergetag object " + mockHash("o").String() + "\n" +
		" type commit\n" +
		" tag v1\n" +
		"\n" +
		"Merge branch 'topic'\n\nBody line.\n"

	c, err := ParseCommit([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, mockHash("t"), c.Tree)
	assert.Equal(t, []types.Hash{mockHash("p1"), mockHash("p2")}, c.Parents)
	assert.Equal(t, Signature{Name: "A U Thor", Email: "author@example.com", When: 1700000000, Zone: "-0700"}, c.Author)
	assert.Equal(t, "C O Mitter", c.Committer.Name)
	require.Len(t, c.Extra, 2)
	assert.Equal(t, "encoding", c.Extra[0].Name)
	assert.Equal(t, "object "+mockHash("o").String()+"\ntype commit\ntag v1", c.Extra[1].Value)
	assert.Equal(t, "Merge branch 'topic'\n\nBody line.\n", c.Message)

	encoded, err := c.Encode()
	require.NoError(t, err)
	assert.Equal(t, raw, string(encoded), "parse + encode must reproduce the canonical bytes")
}

func TestParseCommit_DropsSignature(t *testing.T) {
	raw := "tree " + mockHash("t").String() + "\n" +
		"author A <a@example.com> 1 +0000\n" +
		"committer A <a@example.com> 1 +0000\n" +
		"gpgsig -----BEGIN PGP SIGNATURE-----\n" +
		" \n" +
		" abcdef\n" +
		" -----END PGP SIGNATURE-----\n" +
		"\n" +
		"signed\n"

	c, err := ParseCommit([]byte(raw))
	require.NoError(t, err)
	assert.Empty(t, c.Extra)
	assert.Empty(t, c.Parents)

	encoded, err := c.Encode()
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), "gpgsig")
}

func TestParseCommit_Malformed(t *testing.T) {
	tree := "tree " + mockHash("t").String() + "\n"
	sig := "A <a@example.com> 1 +0000\n"

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"missing tree", "author " + sig + "committer " + sig + "\nmsg", "missing tree"},
		{"short tree", "tree abc\nauthor " + sig + "committer " + sig + "\nmsg", "malformed tree"},
		{"bad parent", tree + "parent xyz\nauthor " + sig + "committer " + sig + "\nmsg", "malformed parent"},
		{"no committer", tree + "author " + sig + "\nmsg", "author and committer"},
		{"no email", tree + "author A 1 +0000\ncommitter " + sig + "\nmsg", "missing '>'"},
		{"no timestamp", tree + "author A <a@b>\ncommitter " + sig + "\nmsg", "missing timestamp"},
		{"orphan continuation", " dangling\n" + tree, "continuation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCommit([]byte(tt.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedCommit)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCommit_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Commit)
	}{
		{"bad tree", func(c *Commit) { c.Tree = "nope" }},
		{"bad parent", func(c *Commit) { c.Parents = []types.Hash{"1234"} }},
		{"mixed formats", func(c *Commit) { c.Parents = []types.Hash{types.Hash(strings.Repeat("a", 64))} }},
		{"angle bracket in name", func(c *Commit) { c.Committer.Name = "Eve <evil>" }},
		{"newline in email", func(c *Commit) { c.Author.Email = "a\n@b" }},
		{"empty zone", func(c *Commit) { c.Author.Zone = "" }},
		{"header with space", func(c *Commit) { c.Extra = []Header{{Name: "x y", Value: "v"}} }},
		{"NUL in message", func(c *Commit) { c.Message = "a\x00b" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := sampleCommit()
			tt.mutate(c)
			_, err := c.Encode()
			assert.ErrorIs(t, err, ErrEncoding)
			_, err = NewTemplate(c)
			assert.ErrorIs(t, err, ErrEncoding)
		})
	}
}

// -----------------------------------------------------------------------------
// Object header
// -----------------------------------------------------------------------------

func TestSplitObject(t *testing.T) {
	obj := commitObject([]byte("hello"))
	assert.Equal(t, "commit 5\x00hello", string(obj))

	typ, body, err := SplitObject(obj)
	require.NoError(t, err)
	assert.Equal(t, TypeCommit, typ)
	assert.Equal(t, "hello", string(body))

	for _, bad := range []string{"commit 5", "commit 4\x00hello", "commit x\x00a", "5\x00hello"} {
		_, _, err := SplitObject([]byte(bad))
		assert.ErrorIs(t, err, ErrMalformedObject, bad)
	}
}

// -----------------------------------------------------------------------------
// Template (candidate construction)
// -----------------------------------------------------------------------------

func TestTemplate_MatchesEncode(t *testing.T) {
	c := sampleCommit()
	tmpl := mustNewTemplate(t, c)

	for _, nonce := range []uint64{0, 1, 0xabc, 1<<64 - 1} {
		expected := *c
		expected.Committer.Name = NonceName(c.Committer.Name, nonce)
		body, err := expected.Encode()
		require.NoError(t, err)

		assert.Equal(t, string(commitObject(body)), string(tmpl.Object(nonce)))
	}
}

func TestTemplate_NonceRendering(t *testing.T) {
	tmpl := mustNewTemplate(t, sampleCommit())

	obj := string(tmpl.Object(0x1f))
	assert.Contains(t, obj, "\ncommitter 1f_Ada Lovelace <ada@example.com> 1700000100 +0100\n")
	assert.Contains(t, obj, "\nauthor Ada Lovelace <ada@example.com>", "author must be untouched")

	_, body, err := SplitObject([]byte(obj))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(body), "\n\nAdd analytical engine\n"))
}

func TestTemplate_Distinct(t *testing.T) {
	tmpl := mustNewTemplate(t, sampleCommit())

	seen := make(map[string]uint64)
	for n := uint64(0); n < 5000; n++ {
		obj := string(tmpl.Object(n))
		prev, dup := seen[obj]
		require.False(t, dup, "nonces %d and %d produced the same object", prev, n)
		seen[obj] = n
	}
}

func TestTemplate_SanitizesPreviousToken(t *testing.T) {
	c := sampleCommit()
	c.Committer.Name = "deadbeef_Ada Lovelace"
	tmpl := mustNewTemplate(t, c)

	assert.Equal(t, "Ada Lovelace", tmpl.Name())
	assert.Contains(t, string(tmpl.Object(2)), "\ncommitter 2_Ada Lovelace <")
	assert.Equal(t, "deadbeef_Ada Lovelace", c.Committer.Name, "input commit must not be modified")
}

func TestTemplate_AppendObjectDoesNotAllocate(t *testing.T) {
	tmpl := mustNewTemplate(t, sampleCommit())
	buf := make([]byte, 0, tmpl.MaxSize())

	allocs := testing.AllocsPerRun(100, func() {
		buf = tmpl.AppendObject(buf[:0], 1<<64-1)
	})
	assert.Zero(t, allocs)
	assert.LessOrEqual(t, len(buf), tmpl.MaxSize())
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"Ada":       "Ada",
		"1f_Ada":    "Ada",
		"DEAD_Ada":  "Ada",
		"1f_2e_Ada": "2e_Ada",
		"Bob_1f":    "Bob_1f",
		"Ada_1f":    "1f", // "Ada" is valid hex
		"zz_Ada":    "zz_Ada",
		"":          "",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeName(in), in)
	}
	assert.Equal(t, "ff_Ada", NonceName("Ada", 255))
}
