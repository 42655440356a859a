package core

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
)

// a token left by an earlier run: "<hex>_"
var nonceToken = regexp.MustCompile(`^[0-9a-fA-F]+_`)

// SanitizeName strips a nonce token from the front of a committer name so
// repeated runs don't stack tokens.
func SanitizeName(name string) string {
	return nonceToken.ReplaceAllString(name, "")
}

// NonceName is the committer name a nonce produces.
func NonceName(name string, nonce uint64) string {
	return strconv.FormatUint(nonce, 16) + "_" + name
}

// Template is a commit encoded once with a gap in front of the committer
// name. AppendObject fills the gap with a nonce token. A Template is
// immutable and safe for concurrent use.
type Template struct {
	body    []byte
	namePos int
	name    string
}

var committerMarker = []byte("\ncommitter ")

// NewTemplate validates and encodes c. Any nonce token already on the
// committer name is removed first.
func NewTemplate(c *Commit) (*Template, error) {
	base := *c
	base.Committer.Name = SanitizeName(c.Committer.Name)

	body, err := base.Encode()
	if err != nil {
		return nil, err
	}
	// tree, parent and author lines cannot contain a newline, so the first
	// marker is the committer header
	i := bytes.Index(body, committerMarker)
	if i < 0 {
		return nil, fmt.Errorf("%w: committer header not found", ErrEncoding)
	}
	return &Template{
		body:    body,
		namePos: i + len(committerMarker),
		name:    base.Committer.Name,
	}, nil
}

// Name is the sanitized committer name the nonce is attached to.
func (t *Template) Name() string { return t.name }

// MaxSize is an upper bound on the object length for any uint64 nonce.
func (t *Template) MaxSize() int {
	// header: "commit " + 20 digits + NUL, token: 16 hex + "_"
	return len("commit ") + 20 + 1 + len(t.body) + 16 + 1
}

// AppendObject appends the full object (header and body) for nonce to dst.
// It does not allocate when cap(dst) >= MaxSize().
func (t *Template) AppendObject(dst []byte, nonce uint64) []byte {
	var buf [16]byte
	token := strconv.AppendUint(buf[:0], nonce, 16)

	dst = AppendHeader(dst, TypeCommit, len(t.body)+len(token)+1)
	dst = append(dst, t.body[:t.namePos]...)
	dst = append(dst, token...)
	dst = append(dst, '_')
	return append(dst, t.body[t.namePos:]...)
}

// Object returns a freshly allocated object for nonce.
func (t *Template) Object(nonce uint64) []byte {
	return t.AppendObject(make([]byte, 0, t.MaxSize()), nonce)
}
