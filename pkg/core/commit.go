package core

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gitvanity/pkg/types"
)

var (
	ErrEncoding        = errors.New("commit cannot be encoded")
	ErrMalformedCommit = errors.New("malformed commit")
)

// Signature is an author or committer line: "Name <email> 1700000000 +0100".
type Signature struct {
	Name  string
	Email string
	When  int64
	Zone  string
}

func (s Signature) String() string {
	return s.Name + " <" + s.Email + "> " + strconv.FormatInt(s.When, 10) + " " + s.Zone
}

// Header is any commit header after committer (encoding, mergetag, ...).
// Multi-line values keep their newlines; continuation spaces are added back
// by Encode.
type Header struct {
	Name  string
	Value string
}

// Commit holds the logical fields of a git commit object.
type Commit struct {
	Tree      types.Hash
	Parents   []types.Hash
	Author    Signature
	Committer Signature
	Extra     []Header
	Message   string
}

// signature headers can't survive a committer rewrite
var droppedHeaders = map[string]bool{
	"gpgsig":        true,
	"gpgsig-sha256": true,
}

// ParseCommit decodes a raw commit body (no object header).
func ParseCommit(raw []byte) (*Commit, error) {
	hdr, msg, found := bytes.Cut(raw, []byte("\n\n"))
	if !found {
		hdr = bytes.TrimSuffix(raw, []byte("\n"))
		msg = nil
	}

	headers, err := splitHeaders(hdr)
	if err != nil {
		return nil, err
	}
	if len(headers) == 0 || headers[0].Name != "tree" {
		return nil, fmt.Errorf("%w: missing tree line", ErrMalformedCommit)
	}

	c := &Commit{Tree: types.Hash(headers[0].Value), Message: string(msg)}
	if !c.Tree.IsValid() {
		return nil, fmt.Errorf("%w: malformed tree line", ErrMalformedCommit)
	}

	var haveAuthor, haveCommitter bool
	for _, h := range headers[1:] {
		switch {
		case h.Name == "parent" && !haveAuthor:
			p := types.Hash(h.Value)
			if !p.IsValid() {
				return nil, fmt.Errorf("%w: malformed parent line", ErrMalformedCommit)
			}
			c.Parents = append(c.Parents, p)
		case h.Name == "author" && !haveAuthor:
			if c.Author, err = parseSignature(h.Value); err != nil {
				return nil, fmt.Errorf("author: %w", err)
			}
			haveAuthor = true
		case h.Name == "committer" && !haveCommitter:
			if c.Committer, err = parseSignature(h.Value); err != nil {
				return nil, fmt.Errorf("committer: %w", err)
			}
			haveCommitter = true
		case droppedHeaders[h.Name]:
		default:
			c.Extra = append(c.Extra, h)
		}
	}
	if !haveAuthor || !haveCommitter {
		return nil, fmt.Errorf("%w: author and committer lines are required", ErrMalformedCommit)
	}
	return c, nil
}

func splitHeaders(hdr []byte) ([]Header, error) {
	var out []Header
	for _, line := range strings.Split(string(hdr), "\n") {
		if strings.HasPrefix(line, " ") {
			if len(out) == 0 {
				return nil, fmt.Errorf("%w: continuation line without header", ErrMalformedCommit)
			}
			out[len(out)-1].Value += "\n" + line[1:]
			continue
		}
		name, value, ok := strings.Cut(line, " ")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: bad header line %q", ErrMalformedCommit, line)
		}
		out = append(out, Header{Name: name, Value: value})
	}
	return out, nil
}

// parseSignature scans from the end for '>' because names may contain it
// in the wild even though git itself refuses to write one.
func parseSignature(v string) (Signature, error) {
	gt := strings.LastIndexByte(v, '>')
	if gt < 0 {
		return Signature{}, fmt.Errorf("%w: missing '>'", ErrMalformedCommit)
	}
	lt := strings.LastIndexByte(v[:gt], '<')
	if lt < 0 {
		return Signature{}, fmt.Errorf("%w: missing email", ErrMalformedCommit)
	}
	fields := strings.Fields(v[gt+1:])
	if len(fields) != 2 {
		return Signature{}, fmt.Errorf("%w: missing timestamp", ErrMalformedCommit)
	}
	when, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: invalid timestamp: %v", ErrMalformedCommit, err)
	}
	return Signature{
		Name:  strings.TrimSpace(v[:lt]),
		Email: v[lt+1 : gt],
		When:  when,
		Zone:  fields[1],
	}, nil
}

// Validate checks that Encode would produce an object git accepts.
func (c *Commit) Validate() error {
	if !c.Tree.IsValid() {
		return fmt.Errorf("%w: invalid tree id %q", ErrEncoding, c.Tree)
	}
	for _, p := range c.Parents {
		if !p.IsValid() {
			return fmt.Errorf("%w: invalid parent id %q", ErrEncoding, p)
		}
		if len(p) != len(c.Tree) {
			return fmt.Errorf("%w: parent %s and tree use different object formats", ErrEncoding, p.Short())
		}
	}
	for role, s := range map[string]Signature{"author": c.Author, "committer": c.Committer} {
		if strings.ContainsAny(s.Name, "<>\n") || strings.ContainsAny(s.Email, "<>\n") {
			return fmt.Errorf("%w: %s identity contains '<', '>' or a newline", ErrEncoding, role)
		}
		if s.Zone == "" || strings.ContainsAny(s.Zone, " \n") {
			return fmt.Errorf("%w: %s timezone %q", ErrEncoding, role, s.Zone)
		}
	}
	for _, h := range c.Extra {
		if h.Name == "" || strings.ContainsAny(h.Name, " \n") {
			return fmt.Errorf("%w: header name %q", ErrEncoding, h.Name)
		}
	}
	if strings.IndexByte(c.Message, 0) >= 0 {
		return fmt.Errorf("%w: message contains NUL", ErrEncoding)
	}
	return nil
}

// Encode serializes the commit body in git's canonical header order.
func (c *Commit) Encode() ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	var b bytes.Buffer
	b.WriteString("tree " + c.Tree.String() + "\n")
	for _, p := range c.Parents {
		b.WriteString("parent " + p.String() + "\n")
	}
	b.WriteString("author " + c.Author.String() + "\n")
	b.WriteString("committer " + c.Committer.String() + "\n")
	for _, h := range c.Extra {
		b.WriteString(h.Name + " " + strings.ReplaceAll(h.Value, "\n", "\n ") + "\n")
	}
	b.WriteByte('\n')
	b.WriteString(c.Message)
	return b.Bytes(), nil
}
