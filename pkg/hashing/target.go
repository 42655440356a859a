package hashing

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gitvanity/pkg/types"
)

var (
	ErrEmptyTarget   = errors.New("at least one of prefix or hidden message is required")
	ErrInvalidTarget = errors.New("invalid search target")
)

// Target is what a digest must look like. Both fields are lowercase hex
// and are compared against the hex text of the digest.
type Target struct {
	Prefix  string
	Message string
}

// ParseTarget normalizes user input. It does not check lengths against an
// algorithm; Validate does that once the repository format is known.
func ParseTarget(prefix, message string) (Target, error) {
	t := Target{
		Prefix:  strings.ToLower(strings.TrimSpace(prefix)),
		Message: strings.ToLower(strings.TrimSpace(message)),
	}
	if t.IsZero() {
		return Target{}, ErrEmptyTarget
	}
	if t.Prefix != "" && !types.IsHex(t.Prefix) {
		return Target{}, fmt.Errorf("%w: prefix %q is not hex", ErrInvalidTarget, prefix)
	}
	if t.Message != "" && !types.IsHex(t.Message) {
		return Target{}, fmt.Errorf("%w: hidden message %q is not hex", ErrInvalidTarget, message)
	}
	return t, nil
}

func (t Target) IsZero() bool { return t.Prefix == "" && t.Message == "" }

// Validate rejects targets no digest of algo could ever satisfy.
func (t Target) Validate(algo Algorithm) error {
	if t.IsZero() {
		return ErrEmptyTarget
	}
	for _, f := range []struct{ name, val string }{{"prefix", t.Prefix}, {"hidden message", t.Message}} {
		if f.val == "" {
			continue
		}
		if !types.IsHex(f.val) || strings.ToLower(f.val) != f.val {
			return fmt.Errorf("%w: %s %q must be lowercase hex", ErrInvalidTarget, f.name, f.val)
		}
		if len(f.val) > algo.HexSize() {
			return fmt.Errorf("%w: %s is %d characters, a %s digest has %d",
				ErrInvalidTarget, f.name, len(f.val), algo, algo.HexSize())
		}
	}
	return nil
}

// Matches reports whether hexDigest satisfies every criterion that is set.
func (t Target) Matches(hexDigest []byte) bool {
	return t.Matcher().Match(hexDigest)
}

func (t Target) String() string {
	switch {
	case t.Prefix != "" && t.Message != "":
		return fmt.Sprintf("prefix=%s message=%s", t.Prefix, t.Message)
	case t.Prefix != "":
		return "prefix=" + t.Prefix
	default:
		return "message=" + t.Message
	}
}

// Matcher is a Target with its criteria converted once, for the hot loop.
type Matcher struct {
	prefix  []byte
	message []byte
}

func (t Target) Matcher() Matcher {
	return Matcher{prefix: []byte(t.Prefix), message: []byte(t.Message)}
}

// Match is the predicate: (no prefix or HasPrefix) and (no message or Contains).
func (m Matcher) Match(hexDigest []byte) bool {
	if len(m.prefix) > 0 && !bytes.HasPrefix(hexDigest, m.prefix) {
		return false
	}
	if len(m.message) > 0 && !bytes.Contains(hexDigest, m.message) {
		return false
	}
	return true
}
