// pkg/types/common.go
package types

import "strings"

// Hash is a git object id in lowercase hex: 40 characters for SHA-1
// repositories, 64 for SHA-256 ones.
type Hash string

func (h Hash) String() string { return string(h) }

func (h Hash) IsZero() bool { return h == "" }

// IsValid reports whether h has a git id length and only lowercase hex digits.
func (h Hash) IsValid() bool {
	if len(h) != 40 && len(h) != 64 {
		return false
	}
	return IsHex(string(h)) && strings.ToLower(string(h)) == string(h)
}

// Short returns the abbreviated form used in console output.
func (h Hash) Short() string {
	if len(h) <= 8 {
		return string(h)
	}
	return string(h[:8])
}

// HashPrefix is a user supplied abbreviation of a Hash.
type HashPrefix string

func (p HashPrefix) String() string { return string(p) }

// IsHex reports whether s is non-empty and made only of hex digits.
func IsHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
