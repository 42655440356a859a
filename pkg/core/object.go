package core

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// ObjectType is the type tag of a git object header.
type ObjectType string

const TypeCommit ObjectType = "commit"

var ErrMalformedObject = errors.New("malformed object")

// AppendHeader appends the canonical "<type> <size>\x00" prefix that git
// hashes in front of every object body.
func AppendHeader(dst []byte, t ObjectType, size int) []byte {
	dst = append(dst, string(t)...)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, int64(size), 10)
	return append(dst, 0)
}

// SplitObject parses the header of a full object and returns the body. The
// declared size must match the body length exactly.
func SplitObject(obj []byte) (ObjectType, []byte, error) {
	nul := bytes.IndexByte(obj, 0)
	if nul < 0 {
		return "", nil, fmt.Errorf("%w: missing header terminator", ErrMalformedObject)
	}
	typ, size, ok := bytes.Cut(obj[:nul], []byte(" "))
	if !ok || len(typ) == 0 {
		return "", nil, fmt.Errorf("%w: bad header %q", ErrMalformedObject, obj[:nul])
	}
	n, err := strconv.Atoi(string(size))
	if err != nil || n < 0 {
		return "", nil, fmt.Errorf("%w: bad size %q", ErrMalformedObject, size)
	}
	body := obj[nul+1:]
	if n != len(body) {
		return "", nil, fmt.Errorf("%w: header says %d bytes, body has %d", ErrMalformedObject, n, len(body))
	}
	return ObjectType(typ), body, nil
}
