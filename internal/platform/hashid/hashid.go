// Package hashid derives stable content identifiers. An ID is the MD5 hex
// digest of a value's canonical string; MD5 keeps keys compatible with
// archives already uploaded under that scheme.
package hashid

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// ID is a 32 character lowercase hex digest.
type ID string

func (id ID) String() string { return string(id) }

// Of hashes the canonical string of v. Values implementing fmt.Stringer are
// rendered with String.
func Of(v any) ID {
	return FromString(fmt.Sprint(v))
}

func FromString(s string) ID {
	sum := md5.Sum([]byte(s))
	return ID(hex.EncodeToString(sum[:]))
}

// Valid reports whether s has the shape of an ID.
func Valid(s string) bool {
	if len(s) != md5.Size*2 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
