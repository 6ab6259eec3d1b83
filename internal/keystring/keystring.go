// Package keystring implements KeyString, the fixed 64-byte padded
// identifier used throughout EZDB for column names, table names, predicate
// literals, and binary-codec enum tags.
package keystring

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"ezdb/internal/ezerr"
)

// Size is the fixed payload width of every KeyString, on the wire and in
// column storage.
const Size = 64

// KeyString is a 64-byte zero-padded identifier. The zero value is 64 zero
// bytes, which From("") also produces.
type KeyString [Size]byte

// From pads s with trailing zero bytes to Size. It fails if s is longer
// than Size bytes.
func From(s string) (KeyString, error) {
	var k KeyString
	if len(s) > Size {
		return k, ezerr.Newf(ezerr.Structure, "keystring: %q exceeds %d bytes", s, Size)
	}
	copy(k[:], s)
	return k, nil
}

// MustFrom is From, panicking on error. Reserved for literals known at
// compile time (verb tags, action tags); never call it on user input.
func MustFrom(s string) KeyString {
	k, err := From(s)
	if err != nil {
		panic(err)
	}
	return k
}

// Raw returns the canonical zero-padded 64-byte payload.
func (k KeyString) Raw() []byte {
	return k[:]
}

// String trims trailing zero padding and returns the logical value.
func (k KeyString) String() string {
	trimmed := bytes.TrimRight(k[:], "\x00")
	return string(trimmed)
}

// Compare orders two KeyStrings by the unsigned byte order of their raw
// payload, matching the primary-column ordering used everywhere else.
func (k KeyString) Compare(other KeyString) int {
	return bytes.Compare(k[:], other[:])
}

// Less reports whether k sorts strictly before other.
func (k KeyString) Less(other KeyString) bool {
	return k.Compare(other) < 0
}

// Equal reports byte-for-byte equality of the raw payload.
func (k KeyString) Equal(other KeyString) bool {
	return k == other
}

// Hash returns a 64-bit hash of the raw payload so that two KeyStrings
// carrying the same logical value always hash identically, independent of
// how far the trailing zero padding extends (it always extends to Size).
func (k KeyString) Hash() uint64 {
	return xxhash.Sum64(k[:])
}

// ToInt32 trims padding and parses the logical value as a signed 32-bit
// integer. Parse failure is a recoverable error, never a panic.
func (k KeyString) ToInt32() (int32, error) {
	s := strings.TrimSpace(k.String())
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, ezerr.Wrap(ezerr.Query, "keystring: not an i32: "+k.String(), err)
	}
	return int32(n), nil
}

// ToFloat32 trims padding and parses the logical value as a 32-bit float.
func (k KeyString) ToFloat32() (float32, error) {
	s := strings.TrimSpace(k.String())
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, ezerr.Wrap(ezerr.Query, "keystring: not an f32: "+k.String(), err)
	}
	return float32(f), nil
}

// FromInt32 formats n as the decimal KeyString representation.
func FromInt32(n int32) KeyString {
	return MustFrom(strconv.FormatInt(int64(n), 10))
}

// FromFloat32 formats f as the KeyString representation.
func FromFloat32(f float32) KeyString {
	return MustFrom(strconv.FormatFloat(float64(f), 'g', -1, 32))
}
