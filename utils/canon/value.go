// Package canon implements the canonical serialization used as the sole
// input to every consensus hash in the kernel.
//
// The encoding is byte-exact and deterministic: one type tag per value,
// minimal varints for all lengths, map entries sorted lexicographically by
// key bytes, numbers rendered as exact decimal strings, UTF-8 throughout.
// serialize(x) == serialize(x) always holds, across calls and across
// machines; structurally distinct values encode differently up to the
// collision resistance of the hash applied on top.
//
// Decoding is strict: any input that is not the unique canonical encoding
// of some value (non-minimal varint, unsorted or duplicate map keys,
// trailing bytes) is rejected rather than normalized.
package canon

import (
	"errors"
	"unicode/utf8"

	"github.com/atsproto/go-ats/utils/qfixed"
)

// Errors reported by the codec.
var (
	ErrNonCanonicalEncoding = errors.New("canon: non canonical encoding")
	ErrMalformedEncoding    = errors.New("canon: malformed encoding")
	ErrTooLargeAlloc        = errors.New("canon: decoded size exceeds limit")
	ErrUnsupportedValue     = errors.New("canon: unsupported value")
	ErrInvalidUTF8          = errors.New("canon: string is not valid UTF-8")
)

// MaxAlloc limits the size of any single decoded byte string or collection
// to keep malformed input from forcing huge allocations.
const MaxAlloc = 100 * 1024

// Type tags. Every encoded value starts with exactly one of these bytes.
const (
	tagBytes  = 'b' // byte string: tag, varint length, raw bytes
	tagString = 's' // UTF-8 string: tag, varint length, raw bytes
	tagQFixed = 'q' // fixed-point number: tag, varint length, exact decimal string
	tagUint   = 'u' // unsigned integer: tag, minimal varint
	tagList   = 'l' // ordered sequence: tag, varint count, encoded elements
	tagMap    = 'm' // string-keyed mapping: tag, varint count, sorted key/value pairs
)

// Value is a structured value the canonical encoder understands. The set of
// implementations is closed: byte strings, UTF-8 strings, QFixed decimal
// numbers, unsigned integers, ordered lists and string-keyed maps.
type Value interface {
	isValue()
}

// Bytes is an opaque byte string.
type Bytes []byte

// String is a UTF-8 string.
type String string

// Uint is an unsigned integer, encoded as a minimal varint.
type Uint uint64

// Q is a fixed-point scalar, encoded as its exact canonical decimal string.
type Q qfixed.QFixed

// List is an ordered sequence of values.
type List []Value

// Map is a string-keyed mapping. Keys are sorted by byte value at encode
// time, so the in-memory map order never leaks into the encoding.
type Map map[string]Value

func (Bytes) isValue()  {}
func (String) isValue() {}
func (Uint) isValue()   {}
func (Q) isValue()      {}
func (List) isValue()   {}
func (Map) isValue()    {}

// QVal wraps a qfixed scalar as a canonical value.
func QVal(q qfixed.QFixed) Q {
	return Q(q)
}

func validString(s string) bool {
	return utf8.ValidString(s)
}
