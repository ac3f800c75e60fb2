package canon

import (
	"crypto/sha256"

	"github.com/Fantom-foundation/lachesis-base/hash"
)

// Hashing is always domain-separated: the caller supplies a short,
// versioned, human-readable tag which is written before the canonical
// bytes. Hashes computed for different purposes (receipt id, chain link,
// state digest, ...) therefore live in disjoint domains and can never
// collide across purposes, even over identical payloads.

// HashTagged hashes the canonical encoding of v under the given domain tag.
func HashTagged(tag string, v Value) (hash.Hash, error) {
	raw, err := Encode(v)
	if err != nil {
		return hash.Hash{}, err
	}
	return HashBytes(tag, raw), nil
}

// MustHashTagged is HashTagged for kernel-constructed values; panics on a
// malformed value.
func MustHashTagged(tag string, v Value) hash.Hash {
	h, err := HashTagged(tag, v)
	if err != nil {
		panic("canon: " + err.Error())
	}
	return h
}

// HashBytes hashes raw byte chunks under the given domain tag. The tag is
// written first, then each chunk in order; chunk boundaries are the
// caller's responsibility (fixed-width chunks only).
func HashBytes(tag string, chunks ...[]byte) hash.Hash {
	hasher := sha256.New()
	hasher.Write([]byte(tag))
	for _, c := range chunks {
		hasher.Write(c)
	}
	return hash.BytesToHash(hasher.Sum(nil))
}
