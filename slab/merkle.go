// Package slab batches accepted receipts into Merkle-committed slabs, and
// implements inclusion proofs, fraud-proof verification and the
// finalization state machine that authorizes receipt deletion.
//
// Slabs are a storage and transport optimization only: the by-receipt
// replay verifier remains authoritative. A slab's minimal basis lets an
// auditor re-check the global budget invariants without the underlying
// receipts, but it is never treated as a consensus shortcut.
package slab

import (
	"errors"

	"github.com/Fantom-foundation/lachesis-base/hash"

	"github.com/atsproto/go-ats/inter"
	"github.com/atsproto/go-ats/utils/canon"
)

// ErrLeafOutOfRange is returned when a proof is requested for a leaf index
// the tree does not contain.
var ErrLeafOutOfRange = errors.New("slab: leaf index out of range")

// PathStep is one sibling on a Merkle inclusion path. Left reports whether
// the sibling sits to the left of the running hash.
type PathStep struct {
	Hash hash.Hash
	Left bool
}

// LeafOf maps a receipt id to its Merkle leaf. Leaves live in their own
// hash domain, so a receipt id can never be replayed as an internal node.
func LeafOf(receiptID hash.Hash) hash.Hash {
	return canon.HashBytes(inter.TagSlabLeaf, receiptID.Bytes())
}

func nodeOf(left, right hash.Hash) hash.Hash {
	return canon.HashBytes(inter.TagSlabNode, left.Bytes(), right.Bytes())
}

// BuildRoot folds leaves bottom-up pairwise into the Merkle root. An
// unpaired node at any level is carried up unhashed; that is the single
// fixed odd-node rule used everywhere in this package. A single leaf is its
// own root.
func BuildRoot(leaves []hash.Hash) (hash.Hash, error) {
	if len(leaves) == 0 {
		return hash.Hash{}, errors.New("slab: cannot build a root over zero leaves")
	}
	level := append([]hash.Hash{}, leaves...)
	for len(level) > 1 {
		next := make([]hash.Hash, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			next = append(next, nodeOf(level[i], level[i+1]))
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		level = next
	}
	return level[0], nil
}

// InclusionPath returns the sibling path proving leaves[index] under the
// root built from the same leaf slice. Levels where the node is carried up
// unpaired contribute no step.
func InclusionPath(leaves []hash.Hash, index int) ([]PathStep, error) {
	if index < 0 || index >= len(leaves) {
		return nil, ErrLeafOutOfRange
	}
	var path []PathStep
	level := append([]hash.Hash{}, leaves...)
	idx := index
	for len(level) > 1 {
		if sib := idx ^ 1; sib < len(level) {
			path = append(path, PathStep{Hash: level[sib], Left: sib < idx})
		}
		next := make([]hash.Hash, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			next = append(next, nodeOf(level[i], level[i+1]))
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		level = next
		idx /= 2
	}
	return path, nil
}

// VerifyInclusion reports whether leaf is committed under root via path.
// It is a pure function over hashes, deliberately independent of the slab
// construction code, so disputes can run it anywhere.
func VerifyInclusion(leaf hash.Hash, path []PathStep, root hash.Hash) bool {
	h := leaf
	for _, step := range path {
		if step.Left {
			h = nodeOf(step.Hash, h)
		} else {
			h = nodeOf(h, step.Hash)
		}
	}
	return h == root
}
