package slab

import (
	"github.com/Fantom-foundation/lachesis-base/hash"

	"github.com/atsproto/go-ats/inter"
)

// FraudProof claims that the leaf at LeafIndex inside a slab commits to a
// value other than the honest recomputation. Path must prove ClaimedLeaf
// under the slab's Merkle root; RecomputedLeaf is what an honest replay of
// the underlying receipt yields.
type FraudProof struct {
	SlabID         hash.Hash
	LeafIndex      uint32
	ClaimedLeaf    hash.Hash
	RecomputedLeaf hash.Hash
	Path           []PathStep
}

// VerifyFraudProof is the pure acceptance predicate: the proof is accepted
// iff the claimed leaf really is committed under root and differs from the
// recomputed leaf. A proof whose path does not verify says nothing about
// the slab and is rejected.
func VerifyFraudProof(root hash.Hash, p FraudProof) bool {
	if p.ClaimedLeaf == p.RecomputedLeaf {
		return false
	}
	return VerifyInclusion(p.ClaimedLeaf, p.Path, root)
}

// SubmitFraudProof evaluates p against this slab and, when accepted, moves
// the slab to StatusDisputed. A finalized slab can no longer be disputed;
// its window has elapsed.
func (s *Slab) SubmitFraudProof(p FraudProof) bool {
	if p.SlabID != s.ID {
		return false
	}
	if s.status == StatusFinalized {
		return false
	}
	if !VerifyFraudProof(s.MerkleRoot, p) {
		return false
	}
	s.status = StatusDisputed
	return true
}

// Rejection renders a disputed slab as a structured rejection, nil while
// the slab is undisputed.
func (s *Slab) Rejection() *inter.Rejection {
	if s.status != StatusDisputed {
		return nil
	}
	return inter.Reject(inter.CodeSlabDisputed,
		"slab carries an accepted fraud proof",
		map[string]string{"slab": s.ID.String()})
}
