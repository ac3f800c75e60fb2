// Package kernel implements the deterministic verification core: the risk
// functional, the budget law, the single-writer ledger context, the receipt
// verifier, the chain hasher and the replay verifier.
//
// Nothing in this package blocks, locks or touches I/O. Every function is
// pure given its inputs, and the only mutable state is the explicit Ledger
// context, which advances atomically on acceptance.
package kernel

import (
	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/Fantom-foundation/lachesis-base/hash"

	"github.com/atsproto/go-ats/ats"
	"github.com/atsproto/go-ats/inter"
	"github.com/atsproto/go-ats/utils/canon"
	"github.com/atsproto/go-ats/utils/qfixed"
)

// laneModulus folds each digest lane into the fractional range [0, 1).
const laneModulus = 1_000_000_000_000_000_000

// RiskOf is the risk functional V: a pure, deterministic map from a state
// digest to a non-negative risk scalar, parameterized only by the versioned
// weight configuration.
//
// The 32-byte digest is read as four big-endian uint64 lanes; each lane is
// reduced modulo 10^18 into a fractional scalar and the lanes are combined
// as a weighted sum. The verifier never sees the state behind the digest:
// this digest-derived regime keeps the verifier state-free.
//
// Rules must have passed ats.Rules.Validate, which bounds the lane weights
// so the sum below cannot overflow; an overflow therefore indicates a
// programming error and panics rather than producing a wrong consensus
// value.
func RiskOf(rr ats.RiskRules, digest hash.Hash) qfixed.QFixed {
	total := qfixed.Zero()
	for i := 0; i < 4; i++ {
		lane := bigendian.BytesToUint64(digest[i*8 : (i+1)*8])
		frac := qfixed.FromScaled(lane % laneModulus)

		weight, err := qfixed.FromUint64(rr.LaneWeights[i])
		if err != nil {
			panic("kernel: unvalidated risk weights: " + err.Error())
		}
		term, err := frac.Mul(weight)
		if err != nil {
			panic("kernel: risk term overflow: " + err.Error())
		}
		total, err = total.Add(term)
		if err != nil {
			panic("kernel: risk sum overflow: " + err.Error())
		}
	}
	return total
}

// RiskWitness binds a digest, a weight version and the recomputed risk
// value into one hash under the risk-witness domain tag. Auditors exchange
// witnesses to pinpoint which side of a RISK_MISMATCH recomputed what.
func RiskWitness(rr ats.RiskRules, digest hash.Hash, risk qfixed.QFixed) hash.Hash {
	return canon.MustHashTagged(inter.TagRiskWitness, canon.Map{
		"digest":  canon.Bytes(digest.Bytes()),
		"version": canon.Uint(uint64(rr.Version)),
		"risk_q":  canon.QVal(risk),
	})
}
