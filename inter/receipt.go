package inter

import (
	"github.com/Fantom-foundation/lachesis-base/hash"

	"github.com/atsproto/go-ats/utils/canon"
	"github.com/atsproto/go-ats/utils/qfixed"
)

// ReceiptCore holds the consensus-critical fields of one verified step.
// The core, and only the core, feeds the receipt id, the chain link and the
// Merkle slab leaves. Once emitted a receipt is immutable.
type ReceiptCore struct {
	StepIndex       StepIndex
	StateHashBefore hash.Hash
	StateHashAfter  hash.Hash
	ActionHash      hash.Hash
	RiskBefore      qfixed.QFixed
	RiskAfter       qfixed.QFixed
	BudgetBefore    qfixed.QFixed
	BudgetAfter     qfixed.QFixed
	Kappa           qfixed.QFixed
	Decision        Decision
}

// ReceiptMeta holds everything about a receipt that is explicitly excluded
// from consensus hashing: timestamps, signatures, provenance, free-form
// diagnostics. Two receipts with equal cores but different metadata hash
// identically for chain and Merkle purposes; that invariance is a tested
// property, not an accident of field layout.
type ReceiptMeta struct {
	Time       Timestamp
	Provenance string
	Sig        []byte
	Note       string
}

// Receipt is the atomic unit of evidence for one step.
type Receipt struct {
	Core ReceiptCore
	Meta ReceiptMeta
}

// Value renders the core as a canonical map. Field names are part of the
// consensus encoding: renaming one is a hard fork.
func (c ReceiptCore) Value() canon.Value {
	return canon.Map{
		"step_index":        canon.Uint(uint64(c.StepIndex)),
		"state_hash_before": canon.Bytes(c.StateHashBefore.Bytes()),
		"state_hash_after":  canon.Bytes(c.StateHashAfter.Bytes()),
		"action_hash":       canon.Bytes(c.ActionHash.Bytes()),
		"risk_before_q":     canon.QVal(c.RiskBefore),
		"risk_after_q":      canon.QVal(c.RiskAfter),
		"budget_before_q":   canon.QVal(c.BudgetBefore),
		"budget_after_q":    canon.QVal(c.BudgetAfter),
		"kappa_q":           canon.QVal(c.Kappa),
		"decision":          canon.String(c.Decision.String()),
	}
}

// CanonicalBytes returns the canonical encoding of the core.
func (c ReceiptCore) CanonicalBytes() []byte {
	return canon.MustEncode(c.Value())
}

// Hash returns the receipt id: the canonical core hashed under the
// receipt-id domain tag. Metadata never enters this hash.
func (c ReceiptCore) Hash() hash.Hash {
	return canon.MustHashTagged(TagReceiptID, c.Value())
}

// ID is shorthand for the core hash of a full receipt.
func (r *Receipt) ID() hash.Hash {
	return r.Core.Hash()
}
