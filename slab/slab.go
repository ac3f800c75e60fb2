package slab

import (
	"errors"
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/hash"

	"github.com/atsproto/go-ats/ats"
	"github.com/atsproto/go-ats/inter"
	"github.com/atsproto/go-ats/utils/canon"
	"github.com/atsproto/go-ats/utils/qfixed"
)

var (
	ErrEmptySlab       = errors.New("slab: no receipts")
	ErrTooManyReceipts = errors.New("slab: receipt count exceeds rules capacity")
	ErrBrokenSequence  = errors.New("slab: receipts are not a contiguous accepted run")
)

// Status is the lifecycle position of a slab. The dispute window is not a
// stored status: it is the phase a committed slab is in until its window
// elapses, reported by Phase.
type Status uint8

const (
	StatusOpen Status = iota
	StatusCommitted
	StatusDisputeWindow
	StatusFinalized
	StatusDisputed
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusCommitted:
		return "committed"
	case StatusDisputeWindow:
		return "dispute-window"
	case StatusFinalized:
		return "finalized"
	case StatusDisputed:
		return "disputed"
	}
	return fmt.Sprintf("status-%d", uint8(s))
}

// Summary is the minimal basis of a slab: the aggregates an auditor needs
// to re-check global budget accounting after the member receipts are gone.
type Summary struct {
	FirstReceiptID hash.Hash
	LastReceiptID  hash.Hash
	FirstStep      inter.StepIndex
	LastStep       inter.StepIndex
	ReceiptCount   uint32

	InitialStateHash hash.Hash
	FinalStateHash   hash.Hash
	InitialBudget    qfixed.QFixed
	FinalBudget      qfixed.QFixed

	// MaxRisk is the largest after-step risk inside the slab; MaxCharge is
	// the largest single-step budget charge.
	MaxRisk   qfixed.QFixed
	MaxCharge qfixed.QFixed
}

// Slab is a Merkle commitment over a contiguous run of accepted receipts,
// together with its minimal basis and lifecycle state.
type Slab struct {
	ID         hash.Hash
	MerkleRoot hash.Hash
	Summary    Summary

	status        Status
	committedAt   inter.Timestamp
	disputeWindow inter.Timestamp
}

// Build constructs an open slab over receipts. The run must be non-empty,
// fit the rules capacity, consist of PASS decisions only, and be contiguous
// in both step index and state digest.
func Build(rules ats.Rules, receipts []inter.Receipt) (*Slab, error) {
	if len(receipts) == 0 {
		return nil, ErrEmptySlab
	}
	if uint64(len(receipts)) > uint64(rules.Slabs.MaxReceipts) {
		return nil, ErrTooManyReceipts
	}

	leaves := make([]hash.Hash, len(receipts))
	maxRisk := qfixed.Zero()
	maxCharge := qfixed.Zero()
	for i := range receipts {
		core := &receipts[i].Core
		if core.Decision != inter.DecisionPass {
			return nil, fmt.Errorf("%w: receipt %d is not a PASS", ErrBrokenSequence, i)
		}
		if i > 0 {
			prev := &receipts[i-1].Core
			if core.StepIndex != prev.StepIndex+1 {
				return nil, fmt.Errorf("%w: step %d follows step %d", ErrBrokenSequence, core.StepIndex, prev.StepIndex)
			}
			if core.StateHashBefore != prev.StateHashAfter {
				return nil, fmt.Errorf("%w: state digest break at receipt %d", ErrBrokenSequence, i)
			}
		}
		leaves[i] = LeafOf(receipts[i].ID())

		if core.RiskAfter.Gt(maxRisk) {
			maxRisk = core.RiskAfter
		}
		if charge, err := core.BudgetBefore.Sub(core.BudgetAfter); err == nil && charge.Gt(maxCharge) {
			maxCharge = charge
		}
	}

	root, err := BuildRoot(leaves)
	if err != nil {
		return nil, err
	}

	first := &receipts[0]
	last := &receipts[len(receipts)-1]
	s := &Slab{
		MerkleRoot: root,
		Summary: Summary{
			FirstReceiptID:   first.ID(),
			LastReceiptID:    last.ID(),
			FirstStep:        first.Core.StepIndex,
			LastStep:         last.Core.StepIndex,
			ReceiptCount:     uint32(len(receipts)),
			InitialStateHash: first.Core.StateHashBefore,
			FinalStateHash:   last.Core.StateHashAfter,
			InitialBudget:    first.Core.BudgetBefore,
			FinalBudget:      last.Core.BudgetAfter,
			MaxRisk:          maxRisk,
			MaxCharge:        maxCharge,
		},
		status:        StatusOpen,
		disputeWindow: rules.Slabs.DisputeWindow,
	}
	s.ID = s.idOf()
	return s, nil
}

// idOf derives the slab id from the commitment and the minimal basis, so
// any divergence in either yields a different id.
func (s *Slab) idOf() hash.Hash {
	return canon.MustHashTagged(inter.TagSlabID, canon.Map{
		"merkle_root":        canon.Bytes(s.MerkleRoot.Bytes()),
		"first_receipt_id":   canon.Bytes(s.Summary.FirstReceiptID.Bytes()),
		"last_receipt_id":    canon.Bytes(s.Summary.LastReceiptID.Bytes()),
		"first_step":         canon.Uint(uint64(s.Summary.FirstStep)),
		"last_step":          canon.Uint(uint64(s.Summary.LastStep)),
		"receipt_count":      canon.Uint(uint64(s.Summary.ReceiptCount)),
		"initial_state_hash": canon.Bytes(s.Summary.InitialStateHash.Bytes()),
		"final_state_hash":   canon.Bytes(s.Summary.FinalStateHash.Bytes()),
		"initial_budget_q":   canon.QVal(s.Summary.InitialBudget),
		"final_budget_q":     canon.QVal(s.Summary.FinalBudget),
		"max_risk_q":         canon.QVal(s.Summary.MaxRisk),
		"max_charge_q":       canon.QVal(s.Summary.MaxCharge),
	})
}

// CheckBasis re-verifies the budget aggregates the basis promises. It needs
// no receipts: the budget never grows along an accepted run, so the final
// budget and the largest single charge are both bounded by the initial
// budget.
func (s *Slab) CheckBasis() error {
	if s.Summary.ReceiptCount == 0 {
		return ErrEmptySlab
	}
	if s.Summary.FinalBudget.Gt(s.Summary.InitialBudget) {
		return fmt.Errorf("slab %s: final budget %s exceeds initial %s",
			s.ID.String(), s.Summary.FinalBudget.String(), s.Summary.InitialBudget.String())
	}
	if s.Summary.MaxCharge.Gt(s.Summary.InitialBudget) {
		return fmt.Errorf("slab %s: max charge %s exceeds initial budget %s",
			s.ID.String(), s.Summary.MaxCharge.String(), s.Summary.InitialBudget.String())
	}
	if s.Summary.LastStep < s.Summary.FirstStep {
		return ErrBrokenSequence
	}
	if got := uint64(s.Summary.LastStep-s.Summary.FirstStep) + 1; got != uint64(s.Summary.ReceiptCount) {
		return fmt.Errorf("slab %s: step span %d does not match receipt count %d",
			s.ID.String(), got, s.Summary.ReceiptCount)
	}
	return nil
}

// Leaves recomputes the leaf set for a receipt run, for proof generation.
func Leaves(receipts []inter.Receipt) []hash.Hash {
	leaves := make([]hash.Hash, len(receipts))
	for i := range receipts {
		leaves[i] = LeafOf(receipts[i].ID())
	}
	return leaves
}
