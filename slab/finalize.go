package slab

import (
	"errors"

	"github.com/Fantom-foundation/lachesis-base/hash"

	"github.com/atsproto/go-ats/inter"
)

var (
	ErrNotCommitted = errors.New("slab: not committed")
	ErrWindowOpen   = errors.New("slab: dispute window still open")
	ErrDisputed     = errors.New("slab: disputed, cannot finalize")
	ErrAlreadyFinal = errors.New("slab: already finalized")
)

// FinalizationRecord is the durable evidence that a slab survived its
// dispute window. It is what authorizes pruning the member receipts.
type FinalizationRecord struct {
	SlabID      hash.Hash
	MerkleRoot  hash.Hash
	FirstStep   inter.StepIndex
	LastStep    inter.StepIndex
	FinalizedAt inter.Timestamp
}

// Phase reports the lifecycle phase at the given time. A committed slab is
// in its dispute window until the window elapses.
func (s *Slab) Phase(now inter.Timestamp) Status {
	if s.status == StatusCommitted {
		if now < s.committedAt+s.disputeWindow {
			return StatusDisputeWindow
		}
		return StatusCommitted
	}
	return s.status
}

// CommittedAt returns when the slab was committed; zero while still open.
func (s *Slab) CommittedAt() inter.Timestamp {
	return s.committedAt
}

// Commit seals the slab and starts its dispute window at now. Time is an
// explicit argument so callers control the clock and the state machine
// stays deterministic.
func (s *Slab) Commit(now inter.Timestamp) error {
	switch s.status {
	case StatusOpen:
		s.status = StatusCommitted
		s.committedAt = now
		return nil
	case StatusDisputed:
		return ErrDisputed
	case StatusFinalized:
		return ErrAlreadyFinal
	default:
		return nil // committing a committed slab is a no-op
	}
}

// TryFinalize finalizes the slab if its dispute window has elapsed without
// an accepted dispute, and returns the record authorizing receipt pruning.
func (s *Slab) TryFinalize(now inter.Timestamp) (*FinalizationRecord, error) {
	switch s.status {
	case StatusOpen:
		return nil, ErrNotCommitted
	case StatusDisputed:
		return nil, ErrDisputed
	case StatusFinalized:
		return nil, ErrAlreadyFinal
	}
	if now < s.committedAt+s.disputeWindow {
		return nil, ErrWindowOpen
	}
	s.status = StatusFinalized
	return &FinalizationRecord{
		SlabID:      s.ID,
		MerkleRoot:  s.MerkleRoot,
		FirstStep:   s.Summary.FirstStep,
		LastStep:    s.Summary.LastStep,
		FinalizedAt: now,
	}, nil
}
