package kernel

import (
	"github.com/Fantom-foundation/lachesis-base/hash"

	"github.com/atsproto/go-ats/ats"
	"github.com/atsproto/go-ats/inter"
	"github.com/atsproto/go-ats/utils/qfixed"
)

// Ledger is the explicit verifier context for one trajectory: the running
// (budget, chain value) pair plus the current state digest and step count.
// It is passed around rather than held in a process-wide global, so many
// independent trajectories can be verified concurrently in one process.
//
// A Ledger is a single-writer state machine. Verification of step n+1 is
// undefined until step n has been accepted or rejected; callers with
// concurrent proposers must serialize admissions before calling Verify.
// The Ledger itself holds no locks because it has no internal concurrency.
type Ledger struct {
	rules ats.Rules

	step       inter.StepIndex
	stateHash  hash.Hash
	budget     qfixed.QFixed
	chainValue hash.Hash
}

// NewLedger opens a fresh trajectory ledger at the given initial state
// digest, seeded with the rules' initial budget and the genesis chain
// value.
func NewLedger(rules ats.Rules, initialStateHash hash.Hash) (*Ledger, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &Ledger{
		rules:      rules,
		stateHash:  initialStateHash,
		budget:     rules.InitialBudget,
		chainValue: inter.GenesisChainValue,
	}, nil
}

// ResumeLedger rebuilds a ledger from a journaled receipt sequence by
// replaying it from the initial state digest. On success the ledger
// continues at step len(receipts); a broken sequence is reported as the
// replay rejection.
func ResumeLedger(rules ats.Rules, initialStateHash hash.Hash, receipts []inter.Receipt) (*Ledger, *inter.Rejection) {
	return ResumeLedgerAt(rules, Snapshot{
		StateHash:  initialStateHash,
		Budget:     rules.InitialBudget,
		ChainValue: inter.GenesisChainValue,
	}, receipts)
}

// ResumeLedgerAt resumes from a trusted base snapshot, for journals whose
// head was pruned behind a finalized slab.
func ResumeLedgerAt(rules ats.Rules, base Snapshot, receipts []inter.Receipt) (*Ledger, *inter.Rejection) {
	res := ReplayFrom(rules, base, receipts)
	if !res.Accepted {
		return nil, res.Rejection
	}
	return &Ledger{
		rules:      rules,
		step:       base.Step + inter.StepIndex(len(receipts)),
		stateHash:  res.FinalStateHash,
		budget:     res.FinalBudget,
		chainValue: res.FinalChainValue,
	}, nil
}

// Rules returns the rule set the ledger was opened with.
func (l *Ledger) Rules() ats.Rules { return l.rules.Copy() }

// Step returns the index the next accepted receipt will carry.
func (l *Ledger) Step() inter.StepIndex { return l.step }

// StateHash returns the digest of the current admitted state.
func (l *Ledger) StateHash() hash.Hash { return l.stateHash }

// Budget returns the remaining budget.
func (l *Ledger) Budget() qfixed.QFixed { return l.budget }

// ChainValue returns the rolling chain value over all accepted receipts.
func (l *Ledger) ChainValue() hash.Hash { return l.chainValue }

// Snapshot captures the observable ledger state, for logging and audits.
type Snapshot struct {
	Step       inter.StepIndex
	StateHash  hash.Hash
	Budget     qfixed.QFixed
	ChainValue hash.Hash
}

// Snapshot returns a copy of the observable state.
func (l *Ledger) Snapshot() Snapshot {
	return Snapshot{
		Step:       l.step,
		StateHash:  l.stateHash,
		Budget:     l.budget,
		ChainValue: l.chainValue,
	}
}
