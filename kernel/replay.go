package kernel

import (
	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/atsproto/go-ats/ats"
	"github.com/atsproto/go-ats/inter"
	"github.com/atsproto/go-ats/utils/qfixed"
)

// ReplayResult is the outcome of re-deriving a trajectory from its receipt
// sequence alone. When Accepted is false, FailedIndex names the first
// receipt that broke a check and Rejection carries the code and detail;
// FailedIndex is -1 on success.
type ReplayResult struct {
	FinalStateHash  hash.Hash
	FinalBudget     qfixed.QFixed
	FinalChainValue hash.Hash
	Accepted        bool
	FailedIndex     int
	Rejection       *inter.Rejection
}

// Replay re-derives a trajectory's final state digest, budget and chain
// value purely from the initial digest and the receipt sequence, without
// re-executing the runtime. It applies the verifier's checks in the same
// precedence order, sourcing every claim from receipt-declared values, so
// a sequence originally produced by Verify replays to a byte-identical
// outcome.
//
// Replay is the chain authority: it recomputes each chain link itself
// rather than trusting a declared one, so the per-receipt linkage check
// reduces to step-sequence and state-digest continuity; any tampering with
// a core shows up either there or in the final chain value an auditor
// compares against the published head. Like Verify, Replay never errors
// past its boundary.
func Replay(rules ats.Rules, initialStateHash hash.Hash, receipts []inter.Receipt) ReplayResult {
	return ReplayFrom(rules, Snapshot{
		StateHash:  initialStateHash,
		Budget:     rules.InitialBudget,
		ChainValue: inter.GenesisChainValue,
	}, receipts)
}

// ReplayFrom replays a receipt run starting from an arbitrary trusted base
// snapshot instead of genesis. This is how a journal whose head was pruned
// behind a finalized slab is re-audited: the slab's finalization record
// vouches for the base, ReplayFrom re-derives everything after it.
func ReplayFrom(rules ats.Rules, base Snapshot, receipts []inter.Receipt) ReplayResult {
	fail := func(i int, rej *inter.Rejection) ReplayResult {
		return ReplayResult{Accepted: false, FailedIndex: i, Rejection: rej}
	}
	if err := rules.Validate(); err != nil {
		return fail(-1, inter.Reject(inter.CodeBudgetViolation, "invalid rules: "+err.Error(), nil))
	}

	stateHash := base.StateHash
	budget := base.Budget
	chain := base.ChainValue

	for i := range receipts {
		core := receipts[i].Core

		// 1. Sequence continuity. Only accepted receipts chain; a FAIL
		// decision or an out-of-order index is a broken link.
		if core.Decision != inter.DecisionPass {
			return fail(i, inter.Reject(inter.CodeInvalidChainLink,
				"non-PASS receipt inside the chain",
				map[string]string{"decision": core.Decision.String()}))
		}
		if core.StepIndex != base.Step+inter.StepIndex(i) {
			return fail(i, inter.Reject(inter.CodeInvalidChainLink,
				"receipt step index out of sequence",
				map[string]string{
					"expected": hexutil.EncodeUint64(uint64(base.Step) + uint64(i)),
					"actual":   hexutil.EncodeUint64(uint64(core.StepIndex)),
				}))
		}

		// 2. State digest continuity.
		if core.StateHashBefore != stateHash {
			return fail(i, inter.Reject(inter.CodeStateHashMismatch,
				"receipt before-state digest does not match running state",
				hashDetails(stateHash, core.StateHashBefore)))
		}

		// 3. Risk recomputation over declared digests.
		if recomputed := RiskOf(rules.Risk, core.StateHashBefore); !recomputed.Eq(core.RiskBefore) {
			return fail(i, inter.Reject(inter.CodeRiskMismatch,
				"recomputed before-risk differs from receipt",
				riskDetails(rules, core.StateHashBefore, recomputed, core.RiskBefore)))
		}
		if recomputed := RiskOf(rules.Risk, core.StateHashAfter); !recomputed.Eq(core.RiskAfter) {
			return fail(i, inter.Reject(inter.CodeRiskMismatch,
				"recomputed after-risk differs from receipt",
				riskDetails(rules, core.StateHashAfter, recomputed, core.RiskAfter)))
		}

		// 4. Budget law.
		if !core.Kappa.Eq(rules.Kappa) {
			return fail(i, inter.Reject(inter.CodeBudgetViolation,
				"receipt kappa does not match rules",
				map[string]string{"expected": rules.Kappa.String(), "actual": core.Kappa.String()}))
		}
		if !core.BudgetBefore.Eq(budget) {
			return fail(i, inter.Reject(inter.CodeBudgetViolation,
				"receipt before-budget does not match running budget",
				map[string]string{"expected": budget.String(), "actual": core.BudgetBefore.String()}))
		}
		budgetAfter, rej := ApplyBudgetLaw(core.BudgetBefore, core.RiskBefore, core.RiskAfter, core.Kappa)
		if rej != nil {
			return fail(i, rej)
		}
		if !core.BudgetAfter.Eq(budgetAfter) {
			return fail(i, inter.Reject(inter.CodeBudgetViolation,
				"receipt after-budget does not match budget law",
				map[string]string{"expected": budgetAfter.String(), "actual": core.BudgetAfter.String()}))
		}

		// Advance.
		chain = ChainNext(chain, core)
		stateHash = core.StateHashAfter
		budget = budgetAfter
	}

	return ReplayResult{
		FinalStateHash:  stateHash,
		FinalBudget:     budget,
		FinalChainValue: chain,
		Accepted:        true,
		FailedIndex:     -1,
	}
}
