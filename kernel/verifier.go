package kernel

import (
	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/atsproto/go-ats/ats"
	"github.com/atsproto/go-ats/inter"
	"github.com/atsproto/go-ats/utils/qfixed"
)

// Claim is one proposed step, exactly as submitted by the untrusted
// runtime: declared digests, declared risk and budget bookkeeping, the
// action descriptor and the claimed receipt id. The verifier trusts none
// of it; every value is recomputed or checked against the ledger.
type Claim struct {
	PrevChainValue  hash.Hash
	StateHashBefore hash.Hash
	StateHashAfter  hash.Hash
	Action          inter.Action
	RiskBefore      qfixed.QFixed
	RiskAfter       qfixed.QFixed
	BudgetBefore    qfixed.QFixed
	BudgetAfter     qfixed.QFixed
	Kappa           qfixed.QFixed
	ReceiptHash     hash.Hash
	Meta            inter.ReceiptMeta
}

// Verify is the central decision function. Checks run in a fixed precedence
// order and Verify returns on the first failure, so independent verifiers
// always agree on the single rejection reason for a given bad claim:
//
//  1. chain-link validity (genesis constant required on the first step),
//  2. state-digest-before match,
//  3. action codec validity,
//  4. risk recomputation match,
//  5. budget-law compliance,
//  6. receipt self-hash validity (which binds state-digest-after).
//
// On acceptance the ledger's (budget, chain value, state digest, step)
// advance together and the emitted receipt is returned; on rejection the
// ledger is untouched and the rejection names the failing check with
// expected/actual detail. Verify never panics on untrusted input and never
// returns a Go error: the verdict is the whole contract.
func (l *Ledger) Verify(c Claim) (*inter.Receipt, *inter.Rejection) {
	// 1. Chain link. The first receipt must declare the published genesis
	// constant; later receipts must declare the verifier's current value.
	if l.step == 0 {
		if c.PrevChainValue != inter.GenesisChainValue {
			return nil, inter.Reject(inter.CodeGenesisRequired,
				"first receipt must declare the genesis chain value",
				hashDetails(inter.GenesisChainValue, c.PrevChainValue))
		}
	} else if c.PrevChainValue != l.chainValue {
		return nil, inter.Reject(inter.CodeInvalidChainLink,
			"declared previous chain value does not match ledger",
			hashDetails(l.chainValue, c.PrevChainValue))
	}

	// 2. State digest before.
	if c.StateHashBefore != l.stateHash {
		return nil, inter.Reject(inter.CodeStateHashMismatch,
			"declared before-state digest does not match ledger",
			hashDetails(l.stateHash, c.StateHashBefore))
	}

	// 3. Action codec. Unknown kinds and unsupported versions fail closed
	// before any value recomputation could depend on the payload.
	actionHash, err := c.Action.Digest()
	if err != nil {
		return nil, inter.Reject(inter.CodeInvalidActionType,
			err.Error(),
			map[string]string{
				"kind":    c.Action.Kind.String(),
				"version": hexutil.EncodeUint64(uint64(c.Action.Version)),
			})
	}

	// 4. Risk recomputation. The risk functional is digest-derived, so the
	// verifier recomputes both endpoint risks without holding state.
	if recomputed := RiskOf(l.rules.Risk, c.StateHashBefore); !recomputed.Eq(c.RiskBefore) {
		return nil, inter.Reject(inter.CodeRiskMismatch,
			"recomputed before-risk differs from claim",
			riskDetails(l.rules, c.StateHashBefore, recomputed, c.RiskBefore))
	}
	if recomputed := RiskOf(l.rules.Risk, c.StateHashAfter); !recomputed.Eq(c.RiskAfter) {
		return nil, inter.Reject(inter.CodeRiskMismatch,
			"recomputed after-risk differs from claim",
			riskDetails(l.rules, c.StateHashAfter, recomputed, c.RiskAfter))
	}

	// 5. Budget law. The budget is owned by the verifier, so the claimed
	// before-value must equal the ledger's, the constant must equal the
	// rules' kappa, and the after-value must equal the law's derivation.
	if !c.Kappa.Eq(l.rules.Kappa) {
		return nil, inter.Reject(inter.CodeBudgetViolation,
			"declared kappa does not match rules",
			map[string]string{"expected": l.rules.Kappa.String(), "actual": c.Kappa.String()})
	}
	if !c.BudgetBefore.Eq(l.budget) {
		return nil, inter.Reject(inter.CodeBudgetViolation,
			"declared before-budget does not match ledger",
			map[string]string{"expected": l.budget.String(), "actual": c.BudgetBefore.String()})
	}
	budgetAfter, rej := ApplyBudgetLaw(c.BudgetBefore, c.RiskBefore, c.RiskAfter, c.Kappa)
	if rej != nil {
		return nil, rej
	}
	if !c.BudgetAfter.Eq(budgetAfter) {
		return nil, inter.Reject(inter.CodeBudgetViolation,
			"declared after-budget does not match budget law",
			map[string]string{"expected": budgetAfter.String(), "actual": c.BudgetAfter.String()})
	}

	// 6. Receipt self-hash. The recomputed core binds every field above,
	// including the after-state digest; a claim that lies about its own id
	// is rejected even if all bookkeeping was consistent.
	core := inter.ReceiptCore{
		StepIndex:       l.step,
		StateHashBefore: c.StateHashBefore,
		StateHashAfter:  c.StateHashAfter,
		ActionHash:      actionHash,
		RiskBefore:      c.RiskBefore,
		RiskAfter:       c.RiskAfter,
		BudgetBefore:    c.BudgetBefore,
		BudgetAfter:     budgetAfter,
		Kappa:           c.Kappa,
		Decision:        inter.DecisionPass,
	}
	if id := core.Hash(); id != c.ReceiptHash {
		return nil, inter.Reject(inter.CodeInvalidReceiptHash,
			"claimed receipt id does not match recomputed core",
			hashDetails(id, c.ReceiptHash))
	}

	// Accept: advance budget, chain value, state digest and step together.
	// Nothing above mutated the ledger, so a rejection at any earlier
	// check left it exactly as it was.
	l.chainValue = ChainNext(l.chainValue, core)
	l.stateHash = c.StateHashAfter
	l.budget = budgetAfter
	l.step++

	return &inter.Receipt{Core: core, Meta: c.Meta}, nil
}

// ClaimFor builds the honest claim for a proposed transition, computing the
// bookkeeping the way the verifier will. It is the proposer-side helper:
// the kernel accepts exactly the claims this function produces.
func (l *Ledger) ClaimFor(action inter.Action, stateAfter hash.Hash, meta inter.ReceiptMeta) (Claim, *inter.Rejection) {
	riskBefore := RiskOf(l.rules.Risk, l.stateHash)
	riskAfter := RiskOf(l.rules.Risk, stateAfter)

	budgetAfter, rej := ApplyBudgetLaw(l.budget, riskBefore, riskAfter, l.rules.Kappa)
	if rej != nil {
		return Claim{}, rej
	}
	actionHash, err := action.Digest()
	if err != nil {
		return Claim{}, inter.Reject(inter.CodeInvalidActionType, err.Error(), nil)
	}
	core := inter.ReceiptCore{
		StepIndex:       l.step,
		StateHashBefore: l.stateHash,
		StateHashAfter:  stateAfter,
		ActionHash:      actionHash,
		RiskBefore:      riskBefore,
		RiskAfter:       riskAfter,
		BudgetBefore:    l.budget,
		BudgetAfter:     budgetAfter,
		Kappa:           l.rules.Kappa,
		Decision:        inter.DecisionPass,
	}
	return Claim{
		PrevChainValue:  l.chainValue,
		StateHashBefore: l.stateHash,
		StateHashAfter:  stateAfter,
		Action:          action,
		RiskBefore:      riskBefore,
		RiskAfter:       riskAfter,
		BudgetBefore:    l.budget,
		BudgetAfter:     budgetAfter,
		Kappa:           l.rules.Kappa,
		ReceiptHash:     core.Hash(),
		Meta:            meta,
	}, nil
}

func hashDetails(expected, actual hash.Hash) map[string]string {
	return map[string]string{
		"expected": hexutil.Encode(expected.Bytes()),
		"actual":   hexutil.Encode(actual.Bytes()),
	}
}

// riskDetails includes the recomputed risk witness so either side of a
// dispute can point at the exact (digest, weights, value) triple it used.
func riskDetails(rules ats.Rules, digest hash.Hash, recomputed, claimed qfixed.QFixed) map[string]string {
	return map[string]string{
		"digest":   hexutil.Encode(digest.Bytes()),
		"expected": recomputed.String(),
		"actual":   claimed.String(),
		"witness":  hexutil.Encode(RiskWitness(rules.Risk, digest, recomputed).Bytes()),
	}
}
