package kernel

import (
	"github.com/atsproto/go-ats/inter"
	"github.com/atsproto/go-ats/utils/qfixed"
)

// ApplyBudgetLaw derives the post-step budget from the pre-step budget and
// the risk transition:
//
//   - risk decreased or unchanged: the budget is untouched;
//   - risk increased by delta: the step costs kappa*delta, rejected with
//     INSUFFICIENT_BUDGET when the budget cannot pay it.
//
// Exact exhaustion (budget == charge) is an acceptance to a zero budget.
// The returned rejection is nil iff the transition is lawful.
func ApplyBudgetLaw(budgetBefore, riskBefore, riskAfter, kappa qfixed.QFixed) (qfixed.QFixed, *inter.Rejection) {
	if riskAfter.Cmp(riskBefore) <= 0 {
		return budgetBefore, nil
	}

	delta, err := riskAfter.Sub(riskBefore)
	if err != nil {
		// Unreachable: riskAfter > riskBefore was just established.
		panic("kernel: " + err.Error())
	}
	charge, err := kappa.Mul(delta)
	if err != nil {
		// A charge beyond MaxQFixed cannot be paid by any representable
		// budget; reject rather than saturate.
		return qfixed.Zero(), inter.Reject(inter.CodeBudgetViolation,
			"risk charge exceeds representable range",
			map[string]string{
				"kappa": kappa.String(),
				"delta": delta.String(),
			})
	}
	if budgetBefore.Lt(charge) {
		return qfixed.Zero(), inter.Reject(inter.CodeInsufficientBudget,
			"budget cannot pay kappa*delta",
			map[string]string{
				"budget_before": budgetBefore.String(),
				"required":      charge.String(),
				"delta":         delta.String(),
				"kappa":         kappa.String(),
			})
	}
	budgetAfter, err := budgetBefore.Sub(charge)
	if err != nil {
		panic("kernel: " + err.Error())
	}
	return budgetAfter, nil
}
