package inter

import "fmt"

// Decision is the verdict bound into a receipt core.
type Decision uint8

const (
	// DecisionPass marks an accepted step.
	DecisionPass Decision = 1
	// DecisionFail marks a rejected step. Rejected steps never advance the
	// ledger, but a FAIL receipt may still be emitted for diagnostics.
	DecisionFail Decision = 2
)

// String renders the wire name of the decision.
func (d Decision) String() string {
	switch d {
	case DecisionPass:
		return "PASS"
	case DecisionFail:
		return "FAIL"
	default:
		return fmt.Sprintf("DECISION(%d)", uint8(d))
	}
}

// Code is a rejection reason. The set is closed: verifiers on both sides of
// a dispute must agree not only that a receipt is bad, but on the single
// code naming why, so codes are compared byte-for-byte.
type Code string

const (
	// CodeInvalidChainLink: the declared previous chain value does not
	// match the verifier's current chain value, or the step sequence is
	// broken.
	CodeInvalidChainLink Code = "INVALID_CHAIN_LINK"
	// CodeStateHashMismatch: the declared before-digest does not match the
	// verifier's current state digest.
	CodeStateHashMismatch Code = "STATE_HASH_MISMATCH"
	// CodeRiskMismatch: an independently recomputed risk value differs
	// from the claimed one.
	CodeRiskMismatch Code = "RISK_MISMATCH"
	// CodeBudgetViolation: the claimed budget bookkeeping disagrees with
	// the budget law (wrong before-value, wrong after-value, wrong kappa,
	// or an unrepresentable charge).
	CodeBudgetViolation Code = "BUDGET_VIOLATION"
	// CodeInsufficientBudget: the budget law itself rejects the step; the
	// remaining budget cannot pay kappa times the risk increase.
	CodeInsufficientBudget Code = "INSUFFICIENT_BUDGET"
	// CodeInvalidReceiptHash: the receipt's declared id does not match the
	// hash of its recomputed core.
	CodeInvalidReceiptHash Code = "INVALID_RECEIPT_HASH"
	// CodeInvalidActionType: the action kind or codec version is unknown;
	// unknown actions fail closed.
	CodeInvalidActionType Code = "INVALID_ACTION_TYPE"
	// CodeGenesisRequired: the first receipt of a trajectory did not
	// declare the published genesis constant as its previous chain value.
	CodeGenesisRequired Code = "GENESIS_REQUIRED"
	// CodeSlabDisputed: the referenced slab carries an accepted fraud
	// proof and cannot be finalized or relied upon.
	CodeSlabDisputed Code = "SLAB_DISPUTED"
)

// Rejection is the structured result of a refused step. It always carries
// enough detail (expected vs actual values) to reproduce the failure
// independently; silent rejection is forbidden.
type Rejection struct {
	Code    Code
	Reason  string
	Details map[string]string
}

// String renders the rejection for logs. Rejection deliberately does not
// implement the error interface: the verifier boundary returns explicit
// verdict values, never raised errors.
func (r *Rejection) String() string {
	return fmt.Sprintf("%s: %s", r.Code, r.Reason)
}

// Reject builds a rejection with expected/actual detail pairs.
func Reject(code Code, reason string, details map[string]string) *Rejection {
	return &Rejection{Code: code, Reason: reason, Details: details}
}
