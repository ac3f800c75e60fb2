// Package ats defines the admission rules for a trajectory verification
// deployment: the budget constant kappa, the initial budget, the versioned
// risk-functional weights and the slab/finalization parameters.
//
// The Rules type is the single configuration structure consulted by the
// kernel. Named presets (main, test, fake) bundle consistent parameter sets
// so operators do not assemble consensus-critical values by hand.
package ats

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/atsproto/go-ats/inter"
	"github.com/atsproto/go-ats/utils/qfixed"
)

// Rule-set identification constants.
const (
	// MainRulesID identifies the production rule set.
	MainRulesID uint64 = 0xa75
	// TestRulesID identifies the public test rule set.
	TestRulesID uint64 = 0xa752
	// FakeRulesID identifies local/fake rule sets used in testing.
	FakeRulesID uint64 = 0xa753
)

// maxLaneWeight bounds a single risk lane weight. With four lanes, each
// lane value below 10^18 and each weight below 2^16, the weighted sum stays
// far under MaxQFixed, so the risk functional is total on validated rules.
const maxLaneWeight = math.MaxUint16

// RiskRules is the versioned weight configuration of the risk functional.
// Changing any field changes every recomputed risk value, so a deployment
// bumps Version whenever weights move.
type RiskRules struct {
	// Version names the weight configuration. It exists so two verifiers
	// can detect that they disagree about weights before they disagree
	// about verdicts.
	Version uint32
	// LaneWeights weight the four 64-bit lanes of a state digest.
	LaneWeights [4]uint64
}

// SlabRules bounds slab construction and finalization.
type SlabRules struct {
	// MaxReceipts is the largest number of receipts one slab may commit.
	MaxReceipts uint32
	// DisputeWindow is how long a committed slab stays open to fraud
	// proofs before it may be finalized.
	DisputeWindow inter.Timestamp
}

// Rules describes the complete configuration of one verification domain.
type Rules struct {
	Name    string
	RulesID uint64

	// Kappa converts a risk increase into a budget charge: a step costs
	// kappa times its positive risk delta.
	Kappa qfixed.QFixed
	// InitialBudget seeds every new trajectory ledger.
	InitialBudget qfixed.QFixed

	Risk  RiskRules
	Slabs SlabRules
}

// MainRules returns the production rule set.
func MainRules() Rules {
	return Rules{
		Name:          "main",
		RulesID:       MainRulesID,
		Kappa:         qfixed.MustFromDecimal("1"),
		InitialBudget: qfixed.MustFromDecimal("1000"),
		Risk: RiskRules{
			Version:     1,
			LaneWeights: [4]uint64{3, 5, 7, 11},
		},
		Slabs: SlabRules{
			MaxReceipts:   1024,
			DisputeWindow: inter.Timestamp(24 * time.Hour),
		},
	}
}

// TestRules returns the public-testing rule set: same shape as main with a
// short dispute window.
func TestRules() Rules {
	r := MainRules()
	r.Name = "test"
	r.RulesID = TestRulesID
	r.Slabs.DisputeWindow = inter.Timestamp(time.Hour)
	return r
}

// FakeRules returns a rule set for local development and unit tests: tiny
// budget, unit kappa, near-instant dispute window.
func FakeRules() Rules {
	return Rules{
		Name:          "fake",
		RulesID:       FakeRulesID,
		Kappa:         qfixed.MustFromDecimal("1"),
		InitialBudget: qfixed.MustFromDecimal("1"),
		Risk: RiskRules{
			Version:     1,
			LaneWeights: [4]uint64{1, 1, 1, 1},
		},
		Slabs: SlabRules{
			MaxReceipts:   16,
			DisputeWindow: inter.Timestamp(50 * time.Millisecond),
		},
	}
}

// Copy returns a deep copy. Rules currently holds no reference fields, but
// callers must not rely on that and always go through Copy before mutating.
func (r Rules) Copy() Rules {
	return r
}

// Validate checks internal consistency. The kernel refuses to start on
// rules that fail validation, since several arithmetic totality guarantees
// depend on these bounds.
func (r Rules) Validate() error {
	if r.Name == "" {
		return errors.New("ats: rules name must not be empty")
	}
	if r.Kappa.IsZero() {
		return errors.New("ats: kappa must be positive")
	}
	if r.Risk.Version == 0 {
		return errors.New("ats: risk weight version must be set")
	}
	sum := uint64(0)
	for i, w := range r.Risk.LaneWeights {
		if w > maxLaneWeight {
			return fmt.Errorf("ats: lane weight %d exceeds %d", i, uint64(maxLaneWeight))
		}
		sum += w
	}
	if sum == 0 {
		return errors.New("ats: at least one risk lane weight must be non-zero")
	}
	if r.Slabs.MaxReceipts == 0 {
		return errors.New("ats: slab capacity must be positive")
	}
	if r.Slabs.DisputeWindow == 0 {
		return errors.New("ats: dispute window must be positive")
	}
	return nil
}

// String renders the rules as indented JSON for config dumps and logs.
func (r Rules) String() string {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf("Rules{%s, marshal error: %v}", r.Name, err)
	}
	return string(b)
}

// RulesByName resolves a preset name from configuration or CLI flags.
func RulesByName(name string) (Rules, error) {
	switch name {
	case "main":
		return MainRules(), nil
	case "test":
		return TestRules(), nil
	case "fake":
		return FakeRules(), nil
	default:
		return Rules{}, fmt.Errorf("ats: unknown rules preset %q", name)
	}
}
