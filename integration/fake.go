package integration

import (
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/hash"

	"github.com/atsproto/go-ats/ats"
	"github.com/atsproto/go-ats/inter"
	"github.com/atsproto/go-ats/kernel"
)

// fakeAffordabilitySearch bounds the nonce search for an admissible next
// state. The risk functional spreads values uniformly, so a handful of
// tries is normally enough; hitting the cap means the budget is exhausted
// beyond what descent can recover.
const fakeAffordabilitySearch = 10000

// FakeStateDigest derives a deterministic synthetic state digest from a
// seed and a nonce, for tests and the demo command.
func FakeStateDigest(seed string, step, nonce int) hash.Hash {
	return inter.StateDigestOf(inter.StateComponents{
		Belief: []byte(seed),
		Memory: []byte(fmt.Sprintf("fake-state-%d-%d", step, nonce)),
	})
}

// FakeClaim builds the honest claim for the next deterministic synthetic
// step of a seeded run. When the straightforward successor state is an
// unaffordable ascent it searches nearby deterministic states for an
// admissible one. ErrNoAffordableStep means the budget is exhausted beyond
// what the search can route around.
func FakeClaim(l *kernel.Ledger, seed string, step int) (kernel.Claim, error) {
	action := inter.Action{
		Kind:    inter.KindEmit,
		Version: 1,
		Payload: []byte(fmt.Sprintf("fake-payload-%d", step)),
	}
	for nonce := 0; nonce < fakeAffordabilitySearch; nonce++ {
		after := FakeStateDigest(seed, step+1, nonce)
		claim, rej := l.ClaimFor(action, after, inter.ReceiptMeta{Provenance: "fake"})
		if rej != nil {
			continue // unaffordable ascent, try another successor
		}
		return claim, nil
	}
	return kernel.Claim{}, fmt.Errorf("integration: no affordable step found at step %d", step)
}

// FakeTrajectory drives n deterministic honest steps through a fresh
// ledger and returns the accepted receipts together with the ledger. The
// generated run is always valid under the given rules.
func FakeTrajectory(rules ats.Rules, seed string, n int) ([]inter.Receipt, *kernel.Ledger, error) {
	ledger, err := kernel.NewLedger(rules, FakeStateDigest(seed, 0, 0))
	if err != nil {
		return nil, nil, err
	}

	receipts := make([]inter.Receipt, 0, n)
	for i := 0; i < n; i++ {
		claim, err := FakeClaim(ledger, seed, i)
		if err != nil {
			return receipts, ledger, err
		}
		r, rej := ledger.Verify(claim)
		if rej != nil {
			return nil, nil, fmt.Errorf("integration: honest claim rejected: %s", rej.String())
		}
		receipts = append(receipts, *r)
	}
	return receipts, ledger, nil
}
