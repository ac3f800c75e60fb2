package kernel

import (
	"testing"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atsproto/go-ats/ats"
	"github.com/atsproto/go-ats/inter"
)

// TestRiskOf_deterministic: the functional is a pure map from digest and
// weights to a scalar.
func TestRiskOf_deterministic(t *testing.T) {
	rr := ats.MainRules().Risk
	digest := inter.StateDigestOf(inter.StateComponents{Memory: []byte("m")})

	first := RiskOf(rr, digest)
	for i := 0; i < 50; i++ {
		assert.True(t, first.Eq(RiskOf(rr, digest)))
	}
}

// TestRiskOf_knownLanes pins the lane arithmetic against hand-computed
// values: each 8-byte big-endian lane is reduced mod 10^18 and weighted.
func TestRiskOf_knownLanes(t *testing.T) {
	rr := ats.RiskRules{Version: 1, LaneWeights: [4]uint64{1, 0, 0, 0}}

	// Lane 0 holds the scaled value 5*10^17 = 0.5; other lanes are zero.
	var digest hash.Hash
	copy(digest[0:8], []byte{0x06, 0xf0, 0x5b, 0x59, 0xd3, 0xb2, 0x00, 0x00}) // 500000000000000000

	got := RiskOf(rr, digest)
	assert.Equal(t, "0.5", got.String())

	// Weighting the same lane by 3 triples the value.
	rr.LaneWeights[0] = 3
	assert.Equal(t, "1.5", RiskOf(rr, digest).String())

	// A zero digest has zero risk under any weights.
	assert.True(t, RiskOf(ats.MainRules().Risk, hash.Hash{}).IsZero())
}

// TestRiskOf_dependsOnEveryLane flips one bit per lane and expects the risk
// to move whenever that lane has a non-zero weight.
func TestRiskOf_dependsOnEveryLane(t *testing.T) {
	rr := ats.MainRules().Risk
	digest := inter.StateDigestOf(inter.StateComponents{Memory: []byte("base")})
	base := RiskOf(rr, digest)

	for lane := 0; lane < 4; lane++ {
		mutated := digest
		mutated[lane*8+7] ^= 1
		assert.False(t, base.Eq(RiskOf(rr, mutated)), "lane %d did not reach the risk value", lane)
	}
}

// TestRiskOf_versionedWeights: different weight configurations give
// different values for the same digest.
func TestRiskOf_versionedWeights(t *testing.T) {
	digest := inter.StateDigestOf(inter.StateComponents{Memory: []byte("x")})
	v1 := RiskOf(ats.RiskRules{Version: 1, LaneWeights: [4]uint64{1, 1, 1, 1}}, digest)
	v2 := RiskOf(ats.RiskRules{Version: 2, LaneWeights: [4]uint64{2, 1, 1, 1}}, digest)
	assert.False(t, v1.Eq(v2))
}

func TestRiskWitness(t *testing.T) {
	rr := ats.MainRules().Risk
	digest := inter.StateDigestOf(inter.StateComponents{Memory: []byte("w")})
	risk := RiskOf(rr, digest)

	w1 := RiskWitness(rr, digest, risk)
	w2 := RiskWitness(rr, digest, risk)
	require.Equal(t, w1, w2)

	// A witness over a different risk value or weight version differs.
	other := RiskWitness(ats.RiskRules{Version: 2, LaneWeights: rr.LaneWeights}, digest, risk)
	assert.NotEqual(t, w1, other)
}
