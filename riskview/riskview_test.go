package riskview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileOf(t *testing.T) {
	p, err := ProfileOf([]float64{0.1, 0.2, 0.3, 0.4, 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 0.3, p.Mean, 1e-9)
	assert.InDelta(t, 0.1, p.Min, 1e-9)
	assert.InDelta(t, 0.5, p.Max, 1e-9)
	assert.InDelta(t, 0.3, p.P50, 1e-9)
	assert.True(t, p.StdDev > 0)
	assert.True(t, p.P90 >= p.P50)
	assert.True(t, p.P99 >= p.P90)

	_, err = ProfileOf(nil)
	assert.ErrorIs(t, err, ErrEmptySeries)
}

func TestEWMA(t *testing.T) {
	out, err := EWMA([]float64{1, 1, 1}, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1}, out)

	out, err = EWMA([]float64{0, 1}, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, out[1], 1e-9)

	_, err = EWMA([]float64{1}, 0)
	assert.Error(t, err)
	_, err = EWMA([]float64{1}, 1.5)
	assert.Error(t, err)
	_, err = EWMA(nil, 0.5)
	assert.ErrorIs(t, err, ErrEmptySeries)
}

func TestTrendOf(t *testing.T) {
	rising := []float64{0.1, 0.15, 0.2, 0.3, 0.45}
	falling := []float64{0.5, 0.4, 0.3, 0.2, 0.1}
	flat := []float64{0.3, 0.30001, 0.29999, 0.3}

	tr, err := TrendOf(rising, 0.5, 0.01)
	require.NoError(t, err)
	assert.Equal(t, TrendRising, tr)
	assert.Equal(t, "rising", tr.String())

	tr, err = TrendOf(falling, 0.5, 0.01)
	require.NoError(t, err)
	assert.Equal(t, TrendFalling, tr)

	tr, err = TrendOf(flat, 0.5, 0.01)
	require.NoError(t, err)
	assert.Equal(t, TrendFlat, tr)
}

func TestBurnRate(t *testing.T) {
	// Budget 1.0 dropping by 0.1 each step.
	rate, err := BurnRate([]float64{1.0, 0.9, 0.8, 0.7})
	require.NoError(t, err)
	assert.InDelta(t, 0.1, rate, 1e-9)

	// Flat segments dilute the rate; increases are treated as zero.
	rate, err = BurnRate([]float64{1.0, 1.0, 0.8, 0.8})
	require.NoError(t, err)
	assert.InDelta(t, 0.2/3, rate, 1e-9)

	_, err = BurnRate([]float64{1.0})
	assert.ErrorIs(t, err, ErrEmptySeries)
}

func TestStepsToExhaustion(t *testing.T) {
	assert.Equal(t, 10, StepsToExhaustion(1.0, 0.1))
	assert.Equal(t, -1, StepsToExhaustion(1.0, 0))
	assert.Equal(t, 0, StepsToExhaustion(0, 0.1))
}
