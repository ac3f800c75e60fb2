// Package riskview provides heuristic, float64 analytics over risk series
// exported from trajectory receipts. Nothing here is consensus: the kernel
// works in exact fixed-point arithmetic, this package deliberately lives in
// a separate module so approximate floating-point analysis can never leak
// into verification code.
package riskview

import (
	"errors"

	"github.com/montanaflynn/stats"
)

var ErrEmptySeries = errors.New("riskview: empty series")

// Profile summarizes a risk series for dashboards and alerting.
type Profile struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	P50    float64
	P90    float64
	P99    float64
}

// ProfileOf computes the summary statistics of a risk series.
func ProfileOf(series []float64) (Profile, error) {
	if len(series) == 0 {
		return Profile{}, ErrEmptySeries
	}
	data := stats.Float64Data(series)

	mean, err := stats.Mean(data)
	if err != nil {
		return Profile{}, err
	}
	sd, err := stats.StandardDeviation(data)
	if err != nil {
		return Profile{}, err
	}
	min, err := stats.Min(data)
	if err != nil {
		return Profile{}, err
	}
	max, err := stats.Max(data)
	if err != nil {
		return Profile{}, err
	}
	p50, err := stats.Percentile(data, 50)
	if err != nil {
		return Profile{}, err
	}
	p90, err := stats.Percentile(data, 90)
	if err != nil {
		return Profile{}, err
	}
	p99, err := stats.Percentile(data, 99)
	if err != nil {
		return Profile{}, err
	}
	return Profile{Mean: mean, StdDev: sd, Min: min, Max: max, P50: p50, P90: p90, P99: p99}, nil
}

// Trend labels the direction a series is heading.
type Trend int

const (
	TrendFlat Trend = iota
	TrendRising
	TrendFalling
)

func (t Trend) String() string {
	switch t {
	case TrendRising:
		return "rising"
	case TrendFalling:
		return "falling"
	default:
		return "flat"
	}
}

// EWMA returns the exponentially weighted moving average of the series
// with smoothing factor alpha in (0, 1].
func EWMA(series []float64, alpha float64) ([]float64, error) {
	if len(series) == 0 {
		return nil, ErrEmptySeries
	}
	if alpha <= 0 || alpha > 1 {
		return nil, errors.New("riskview: alpha must be in (0, 1]")
	}
	out := make([]float64, len(series))
	out[0] = series[0]
	for i := 1; i < len(series); i++ {
		out[i] = alpha*series[i] + (1-alpha)*out[i-1]
	}
	return out, nil
}

// TrendOf classifies the series direction by comparing the smoothed head
// against the smoothed tail, with a dead band of epsilon around flat.
func TrendOf(series []float64, alpha, epsilon float64) (Trend, error) {
	smoothed, err := EWMA(series, alpha)
	if err != nil {
		return TrendFlat, err
	}
	delta := smoothed[len(smoothed)-1] - smoothed[0]
	switch {
	case delta > epsilon:
		return TrendRising, nil
	case delta < -epsilon:
		return TrendFalling, nil
	default:
		return TrendFlat, nil
	}
}

// BurnRate estimates budget consumption per step from a budget series:
// the mean of the per-step decreases. Increases never occur under the
// budget law and are ignored if present in dirty data.
func BurnRate(budgets []float64) (float64, error) {
	if len(budgets) < 2 {
		return 0, ErrEmptySeries
	}
	var drops []float64
	for i := 1; i < len(budgets); i++ {
		if d := budgets[i-1] - budgets[i]; d > 0 {
			drops = append(drops, d)
		} else {
			drops = append(drops, 0)
		}
	}
	return stats.Mean(stats.Float64Data(drops))
}

// StepsToExhaustion projects how many further steps the remaining budget
// sustains at the observed burn rate. A zero burn rate projects no
// exhaustion and returns -1.
func StepsToExhaustion(remaining float64, burnRate float64) int {
	if burnRate <= 0 {
		return -1
	}
	if remaining <= 0 {
		return 0
	}
	return int(remaining / burnRate)
}
