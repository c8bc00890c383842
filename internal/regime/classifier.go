// Package regime classifies market conditions from return series and
// checks performance stability across them.
package regime

import "math"

// Kind labels a market condition
type Kind string

const (
	KindTrending Kind = "trending"
	KindRanging  Kind = "ranging"
	KindVolatile Kind = "volatile"
)

// Classifier labels return windows by volatility and trend strength.
type Classifier struct {
	VolThreshold   float64 // annualized volatility above which a window is volatile
	TrendThreshold float64 // normalized trend strength above which a window trends
}

// NewClassifier returns a classifier with the standard thresholds.
func NewClassifier() *Classifier {
	return &Classifier{
		VolThreshold:   0.25,
		TrendThreshold: 0.3,
	}
}

// Classify labels a window of returns. Volatility dominates: a window
// is volatile regardless of trend when annualized volatility exceeds
// the threshold.
func (c *Classifier) Classify(returns []float64) Kind {
	vol := Volatility(returns) * math.Sqrt(252)
	if vol > c.VolThreshold {
		return KindVolatile
	}
	if math.Abs(TrendStrength(returns)) > c.TrendThreshold {
		return KindTrending
	}
	return KindRanging
}

// TrendStrength is the cumulative return normalized by volatility,
// clamped to [-1, 1]. Zero when the window has no dispersion.
func TrendStrength(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	sum := 0.0
	for _, r := range returns {
		sum += r
	}

	vol := Volatility(returns)
	if vol == 0 {
		return 0
	}

	trend := sum / (vol * math.Sqrt(float64(len(returns))))
	if trend > 1 {
		trend = 1
	} else if trend < -1 {
		trend = -1
	}
	return trend
}

// Volatility is the sample standard deviation of the returns.
func Volatility(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	m := 0.0
	for _, r := range returns {
		m += r
	}
	m /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		diff := r - m
		variance += diff * diff
	}
	variance /= float64(len(returns) - 1)

	return math.Sqrt(variance)
}
