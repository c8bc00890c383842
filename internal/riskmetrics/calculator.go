// Package riskmetrics computes statistical risk measures from a trade
// history: VaR/CVaR, annualized risk-adjusted ratios, drawdown
// statistics, and a weighted composite risk score.
package riskmetrics

import (
	"math"
	"sort"

	"github.com/atlas-desktop/strategy-validator/pkg/types"
	"go.uber.org/zap"
)

// SentinelRatio replaces an unbounded ratio (e.g. Sortino with no
// downside observations) so results stay finite and serializable.
const SentinelRatio = 9999.0

// tradingDaysPerYear is the annualization basis for daily series.
const tradingDaysPerYear = 252

// Calculator derives risk metrics from a backtest dataset.
type Calculator struct {
	logger *zap.Logger
	config *types.ValidatorConfig
}

// NewCalculator creates a risk metrics calculator.
func NewCalculator(logger *zap.Logger, config *types.ValidatorConfig) *Calculator {
	if config == nil {
		config = types.DefaultValidatorConfig()
	}
	return &Calculator{logger: logger, config: config}
}

// Evaluate computes the full risk profile for the strategy and dataset.
// The composite risk score lands in Metrics["riskScore"] (0-100, higher
// is riskier); the component score is its inverse.
func (c *Calculator) Evaluate(strategy *types.StrategyDefinition, dataset *types.BacktestDataset) types.ComponentResult {
	result := types.ComponentResult{Metrics: make(map[string]float64)}

	if dataset.Empty() || len(dataset.Returns) == 0 {
		result.Score = 0
		result.Issues = append(result.Issues, types.Issue{
			Type:     "no_returns",
			Severity: types.SeverityHigh,
			Message:  "no returns series available for risk metrics",
		})
		return result
	}

	returns := dataset.Returns

	var95 := VaR(returns, 0.95)
	var99 := VaR(returns, 0.99)
	cvar95 := CVaR(returns, 0.95)
	sharpe := SharpeRatio(returns, c.config.RiskFreeRate)
	sortino := SortinoRatio(returns, c.config.RiskFreeRate)

	maxDD := MaxDrawdown(dataset.EquityCurve)
	ddDuration := DrawdownDuration(dataset.EquityCurve)
	calmar := CalmarRatio(returns, maxDD)
	annVol := stdDev(returns) * math.Sqrt(tradingDaysPerYear)

	riskScore := c.compositeRiskScore(strategy, var95, maxDD, annVol)

	result.Metrics["var95"] = var95
	result.Metrics["var99"] = var99
	result.Metrics["cvar95"] = cvar95
	result.Metrics["sharpeRatio"] = sharpe
	result.Metrics["sortinoRatio"] = sortino
	result.Metrics["calmarRatio"] = calmar
	result.Metrics["maxDrawdown"] = maxDD
	result.Metrics["drawdownDuration"] = float64(ddDuration)
	result.Metrics["annualizedVolatility"] = annVol
	result.Metrics["riskScore"] = riskScore

	result.Score = clamp(100-riskScore, 0, 100)
	result.Passed = result.Score >= 70

	if maxDD > c.config.MaxDrawdown {
		result.Issues = append(result.Issues, types.Issue{
			Type:     "excessive_drawdown",
			Severity: types.SeverityHigh,
			Message:  "historical max drawdown exceeds the configured limit",
		})
	}
	if sharpe < c.config.MinSharpeRatio {
		result.Issues = append(result.Issues, types.Issue{
			Type:     "low_sharpe",
			Severity: types.SeverityMedium,
			Message:  "annualized Sharpe ratio is below the configured minimum",
		})
	}
	if sortino < c.config.MinSortinoRatio {
		result.Issues = append(result.Issues, types.Issue{
			Type:     "low_sortino",
			Severity: types.SeverityMedium,
			Message:  "downside-adjusted Sortino ratio is below the configured minimum",
		})
	}

	c.logger.Debug("risk metrics computed",
		zap.Float64("var95", var95),
		zap.Float64("sharpe", sharpe),
		zap.Float64("max_drawdown", maxDD),
		zap.Float64("risk_score", riskScore),
	)

	return result
}

// compositeRiskScore blends statistical and structural risk factors,
// each normalized to 0-100, using the configured weight table.
func (c *Calculator) compositeRiskScore(strategy *types.StrategyDefinition, var95, maxDD, annVol float64) float64 {
	w := c.config.RiskWeights

	// 5% daily VaR saturates the statistical tail factor.
	varRisk := clamp(math.Abs(var95)/0.05*100, 0, 100)

	// Drawdown at the configured limit scores 50; twice the limit saturates.
	ddRisk := clamp(maxDD/(2*c.config.MaxDrawdown)*100, 0, 100)

	// 100% annualized volatility is fully risky.
	volRisk := clamp(annVol*100, 0, 100)

	// Leverage at the configured cap scores 50.
	levRisk := clamp(strategy.Leverage/(2*c.config.MaxLeverage)*100, 0, 100)

	// Concentration: a single market is maximally concentrated.
	markets := len(strategy.Markets)
	if markets < 1 {
		markets = 1
	}
	concRisk := clamp(100/float64(markets), 0, 100)

	// Liquidity proxy: oversized positions are harder to unwind.
	liqRisk := clamp(strategy.MaxPositionSize/(2*c.config.MaxPositionSize)*100, 0, 100)

	return w.VaR*varRisk +
		w.Drawdown*ddRisk +
		w.Volatility*volRisk +
		w.Leverage*levRisk +
		w.Concentration*concRisk +
		w.Liquidity*liqRisk
}

// VaR returns the empirical value-at-risk at the given confidence:
// the return at index floor((1-p)*n) of the ascending-sorted series.
func VaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx := int(math.Floor((1 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// CVaR returns the mean of all returns at or below VaR(confidence).
func CVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	threshold := VaR(returns, confidence)
	sum := 0.0
	count := 0
	for _, r := range returns {
		if r <= threshold {
			sum += r
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// SharpeRatio returns the annualized Sharpe ratio for a daily return
// series, or 0 when the series has no dispersion.
func SharpeRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	sd := stdDev(returns)
	if sd == 0 {
		return 0
	}

	annMean := mean(returns) * tradingDaysPerYear
	annStd := sd * math.Sqrt(tradingDaysPerYear)
	return (annMean - riskFreeRate) / annStd
}

// SortinoRatio is Sharpe with downside deviation as the denominator.
// With no negative returns it returns SentinelRatio.
func SortinoRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	downsideVar := 0.0
	downsideCount := 0
	for _, r := range returns {
		if r < 0 {
			downsideVar += r * r
			downsideCount++
		}
	}
	if downsideCount == 0 {
		return SentinelRatio
	}

	downsideStd := math.Sqrt(downsideVar / float64(downsideCount))
	if downsideStd == 0 {
		return SentinelRatio
	}

	annMean := mean(returns) * tradingDaysPerYear
	annDownside := downsideStd * math.Sqrt(tradingDaysPerYear)
	return (annMean - riskFreeRate) / annDownside
}

// CalmarRatio is the annualized return over max drawdown, 0 when the
// curve never drew down.
func CalmarRatio(returns []float64, maxDD float64) float64 {
	if maxDD == 0 || len(returns) == 0 {
		return 0
	}
	return mean(returns) * tradingDaysPerYear / maxDD
}

// MaxDrawdown returns the largest peak-to-trough decline of the equity
// curve as a fraction of the peak.
func MaxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}

	peak := equity[0]
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		} else if peak > 0 {
			dd := (peak - v) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// DrawdownDuration returns the longest contiguous span (in samples)
// the equity curve stays below its prior peak.
func DrawdownDuration(equity []float64) int {
	if len(equity) == 0 {
		return 0
	}

	peak := equity[0]
	longest := 0
	current := 0
	for _, v := range equity {
		if v >= peak {
			peak = v
			current = 0
		} else {
			current++
			if current > longest {
				longest = current
			}
		}
	}
	return longest
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	variance := 0.0
	for _, v := range values {
		diff := v - m
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
