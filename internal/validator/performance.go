package validator

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/strategy-validator/internal/riskmetrics"
	"github.com/atlas-desktop/strategy-validator/pkg/types"
)

// PerformanceValidator scores realized backtest results against the
// configured minimums. A dataset below the minimum trade count scores
// zero outright: too little history to trust any metric.
type PerformanceValidator struct {
	logger *zap.Logger
	config *types.ValidatorConfig
}

// NewPerformanceValidator creates a performance validator.
func NewPerformanceValidator(logger *zap.Logger, config *types.ValidatorConfig) *PerformanceValidator {
	if config == nil {
		config = types.DefaultValidatorConfig()
	}
	return &PerformanceValidator{logger: logger, config: config}
}

// Evaluate applies the performance deduction table to the dataset.
func (v *PerformanceValidator) Evaluate(strategy *types.StrategyDefinition, dataset *types.BacktestDataset) types.ComponentResult {
	if dataset == nil || len(dataset.Trades) < v.config.MinTradesForValidation {
		got := 0
		if dataset != nil {
			got = len(dataset.Trades)
		}
		return types.ComponentResult{
			Score:  0,
			Passed: false,
			Issues: []types.Issue{{
				Type:     "insufficient_trades",
				Severity: types.SeverityHigh,
				Message: fmt.Sprintf("need at least %d trades, got %d",
					v.config.MinTradesForValidation, got),
			}},
		}
	}

	winRate, profitFactor := tradeStats(dataset.Trades)
	consecutive := maxConsecutiveLosses(dataset.Trades)
	sharpe := riskmetrics.SharpeRatio(dataset.Returns, v.config.RiskFreeRate)
	maxDD := riskmetrics.MaxDrawdown(dataset.EquityCurve)

	score := 100.0
	var issues []types.Issue

	deduct := func(points float64, issueType string, severity types.Severity, msg string) {
		score -= points
		issues = append(issues, types.Issue{Type: issueType, Severity: severity, Message: msg})
	}

	if winRate < v.config.MinWinRate {
		deduct(30, "low_win_rate", types.SeverityHigh,
			fmt.Sprintf("win rate %.1f%% below minimum %.1f%%",
				winRate*100, v.config.MinWinRate*100))
	}
	if profitFactor < v.config.MinProfitFactor {
		deduct(25, "low_profit_factor", types.SeverityMedium,
			fmt.Sprintf("profit factor %.2f below minimum %.2f",
				profitFactor, v.config.MinProfitFactor))
	}
	if sharpe < v.config.MinSharpeRatio {
		deduct(20, "low_sharpe_ratio", types.SeverityMedium,
			fmt.Sprintf("Sharpe ratio %.2f below minimum %.2f",
				sharpe, v.config.MinSharpeRatio))
	}
	if maxDD > v.config.MaxDrawdown {
		deduct(40, "excessive_drawdown", types.SeverityHigh,
			fmt.Sprintf("max drawdown %.1f%% exceeds limit %.1f%%",
				maxDD*100, v.config.MaxDrawdown*100))
	}
	if consecutive > v.config.MaxConsecutiveLosses {
		deduct(25, "losing_streak", types.SeverityMedium,
			fmt.Sprintf("%d consecutive losses exceeds limit %d",
				consecutive, v.config.MaxConsecutiveLosses))
	}

	if score < 0 {
		score = 0
	}

	result := types.ComponentResult{
		Score:  score,
		Passed: score >= 70,
		Issues: issues,
		Metrics: map[string]float64{
			"winRate":              winRate,
			"profitFactor":         profitFactor,
			"sharpeRatio":          sharpe,
			"maxDrawdown":          maxDD,
			"maxConsecutiveLosses": float64(consecutive),
			"trades":               float64(len(dataset.Trades)),
		},
	}

	v.logger.Debug("Performance validation complete",
		zap.String("strategy", strategy.Name),
		zap.Float64("score", score),
		zap.Float64("winRate", winRate),
		zap.Float64("profitFactor", profitFactor))

	return result
}

// tradeStats computes win rate and profit factor with exact decimal
// sums. Profit factor falls back to a large sentinel when there are no
// losing trades, keeping the value JSON-safe.
func tradeStats(trades []types.TradeRecord) (winRate, profitFactor float64) {
	wins := 0
	grossProfit := decimal.Zero
	grossLoss := decimal.Zero

	for _, trade := range trades {
		if trade.Profit.IsPositive() {
			wins++
			grossProfit = grossProfit.Add(trade.Profit)
		} else {
			grossLoss = grossLoss.Add(trade.Profit.Neg())
		}
	}

	winRate = float64(wins) / float64(len(trades))

	if grossLoss.IsZero() {
		if grossProfit.IsZero() {
			return winRate, 0
		}
		return winRate, riskmetrics.SentinelRatio
	}
	profitFactor, _ = grossProfit.Div(grossLoss).Float64()
	return winRate, profitFactor
}

func maxConsecutiveLosses(trades []types.TradeRecord) int {
	max := 0
	run := 0
	for _, trade := range trades {
		if trade.Profit.IsNegative() {
			run++
			if run > max {
				max = run
			}
		} else {
			run = 0
		}
	}
	return max
}
