package validator

import (
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/strategy-validator/pkg/types"
)

func TestPerformanceInsufficientTrades(t *testing.T) {
	v := NewPerformanceValidator(zap.NewNop(), nil)

	dataset := &types.BacktestDataset{
		Trades: []types.TradeRecord{{Profit: decimal.NewFromInt(100)}},
	}

	result := v.Evaluate(goodStrategy(), dataset)
	if result.Score != 0 || result.Passed {
		t.Errorf("score=%v passed=%v, want 0/false", result.Score, result.Passed)
	}
	if len(result.Issues) != 1 || result.Issues[0].Type != "insufficient_trades" {
		t.Errorf("issues = %v, want single insufficient_trades", result.Issues)
	}
}

func TestPerformanceHealthyDataset(t *testing.T) {
	v := NewPerformanceValidator(zap.NewNop(), nil)

	result := v.Evaluate(goodStrategy(), goodDataset())
	if result.Score != 100 {
		t.Errorf("score = %v, want 100; issues: %v", result.Score, result.Issues)
	}
	if !result.Passed {
		t.Error("healthy dataset should pass")
	}

	m := result.Metrics
	if m["winRate"] < 0.55 {
		t.Errorf("winRate = %v, fixture should clear the minimum", m["winRate"])
	}
	if m["profitFactor"] < 1.5 {
		t.Errorf("profitFactor = %v, fixture should clear the minimum", m["profitFactor"])
	}
}

func TestPerformanceExcessiveDrawdown(t *testing.T) {
	v := NewPerformanceValidator(zap.NewNop(), nil)

	result := v.Evaluate(goodStrategy(), deepDrawdownDataset())

	found := false
	for _, iss := range result.Issues {
		if iss.Type == "excessive_drawdown" {
			found = true
			if iss.Severity != types.SeverityHigh {
				t.Errorf("severity = %s, want HIGH", iss.Severity)
			}
		}
	}
	if !found {
		t.Fatalf("expected excessive_drawdown issue, got %v", result.Issues)
	}
	if result.Score != 60 {
		t.Errorf("score = %v, want 60 after the drawdown deduction", result.Score)
	}
	if result.Passed {
		t.Error("a 25% drawdown must fail the component")
	}
}

func TestPerformanceLosingStreak(t *testing.T) {
	v := NewPerformanceValidator(zap.NewNop(), nil)

	// 100 trades: 88 small wins up front, then 12 losses in a row.
	trades := make([]types.TradeRecord, 0, 100)
	returns := make([]float64, 0, 100)
	for i := 0; i < 88; i++ {
		trades = append(trades, types.TradeRecord{Profit: decimal.NewFromInt(100)})
		returns = append(returns, 0.01)
	}
	for i := 0; i < 12; i++ {
		trades = append(trades, types.TradeRecord{Profit: decimal.NewFromInt(-50)})
		returns = append(returns, -0.005)
	}
	equity := equityFromReturns(returns)

	result := v.Evaluate(goodStrategy(), &types.BacktestDataset{
		Trades:      trades,
		Returns:     returns,
		EquityCurve: equity,
	})

	found := false
	for _, iss := range result.Issues {
		if iss.Type == "losing_streak" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected losing_streak issue, got %v", result.Issues)
	}
	if result.Metrics["maxConsecutiveLosses"] != 12 {
		t.Errorf("maxConsecutiveLosses = %v, want 12", result.Metrics["maxConsecutiveLosses"])
	}
}

func TestTradeStatsNoLosses(t *testing.T) {
	trades := []types.TradeRecord{
		{Profit: decimal.NewFromInt(10)},
		{Profit: decimal.NewFromInt(20)},
	}

	winRate, pf := tradeStats(trades)
	if winRate != 1 {
		t.Errorf("winRate = %v, want 1", winRate)
	}
	if pf != 9999.0 {
		t.Errorf("profitFactor = %v, want sentinel", pf)
	}
}

func TestTradeStatsExactRatio(t *testing.T) {
	trades := []types.TradeRecord{
		{Profit: decimal.NewFromInt(300)},
		{Profit: decimal.NewFromInt(-100)},
		{Profit: decimal.NewFromInt(-50)},
	}

	winRate, pf := tradeStats(trades)
	if winRate < 0.33 || winRate > 0.34 {
		t.Errorf("winRate = %v, want 1/3", winRate)
	}
	if pf != 2 {
		t.Errorf("profitFactor = %v, want 2", pf)
	}
}
