package montecarlo

import (
	"context"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/strategy-validator/pkg/types"
)

func winningReturns(n int) []float64 {
	returns := make([]float64, n)
	for i := range returns {
		switch i % 3 {
		case 0, 1:
			returns[i] = 0.01
		default:
			returns[i] = -0.0075
		}
	}
	return returns
}

func TestRunDeterministicWithSeed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumSimulations = 200
	cfg.Seed = 42
	sim := NewSimulator(zap.NewNop(), cfg)

	a, err := sim.Run(context.Background(), winningReturns(150))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	b, err := sim.Run(context.Background(), winningReturns(150))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if a.ProbabilityOfRuin != b.ProbabilityOfRuin {
		t.Errorf("ruin differs across seeded runs: %v vs %v", a.ProbabilityOfRuin, b.ProbabilityOfRuin)
	}
	if a.MaxDrawdown.Mean != b.MaxDrawdown.Mean {
		t.Errorf("drawdown mean differs across seeded runs: %v vs %v", a.MaxDrawdown.Mean, b.MaxDrawdown.Mean)
	}
}

func TestRunTerminalEquityInvariant(t *testing.T) {
	// Permutations reorder the same multiset of returns, so every trial
	// compounds to the same terminal equity.
	cfg := DefaultConfig()
	cfg.NumSimulations = 500
	cfg.Seed = 7
	sim := NewSimulator(zap.NewNop(), cfg)

	returns := winningReturns(150)
	result, err := sim.Run(context.Background(), returns)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	expected := 1.0
	for _, r := range returns {
		expected *= 1 + r
	}

	if math.Abs(result.TerminalEquity.Mean-expected) > 1e-9 {
		t.Errorf("terminal mean = %v, want %v", result.TerminalEquity.Mean, expected)
	}
	if math.Abs(result.TerminalEquity.Max-result.TerminalEquity.Min) > 1e-9 {
		t.Errorf("terminal spread = [%v, %v], want degenerate",
			result.TerminalEquity.Min, result.TerminalEquity.Max)
	}
	if result.TerminalEquity.StdDev > 1e-9 {
		t.Errorf("terminal stddev = %v, want ~0", result.TerminalEquity.StdDev)
	}
}

func TestRunLowRuinForSteadyWinner(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumSimulations = 1000
	cfg.Seed = 11
	cfg.RuinDrawdown = 0.20
	sim := NewSimulator(zap.NewNop(), cfg)

	result, err := sim.Run(context.Background(), winningReturns(150))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.ProbabilityOfRuin > 0.01 {
		t.Errorf("ruin = %v for a steady winner, want ~0", result.ProbabilityOfRuin)
	}
	if result.Score < 99 {
		t.Errorf("score = %v, want near 100", result.Score)
	}
}

func TestRunCertainRuinForCatastrophicTrade(t *testing.T) {
	// A single -50% trade appears in every permutation, so every trial
	// breaches a 20% drawdown limit.
	cfg := DefaultConfig()
	cfg.NumSimulations = 200
	cfg.Seed = 3
	cfg.RuinDrawdown = 0.20
	sim := NewSimulator(zap.NewNop(), cfg)

	returns := append(winningReturns(99), -0.5)
	result, err := sim.Run(context.Background(), returns)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.ProbabilityOfRuin != 1 {
		t.Errorf("ruin = %v, want 1", result.ProbabilityOfRuin)
	}
	if result.Score != 0 {
		t.Errorf("score = %v, want 0", result.Score)
	}
}

func TestRunCancelledContext(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumSimulations = 10000
	cfg.Seed = 5
	sim := NewSimulator(zap.NewNop(), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := sim.Run(ctx, winningReturns(150))
	if err == nil {
		t.Fatal("expected context error")
	}
	if !result.Partial {
		t.Error("expected partial result")
	}
	if result.Completed >= result.Requested {
		t.Errorf("completed %d of %d, expected a shortfall", result.Completed, result.Requested)
	}
}

func TestEvaluateNoTrades(t *testing.T) {
	sim := NewSimulator(zap.NewNop(), nil)

	component, _, err := sim.Evaluate(context.Background(), &types.BacktestDataset{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if component.Passed || component.Score != 0 {
		t.Errorf("no trades: score=%v passed=%v, want 0/false", component.Score, component.Passed)
	}
}

func TestTradeReturnsFromProfits(t *testing.T) {
	dataset := &types.BacktestDataset{
		Trades: []types.TradeRecord{
			{Profit: decimal.NewFromInt(100)},
			{Profit: decimal.NewFromInt(-75)},
		},
	}

	returns := TradeReturns(dataset, decimal.NewFromInt(10000))
	if len(returns) != 2 {
		t.Fatalf("len = %d, want 2", len(returns))
	}
	if math.Abs(returns[0]-0.01) > 1e-12 || math.Abs(returns[1]+0.0075) > 1e-12 {
		t.Errorf("returns = %v, want [0.01, -0.0075]", returns)
	}
}

func TestDistributionPercentiles(t *testing.T) {
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = float64(i)
	}

	dist := summarize(samples)
	if dist.Min != 0 || dist.Max != 99 {
		t.Errorf("min/max = %v/%v, want 0/99", dist.Min, dist.Max)
	}
	if dist.Percentiles["p5"] > dist.Percentiles["p95"] {
		t.Error("p5 should not exceed p95")
	}
	if dist.Median < 49 || dist.Median > 50 {
		t.Errorf("median = %v, want ~49.5", dist.Median)
	}
}
