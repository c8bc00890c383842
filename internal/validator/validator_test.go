package validator

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/strategy-validator/internal/events"
	"github.com/atlas-desktop/strategy-validator/internal/scenarios"
	"github.com/atlas-desktop/strategy-validator/pkg/types"
)

func floatPtr(v float64) *float64 { return &v }

// goodStrategy is a momentum strategy with every risk control in
// place.
func goodStrategy() *types.StrategyDefinition {
	return &types.StrategyDefinition{
		Name:      "momentum-btc",
		Type:      types.StrategyMomentum,
		Timeframe: types.Timeframe1h,
		Markets:   []string{"BTC/USDT", "ETH/USDT"},
		EntryConditions: []types.Condition{
			{Indicator: "momentum", Operator: "gt", Value: 0.01, Lookback: 14},
		},
		ExitConditions: []types.Condition{
			{Indicator: "momentum", Operator: "lt", Value: -0.02, Lookback: 14},
		},
		StopLoss:        floatPtr(0.05),
		PositionSizing:  "fixed",
		MaxPositionSize: 0.05,
		Leverage:        1,
		RiskRewardRatio: floatPtr(2.0),
		MaxDailyLoss:    floatPtr(0.03),
	}
}

// goodDataset is 150 trades in a win-win-loss pattern: enough history,
// strong edge, no long losing streaks.
func goodDataset() *types.BacktestDataset {
	const n = 150
	trades := make([]types.TradeRecord, n)
	returns := make([]float64, n)
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < n; i++ {
		if i%3 == 2 {
			trades[i] = types.TradeRecord{Profit: decimal.NewFromInt(-75), Timestamp: ts}
			returns[i] = -0.0075
		} else {
			trades[i] = types.TradeRecord{Profit: decimal.NewFromInt(100), Timestamp: ts}
			returns[i] = 0.01
		}
		ts = ts.Add(6 * time.Hour)
	}

	return &types.BacktestDataset{
		Trades:      trades,
		Returns:     returns,
		EquityCurve: equityFromReturns(returns),
		StartDate:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     ts,
	}
}

// deepDrawdownDataset keeps goodDataset's trade ledger (win rate,
// profit factor, and streaks all healthy) but replaces a ten-bar
// stretch of the return series with steady losses, sinking the equity
// curve roughly 25% from its peak.
func deepDrawdownDataset() *types.BacktestDataset {
	dataset := goodDataset()
	for i := 60; i < 70; i++ {
		dataset.Returns[i] = -0.028
	}
	dataset.EquityCurve = equityFromReturns(dataset.Returns)
	return dataset
}

func equityFromReturns(returns []float64) []float64 {
	equity := make([]float64, len(returns)+1)
	equity[0] = 10000
	for i, r := range returns {
		equity[i+1] = equity[i] * (1 + r)
	}
	return equity
}

// rampGen is a deterministic synthetic path: a fixed fractional climb
// per bar regardless of regime parameters.
type rampGen struct {
	step float64
}

func (g rampGen) Generate(p scenarios.PathParams) []float64 {
	if p.Length <= 0 {
		return nil
	}
	prices := make([]float64, p.Length)
	prices[0] = p.InitialPrice
	for i := 1; i < p.Length; i++ {
		prices[i] = prices[i-1] * (1 + g.step)
	}
	return prices
}

func newTestValidator(t *testing.T, mutate func(*types.ValidatorConfig)) *Validator {
	t.Helper()

	cfg := types.DefaultValidatorConfig()
	cfg.Seed = 42
	cfg.MonteCarloSimulations = 300
	if mutate != nil {
		mutate(cfg)
	}

	v, err := New(zap.NewNop(), cfg)
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	v.SetPathGenerator(rampGen{step: 0.002})
	return v
}

func TestValidateApprovesSoundStrategy(t *testing.T) {
	v := newTestValidator(t, nil)

	record, err := v.Validate(context.Background(), goodStrategy(), goodDataset())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	if record.Status != types.StatusApproved {
		t.Fatalf("status = %s, want APPROVED; summary: %+v", record.Status, record.Summary)
	}
	if !record.Summary.Approved {
		t.Error("summary should mark approval")
	}
	if record.Summary.QualityScore < 70 {
		t.Errorf("quality = %v, want >= 70", record.Summary.QualityScore)
	}

	components := []string{
		types.ComponentStructural, types.ComponentRiskRules,
		types.ComponentPerformance, types.ComponentRiskMetrics,
		types.ComponentScenarios, types.ComponentStress,
		types.ComponentMonteCarlo, types.ComponentRegime,
	}
	for _, name := range components {
		result, ok := record.Results[name]
		if !ok {
			t.Errorf("missing component %s", name)
			continue
		}
		if !result.Passed {
			t.Errorf("component %s failed: score=%v issues=%v", name, result.Score, result.Issues)
		}
	}

	if v.History().Get(record.ID) == nil {
		t.Error("record should be retained in history")
	}
}

func TestValidateRejectsMissingStopLoss(t *testing.T) {
	v := newTestValidator(t, nil)

	strategy := goodStrategy()
	strategy.StopLoss = nil

	record, err := v.Validate(context.Background(), strategy, goodDataset())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	if record.Status != types.StatusRejected {
		t.Fatalf("status = %s, want REJECTED", record.Status)
	}
	if record.Summary.Approved {
		t.Error("missing stop-loss must block approval")
	}

	rr := record.Results[types.ComponentRiskRules]
	if !rr.HasCritical() {
		t.Error("risk rules should flag a critical issue")
	}
}

func TestValidateRejectsExcessiveDrawdown(t *testing.T) {
	v := newTestValidator(t, nil)

	record, err := v.Validate(context.Background(), goodStrategy(), deepDrawdownDataset())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	if record.Status != types.StatusRejected {
		t.Fatalf("status = %s, want REJECTED; summary: %+v", record.Status, record.Summary)
	}
	if record.Summary.Recommendation != types.RecommendationRejected {
		t.Errorf("recommendation = %s, want REJECTED", record.Summary.Recommendation)
	}

	perf := record.Results[types.ComponentPerformance]
	if perf.Passed {
		t.Errorf("performance passed with score %v despite the drawdown", perf.Score)
	}
	if perf.Metrics["maxDrawdown"] <= 0.20 {
		t.Errorf("maxDrawdown = %v, fixture should exceed the 0.20 limit", perf.Metrics["maxDrawdown"])
	}
}

func TestValidateRejectsInsufficientHistory(t *testing.T) {
	v := newTestValidator(t, nil)

	dataset := goodDataset()
	dataset.Trades = dataset.Trades[:10]

	record, err := v.Validate(context.Background(), goodStrategy(), dataset)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	if record.Status != types.StatusRejected {
		t.Fatalf("status = %s, want REJECTED", record.Status)
	}
	perf := record.Results[types.ComponentPerformance]
	if perf.Score != 0 || perf.Passed {
		t.Errorf("performance score=%v passed=%v, want 0/false", perf.Score, perf.Passed)
	}
}

func TestValidateDeterministicWithSeed(t *testing.T) {
	v := newTestValidator(t, nil)

	a, err := v.Validate(context.Background(), goodStrategy(), goodDataset())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	b, err := v.Validate(context.Background(), goodStrategy(), goodDataset())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	if a.Summary.QualityScore != b.Summary.QualityScore {
		t.Errorf("quality differs across runs: %v vs %v",
			a.Summary.QualityScore, b.Summary.QualityScore)
	}

	mcA := a.Results[types.ComponentMonteCarlo].Metrics["probabilityOfRuin"]
	mcB := b.Results[types.ComponentMonteCarlo].Metrics["probabilityOfRuin"]
	if mcA != mcB {
		t.Errorf("ruin differs across runs: %v vs %v", mcA, mcB)
	}
}

func TestValidateNoDatasetSkipsSampling(t *testing.T) {
	v := newTestValidator(t, nil)

	record, err := v.Validate(context.Background(), goodStrategy(), nil)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	if _, ok := record.Results[types.ComponentMonteCarlo]; ok {
		t.Error("Monte Carlo should be skipped without a dataset")
	}
	if _, ok := record.Results[types.ComponentRegime]; ok {
		t.Error("regime analysis should be skipped without a dataset")
	}
	if record.Status != types.StatusRejected {
		t.Errorf("status = %s, want REJECTED without trade history", record.Status)
	}
	perf := record.Results[types.ComponentPerformance]
	if perf.Passed {
		t.Error("performance must fail without trade history")
	}
}

func TestValidateNilStrategy(t *testing.T) {
	v := newTestValidator(t, nil)

	if _, err := v.Validate(context.Background(), nil, goodDataset()); err != ErrNilStrategy {
		t.Errorf("err = %v, want ErrNilStrategy", err)
	}
}

func TestValidateCancelledContext(t *testing.T) {
	v := newTestValidator(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	record, err := v.Validate(ctx, goodStrategy(), goodDataset())
	if err != nil {
		t.Fatalf("validate should still produce a record: %v", err)
	}

	if record.Status != types.StatusRejected {
		t.Errorf("status = %s, want REJECTED", record.Status)
	}
	for name, result := range record.Results {
		if result.Passed {
			t.Errorf("component %s passed under a cancelled context", name)
		}
	}
}

func TestValidatePublishesEvents(t *testing.T) {
	v := newTestValidator(t, nil)

	bus := events.NewBus(zap.NewNop(), 16, 1)
	defer bus.Close()
	v.SetEventBus(bus)

	completed := make(chan events.Event, 4)
	rejected := make(chan events.Event, 4)
	bus.Subscribe(events.EventValidationCompleted, func(e events.Event) { completed <- e })
	bus.Subscribe(events.EventValidationRejected, func(e events.Event) { rejected <- e })

	strategy := goodStrategy()
	strategy.StopLoss = nil
	record, err := v.Validate(context.Background(), strategy, goodDataset())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	select {
	case e := <-completed:
		if e.Record.ID != record.ID {
			t.Errorf("completed event record = %s, want %s", e.Record.ID, record.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("completed event not published")
	}

	select {
	case <-rejected:
	case <-time.After(2 * time.Second):
		t.Fatal("rejected event not published")
	}
}
