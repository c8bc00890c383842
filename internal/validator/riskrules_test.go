package validator

import (
	"testing"

	"go.uber.org/zap"
)

func TestRiskRulesFullControls(t *testing.T) {
	v := NewRiskRuleValidator(zap.NewNop(), nil)

	result := v.Evaluate(goodStrategy())
	if result.Score != 100 {
		t.Errorf("score = %v, want 100", result.Score)
	}
	if !result.Passed || result.HasCritical() {
		t.Error("fully controlled strategy should pass cleanly")
	}
}

func TestRiskRulesMissingStopLossIsCritical(t *testing.T) {
	v := NewRiskRuleValidator(zap.NewNop(), nil)

	strategy := goodStrategy()
	strategy.StopLoss = nil

	result := v.Evaluate(strategy)
	if result.Score != 60 {
		t.Errorf("score = %v, want 60", result.Score)
	}
	if result.Passed {
		t.Error("missing stop-loss should fail")
	}
	if !result.HasCritical() {
		t.Error("missing stop-loss should be critical")
	}
}

func TestRiskRulesExcessiveLeverageIsCritical(t *testing.T) {
	v := NewRiskRuleValidator(zap.NewNop(), nil)

	strategy := goodStrategy()
	strategy.Leverage = 5 // limit is 3

	result := v.Evaluate(strategy)
	if result.Score != 65 {
		t.Errorf("score = %v, want 65", result.Score)
	}
	if !result.HasCritical() {
		t.Error("excessive leverage should be critical")
	}
}

func TestRiskRulesWideStopLoss(t *testing.T) {
	v := NewRiskRuleValidator(zap.NewNop(), nil)

	strategy := goodStrategy()
	strategy.StopLoss = floatPtr(0.15) // limit is 0.10

	result := v.Evaluate(strategy)
	if result.Score != 80 {
		t.Errorf("score = %v, want 80", result.Score)
	}
	if result.HasCritical() {
		t.Error("a wide stop is high severity, not critical")
	}
}

func TestRiskRulesAccumulatedDeductions(t *testing.T) {
	v := NewRiskRuleValidator(zap.NewNop(), nil)

	strategy := goodStrategy()
	strategy.StopLoss = nil        // -40 critical
	strategy.PositionSizing = ""   // -30
	strategy.RiskRewardRatio = nil // -15
	strategy.MaxDailyLoss = nil    // -25

	result := v.Evaluate(strategy)
	if result.Score != 0 {
		t.Errorf("score = %v, want floor of 0", result.Score)
	}
	if len(result.Issues) != 4 {
		t.Errorf("issues = %d, want 4", len(result.Issues))
	}
}
