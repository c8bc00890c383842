package validator

import (
	"go.uber.org/zap"

	"github.com/atlas-desktop/strategy-validator/pkg/types"
)

// StructuralValidator checks that a strategy definition is complete and
// internally coherent before any quantitative analysis runs.
type StructuralValidator struct {
	logger *zap.Logger
}

// NewStructuralValidator creates a structural validator.
func NewStructuralValidator(logger *zap.Logger) *StructuralValidator {
	return &StructuralValidator{logger: logger}
}

// Evaluate scores the definition by deduction: each missing required
// field costs 20 points, each invalid enum value 10, and an empty entry
// or exit rule list 30.
func (v *StructuralValidator) Evaluate(strategy *types.StrategyDefinition) types.ComponentResult {
	score := 100.0
	var issues []types.Issue

	deduct := func(points float64, issueType string, severity types.Severity, msg string) {
		score -= points
		issues = append(issues, types.Issue{Type: issueType, Severity: severity, Message: msg})
	}

	if strategy.Name == "" {
		deduct(20, "missing_name", types.SeverityHigh, "strategy name is required")
	}
	if strategy.Type == "" {
		deduct(20, "missing_type", types.SeverityHigh, "strategy type is required")
	} else if !types.ValidStrategyType(strategy.Type) {
		deduct(10, "invalid_type", types.SeverityMedium,
			"unknown strategy type: "+string(strategy.Type))
	}
	if strategy.Timeframe == "" {
		deduct(20, "missing_timeframe", types.SeverityHigh, "timeframe is required")
	} else if !types.ValidTimeframe(strategy.Timeframe) {
		deduct(10, "invalid_timeframe", types.SeverityMedium,
			"unknown timeframe: "+string(strategy.Timeframe))
	}
	if len(strategy.Markets) == 0 {
		deduct(20, "missing_markets", types.SeverityHigh, "at least one market is required")
	}
	if len(strategy.EntryConditions) == 0 {
		deduct(30, "no_entry_conditions", types.SeverityHigh,
			"strategy defines no entry conditions")
	}
	if len(strategy.ExitConditions) == 0 {
		deduct(30, "no_exit_conditions", types.SeverityHigh,
			"strategy defines no exit conditions")
	}

	if score < 0 {
		score = 0
	}

	result := types.ComponentResult{
		Score:  score,
		Passed: score >= 70,
		Issues: issues,
	}

	v.logger.Debug("Structural validation complete",
		zap.String("strategy", strategy.Name),
		zap.Float64("score", score),
		zap.Int("issues", len(issues)))

	return result
}
