package validator

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/atlas-desktop/strategy-validator/pkg/types"
)

// RiskRuleValidator enforces the declared risk controls of a strategy
// against configured limits. Missing stop-loss and excessive leverage
// are critical: either one vetoes approval regardless of other scores.
type RiskRuleValidator struct {
	logger *zap.Logger
	config *types.ValidatorConfig
}

// NewRiskRuleValidator creates a risk rule validator.
func NewRiskRuleValidator(logger *zap.Logger, config *types.ValidatorConfig) *RiskRuleValidator {
	if config == nil {
		config = types.DefaultValidatorConfig()
	}
	return &RiskRuleValidator{logger: logger, config: config}
}

// Evaluate applies the deduction table to the strategy's risk
// parameters.
func (v *RiskRuleValidator) Evaluate(strategy *types.StrategyDefinition) types.ComponentResult {
	score := 100.0
	var issues []types.Issue

	deduct := func(points float64, issueType string, severity types.Severity, msg string) {
		score -= points
		issues = append(issues, types.Issue{Type: issueType, Severity: severity, Message: msg})
	}

	if strategy.StopLoss == nil {
		if v.config.RequireStopLoss {
			deduct(40, "no_stop_loss", types.SeverityCritical,
				"strategy defines no stop-loss")
		}
	} else if *strategy.StopLoss > v.config.MaxStopLoss {
		deduct(20, "stop_loss_too_wide", types.SeverityHigh,
			fmt.Sprintf("stop-loss %.1f%% exceeds maximum %.1f%%",
				*strategy.StopLoss*100, v.config.MaxStopLoss*100))
	}

	if strategy.PositionSizing == "" {
		if v.config.RequirePositionSizing {
			deduct(30, "no_position_sizing", types.SeverityHigh,
				"strategy defines no position sizing method")
		}
	}
	if strategy.MaxPositionSize > v.config.MaxPositionSize {
		deduct(25, "position_size_too_large", types.SeverityHigh,
			fmt.Sprintf("max position size %.1f%% exceeds limit %.1f%%",
				strategy.MaxPositionSize*100, v.config.MaxPositionSize*100))
	}

	if strategy.Leverage > v.config.MaxLeverage {
		deduct(35, "excessive_leverage", types.SeverityCritical,
			fmt.Sprintf("leverage %.1fx exceeds maximum %.1fx",
				strategy.Leverage, v.config.MaxLeverage))
	}

	if strategy.RiskRewardRatio == nil {
		if v.config.RequireRiskRewardRatio {
			deduct(15, "no_risk_reward_ratio", types.SeverityMedium,
				"strategy defines no risk/reward ratio")
		}
	} else if *strategy.RiskRewardRatio < v.config.MinRiskRewardRatio {
		deduct(20, "risk_reward_too_low", types.SeverityMedium,
			fmt.Sprintf("risk/reward ratio %.2f below minimum %.2f",
				*strategy.RiskRewardRatio, v.config.MinRiskRewardRatio))
	}

	if strategy.MaxDailyLoss == nil {
		deduct(25, "no_daily_loss_limit", types.SeverityHigh,
			"strategy defines no daily loss limit")
	} else if *strategy.MaxDailyLoss > v.config.MaxDailyLoss {
		deduct(20, "daily_loss_too_large", types.SeverityHigh,
			fmt.Sprintf("daily loss limit %.1f%% exceeds maximum %.1f%%",
				*strategy.MaxDailyLoss*100, v.config.MaxDailyLoss*100))
	}

	if score < 0 {
		score = 0
	}

	result := types.ComponentResult{
		Score:  score,
		Passed: score >= 70,
		Issues: issues,
	}

	v.logger.Debug("Risk rule validation complete",
		zap.String("strategy", strategy.Name),
		zap.Float64("score", score),
		zap.Int("issues", len(issues)))

	return result
}
