// Package types provides configuration types for the strategy validator.
package types

import (
	"fmt"
	"math"
	"time"
)

// ValidatorConfig holds every validation threshold. All fields are
// explicit; defaults come from DefaultValidatorConfig, not from hidden
// fallbacks inside components.
type ValidatorConfig struct {
	MaxDrawdown            float64 `json:"maxDrawdown" mapstructure:"max_drawdown"`
	MaxLeverage            float64 `json:"maxLeverage" mapstructure:"max_leverage"`
	MaxPositionSize        float64 `json:"maxPositionSize" mapstructure:"max_position_size"`
	MaxDailyLoss           float64 `json:"maxDailyLoss" mapstructure:"max_daily_loss"`
	MaxStopLoss            float64 `json:"maxStopLoss" mapstructure:"max_stop_loss"`
	MaxConsecutiveLosses   int     `json:"maxConsecutiveLosses" mapstructure:"max_consecutive_losses"`
	MinWinRate             float64 `json:"minWinRate" mapstructure:"min_win_rate"`
	MinProfitFactor        float64 `json:"minProfitFactor" mapstructure:"min_profit_factor"`
	MinSharpeRatio         float64 `json:"minSharpeRatio" mapstructure:"min_sharpe_ratio"`
	MinSortinoRatio        float64 `json:"minSortinoRatio" mapstructure:"min_sortino_ratio"`
	MinTradesForValidation int     `json:"minTradesForValidation" mapstructure:"min_trades_for_validation"`
	MonteCarloSimulations  int     `json:"monteCarloSimulations" mapstructure:"monte_carlo_simulations"`
	RequireStopLoss        bool    `json:"requireStopLoss" mapstructure:"require_stop_loss"`
	RequirePositionSizing  bool    `json:"requirePositionSizing" mapstructure:"require_position_sizing"`
	RequireRiskRewardRatio bool    `json:"requireRiskRewardRatio" mapstructure:"require_risk_reward_ratio"`
	MinRiskRewardRatio     float64 `json:"minRiskRewardRatio" mapstructure:"min_risk_reward_ratio"`
	ApprovalThreshold      float64 `json:"approvalThreshold" mapstructure:"approval_threshold"`
	RiskFreeRate           float64 `json:"riskFreeRate" mapstructure:"risk_free_rate"`

	// MaxAcceptableLoss bounds the per-scenario loss used in stress
	// survival scoring.
	MaxAcceptableLoss float64 `json:"maxAcceptableLoss" mapstructure:"max_acceptable_loss"`

	// Seed fixes the random streams used by the scenario and Monte Carlo
	// engines. 0 means time-based.
	Seed int64 `json:"seed" mapstructure:"seed"`

	// HistorySize bounds the in-memory validation record ring.
	HistorySize int `json:"historySize" mapstructure:"history_size"`

	Weights     AggregationWeights `json:"weights" mapstructure:"weights"`
	RiskWeights RiskScoreWeights   `json:"riskWeights" mapstructure:"risk_weights"`
}

// AggregationWeights weight each component's score in the overall
// quality score. They must sum to 1.0.
type AggregationWeights struct {
	Structural  float64 `json:"structural" mapstructure:"structural"`
	RiskRules   float64 `json:"riskRules" mapstructure:"risk_rules"`
	Performance float64 `json:"performance" mapstructure:"performance"`
	Scenarios   float64 `json:"scenarios" mapstructure:"scenarios"`
	Stress      float64 `json:"stress" mapstructure:"stress"`
	MonteCarlo  float64 `json:"monteCarlo" mapstructure:"monte_carlo"`
	Regime      float64 `json:"regime" mapstructure:"regime"`
}

// ByComponent returns the weight table keyed by component name.
func (w AggregationWeights) ByComponent() map[string]float64 {
	return map[string]float64{
		ComponentStructural:  w.Structural,
		ComponentRiskRules:   w.RiskRules,
		ComponentPerformance: w.Performance,
		ComponentScenarios:   w.Scenarios,
		ComponentStress:      w.Stress,
		ComponentMonteCarlo:  w.MonteCarlo,
		ComponentRegime:      w.Regime,
	}
}

// RiskScoreWeights weight the factors feeding the composite risk score.
// They must sum to 1.0.
type RiskScoreWeights struct {
	VaR           float64 `json:"var" mapstructure:"var"`
	Drawdown      float64 `json:"drawdown" mapstructure:"drawdown"`
	Volatility    float64 `json:"volatility" mapstructure:"volatility"`
	Leverage      float64 `json:"leverage" mapstructure:"leverage"`
	Concentration float64 `json:"concentration" mapstructure:"concentration"`
	Liquidity     float64 `json:"liquidity" mapstructure:"liquidity"`
}

// DefaultValidatorConfig returns the documented defaults.
func DefaultValidatorConfig() *ValidatorConfig {
	return &ValidatorConfig{
		MaxDrawdown:            0.20,
		MaxLeverage:            3,
		MaxPositionSize:        0.10,
		MaxDailyLoss:           0.05,
		MaxStopLoss:            0.10,
		MaxConsecutiveLosses:   5,
		MinWinRate:             0.55,
		MinProfitFactor:        1.5,
		MinSharpeRatio:         1.0,
		MinSortinoRatio:        1.2,
		MinTradesForValidation: 100,
		MonteCarloSimulations:  1000,
		RequireStopLoss:        true,
		RequirePositionSizing:  true,
		RequireRiskRewardRatio: true,
		MinRiskRewardRatio:     1.5,
		ApprovalThreshold:      70,
		RiskFreeRate:           0.02,
		MaxAcceptableLoss:      0.50,
		Seed:                   0,
		HistorySize:            1000,
		Weights: AggregationWeights{
			Structural:  0.10,
			RiskRules:   0.25,
			Performance: 0.25,
			Scenarios:   0.15,
			Stress:      0.15,
			MonteCarlo:  0.05,
			Regime:      0.05,
		},
		RiskWeights: RiskScoreWeights{
			VaR:           0.20,
			Drawdown:      0.25,
			Volatility:    0.15,
			Leverage:      0.20,
			Concentration: 0.10,
			Liquidity:     0.10,
		},
	}
}

const weightTolerance = 1e-6

// Validate checks the configuration for construction-time errors.
func (c *ValidatorConfig) Validate() error {
	if c.ApprovalThreshold <= 0 || c.ApprovalThreshold > 100 {
		return fmt.Errorf("approval threshold must be in (0,100], got %v", c.ApprovalThreshold)
	}
	if c.MaxDrawdown <= 0 || c.MaxDrawdown >= 1 {
		return fmt.Errorf("max drawdown must be in (0,1), got %v", c.MaxDrawdown)
	}
	if c.MinTradesForValidation <= 0 {
		return fmt.Errorf("min trades for validation must be positive, got %d", c.MinTradesForValidation)
	}
	if c.MonteCarloSimulations <= 0 {
		return fmt.Errorf("monte carlo simulations must be positive, got %d", c.MonteCarloSimulations)
	}
	if c.HistorySize <= 0 {
		return fmt.Errorf("history size must be positive, got %d", c.HistorySize)
	}

	w := c.Weights
	sum := w.Structural + w.RiskRules + w.Performance + w.Scenarios + w.Stress + w.MonteCarlo + w.Regime
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("aggregation weights must sum to 1.0, got %v", sum)
	}
	for name, weight := range w.ByComponent() {
		if weight < 0 {
			return fmt.Errorf("aggregation weight %q is negative: %v", name, weight)
		}
	}

	rw := c.RiskWeights
	rsum := rw.VaR + rw.Drawdown + rw.Volatility + rw.Leverage + rw.Concentration + rw.Liquidity
	if math.Abs(rsum-1.0) > weightTolerance {
		return fmt.Errorf("risk score weights must sum to 1.0, got %v", rsum)
	}

	return nil
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `json:"host" mapstructure:"host"`
	Port           int           `json:"port" mapstructure:"port"`
	ReadTimeout    time.Duration `json:"readTimeout" mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `json:"writeTimeout" mapstructure:"write_timeout"`
	MaxConnections int           `json:"maxConnections" mapstructure:"max_connections"`
}

// DefaultServerConfig returns sensible defaults
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:           "localhost",
		Port:           8090,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxConnections: 256,
	}
}
