// Package config loads validator configuration from file and environment.
package config

import (
	"fmt"
	"strings"

	"github.com/atlas-desktop/strategy-validator/pkg/types"
	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Validator *types.ValidatorConfig `mapstructure:"validator"`
	Server    *types.ServerConfig    `mapstructure:"server"`
}

// Load reads configuration from the given file (optional) with
// environment overrides (VALIDATOR_ prefix). Missing fields fall back
// to the documented defaults; an invalid weight table or threshold is a
// fatal configuration error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("VALIDATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Validator: types.DefaultValidatorConfig(),
		Server:    types.DefaultServerConfig(),
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validator.Validate(); err != nil {
		return nil, fmt.Errorf("invalid validator config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := types.DefaultValidatorConfig()

	v.SetDefault("validator.max_drawdown", def.MaxDrawdown)
	v.SetDefault("validator.max_leverage", def.MaxLeverage)
	v.SetDefault("validator.max_position_size", def.MaxPositionSize)
	v.SetDefault("validator.max_daily_loss", def.MaxDailyLoss)
	v.SetDefault("validator.max_stop_loss", def.MaxStopLoss)
	v.SetDefault("validator.max_consecutive_losses", def.MaxConsecutiveLosses)
	v.SetDefault("validator.min_win_rate", def.MinWinRate)
	v.SetDefault("validator.min_profit_factor", def.MinProfitFactor)
	v.SetDefault("validator.min_sharpe_ratio", def.MinSharpeRatio)
	v.SetDefault("validator.min_sortino_ratio", def.MinSortinoRatio)
	v.SetDefault("validator.min_trades_for_validation", def.MinTradesForValidation)
	v.SetDefault("validator.monte_carlo_simulations", def.MonteCarloSimulations)
	v.SetDefault("validator.require_stop_loss", def.RequireStopLoss)
	v.SetDefault("validator.require_position_sizing", def.RequirePositionSizing)
	v.SetDefault("validator.require_risk_reward_ratio", def.RequireRiskRewardRatio)
	v.SetDefault("validator.min_risk_reward_ratio", def.MinRiskRewardRatio)
	v.SetDefault("validator.approval_threshold", def.ApprovalThreshold)
	v.SetDefault("validator.risk_free_rate", def.RiskFreeRate)
	v.SetDefault("validator.max_acceptable_loss", def.MaxAcceptableLoss)
	v.SetDefault("validator.seed", def.Seed)
	v.SetDefault("validator.history_size", def.HistorySize)

	v.SetDefault("validator.weights.structural", def.Weights.Structural)
	v.SetDefault("validator.weights.risk_rules", def.Weights.RiskRules)
	v.SetDefault("validator.weights.performance", def.Weights.Performance)
	v.SetDefault("validator.weights.scenarios", def.Weights.Scenarios)
	v.SetDefault("validator.weights.stress", def.Weights.Stress)
	v.SetDefault("validator.weights.monte_carlo", def.Weights.MonteCarlo)
	v.SetDefault("validator.weights.regime", def.Weights.Regime)

	v.SetDefault("validator.risk_weights.var", def.RiskWeights.VaR)
	v.SetDefault("validator.risk_weights.drawdown", def.RiskWeights.Drawdown)
	v.SetDefault("validator.risk_weights.volatility", def.RiskWeights.Volatility)
	v.SetDefault("validator.risk_weights.leverage", def.RiskWeights.Leverage)
	v.SetDefault("validator.risk_weights.concentration", def.RiskWeights.Concentration)
	v.SetDefault("validator.risk_weights.liquidity", def.RiskWeights.Liquidity)

	srv := types.DefaultServerConfig()
	v.SetDefault("server.host", srv.Host)
	v.SetDefault("server.port", srv.Port)
	v.SetDefault("server.read_timeout", srv.ReadTimeout)
	v.SetDefault("server.write_timeout", srv.WriteTimeout)
	v.SetDefault("server.max_connections", srv.MaxConnections)
}
