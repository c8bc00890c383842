// Package types provides shared type definitions for the strategy validator.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// StrategyType represents the category of trading strategy
type StrategyType string

const (
	StrategyMomentum       StrategyType = "momentum"
	StrategyMeanReversion  StrategyType = "mean_reversion"
	StrategyArbitrage      StrategyType = "arbitrage"
	StrategyTrendFollowing StrategyType = "trend_following"
	StrategyMarketMaking   StrategyType = "market_making"
)

// ValidStrategyType reports whether t is a known strategy type.
func ValidStrategyType(t StrategyType) bool {
	switch t {
	case StrategyMomentum, StrategyMeanReversion, StrategyArbitrage,
		StrategyTrendFollowing, StrategyMarketMaking:
		return true
	}
	return false
}

// Timeframe represents trading timeframes
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// ValidTimeframe reports whether tf is a known timeframe.
func ValidTimeframe(tf Timeframe) bool {
	switch tf {
	case Timeframe1m, Timeframe5m, Timeframe15m, Timeframe1h, Timeframe4h, Timeframe1d:
		return true
	}
	return false
}

// Condition is a single entry or exit rule evaluated against a price series.
type Condition struct {
	Indicator string  `json:"indicator"` // "momentum", "sma", "rsi", "price"
	Operator  string  `json:"operator"`  // "gt", "lt", "cross_above", "cross_below"
	Value     float64 `json:"value"`
	Lookback  int     `json:"lookback,omitempty"`
}

// StrategyDefinition is the immutable input to a validation run.
type StrategyDefinition struct {
	Name            string       `json:"name"`
	Type            StrategyType `json:"type"`
	Timeframe       Timeframe    `json:"timeframe"`
	Markets         []string     `json:"markets"`
	EntryConditions []Condition  `json:"entryConditions"`
	ExitConditions  []Condition  `json:"exitConditions"`

	// Risk parameters. Pointer fields distinguish "absent" from zero.
	StopLoss        *float64 `json:"stopLoss,omitempty"`        // fraction, e.g. 0.05
	PositionSizing  string   `json:"positionSizing,omitempty"`  // "fixed", "kelly", "volatility"
	MaxPositionSize float64  `json:"maxPositionSize,omitempty"` // fraction of portfolio
	Leverage        float64  `json:"leverage,omitempty"`
	RiskRewardRatio *float64 `json:"riskRewardRatio,omitempty"`
	MaxDailyLoss    *float64 `json:"maxDailyLoss,omitempty"` // fraction
}

// TradeRecord is a single realized trade outcome.
type TradeRecord struct {
	Profit    decimal.Decimal `json:"profit"`
	Timestamp time.Time       `json:"timestamp"`
	Drawdown  float64         `json:"drawdown"` // drawdown fraction at trade time
}

// BacktestDataset is the caller-supplied trade history for a strategy.
// Returns and EquityCurve must be consistent with Trades; the validator
// does not re-derive one from the other.
type BacktestDataset struct {
	Trades      []TradeRecord `json:"trades"`
	Returns     []float64     `json:"returns"`
	EquityCurve []float64     `json:"equityCurve"`
	StartDate   time.Time     `json:"startDate"`
	EndDate     time.Time     `json:"endDate"`
}

// Empty reports whether the dataset carries no usable history.
func (d *BacktestDataset) Empty() bool {
	return d == nil || (len(d.Trades) == 0 && len(d.Returns) == 0)
}

// Severity classifies validation issues
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Issue is a single problem found by a validation component.
type Issue struct {
	Type     string   `json:"type"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// ComponentResult is the outcome of one validation component.
type ComponentResult struct {
	Score   float64            `json:"score"` // 0-100
	Passed  bool               `json:"passed"`
	Issues  []Issue            `json:"issues,omitempty"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// HasCritical reports whether any issue carries CRITICAL severity.
func (r *ComponentResult) HasCritical() bool {
	for _, iss := range r.Issues {
		if iss.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// Recommendation buckets the overall verdict
type Recommendation string

const (
	RecommendationExcellent  Recommendation = "EXCELLENT"
	RecommendationGood       Recommendation = "GOOD"
	RecommendationAcceptable Recommendation = "ACCEPTABLE"
	RecommendationMarginal   Recommendation = "MARGINAL"
	RecommendationRejected   Recommendation = "REJECTED"
)

// RiskLevel buckets the composite risk score
type RiskLevel string

const (
	RiskVeryLow  RiskLevel = "VERY_LOW"
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskVeryHigh RiskLevel = "VERY_HIGH"
)

// ValidationSummary is the aggregated verdict across all components.
type ValidationSummary struct {
	QualityScore   float64        `json:"qualityScore"` // 0-100
	RiskScore      float64        `json:"riskScore"`    // 0-100, higher = riskier
	Approved       bool           `json:"approved"`
	Failures       []string       `json:"failures,omitempty"`
	Recommendation Recommendation `json:"recommendation"`
	RiskLevel      RiskLevel      `json:"riskLevel"`
	Text           string         `json:"text,omitempty"`
}

// ValidationStatus is the lifecycle state of a validation record
type ValidationStatus string

const (
	StatusInProgress ValidationStatus = "IN_PROGRESS"
	StatusApproved   ValidationStatus = "APPROVED"
	StatusRejected   ValidationStatus = "REJECTED"
	StatusError      ValidationStatus = "ERROR"
)

// ValidationRecord is the persisted outcome of one validation run.
// It is mutated only by the orchestrator while the run is in progress
// and is immutable once emitted.
type ValidationRecord struct {
	ID           string                     `json:"id"`
	Timestamp    time.Time                  `json:"timestamp"`
	StrategyName string                     `json:"strategyName"`
	Status       ValidationStatus           `json:"status"`
	Results      map[string]ComponentResult `json:"results"`
	Summary      *ValidationSummary         `json:"summary,omitempty"`
	Error        string                     `json:"error,omitempty"`
	DurationMs   int64                      `json:"durationMs"`
}

// Component names, used as Results map keys and aggregation weight keys.
const (
	ComponentStructural  = "structural"
	ComponentRiskRules   = "riskRules"
	ComponentPerformance = "performance"
	ComponentScenarios   = "scenarios"
	ComponentMonteCarlo  = "monteCarlo"
	ComponentStress      = "stress"
	ComponentRiskMetrics = "riskMetrics"
	ComponentRegime      = "regime"
)
