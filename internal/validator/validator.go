// Package validator orchestrates the full strategy validation
// pipeline: structural checks, risk rules, realized performance,
// scenario and stress replay, Monte Carlo resampling, risk metrics,
// regime analysis, and the aggregated verdict.
package validator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atlas-desktop/strategy-validator/internal/events"
	"github.com/atlas-desktop/strategy-validator/internal/metrics"
	"github.com/atlas-desktop/strategy-validator/internal/montecarlo"
	"github.com/atlas-desktop/strategy-validator/internal/regime"
	"github.com/atlas-desktop/strategy-validator/internal/riskmetrics"
	"github.com/atlas-desktop/strategy-validator/internal/scenarios"
	"github.com/atlas-desktop/strategy-validator/pkg/types"
)

// ErrNilStrategy is returned when Validate is called without a
// strategy.
var ErrNilStrategy = errors.New("validator: nil strategy")

// Validator runs every validation component against a strategy and its
// backtest dataset and records the outcome.
type Validator struct {
	logger *zap.Logger
	config *types.ValidatorConfig

	structural  *StructuralValidator
	riskRules   *RiskRuleValidator
	performance *PerformanceValidator
	riskMetrics *riskmetrics.Calculator
	scenarios   *scenarios.Runner
	stress      *scenarios.StressTester
	monteCarlo  *montecarlo.Simulator
	regime      *regime.Analyzer
	aggregator  *Aggregator

	history *History
	bus     *events.Bus
	metrics *metrics.Metrics
}

// New creates a validator with all components wired from the given
// configuration.
func New(logger *zap.Logger, config *types.ValidatorConfig) (*Validator, error) {
	if config == nil {
		config = types.DefaultValidatorConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	runnerCfg := scenarios.DefaultRunnerConfig()
	runnerCfg.Seed = seed

	stressCfg := scenarios.DefaultStressConfig()
	stressCfg.Seed = seed + 100
	stressCfg.MaxAcceptableLoss = config.MaxAcceptableLoss

	mcCfg := montecarlo.DefaultConfig()
	mcCfg.Seed = seed
	mcCfg.NumSimulations = config.MonteCarloSimulations
	mcCfg.RuinDrawdown = config.MaxDrawdown

	v := &Validator{
		logger:      logger,
		config:      config,
		structural:  NewStructuralValidator(logger),
		riskRules:   NewRiskRuleValidator(logger, config),
		performance: NewPerformanceValidator(logger, config),
		riskMetrics: riskmetrics.NewCalculator(logger, config),
		scenarios:   scenarios.NewRunner(logger, runnerCfg),
		stress:      scenarios.NewStressTester(logger, stressCfg),
		monteCarlo:  montecarlo.NewSimulator(logger, mcCfg),
		regime:      regime.NewAnalyzer(logger),
		aggregator:  NewAggregator(logger, config),
		history:     NewHistory(config.HistorySize),
	}

	logger.Info("Validator initialized",
		zap.Float64("approvalThreshold", config.ApprovalThreshold),
		zap.Int("monteCarloSimulations", config.MonteCarloSimulations),
		zap.Int("historySize", config.HistorySize))

	return v, nil
}

// SetEventBus attaches a bus for lifecycle events. Must be called
// before the first Validate.
func (v *Validator) SetEventBus(bus *events.Bus) { v.bus = bus }

// SetMetrics attaches Prometheus collectors. Must be called before the
// first Validate.
func (v *Validator) SetMetrics(m *metrics.Metrics) { v.metrics = m }

// SetPathGenerator replaces the synthetic path generator used by the
// scenario and stress engines. Must be called before the first
// Validate.
func (v *Validator) SetPathGenerator(gen scenarios.PathGenerator) {
	v.scenarios.SetPathGenerator(gen)
	v.stress.SetPathGenerator(gen)
}

// History exposes the retained validation records.
func (v *Validator) History() *History { return v.history }

// Validate runs the full pipeline. Every component runs even when
// earlier ones fail, so the record carries the complete picture. The
// returned record is final and must not be mutated by callers.
func (v *Validator) Validate(ctx context.Context, strategy *types.StrategyDefinition, dataset *types.BacktestDataset) (rec *types.ValidationRecord, err error) {
	if strategy == nil {
		return nil, ErrNilStrategy
	}

	start := time.Now()
	record := &types.ValidationRecord{
		ID:           uuid.New().String(),
		Timestamp:    start.UTC(),
		StrategyName: strategy.Name,
		Status:       types.StatusInProgress,
		Results:      make(map[string]types.ComponentResult, 8),
	}

	v.logger.Info("Validation started",
		zap.String("id", record.ID),
		zap.String("strategy", strategy.Name))
	v.publish(events.EventValidationStarted, record)

	// Components are individually panic-isolated; anything escaping
	// that boundary (aggregation, record finalization) still leaves an
	// ERROR record behind for audit before the error reaches the
	// caller.
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("Validation run failed",
				zap.String("id", record.ID),
				zap.Any("panic", r))
			record.Status = types.StatusError
			record.DurationMs = time.Since(start).Milliseconds()
			v.history.Add(record)
			v.observe(record)
			v.publish(events.EventValidationFailed, record)
			rec, err = record, fmt.Errorf("validator: run %s failed: %v", record.ID, r)
		}
	}()

	v.runComponent(ctx, record, types.ComponentStructural, func() types.ComponentResult {
		return v.structural.Evaluate(strategy)
	})
	v.runComponent(ctx, record, types.ComponentRiskRules, func() types.ComponentResult {
		return v.riskRules.Evaluate(strategy)
	})
	v.runComponent(ctx, record, types.ComponentPerformance, func() types.ComponentResult {
		return v.performance.Evaluate(strategy, dataset)
	})
	v.runComponent(ctx, record, types.ComponentRiskMetrics, func() types.ComponentResult {
		return v.riskMetrics.Evaluate(strategy, dataset)
	})
	v.runComponent(ctx, record, types.ComponentScenarios, func() types.ComponentResult {
		return v.scenarios.Evaluate(strategy)
	})
	v.runComponent(ctx, record, types.ComponentStress, func() types.ComponentResult {
		return v.stress.Evaluate(strategy)
	})
	// Monte Carlo and regime analysis only apply to supplied history;
	// without a dataset their entries are omitted so aggregation
	// renormalizes over the components that did run.
	if !dataset.Empty() {
		v.runComponent(ctx, record, types.ComponentMonteCarlo, func() types.ComponentResult {
			result, _, err := v.monteCarlo.Evaluate(ctx, dataset)
			if err != nil {
				v.logger.Warn("Monte Carlo run incomplete",
					zap.String("id", record.ID),
					zap.Error(err))
			}
			return result
		})
		v.runComponent(ctx, record, types.ComponentRegime, func() types.ComponentResult {
			return v.regime.Evaluate(dataset)
		})
	}

	record.Summary = v.aggregator.Summarize(record.Results)
	if record.Summary.Approved {
		record.Status = types.StatusApproved
	} else {
		record.Status = types.StatusRejected
	}
	record.DurationMs = time.Since(start).Milliseconds()

	v.history.Add(record)
	v.observe(record)

	v.logger.Info("Validation finished",
		zap.String("id", record.ID),
		zap.String("status", string(record.Status)),
		zap.Float64("qualityScore", record.Summary.QualityScore),
		zap.Int64("durationMs", record.DurationMs))

	v.publish(events.EventValidationCompleted, record)
	if record.Status == types.StatusRejected {
		v.publish(events.EventValidationRejected, record)
	}

	return record, nil
}

// runComponent executes one component with panic isolation. A
// panicking component yields a zero-score failure instead of taking the
// whole run down. A cancelled context fails remaining components
// without running them.
func (v *Validator) runComponent(ctx context.Context, record *types.ValidationRecord, name string, run func() types.ComponentResult) {
	if err := ctx.Err(); err != nil {
		record.Results[name] = types.ComponentResult{
			Score:  0,
			Passed: false,
			Issues: []types.Issue{{
				Type:     "validation_timeout",
				Severity: types.SeverityHigh,
				Message:  "validation cancelled before this check ran",
			}},
		}
		return
	}

	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("Validation component panicked",
				zap.String("id", record.ID),
				zap.String("component", name),
				zap.Any("panic", r))
			record.Results[name] = types.ComponentResult{
				Score:  0,
				Passed: false,
				Issues: []types.Issue{{
					Type:     "component_panic",
					Severity: types.SeverityHigh,
					Message:  "internal error while running this check",
				}},
			}
		}
	}()

	record.Results[name] = run()
}

func (v *Validator) publish(eventType events.EventType, record *types.ValidationRecord) {
	if v.bus != nil {
		v.bus.Publish(eventType, record)
	}
}

func (v *Validator) observe(record *types.ValidationRecord) {
	if v.metrics == nil {
		return
	}
	v.metrics.ValidationsTotal.WithLabelValues(string(record.Status)).Inc()
	v.metrics.ValidationSeconds.Observe(float64(record.DurationMs) / 1000)
	v.metrics.HistorySize.Set(float64(v.history.Len()))
	if record.Summary != nil {
		v.metrics.QualityScore.Observe(record.Summary.QualityScore)
	}
	for name, result := range record.Results {
		if !result.Passed {
			v.metrics.ComponentFailures.WithLabelValues(name).Inc()
		}
	}
}
