// Package montecarlo resamples a strategy's realized trade sequence to
// estimate how sensitive its outcome is to trade ordering.
package montecarlo

import (
	"context"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/strategy-validator/pkg/types"
)

// Config controls Monte Carlo simulation parameters.
type Config struct {
	NumSimulations int
	Workers        int
	Seed           int64           // 0 means time-based
	RuinDrawdown   float64         // drawdown fraction counting a trial as ruined
	InitialCapital decimal.Decimal
	PassScore      float64
}

// DefaultConfig returns standard simulation settings.
func DefaultConfig() *Config {
	return &Config{
		NumSimulations: 1000,
		Workers:        runtime.NumCPU(),
		RuinDrawdown:   0.20,
		InitialCapital: decimal.NewFromInt(10000),
		PassScore:      70,
	}
}

// Distribution summarizes a sampled quantity across trials.
type Distribution struct {
	Mean        float64            `json:"mean"`
	Median      float64            `json:"median"`
	StdDev      float64            `json:"stdDev"`
	Min         float64            `json:"min"`
	Max         float64            `json:"max"`
	Percentiles map[string]float64 `json:"percentiles"`
}

// Result is the aggregate outcome of a simulation run. Equity figures
// are money amounts; distributions are expressed as multiples of
// initial capital for TerminalEquity and as fractions for MaxDrawdown.
type Result struct {
	Requested         int             `json:"requested"`
	Completed         int             `json:"completed"`
	Partial           bool            `json:"partial"`
	TerminalEquity    *Distribution   `json:"terminalEquity"`
	MaxDrawdown       *Distribution   `json:"maxDrawdown"`
	ProbabilityOfRuin float64         `json:"probabilityOfRuin"`
	MeanFinalEquity   decimal.Decimal `json:"meanFinalEquity"`
	WorstFinalEquity  decimal.Decimal `json:"worstFinalEquity"`
	BestFinalEquity   decimal.Decimal `json:"bestFinalEquity"`
	Score             float64         `json:"score"`
}

// Simulator runs permutation-resampling simulations over a trade
// sequence.
type Simulator struct {
	logger *zap.Logger
	config *Config
}

// NewSimulator creates a Monte Carlo simulator.
func NewSimulator(logger *zap.Logger, config *Config) *Simulator {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	return &Simulator{logger: logger, config: config}
}

type trialOutcome struct {
	terminal float64
	maxDD    float64
	done     bool
}

// Run resamples the trade-return sequence NumSimulations times. Each
// trial reorders the same multiset of returns, so terminal equity is
// stable while drawdown varies with ordering. On context cancellation
// the result covers the completed trials and is marked partial.
func (s *Simulator) Run(ctx context.Context, tradeReturns []float64) (*Result, error) {
	start := time.Now()
	n := s.config.NumSimulations

	seed := s.config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	outcomes := make([]trialOutcome, n)
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < s.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for trial := range jobs {
				outcomes[trial] = runTrial(tradeReturns, seed+int64(trial))
			}
		}()
	}

dispatch:
	for trial := 0; trial < n; trial++ {
		select {
		case jobs <- trial:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	result := s.aggregate(outcomes)
	result.Partial = result.Completed < result.Requested

	s.logger.Info("Monte Carlo run finished",
		zap.Int("requested", result.Requested),
		zap.Int("completed", result.Completed),
		zap.Float64("probabilityOfRuin", result.ProbabilityOfRuin),
		zap.Duration("elapsed", time.Since(start)))

	if result.Partial {
		return result, ctx.Err()
	}
	return result, nil
}

// Evaluate runs the simulation for a dataset and folds the outcome into
// a component result.
func (s *Simulator) Evaluate(ctx context.Context, dataset *types.BacktestDataset) (types.ComponentResult, *Result, error) {
	returns := TradeReturns(dataset, s.config.InitialCapital)
	if len(returns) == 0 {
		return types.ComponentResult{
			Score:  0,
			Passed: false,
			Issues: []types.Issue{{
				Type:     "no_trade_history",
				Severity: types.SeverityHigh,
				Message:  "no trades available for resampling",
			}},
		}, nil, nil
	}

	result, err := s.Run(ctx, returns)

	component := types.ComponentResult{
		Score:  result.Score,
		Passed: !result.Partial && result.Score >= s.config.PassScore,
		Metrics: map[string]float64{
			"probabilityOfRuin": result.ProbabilityOfRuin,
			"meanMaxDrawdown":   result.MaxDrawdown.Mean,
			"p95MaxDrawdown":    result.MaxDrawdown.Percentiles["p95"],
			"trialsCompleted":   float64(result.Completed),
		},
	}
	if result.Partial {
		component.Score = 0
		component.Issues = append(component.Issues, types.Issue{
			Type:     "simulation_timeout",
			Severity: types.SeverityHigh,
			Message:  "simulation was cancelled before all trials completed",
		})
	} else if !component.Passed {
		component.Issues = append(component.Issues, types.Issue{
			Type:     "high_ruin_probability",
			Severity: types.SeverityHigh,
			Message:  "resampled trade orderings breach the drawdown limit too often",
		})
	}

	return component, result, err
}

// TradeReturns converts trade profits into fractional returns against
// initial capital. It falls back to the dataset's raw return series
// when no trades are present.
func TradeReturns(dataset *types.BacktestDataset, initialCapital decimal.Decimal) []float64 {
	if dataset == nil {
		return nil
	}
	if len(dataset.Trades) == 0 {
		return dataset.Returns
	}

	returns := make([]float64, len(dataset.Trades))
	for i, trade := range dataset.Trades {
		r, _ := trade.Profit.Div(initialCapital).Float64()
		returns[i] = r
	}
	return returns
}

// runTrial replays one random reordering of the trade returns.
func runTrial(tradeReturns []float64, seed int64) trialOutcome {
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(len(tradeReturns))

	equity := 1.0
	peak := 1.0
	maxDD := 0.0
	for _, idx := range perm {
		equity *= 1 + tradeReturns[idx]
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			dd := (peak - equity) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return trialOutcome{terminal: equity, maxDD: maxDD, done: true}
}

func (s *Simulator) aggregate(outcomes []trialOutcome) *Result {
	terminals := make([]float64, 0, len(outcomes))
	drawdowns := make([]float64, 0, len(outcomes))
	ruined := 0
	for _, o := range outcomes {
		if !o.done {
			continue
		}
		terminals = append(terminals, o.terminal)
		drawdowns = append(drawdowns, o.maxDD)
		if o.maxDD > s.config.RuinDrawdown {
			ruined++
		}
	}

	result := &Result{
		Requested:      s.config.NumSimulations,
		Completed:      len(terminals),
		TerminalEquity: summarize(terminals),
		MaxDrawdown:    summarize(drawdowns),
	}

	if result.Completed > 0 {
		result.ProbabilityOfRuin = float64(ruined) / float64(result.Completed)
		result.MeanFinalEquity = s.config.InitialCapital.Mul(decimal.NewFromFloat(result.TerminalEquity.Mean))
		result.WorstFinalEquity = s.config.InitialCapital.Mul(decimal.NewFromFloat(result.TerminalEquity.Min))
		result.BestFinalEquity = s.config.InitialCapital.Mul(decimal.NewFromFloat(result.TerminalEquity.Max))
	}
	result.Score = 100 * (1 - result.ProbabilityOfRuin)

	return result
}

// summarize builds a distribution from trial samples.
func summarize(samples []float64) *Distribution {
	dist := &Distribution{Percentiles: map[string]float64{}}
	if len(samples) == 0 {
		return dist
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	dist.Mean = sum / float64(len(sorted))

	variance := 0.0
	for _, v := range sorted {
		d := v - dist.Mean
		variance += d * d
	}
	dist.StdDev = math.Sqrt(variance / float64(len(sorted)))

	dist.Min = sorted[0]
	dist.Max = sorted[len(sorted)-1]
	dist.Median = percentile(sorted, 50)
	for _, p := range []int{5, 25, 75, 95} {
		key := "p" + strconv.Itoa(p)
		dist.Percentiles[key] = percentile(sorted, float64(p))
	}

	return dist
}

// percentile reads the p-th percentile from an ascending-sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p / 100 * float64(len(sorted)-1))
	return sorted[idx]
}
