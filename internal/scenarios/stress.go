package scenarios

import (
	"sync"

	"go.uber.org/zap"

	"github.com/atlas-desktop/strategy-validator/pkg/types"
)

// stressScenario builds an adverse price path and the trading cost in
// effect during it.
type stressScenario struct {
	name  string
	build func(gen PathGenerator, seed int64, length int) ([]float64, float64)
}

// stressScenarios is the fixed adverse set every strategy is replayed
// under.
func stressScenarios() []stressScenario {
	return []stressScenario{
		{name: "market_crash", build: buildMarketCrash},
		{name: "liquidity_crisis", build: buildLiquidityCrisis},
		{name: "flash_crash", build: buildFlashCrash},
		{name: "regime_change", build: buildRegimeChange},
	}
}

// StressConfig controls stress tester behavior.
type StressConfig struct {
	Seed              int64
	PathLength        int
	MaxAcceptableLoss float64 // fraction, survival hits zero at this loss
	PassScore         float64
}

// DefaultStressConfig returns stress tester defaults.
func DefaultStressConfig() *StressConfig {
	return &StressConfig{
		PathLength:        basePathLength,
		MaxAcceptableLoss: 0.50,
		PassScore:         60,
	}
}

// StressTester replays a strategy through adverse market scenarios and
// scores its resilience.
type StressTester struct {
	logger *zap.Logger
	config *StressConfig
	gen    PathGenerator
}

// NewStressTester creates a stress tester.
func NewStressTester(logger *zap.Logger, config *StressConfig) *StressTester {
	if config == nil {
		config = DefaultStressConfig()
	}
	return &StressTester{
		logger: logger,
		config: config,
		gen:    NewGBMGenerator(),
	}
}

// SetPathGenerator replaces the path generator. Must be called before
// the first Evaluate.
func (s *StressTester) SetPathGenerator(gen PathGenerator) {
	s.gen = gen
}

// Evaluate runs all stress scenarios concurrently. Each scenario's
// survival score is linear in the drawdown the strategy takes, reaching
// zero at the configured maximum acceptable loss; the component score
// is the average survival across scenarios.
func (s *StressTester) Evaluate(strategy *types.StrategyDefinition) types.ComponentResult {
	scenarios := stressScenarios()
	results := make([]ReplayResult, len(scenarios))

	var wg sync.WaitGroup
	for idx, sc := range scenarios {
		wg.Add(1)
		go func(idx int, sc stressScenario) {
			defer wg.Done()
			path, cost := sc.build(s.gen, s.config.Seed+int64(idx), s.config.PathLength)
			results[idx] = Replay(strategy, path, cost)
		}(idx, sc)
	}
	wg.Wait()

	metrics := make(map[string]float64, 2*len(scenarios)+1)
	total := 0.0
	var issues []types.Issue
	for idx, sc := range scenarios {
		loss := results[idx].MaxDrawdown
		survival := 100 * (1 - loss/s.config.MaxAcceptableLoss)
		if survival < 0 {
			survival = 0
		}
		total += survival
		metrics["loss_"+sc.name] = loss
		metrics["survival_"+sc.name] = survival

		if survival == 0 {
			issues = append(issues, types.Issue{
				Type:     "stress_wipeout",
				Severity: types.SeverityHigh,
				Message:  "strategy loses beyond the acceptable limit under " + sc.name,
			})
		}
	}

	score := total / float64(len(scenarios))
	metrics["resilience"] = score

	result := types.ComponentResult{
		Score:   score,
		Passed:  score >= s.config.PassScore,
		Issues:  issues,
		Metrics: metrics,
	}
	if !result.Passed && len(issues) == 0 {
		result.Issues = append(result.Issues, types.Issue{
			Type:     "low_resilience",
			Severity: types.SeverityMedium,
			Message:  "strategy takes heavy losses across stress scenarios",
		})
	}

	s.logger.Debug("Stress test complete",
		zap.Float64("resilience", score),
		zap.Bool("passed", result.Passed))

	return result
}

// buildMarketCrash gaps the market down 30% at the midpoint and triples
// volatility afterwards.
func buildMarketCrash(gen PathGenerator, seed int64, length int) ([]float64, float64) {
	mid := length / 2
	pre := gen.Generate(PathParams{
		Length:       mid,
		InitialPrice: initialPrice,
		Volatility:   baseVolatility,
		Seed:         seed,
	})
	crashed := pre[len(pre)-1] * 0.70
	post := gen.Generate(PathParams{
		Length:       length - mid,
		InitialPrice: crashed,
		Volatility:   baseVolatility * 3,
		Seed:         seed + 1000,
	})
	return append(pre, post...), baseTradeCost
}

// buildLiquidityCrisis keeps the price path ordinary but widens spreads
// fivefold, with thin volume adding further slippage.
func buildLiquidityCrisis(gen PathGenerator, seed int64, length int) ([]float64, float64) {
	path := gen.Generate(PathParams{
		Length:       length,
		InitialPrice: initialPrice,
		Volatility:   baseVolatility,
		Seed:         seed,
	})
	cost := baseTradeCost*5 + baseTradeCost
	return path, cost
}

// buildFlashCrash injects a ten-bar window at ten times base volatility,
// opened by a 20% gap down; once the window closes the price snaps back
// to just under the pre-shock level and the path resumes at base
// volatility.
func buildFlashCrash(gen PathGenerator, seed int64, length int) ([]float64, float64) {
	mid := length / 2
	const window = 10
	if mid+window >= length {
		path := gen.Generate(PathParams{
			Length:       length,
			InitialPrice: initialPrice,
			Volatility:   baseVolatility * 10,
			Seed:         seed,
		})
		return path, baseTradeCost
	}

	pre := gen.Generate(PathParams{
		Length:       mid,
		InitialPrice: initialPrice,
		Volatility:   baseVolatility,
		Seed:         seed,
	})
	preShock := pre[len(pre)-1]

	shock := gen.Generate(PathParams{
		Length:       window,
		InitialPrice: preShock * 0.80,
		Volatility:   baseVolatility * 10,
		Seed:         seed + 1000,
	})

	// Bounded recovery: the retrace stops just short of the pre-shock
	// level regardless of where the spike left the price.
	post := gen.Generate(PathParams{
		Length:       length - mid - window,
		InitialPrice: preShock * 0.97,
		Volatility:   baseVolatility,
		Seed:         seed + 2000,
	})

	path := append(pre, shock...)
	return append(path, post...), baseTradeCost
}

// buildRegimeChange flips the market from a bull regime into a
// high-volatility bear regime at the midpoint.
func buildRegimeChange(gen PathGenerator, seed int64, length int) ([]float64, float64) {
	mid := length / 2
	bull := gen.Generate(PathParams{
		Length:       mid,
		InitialPrice: initialPrice,
		Volatility:   baseVolatility,
		Drift:        0.5,
		Seed:         seed,
	})
	bear := gen.Generate(PathParams{
		Length:       length - mid,
		InitialPrice: bull[len(bull)-1],
		Volatility:   baseVolatility * 2,
		Drift:        -0.5,
		Seed:         seed + 1000,
	})
	return append(bull, bear...), baseTradeCost
}
