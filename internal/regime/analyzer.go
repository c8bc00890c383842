package regime

import (
	"math"

	"github.com/atlas-desktop/strategy-validator/pkg/types"
	"go.uber.org/zap"
)

// segmentWindow is the number of return samples classified together.
const segmentWindow = 20

// SegmentStats captures strategy performance within one regime.
type SegmentStats struct {
	Kind        Kind    `json:"kind"`
	Samples     int     `json:"samples"`
	TotalReturn float64 `json:"totalReturn"`
	WinRate     float64 `json:"winRate"`
	MaxDrawdown float64 `json:"maxDrawdown"`
	Sharpe      float64 `json:"sharpe"` // per-sample, not annualized
}

// Analyzer segments a backtest timeline into regimes and scores
// performance stability across them.
type Analyzer struct {
	logger     *zap.Logger
	classifier *Classifier
}

// NewAnalyzer creates a regime analyzer.
func NewAnalyzer(logger *zap.Logger) *Analyzer {
	return &Analyzer{
		logger:     logger,
		classifier: NewClassifier(),
	}
}

// Evaluate classifies fixed windows of the returns series, groups the
// per-regime performance, and scores stability as the inverse variance
// of per-regime Sharpe ratios normalized to 0-100.
func (a *Analyzer) Evaluate(dataset *types.BacktestDataset) types.ComponentResult {
	result := types.ComponentResult{Metrics: make(map[string]float64)}

	if dataset.Empty() || len(dataset.Returns) == 0 {
		result.Score = 0
		result.Issues = append(result.Issues, types.Issue{
			Type:     "no_returns",
			Severity: types.SeverityHigh,
			Message:  "no returns series available for regime analysis",
		})
		return result
	}

	segments := a.Segment(dataset.Returns)

	// Group performance by regime kind.
	grouped := make(map[Kind][]float64)
	for _, seg := range segments {
		grouped[seg.Kind] = append(grouped[seg.Kind], seg.Sharpe)
	}

	sharpes := make([]float64, 0, len(grouped))
	for kind, vals := range grouped {
		m := meanOf(vals)
		sharpes = append(sharpes, m)
		result.Metrics["sharpe_"+string(kind)] = m
	}
	result.Metrics["regimeCount"] = float64(len(grouped))
	result.Metrics["segmentCount"] = float64(len(segments))

	stability := stabilityScore(sharpes)
	result.Metrics["stabilityScore"] = stability
	result.Score = stability
	result.Passed = stability >= 60

	if len(segments) < 2 {
		result.Issues = append(result.Issues, types.Issue{
			Type:     "limited_history",
			Severity: types.SeverityLow,
			Message:  "history too short to segment into multiple regimes",
		})
	}
	if !result.Passed {
		result.Issues = append(result.Issues, types.Issue{
			Type:     "regime_instability",
			Severity: types.SeverityMedium,
			Message:  "performance varies too much across market regimes",
		})
	}

	a.logger.Debug("regime analysis complete",
		zap.Int("segments", len(segments)),
		zap.Int("regimes", len(grouped)),
		zap.Float64("stability", stability),
	)

	return result
}

// Segment classifies consecutive fixed windows of returns and merges
// adjacent windows with the same label.
func (a *Analyzer) Segment(returns []float64) []SegmentStats {
	if len(returns) == 0 {
		return nil
	}

	var segments []SegmentStats
	for start := 0; start < len(returns); start += segmentWindow {
		end := start + segmentWindow
		if end > len(returns) {
			end = len(returns)
		}
		window := returns[start:end]
		kind := a.classifier.Classify(window)

		if n := len(segments); n > 0 && segments[n-1].Kind == kind {
			// Extend the previous segment.
			merged := append([]float64(nil), returns[start-segments[n-1].Samples:end]...)
			segments[n-1] = segmentStats(kind, merged)
			continue
		}
		segments = append(segments, segmentStats(kind, window))
	}

	return segments
}

func segmentStats(kind Kind, returns []float64) SegmentStats {
	stats := SegmentStats{Kind: kind, Samples: len(returns)}
	if len(returns) == 0 {
		return stats
	}

	wins := 0
	equity := 1.0
	peak := 1.0
	for _, r := range returns {
		stats.TotalReturn += r
		if r > 0 {
			wins++
		}
		equity *= 1 + r
		if equity > peak {
			peak = equity
		} else if dd := (peak - equity) / peak; dd > stats.MaxDrawdown {
			stats.MaxDrawdown = dd
		}
	}
	stats.WinRate = float64(wins) / float64(len(returns))

	sd := Volatility(returns)
	if sd > 0 {
		stats.Sharpe = meanOf(returns) / sd
	}

	return stats
}

// stabilityScore maps the variance of per-regime Sharpe ratios to
// 0-100; identical performance across regimes scores 100.
func stabilityScore(sharpes []float64) float64 {
	if len(sharpes) < 2 {
		return 100
	}

	m := meanOf(sharpes)
	variance := 0.0
	for _, s := range sharpes {
		diff := s - m
		variance += diff * diff
	}
	variance /= float64(len(sharpes))

	score := 100 / (1 + variance)
	return math.Min(100, score)
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
