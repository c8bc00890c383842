package validator

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/atlas-desktop/strategy-validator/pkg/types"
)

// Aggregator folds component results into the overall verdict.
type Aggregator struct {
	logger *zap.Logger
	config *types.ValidatorConfig
}

// NewAggregator creates a summary aggregator.
func NewAggregator(logger *zap.Logger, config *types.ValidatorConfig) *Aggregator {
	if config == nil {
		config = types.DefaultValidatorConfig()
	}
	return &Aggregator{logger: logger, config: config}
}

// Summarize computes the weighted quality score over the components
// present in results, normalizing by the weights actually present so a
// missing component shifts weight to the rest instead of dragging the
// score down. Approval requires the quality threshold, no failed
// component, and no critical issue anywhere.
func (a *Aggregator) Summarize(results map[string]types.ComponentResult) *types.ValidationSummary {
	weights := a.config.Weights.ByComponent()

	weightedSum := 0.0
	weightTotal := 0.0
	var failures []string
	hasCritical := false

	// Fixed iteration order keeps the float sum reproducible run to
	// run for identical inputs.
	for _, name := range sortedKeys(results) {
		result := results[name]
		if w, ok := weights[name]; ok && w > 0 {
			weightedSum += w * result.Score
			weightTotal += w
		}
		if !result.Passed {
			failures = append(failures, name)
		}
		if result.HasCritical() {
			hasCritical = true
		}
	}

	quality := 0.0
	if weightTotal > 0 {
		quality = weightedSum / weightTotal
	}

	riskScore := 100 - quality
	if rm, ok := results[types.ComponentRiskMetrics]; ok {
		if rs, ok := rm.Metrics["riskScore"]; ok {
			riskScore = rs
		}
	}

	approved := quality >= a.config.ApprovalThreshold &&
		len(failures) == 0 &&
		!hasCritical

	summary := &types.ValidationSummary{
		QualityScore:   quality,
		RiskScore:      riskScore,
		Approved:       approved,
		Failures:       failures,
		Recommendation: recommend(quality, approved),
		RiskLevel:      riskLevel(riskScore),
	}
	summary.Text = a.renderText(summary, results, hasCritical)

	a.logger.Info("Validation summary computed",
		zap.Float64("qualityScore", quality),
		zap.Float64("riskScore", riskScore),
		zap.Bool("approved", approved),
		zap.Strings("failures", failures))

	return summary
}

// recommend buckets the quality score; any unapproved run is REJECTED
// no matter how high the score.
func recommend(quality float64, approved bool) types.Recommendation {
	if !approved {
		return types.RecommendationRejected
	}
	switch {
	case quality >= 90:
		return types.RecommendationExcellent
	case quality >= 80:
		return types.RecommendationGood
	case quality >= 70:
		return types.RecommendationAcceptable
	default:
		return types.RecommendationMarginal
	}
}

func riskLevel(riskScore float64) types.RiskLevel {
	switch {
	case riskScore < 20:
		return types.RiskVeryLow
	case riskScore < 40:
		return types.RiskLow
	case riskScore < 60:
		return types.RiskMedium
	case riskScore < 80:
		return types.RiskHigh
	default:
		return types.RiskVeryHigh
	}
}

// renderText builds the human-readable verdict.
func (a *Aggregator) renderText(summary *types.ValidationSummary, results map[string]types.ComponentResult, hasCritical bool) string {
	var b strings.Builder

	if summary.Approved {
		fmt.Fprintf(&b, "Strategy approved with quality score %.1f (%s). ",
			summary.QualityScore, summary.Recommendation)
	} else {
		fmt.Fprintf(&b, "Strategy not approved; quality score %.1f (%s). ",
			summary.QualityScore, summary.Recommendation)
	}

	if len(summary.Failures) > 0 {
		fmt.Fprintf(&b, "Failed checks: %s. ", strings.Join(summary.Failures, ", "))
	}
	if hasCritical {
		b.WriteString("Critical issues present: ")
		var msgs []string
		for _, name := range sortedKeys(results) {
			for _, iss := range results[name].Issues {
				if iss.Severity == types.SeverityCritical {
					msgs = append(msgs, iss.Message)
				}
			}
		}
		b.WriteString(strings.Join(msgs, "; "))
		b.WriteString(". ")
	}
	fmt.Fprintf(&b, "Risk level: %s.", summary.RiskLevel)

	return b.String()
}

func sortedKeys(results map[string]types.ComponentResult) []string {
	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
