package scenarios

import (
	"github.com/atlas-desktop/strategy-validator/pkg/types"
)

// ReplayResult is the outcome of running a strategy's rules over one
// price path.
type ReplayResult struct {
	TotalReturn float64
	MaxDrawdown float64
	Trades      int
}

const defaultLookback = 14

// Replay executes the strategy's entry and exit rules against a price
// path and returns the resulting equity outcome. The engine holds a
// single long position: it enters when every entry condition is true,
// and exits when any exit condition fires or the stop-loss level is
// breached. tradeCost is the round-trip cost applied per trade as a
// fraction of position value.
func Replay(strategy *types.StrategyDefinition, prices []float64, tradeCost float64) ReplayResult {
	warmup := maxLookback(strategy)
	if len(prices) <= warmup+1 {
		return ReplayResult{}
	}

	equity := 1.0
	peak := 1.0
	maxDD := 0.0
	trades := 0

	inPosition := false
	entryPrice := 0.0
	lastPrice := 0.0

	stopLevel := 0.0
	if strategy.StopLoss != nil {
		stopLevel = *strategy.StopLoss
	}

	markDrawdown := func() {
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

	closePosition := func(price float64) {
		equity *= price / lastPrice
		equity *= 1 - tradeCost
		inPosition = false
		trades++
		markDrawdown()
	}

	for i := warmup; i < len(prices); i++ {
		price := prices[i]

		if inPosition {
			// Mark to market before evaluating rules.
			equity *= price / lastPrice
			lastPrice = price
			markDrawdown()

			stopped := stopLevel > 0 && price <= entryPrice*(1-stopLevel)
			if stopped || anyTrue(strategy.ExitConditions, prices, i) {
				equity *= 1 - tradeCost
				inPosition = false
				trades++
				markDrawdown()
			}
			continue
		}

		if allTrue(strategy.EntryConditions, prices, i) {
			inPosition = true
			entryPrice = price
			lastPrice = price
		}
	}

	if inPosition {
		closePosition(prices[len(prices)-1])
	}

	return ReplayResult{
		TotalReturn: equity - 1,
		MaxDrawdown: maxDD,
		Trades:      trades,
	}
}

func maxLookback(strategy *types.StrategyDefinition) int {
	max := defaultLookback
	for _, c := range strategy.EntryConditions {
		if c.Lookback > max {
			max = c.Lookback
		}
	}
	for _, c := range strategy.ExitConditions {
		if c.Lookback > max {
			max = c.Lookback
		}
	}
	return max
}

func allTrue(conds []types.Condition, prices []float64, i int) bool {
	if len(conds) == 0 {
		return false
	}
	for _, c := range conds {
		if !evaluate(c, prices, i) {
			return false
		}
	}
	return true
}

func anyTrue(conds []types.Condition, prices []float64, i int) bool {
	for _, c := range conds {
		if evaluate(c, prices, i) {
			return true
		}
	}
	return false
}

func evaluate(c types.Condition, prices []float64, i int) bool {
	cur, ok := indicatorValue(c.Indicator, prices, i, c.Lookback)
	if !ok {
		return false
	}

	switch c.Operator {
	case "gt":
		return cur > c.Value
	case "lt":
		return cur < c.Value
	case "cross_above":
		prev, ok := indicatorValue(c.Indicator, prices, i-1, c.Lookback)
		return ok && prev <= c.Value && cur > c.Value
	case "cross_below":
		prev, ok := indicatorValue(c.Indicator, prices, i-1, c.Lookback)
		return ok && prev >= c.Value && cur < c.Value
	}
	return false
}

// indicatorValue computes the indicator at index i. Momentum and sma
// are expressed as fractional distances so condition values carry the
// same meaning across price scales.
func indicatorValue(indicator string, prices []float64, i int, lookback int) (float64, bool) {
	if lookback <= 0 {
		lookback = defaultLookback
	}
	if i < lookback || i >= len(prices) {
		return 0, false
	}

	switch indicator {
	case "momentum":
		base := prices[i-lookback]
		if base == 0 {
			return 0, false
		}
		return prices[i]/base - 1, true
	case "sma":
		sum := 0.0
		for j := i - lookback + 1; j <= i; j++ {
			sum += prices[j]
		}
		sma := sum / float64(lookback)
		if sma == 0 {
			return 0, false
		}
		return prices[i]/sma - 1, true
	case "rsi":
		return rsi(prices, i, lookback), true
	case "price":
		return prices[i], true
	}
	return 0, false
}

// rsi is the standard Wilder relative strength index over the lookback
// window ending at index i.
func rsi(prices []float64, i, lookback int) float64 {
	gains := 0.0
	losses := 0.0
	for j := i - lookback + 1; j <= i; j++ {
		change := prices[j] - prices[j-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	if losses == 0 {
		if gains == 0 {
			return 50
		}
		return 100
	}
	rs := gains / losses
	return 100 - 100/(1+rs)
}
