// Package scenarios re-executes a strategy's rule set against synthetic
// market paths: canonical regime scenarios for consistency scoring and
// adverse shock scenarios for stress testing.
package scenarios

import (
	"math"
	"math/rand"
)

// PathParams parameterizes a synthetic price path.
type PathParams struct {
	Length       int
	InitialPrice float64
	Volatility   float64 // annualized
	Drift        float64 // annualized
	Seed         int64
}

// PathGenerator produces synthetic price paths. The default is a
// geometric random walk; tests and external collaborators may supply
// their own.
type PathGenerator interface {
	Generate(params PathParams) []float64
}

// GBMGenerator generates geometric Brownian motion paths with daily
// steps.
type GBMGenerator struct{}

// NewGBMGenerator creates the default path generator.
func NewGBMGenerator() *GBMGenerator {
	return &GBMGenerator{}
}

// Generate builds a price path of the requested length. The same seed
// always yields the same path.
func (g *GBMGenerator) Generate(params PathParams) []float64 {
	if params.Length <= 0 {
		return nil
	}

	rng := rand.New(rand.NewSource(params.Seed))
	dt := 1.0 / 252.0

	prices := make([]float64, params.Length)
	prices[0] = params.InitialPrice
	for i := 1; i < params.Length; i++ {
		eps := rng.NormFloat64()
		step := (params.Drift-0.5*params.Volatility*params.Volatility)*dt +
			params.Volatility*math.Sqrt(dt)*eps
		prices[i] = prices[i-1] * math.Exp(step)
	}

	return prices
}
