// Package sampling decides, once per client, whether that client emits
// telemetry at all.
package sampling

import (
	"math"
	"math/rand/v2"
)

// DefaultRate is the sample rate used when none is configured.
const DefaultRate = 0.1

// Source draws uniform values in [0, 1). *rand.Rand from math/rand/v2
// satisfies it.
type Source interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// Global returns a Source backed by the math/rand/v2 top-level generator.
func Global() Source { return globalSource{} }

// Rate returns a pointer to r for use as an explicit rate.
func Rate(r float64) *float64 { return &r }

// Clamp maps a configured rate onto [0, 1]. A nil rate is DefaultRate
// and NaN is 0.
func Clamp(rate *float64) float64 {
	if rate == nil {
		return DefaultRate
	}
	switch r := *rate; {
	case math.IsNaN(r), r <= 0:
		return 0
	case r >= 1:
		return 1
	default:
		return r
	}
}

// Decide draws once from src and reports whether the draw falls below
// the clamped rate. A rate of 0 never samples and a rate of 1 always
// does, whatever the source returns.
func Decide(rate *float64, src Source) bool {
	if src == nil {
		src = Global()
	}
	return src.Float64() < Clamp(rate)
}
