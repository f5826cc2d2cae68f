package domain

import "math"

// ConfidenceModel maps a sample count to a confidence in [0, 1].
// Implementations must be monotonically non-decreasing and return 0 for n <= 0.
type ConfidenceModel interface {
	Name() string
	Confidence(n int) float64
}

// StepConfidence is the fixed step function used for entity profiles.
type StepConfidence struct{}

// Name returns "step".
func (StepConfidence) Name() string { return "step" }

// Confidence returns the step value for n records.
func (StepConfidence) Confidence(n int) float64 {
	switch {
	case n <= 0:
		return 0.0
	case n == 1:
		return 0.3
	case n < 5:
		return 0.5
	case n < 10:
		return 0.7
	case n < 20:
		return 0.85
	default:
		return 1.0
	}
}

// WilsonZ is the 95% normal quantile.
const WilsonZ = 1.96

// WilsonConfidence is the lower Wilson bound at an observed proportion of 1,
// n / (n + z²). It grows smoothly with n instead of in steps.
type WilsonConfidence struct{}

// Name returns "wilson".
func (WilsonConfidence) Name() string { return "wilson" }

// Confidence returns n / (n + z²), rounded to 3 decimals.
func (WilsonConfidence) Confidence(n int) float64 {
	if n <= 0 {
		return 0
	}
	f := float64(n)
	return Round3(f / (f + WilsonZ*WilsonZ))
}

// ConfidenceModelByName resolves a configured model name; unknown names fall back to step.
func ConfidenceModelByName(name string) ConfidenceModel {
	if name == (WilsonConfidence{}).Name() {
		return WilsonConfidence{}
	}
	return StepConfidence{}
}

// LineConfidence scales linearly with group size and saturates at 10 records.
func LineConfidence(groupSize int) float64 {
	if groupSize <= 0 {
		return 0
	}
	return math.Min(1, float64(groupSize)/10)
}

// Round3 rounds to 3 decimal places.
func Round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
