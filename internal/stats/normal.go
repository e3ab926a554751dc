package stats

import (
	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrEmptyArm is returned when one arm has no trials or samples.
	ErrEmptyArm = eris.New("stats: arm has no samples")
	// ErrTooFewSamples is returned when a sample variance cannot be estimated.
	ErrTooFewSamples = eris.New("stats: fewer than two samples in an arm")
	// ErrZeroVariance is returned when both arms of a difference-of-means test are constant.
	ErrZeroVariance = eris.New("stats: both arms have zero variance")
	// ErrInvalidInput is returned for counts or ratios that cannot describe a sample.
	ErrInvalidInput = eris.New("stats: invalid input")
)

// NormalCDF is the standard normal cumulative distribution function.
func NormalCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// TwoSidedNormalP returns the two-sided p-value 2·(1 − Φ(|z|)).
func TwoSidedNormalP(z float64) float64 {
	if z < 0 {
		z = -z
	}
	return clampProbability(2 * distuv.UnitNormal.Survival(z))
}

// ZScore returns the two-sided critical value for a confidence level.
// Common values:
//   - 0.90 -> 1.645
//   - 0.95 -> 1.960
//   - 0.99 -> 2.576
func ZScore(confidence float64) float64 {
	return distuv.UnitNormal.Quantile((1 + confidence) / 2)
}

func clampProbability(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

func validConfidence(confidence float64) error {
	if !(confidence > 0 && confidence < 1) {
		return eris.Wrapf(ErrInvalidInput, "confidence %v outside (0, 1)", confidence)
	}
	return nil
}
