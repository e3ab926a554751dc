package stats

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Sample summarises one arm of a continuous metric.
// Variance is the unbiased (n-1) sample variance.
type Sample struct {
	N        int
	Mean     float64
	Variance float64
}

// WelchResult compares the treatment mean against the control mean.
type WelchResult struct {
	Diff   float64 // mean_t - mean_c
	SE     float64
	T      float64
	DF     float64
	CILow  float64
	CIHigh float64
	PValue float64

	// Degenerate is set when one arm had zero variance and contributed
	// nothing to the standard error.
	Degenerate bool
}

// Welch performs a two-sided Welch unequal-variance t-test of treatment
// against control, with Welch–Satterthwaite degrees of freedom.
//
// An arm with zero (or rounding-negative) variance contributes 0 to the
// standard error and marks the result Degenerate. When both arms are
// constant ErrZeroVariance is returned.
func Welch(control, treatment Sample, confidence float64) (WelchResult, error) {
	if err := validConfidence(confidence); err != nil {
		return WelchResult{}, err
	}
	if control.N == 0 || treatment.N == 0 {
		return WelchResult{}, ErrEmptyArm
	}
	if control.N < 2 || treatment.N < 2 {
		return WelchResult{}, ErrTooFewSamples
	}

	vc := math.Max(control.Variance, 0)
	vt := math.Max(treatment.Variance, 0)
	if vc == 0 && vt == 0 {
		return WelchResult{}, ErrZeroVariance
	}

	nc, nt := float64(control.N), float64(treatment.N)
	wc, wt := vc/nc, vt/nt
	se := math.Sqrt(wc + wt)

	// The zero-variance arm drops out of both sums, leaving df = n-1 of the other.
	dfDen := wc*wc/(nc-1) + wt*wt/(nt-1)
	df := (wc + wt) * (wc + wt) / dfDen

	diff := treatment.Mean - control.Mean
	t := diff / se
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	tcrit := dist.Quantile((1 + confidence) / 2)

	return WelchResult{
		Diff:       diff,
		SE:         se,
		T:          t,
		DF:         df,
		CILow:      diff - tcrit*se,
		CIHigh:     diff + tcrit*se,
		PValue:     clampProbability(2 * dist.Survival(math.Abs(t))),
		Degenerate: vc == 0 || vt == 0,
	}, nil
}
