package stats

import (
	"math"

	"github.com/rotisserie/eris"
)

// ProportionResult compares a treatment rate against a control rate.
type ProportionResult struct {
	Control   float64 // x_c / n_c
	Treatment float64 // x_t / n_t
	Diff      float64 // Treatment - Control

	// RelDiff is Diff / Control. It is only meaningful when RelDiffDefined
	// is true; a zero control rate leaves it undefined.
	RelDiff        float64
	RelDiffDefined bool

	CILow  float64
	CIHigh float64
	Z      float64
	PValue float64
}

// TwoProportion performs a two-sided two-proportion z-test of
// treatment (xt/nt) against control (xc/nc).
//
// The test statistic uses the pooled standard error; the confidence
// interval for the difference uses the unpooled Wald standard error.
// ErrEmptyArm is returned when either arm has no trials.
func TwoProportion(xc, nc, xt, nt int, confidence float64) (ProportionResult, error) {
	if err := validConfidence(confidence); err != nil {
		return ProportionResult{}, err
	}
	if xc < 0 || xt < 0 || nc < 0 || nt < 0 || xc > nc || xt > nt {
		return ProportionResult{}, eris.Wrapf(ErrInvalidInput, "counts %d/%d vs %d/%d", xc, nc, xt, nt)
	}
	if nc == 0 || nt == 0 {
		return ProportionResult{}, ErrEmptyArm
	}

	pc := float64(xc) / float64(nc)
	pt := float64(xt) / float64(nt)
	diff := pt - pc

	r := ProportionResult{
		Control:   pc,
		Treatment: pt,
		Diff:      diff,
		PValue:    1,
	}
	if pc > 0 {
		r.RelDiff = diff / pc
		r.RelDiffDefined = true
	}

	// Unpooled standard error for the interval.
	seCI := math.Sqrt(pc*(1-pc)/float64(nc) + pt*(1-pt)/float64(nt))
	z := ZScore(confidence)
	r.CILow, r.CIHigh = diff-z*seCI, diff+z*seCI

	// Pooled standard error under H0: pc == pt.
	pooled := float64(xc+xt) / float64(nc+nt)
	sePooled := math.Sqrt(pooled * (1 - pooled) * (1/float64(nc) + 1/float64(nt)))
	if sePooled == 0 {
		// Both arms are all-failure or all-success, so diff is exactly zero.
		return r, nil
	}

	r.Z = diff / sePooled
	r.PValue = TwoSidedNormalP(r.Z)
	return r, nil
}
