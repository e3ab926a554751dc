package stats

import (
	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat/distuv"
)

// GoodnessOfFit is a chi-square goodness-of-fit outcome.
type GoodnessOfFit struct {
	Expected  []float64
	Statistic float64
	DF        int
	PValue    float64
}

// ChiSquareGOF tests observed counts against an expected allocation.
// ratios need not sum to one; they are normalised. Every ratio must be
// positive. ErrEmptyArm is returned when nothing was observed.
func ChiSquareGOF(observed []int, ratios []float64) (GoodnessOfFit, error) {
	if len(observed) < 2 || len(observed) != len(ratios) {
		return GoodnessOfFit{}, eris.Wrapf(ErrInvalidInput, "%d observed counts for %d ratios", len(observed), len(ratios))
	}

	var total int
	var ratioSum float64
	for i, o := range observed {
		if o < 0 {
			return GoodnessOfFit{}, eris.Wrapf(ErrInvalidInput, "negative count %d", o)
		}
		if !(ratios[i] > 0) {
			return GoodnessOfFit{}, eris.Wrapf(ErrInvalidInput, "allocation ratio %v must be positive", ratios[i])
		}
		total += o
		ratioSum += ratios[i]
	}
	if total == 0 {
		return GoodnessOfFit{}, ErrEmptyArm
	}

	res := GoodnessOfFit{
		Expected: make([]float64, len(observed)),
		DF:       len(observed) - 1,
	}
	for i, o := range observed {
		exp := float64(total) * ratios[i] / ratioSum
		d := float64(o) - exp
		res.Expected[i] = exp
		res.Statistic += d * d / exp
	}

	res.PValue = clampProbability(distuv.ChiSquared{K: float64(res.DF)}.Survival(res.Statistic))
	return res, nil
}
