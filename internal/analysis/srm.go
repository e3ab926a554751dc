package analysis

import (
	"github.com/Usaidkhxn/LaunchLens/internal/stats"
)

// Granularity is the unit an SRM check counts.
type Granularity string

const (
	GranularityUser    Granularity = "user"
	GranularitySession Granularity = "session"
)

// SessionSRMNote accompanies every session-level SRM result.
const SessionSRMNote = "session-level imbalance can occur under correct user randomization because of activity differences between arms; diagnostic only"

// SRMResult is one chi-square goodness-of-fit check of the observed split.
type SRMResult struct {
	Granularity   Granularity   `json:"granularity" yaml:"granularity"`
	Arms          []string      `json:"arms" yaml:"arms"`
	Observed      []int         `json:"observed" yaml:"observed"`
	Expected      []float64     `json:"expected" yaml:"expected"`
	Allocation    []float64     `json:"allocation" yaml:"allocation"`
	ChiSquare     float64       `json:"chi_square" yaml:"chi_square"`
	DF            int           `json:"df" yaml:"df"`
	PValue        float64       `json:"p_value" yaml:"p_value"`
	Status        Status        `json:"status" yaml:"status"`
	Computability Computability `json:"computability" yaml:"computability"`
	Note          string        `json:"note,omitempty" yaml:"note,omitempty"`
}

// CheckSRM compares observed per-arm counts against the allocation ratios
// (same order as arms). Status is Flag when p < alpha.
func CheckSRM(g Granularity, arms []string, observed []int, allocation []float64, alpha float64) SRMResult {
	res := SRMResult{
		Granularity: g,
		Arms:        append([]string(nil), arms...),
		Observed:    append([]int(nil), observed...),
		Allocation:  normalise(allocation),
		DF:          len(arms) - 1,
	}
	if g == GranularitySession {
		res.Note = SessionSRMNote
	}

	gof, err := stats.ChiSquareGOF(observed, allocation)
	if err != nil {
		res.Status = StatusNA
		res.Computability = NonComputable
		if res.Note == "" {
			res.Note = err.Error()
		}
		return res
	}

	res.Expected = gof.Expected
	res.ChiSquare = gof.Statistic
	res.DF = gof.DF
	res.PValue = gof.PValue
	res.Computability = Computable
	res.Status = StatusOK
	if gof.PValue < alpha {
		res.Status = StatusFlag
	}
	return res
}

func normalise(ratios []float64) []float64 {
	var sum float64
	for _, r := range ratios {
		sum += r
	}
	out := make([]float64, len(ratios))
	if sum <= 0 {
		return out
	}
	for i, r := range ratios {
		out[i] = r / sum
	}
	return out
}
