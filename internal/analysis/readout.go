package analysis

import (
	"errors"

	"github.com/Usaidkhxn/LaunchLens/internal/metrics"
	"github.com/Usaidkhxn/LaunchLens/internal/stats"
)

// ReadoutRow is one evaluated metric. Diff, RelDiff, CI and PValue are only
// meaningful when Status is not NonComputable; RelDiff additionally requires
// RelDiffDefined. Per-arm values are meaningful when that arm's N is positive.
type ReadoutRow struct {
	Metric         string        `json:"metric" yaml:"metric"`
	Kind           metrics.Kind  `json:"kind" yaml:"kind"`
	Role           metrics.Role  `json:"role" yaml:"role"`
	LowerIsBetter  bool          `json:"lower_is_better,omitempty" yaml:"lower_is_better,omitempty"`
	Control        float64       `json:"control" yaml:"control"`
	Treatment      float64       `json:"treatment" yaml:"treatment"`
	ControlN       int           `json:"control_n" yaml:"control_n"`
	TreatmentN     int           `json:"treatment_n" yaml:"treatment_n"`
	AbsDiff        float64       `json:"abs_diff" yaml:"abs_diff"`
	RelDiff        float64       `json:"rel_diff" yaml:"rel_diff"`
	RelDiffDefined bool          `json:"rel_diff_defined" yaml:"rel_diff_defined"`
	CILow          float64       `json:"ci_low" yaml:"ci_low"`
	CIHigh         float64       `json:"ci_high" yaml:"ci_high"`
	PValue         float64       `json:"p_value" yaml:"p_value"`
	Status         Computability `json:"status" yaml:"status"`
	Reason         string        `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Computable reports whether the lift, CI and p-value are usable.
func (r ReadoutRow) Computable() bool {
	return r.Status != NonComputable
}

// Favorable reports whether the CI lies entirely on the improving side of zero.
func (r ReadoutRow) Favorable() bool {
	if !r.Computable() {
		return false
	}
	if r.LowerIsBetter {
		return r.CIHigh < 0
	}
	return r.CILow > 0
}

// Unfavorable reports whether the CI lies entirely on the worsening side of zero.
func (r ReadoutRow) Unfavorable() bool {
	if !r.Computable() {
		return false
	}
	if r.LowerIsBetter {
		return r.CILow > 0
	}
	return r.CIHigh < 0
}

// EvaluateMetric runs the test matching def's kind on two arms.
func EvaluateMetric(def metrics.Definition, control, treatment VariantCounts, confidence float64) ReadoutRow {
	row := ReadoutRow{
		Metric:        def.Name,
		Kind:          def.Kind,
		Role:          def.Role,
		LowerIsBetter: def.LowerIsBetter,
	}
	mc, mt := control.Metrics[def.Name], treatment.Metrics[def.Name]
	row.ControlN, row.TreatmentN = mc.Denominator, mt.Denominator

	switch def.Kind {
	case metrics.KindProportion:
		return proportionRow(row, mc, mt, confidence)
	case metrics.KindContinuous:
		return continuousRow(row, mc, mt, confidence)
	}
	row.Status = NonComputable
	row.Reason = "unknown metric kind"
	return row
}

func proportionRow(row ReadoutRow, mc, mt MetricCounts, confidence float64) ReadoutRow {
	if mc.Denominator > 0 {
		row.Control = float64(mc.Numerator) / float64(mc.Denominator)
	}
	if mt.Denominator > 0 {
		row.Treatment = float64(mt.Numerator) / float64(mt.Denominator)
	}
	if reason := zeroDenominator(mc.Denominator, mt.Denominator); reason != "" {
		row.Status = NonComputable
		row.Reason = reason
		return row
	}

	res, err := stats.TwoProportion(mc.Numerator, mc.Denominator, mt.Numerator, mt.Denominator, confidence)
	if err != nil {
		row.Status = NonComputable
		row.Reason = err.Error()
		return row
	}
	row.Status = Computable
	row.AbsDiff = res.Diff
	row.RelDiff, row.RelDiffDefined = res.RelDiff, res.RelDiffDefined
	row.CILow, row.CIHigh = res.CILow, res.CIHigh
	row.PValue = res.PValue
	return row
}

func continuousRow(row ReadoutRow, mc, mt MetricCounts, confidence float64) ReadoutRow {
	sc, st := mc.Sample(), mt.Sample()
	row.Control, row.Treatment = sc.Mean, st.Mean
	if reason := zeroDenominator(mc.Denominator, mt.Denominator); reason != "" {
		row.Status = NonComputable
		row.Reason = reason
		return row
	}

	res, err := stats.Welch(sc, st, confidence)
	switch {
	case errors.Is(err, stats.ErrTooFewSamples):
		row.Status = NonComputable
		row.Reason = "fewer than two sessions in an arm"
		return row
	case errors.Is(err, stats.ErrZeroVariance):
		row.Status = NonComputable
		row.Reason = "zero variance in both arms"
		return row
	case err != nil:
		row.Status = NonComputable
		row.Reason = err.Error()
		return row
	}

	row.Status = Computable
	if res.Degenerate {
		row.Status = DegenerateVariance
		row.Reason = "zero variance in one arm"
	}
	row.AbsDiff = res.Diff
	if sc.Mean != 0 {
		row.RelDiff, row.RelDiffDefined = res.Diff/sc.Mean, true
	}
	row.CILow, row.CIHigh = res.CILow, res.CIHigh
	row.PValue = res.PValue
	return row
}

func zeroDenominator(nc, nt int) string {
	switch {
	case nc == 0 && nt == 0:
		return "zero denominator in both arms"
	case nc == 0:
		return "zero denominator in control"
	case nt == 0:
		return "zero denominator in treatment"
	}
	return ""
}
