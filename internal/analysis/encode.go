package analysis

import (
	"encoding/json"

	"github.com/Usaidkhxn/LaunchLens/internal/metrics"
)

// defined returns nil for an undefined value. Undefined values are encoded
// as null, never as zero.
func defined(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

type readoutRowJSON struct {
	Metric         string        `json:"metric" yaml:"metric"`
	Kind           metrics.Kind  `json:"kind" yaml:"kind"`
	Role           metrics.Role  `json:"role" yaml:"role"`
	LowerIsBetter  bool          `json:"lower_is_better,omitempty" yaml:"lower_is_better,omitempty"`
	Control        *float64      `json:"control" yaml:"control"`
	Treatment      *float64      `json:"treatment" yaml:"treatment"`
	ControlN       int           `json:"control_n" yaml:"control_n"`
	TreatmentN     int           `json:"treatment_n" yaml:"treatment_n"`
	AbsDiff        *float64      `json:"abs_diff" yaml:"abs_diff"`
	RelDiff        *float64      `json:"rel_diff" yaml:"rel_diff"`
	RelDiffDefined bool          `json:"rel_diff_defined" yaml:"rel_diff_defined"`
	CILow          *float64      `json:"ci_low" yaml:"ci_low"`
	CIHigh         *float64      `json:"ci_high" yaml:"ci_high"`
	PValue         *float64      `json:"p_value" yaml:"p_value"`
	Status         Computability `json:"status" yaml:"status"`
	Reason         string        `json:"reason,omitempty" yaml:"reason,omitempty"`
}

func (r ReadoutRow) encoded() readoutRowJSON {
	ok := r.Computable()
	return readoutRowJSON{
		Metric:         r.Metric,
		Kind:           r.Kind,
		Role:           r.Role,
		LowerIsBetter:  r.LowerIsBetter,
		Control:        defined(r.Control, r.ControlN > 0),
		Treatment:      defined(r.Treatment, r.TreatmentN > 0),
		ControlN:       r.ControlN,
		TreatmentN:     r.TreatmentN,
		AbsDiff:        defined(r.AbsDiff, ok),
		RelDiff:        defined(r.RelDiff, ok && r.RelDiffDefined),
		RelDiffDefined: r.RelDiffDefined,
		CILow:          defined(r.CILow, ok),
		CIHigh:         defined(r.CIHigh, ok),
		PValue:         defined(r.PValue, ok),
		Status:         r.Status,
		Reason:         r.Reason,
	}
}

func (r ReadoutRow) MarshalJSON() ([]byte, error) { return json.Marshal(r.encoded()) }

func (r ReadoutRow) MarshalYAML() (any, error) { return r.encoded(), nil }

type srmResultJSON struct {
	Granularity   Granularity   `json:"granularity" yaml:"granularity"`
	Arms          []string      `json:"arms" yaml:"arms"`
	Observed      []int         `json:"observed" yaml:"observed"`
	Expected      []float64     `json:"expected" yaml:"expected"`
	Allocation    []float64     `json:"allocation" yaml:"allocation"`
	ChiSquare     *float64      `json:"chi_square" yaml:"chi_square"`
	DF            int           `json:"df" yaml:"df"`
	PValue        *float64      `json:"p_value" yaml:"p_value"`
	Status        Status        `json:"status" yaml:"status"`
	Computability Computability `json:"computability" yaml:"computability"`
	Note          string        `json:"note,omitempty" yaml:"note,omitempty"`
}

func (r SRMResult) encoded() srmResultJSON {
	ok := r.Computability != NonComputable
	return srmResultJSON{
		Granularity:   r.Granularity,
		Arms:          r.Arms,
		Observed:      r.Observed,
		Expected:      r.Expected,
		Allocation:    r.Allocation,
		ChiSquare:     defined(r.ChiSquare, ok),
		DF:            r.DF,
		PValue:        defined(r.PValue, ok),
		Status:        r.Status,
		Computability: r.Computability,
		Note:          r.Note,
	}
}

func (r SRMResult) MarshalJSON() ([]byte, error) { return json.Marshal(r.encoded()) }

func (r SRMResult) MarshalYAML() (any, error) { return r.encoded(), nil }

type trendValueJSON struct {
	Metric      string        `json:"metric" yaml:"metric"`
	Value       *float64      `json:"value" yaml:"value"`
	Denominator int           `json:"denominator" yaml:"denominator"`
	Status      Computability `json:"status" yaml:"status"`
}

func (v TrendValue) encoded() trendValueJSON {
	return trendValueJSON{
		Metric:      v.Metric,
		Value:       defined(v.Value, v.Status != NonComputable),
		Denominator: v.Denominator,
		Status:      v.Status,
	}
}

func (v TrendValue) MarshalJSON() ([]byte, error) { return json.Marshal(v.encoded()) }

func (v TrendValue) MarshalYAML() (any, error) { return v.encoded(), nil }

type trailingMetricJSON struct {
	Metric        string        `json:"metric" yaml:"metric"`
	Control       *float64      `json:"control" yaml:"control"`
	Treatment     *float64      `json:"treatment" yaml:"treatment"`
	Diff          *float64      `json:"diff" yaml:"diff"`
	ControlDays   int           `json:"control_days" yaml:"control_days"`
	TreatmentDays int           `json:"treatment_days" yaml:"treatment_days"`
	Status        Computability `json:"status" yaml:"status"`
}

func (m TrailingMetric) encoded() trailingMetricJSON {
	return trailingMetricJSON{
		Metric:        m.Metric,
		Control:       defined(m.Control, m.ControlDays > 0),
		Treatment:     defined(m.Treatment, m.TreatmentDays > 0),
		Diff:          defined(m.Diff, m.Status != NonComputable),
		ControlDays:   m.ControlDays,
		TreatmentDays: m.TreatmentDays,
		Status:        m.Status,
	}
}

func (m TrailingMetric) MarshalJSON() ([]byte, error) { return json.Marshal(m.encoded()) }

func (m TrailingMetric) MarshalYAML() (any, error) { return m.encoded(), nil }

type armRateJSON struct {
	Name    string   `json:"name" yaml:"name"`
	Value   *float64 `json:"value" yaml:"value"`
	Low     *float64 `json:"low" yaml:"low"`
	High    *float64 `json:"high" yaml:"high"`
	Defined bool     `json:"defined" yaml:"defined"`
}

func (r ArmRate) encoded() armRateJSON {
	return armRateJSON{
		Name:    r.Name,
		Value:   defined(r.Value, r.Defined),
		Low:     defined(r.Low, r.Defined),
		High:    defined(r.High, r.Defined),
		Defined: r.Defined,
	}
}

func (r ArmRate) MarshalJSON() ([]byte, error) { return json.Marshal(r.encoded()) }

func (r ArmRate) MarshalYAML() (any, error) { return r.encoded(), nil }
