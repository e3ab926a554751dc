package analysis

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Direction says which way a guardrail metric regresses.
type Direction string

const (
	LowerIsWorse  Direction = "lower_is_worse"
	HigherIsWorse Direction = "higher_is_worse"
)

// ThresholdMode selects whether the threshold applies to the relative or the
// absolute difference.
type ThresholdMode string

const (
	ModeRelative ThresholdMode = "relative"
	ModeAbsolute ThresholdMode = "absolute"
)

// Gate selects whether a beyond-threshold regression alone flags the
// guardrail (practical) or whether its CI must also exclude zero (significant).
type Gate string

const (
	GatePractical   Gate = "practical"
	GateSignificant Gate = "significant"
)

// GuardrailPolicy is a regression policy. An empty Direction is taken from the
// metric definition.
type GuardrailPolicy struct {
	Direction Direction     `mapstructure:"direction" json:"direction,omitempty" yaml:"direction,omitempty"`
	Mode      ThresholdMode `mapstructure:"mode" json:"mode" yaml:"mode"`
	Threshold float64       `mapstructure:"threshold" json:"threshold" yaml:"threshold"`
	Gate      Gate          `mapstructure:"gate" json:"gate" yaml:"gate"`
}

// DefaultGuardrailPolicy flags a 5% relative regression regardless of significance.
func DefaultGuardrailPolicy() GuardrailPolicy {
	return GuardrailPolicy{Mode: ModeRelative, Threshold: 0.05, Gate: GatePractical}
}

func (p GuardrailPolicy) Validate() error {
	switch p.Direction {
	case "", LowerIsWorse, HigherIsWorse:
	default:
		return eris.Wrapf(ErrInvalidConfig, "guardrail direction %q", p.Direction)
	}
	switch p.Mode {
	case ModeRelative, ModeAbsolute:
	default:
		return eris.Wrapf(ErrInvalidConfig, "guardrail mode %q", p.Mode)
	}
	switch p.Gate {
	case GatePractical, GateSignificant:
	default:
		return eris.Wrapf(ErrInvalidConfig, "guardrail gate %q", p.Gate)
	}
	if p.Threshold < 0 {
		return eris.Wrapf(ErrInvalidConfig, "guardrail threshold %v is negative", p.Threshold)
	}
	return nil
}

// Inherit fills the fields p leaves empty from base. Threshold is always
// taken from p.
func (p GuardrailPolicy) Inherit(base GuardrailPolicy) GuardrailPolicy {
	if p.Direction == "" {
		p.Direction = base.Direction
	}
	if p.Mode == "" {
		p.Mode = base.Mode
	}
	if p.Gate == "" {
		p.Gate = base.Gate
	}
	return p
}

// GuardrailPolicies is a global default plus per-metric overrides. An
// override inherits the fields it leaves empty from Default.
type GuardrailPolicies struct {
	Default   GuardrailPolicy            `mapstructure:"default" json:"default" yaml:"default"`
	Overrides map[string]GuardrailPolicy `mapstructure:"overrides" json:"overrides,omitempty" yaml:"overrides,omitempty"`
}

// For returns the policy in effect for metric.
func (p GuardrailPolicies) For(metric string) GuardrailPolicy {
	if o, ok := p.Overrides[metric]; ok {
		return o.Inherit(p.Default)
	}
	return p.Default
}

func (p GuardrailPolicies) Validate() error {
	if err := p.Default.Validate(); err != nil {
		return err
	}
	for name, o := range p.Overrides {
		if err := o.Inherit(p.Default).Validate(); err != nil {
			return eris.Wrapf(err, "override %s", name)
		}
	}
	return nil
}

// GuardrailResult is the verdict on one guardrail row. Degradation is the
// change in the worsening direction (positive means worse), in the policy's mode.
type GuardrailResult struct {
	Metric      string          `json:"metric" yaml:"metric"`
	Policy      GuardrailPolicy `json:"policy" yaml:"policy"`
	Degradation float64         `json:"degradation" yaml:"degradation"`
	Status      Status          `json:"status" yaml:"status"`
	Reason      string          `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// EvaluateGuardrail applies policy to row.
func EvaluateGuardrail(row ReadoutRow, policy GuardrailPolicy) GuardrailResult {
	if policy.Direction == "" {
		policy.Direction = LowerIsWorse
		if row.LowerIsBetter {
			policy.Direction = HigherIsWorse
		}
	}
	res := GuardrailResult{Metric: row.Metric, Policy: policy}

	if !row.Computable() {
		res.Status = StatusNA
		res.Reason = "metric is non-computable: " + row.Reason
		return res
	}

	change := row.AbsDiff
	if policy.Mode == ModeRelative {
		if !row.RelDiffDefined {
			res.Status = StatusNA
			res.Reason = "relative change undefined for a zero control value"
			return res
		}
		change = row.RelDiff
	}
	res.Degradation = change
	if policy.Direction == LowerIsWorse {
		res.Degradation = -change
	}

	res.Status = StatusOK
	if res.Degradation <= policy.Threshold {
		return res
	}

	if policy.Gate == GateSignificant && !regressionSignificant(row, policy.Direction) {
		res.Reason = fmt.Sprintf("regression beyond %s threshold but CI includes zero", thresholdLabel(policy))
		return res
	}
	res.Status = StatusFlag
	res.Reason = fmt.Sprintf("regression beyond %s threshold", thresholdLabel(policy))
	return res
}

func regressionSignificant(row ReadoutRow, d Direction) bool {
	if d == LowerIsWorse {
		return row.CIHigh < 0
	}
	return row.CILow > 0
}

func thresholdLabel(p GuardrailPolicy) string {
	if p.Mode == ModeRelative {
		return fmt.Sprintf("%.2f%% relative", p.Threshold*100)
	}
	return fmt.Sprintf("%.4f absolute", p.Threshold)
}
