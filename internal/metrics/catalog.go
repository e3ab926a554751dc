// Package metrics holds the metric catalog: which funnel stages make up each
// readout metric, how it is tested and whether it is the primary success
// metric or a guardrail.
package metrics

import "github.com/rotisserie/eris"

// Kind selects the hypothesis test used for a metric.
type Kind string

const (
	KindProportion Kind = "proportion"
	KindContinuous Kind = "continuous"
)

// Role tags a metric as the decision metric or a regression guardrail.
type Role string

const (
	RolePrimary   Role = "primary"
	RoleGuardrail Role = "guardrail"
)

// Stage is a funnel stage a session may reach. StageSession matches every session.
type Stage string

const (
	StageSession    Stage = "session"
	StageImpression Stage = "impression"
	StageClick      Stage = "click"
	StageAddToCart  Stage = "add_to_cart"
	StagePurchase   Stage = "purchase"
)

// Value is the per-session quantity averaged by a continuous metric.
type Value string

const ValueRevenue Value = "revenue"

// Definition describes one metric.
//
// For proportion metrics the denominator counts sessions that reached
// Denominator and the numerator counts those that additionally reached
// Numerator. Continuous metrics average Value over sessions that reached
// Denominator (StageSession for a per-session mean including zeros).
type Definition struct {
	Name          string `mapstructure:"name" yaml:"name" json:"name"`
	Kind          Kind   `mapstructure:"kind" yaml:"kind" json:"kind"`
	Numerator     Stage  `mapstructure:"numerator" yaml:"numerator,omitempty" json:"numerator,omitempty"`
	Denominator   Stage  `mapstructure:"denominator" yaml:"denominator" json:"denominator"`
	Value         Value  `mapstructure:"value" yaml:"value,omitempty" json:"value,omitempty"`
	Role          Role   `mapstructure:"role" yaml:"role" json:"role"`
	LowerIsBetter bool   `mapstructure:"lower_is_better" yaml:"lower_is_better,omitempty" json:"lower_is_better,omitempty"`
}

// IsPrimary reports whether d is the decision metric.
func (d Definition) IsPrimary() bool { return d.Role == RolePrimary }

// Validate checks that the definition is internally consistent.
func (d Definition) Validate() error {
	if d.Name == "" {
		return eris.New("metric: empty name")
	}
	if !validStage(d.Denominator) {
		return eris.Errorf("metric %s: unknown denominator stage %q", d.Name, d.Denominator)
	}
	switch d.Kind {
	case KindProportion:
		if !validStage(d.Numerator) || d.Numerator == StageSession {
			return eris.Errorf("metric %s: invalid numerator stage %q", d.Name, d.Numerator)
		}
		if d.Numerator == d.Denominator {
			return eris.Errorf("metric %s: numerator and denominator are both %q", d.Name, d.Numerator)
		}
	case KindContinuous:
		if d.Value != ValueRevenue {
			return eris.Errorf("metric %s: unknown value %q", d.Name, d.Value)
		}
	default:
		return eris.Errorf("metric %s: unknown kind %q", d.Name, d.Kind)
	}
	switch d.Role {
	case RolePrimary, RoleGuardrail:
	default:
		return eris.Errorf("metric %s: unknown role %q", d.Name, d.Role)
	}
	return nil
}

func validStage(s Stage) bool {
	switch s {
	case StageSession, StageImpression, StageClick, StageAddToCart, StagePurchase:
		return true
	}
	return false
}

// Catalog is an ordered set of metric definitions.
type Catalog []Definition

// DefaultCatalog returns the built-in funnel metrics.
func DefaultCatalog() Catalog {
	return Catalog{
		{Name: "purchase_rate_per_session", Kind: KindProportion, Numerator: StagePurchase, Denominator: StageSession, Role: RolePrimary},
		{Name: "revenue_per_session", Kind: KindContinuous, Value: ValueRevenue, Denominator: StageSession, Role: RoleGuardrail},
		{Name: "ctr", Kind: KindProportion, Numerator: StageClick, Denominator: StageImpression, Role: RoleGuardrail},
		{Name: "atc_rate", Kind: KindProportion, Numerator: StageAddToCart, Denominator: StageClick, Role: RoleGuardrail},
		{Name: "purchase_rate_given_atc", Kind: KindProportion, Numerator: StagePurchase, Denominator: StageAddToCart, Role: RoleGuardrail},
	}
}

// Lookup returns the definition named name.
func (c Catalog) Lookup(name string) (Definition, bool) {
	for _, d := range c {
		if d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}

// Primary returns the primary metric. Validate guarantees there is exactly one.
func (c Catalog) Primary() (Definition, bool) {
	for _, d := range c {
		if d.IsPrimary() {
			return d, true
		}
	}
	return Definition{}, false
}

// WithPrimary returns a copy of c in which name is the only primary metric.
func (c Catalog) WithPrimary(name string) (Catalog, error) {
	if _, ok := c.Lookup(name); !ok {
		return nil, eris.Errorf("metric: primary metric %q not in catalog", name)
	}
	out := make(Catalog, len(c))
	for i, d := range c {
		if d.Name == name {
			d.Role = RolePrimary
		} else if d.Role == RolePrimary {
			d.Role = RoleGuardrail
		}
		out[i] = d
	}
	return out, nil
}

// Validate checks every definition, name uniqueness and that exactly one
// metric is primary.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return eris.New("metric: empty catalog")
	}
	seen := make(map[string]bool, len(c))
	primaries := 0
	for _, d := range c {
		if err := d.Validate(); err != nil {
			return err
		}
		if seen[d.Name] {
			return eris.Errorf("metric %s: defined twice", d.Name)
		}
		seen[d.Name] = true
		if d.IsPrimary() {
			primaries++
		}
	}
	if primaries != 1 {
		return eris.Errorf("metric: catalog needs exactly one primary metric, found %d", primaries)
	}
	return nil
}
