// Package analysis turns session facts into an experiment readout: per-metric
// lift tests, sample-ratio checks, guardrail flags, daily trend rows and the
// ship/hold/continue decision.
package analysis

import "github.com/rotisserie/eris"

var (
	// ErrNotFound means the experiment has no rows in the analysis window.
	ErrNotFound = eris.New("experiment not found")
	// ErrUnexpectedVariant means a fact row carries a label that is not one of
	// the configured arms.
	ErrUnexpectedVariant = eris.New("unexpected variant")
	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = eris.New("invalid analysis config")
)

// Computability marks whether a result could be computed from its inputs.
type Computability string

const (
	Computable         Computability = "computable"
	NonComputable      Computability = "non_computable"
	DegenerateVariance Computability = "degenerate_variance"
)

// Status is the OK/Flag outcome of an SRM check or guardrail. NA is used
// when the underlying result is non-computable.
type Status string

const (
	StatusOK   Status = "OK"
	StatusFlag Status = "Flag"
	StatusNA   Status = "NA"
)
