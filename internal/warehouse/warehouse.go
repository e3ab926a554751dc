// Package warehouse exposes the aggregated-counts relations the readout engine
// consumes: session facts, daily rollups and data-quality checks.
package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/Usaidkhxn/LaunchLens/internal/metrics"
)

// DateLayout is the calendar-date encoding used by every relation.
const DateLayout = "2006-01-02"

// ErrSchemaMismatch is matched by every *SchemaError.
var ErrSchemaMismatch = eris.New("schema mismatch")

// SchemaError names the relation or column that is missing. Column is empty
// when the whole relation is absent.
type SchemaError struct {
	Relation string
	Column   string
}

func (e *SchemaError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("schema mismatch: relation %s not found", e.Relation)
	}
	return fmt.Sprintf("schema mismatch: column %s.%s not found", e.Relation, e.Column)
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// Provider answers the queries the readout needs. Implementations return a
// complete snapshot per call and never retry.
type Provider interface {
	CheckSchema(ctx context.Context) error
	Experiments(ctx context.Context) ([]ExperimentSummary, error)
	SessionFacts(ctx context.Context, experimentID string, w Window) ([]SessionFact, error)
	DailyRollups(ctx context.Context, experimentID string, w Window) ([]DailyRollup, error)
	DataQualityChecks(ctx context.Context) ([]DQCheck, error)
	Close() error
}

// SessionFact is one (user, session) row of fact_sessions.
type SessionFact struct {
	UserID           string
	SessionID        string
	ExperimentID     string
	Variant          string
	EventDate        time.Time
	ExperimentPeriod bool
	Impression       bool
	Click            bool
	AddToCart        bool
	Purchase         bool
	Revenue          decimal.Decimal
}

// Reached reports whether the session got as far as the given funnel stage.
func (f SessionFact) Reached(s metrics.Stage) bool {
	switch s {
	case metrics.StageSession:
		return true
	case metrics.StageImpression:
		return f.Impression
	case metrics.StageClick:
		return f.Click
	case metrics.StageAddToCart:
		return f.AddToCart
	case metrics.StagePurchase:
		return f.Purchase
	}
	return false
}

// DailyRollup is one (date, variant) row of daily_metrics.
type DailyRollup struct {
	EventDate        time.Time
	ExperimentID     string
	Variant          string
	ExperimentPeriod bool
	Sessions         int
	Impressions      int
	Clicks           int
	AddToCarts       int
	Purchases        int
	Revenue          decimal.Decimal
}

// Stage returns the session count that reached s on that day.
func (r DailyRollup) Stage(s metrics.Stage) int {
	switch s {
	case metrics.StageSession:
		return r.Sessions
	case metrics.StageImpression:
		return r.Impressions
	case metrics.StageClick:
		return r.Clicks
	case metrics.StageAddToCart:
		return r.AddToCarts
	case metrics.StagePurchase:
		return r.Purchases
	}
	return 0
}

// DQCheck is one row of dq_checks.
type DQCheck struct {
	Name      string `json:"check_name" yaml:"check_name"`
	Observed  int64  `json:"observed" yaml:"observed"`
	Threshold int64  `json:"threshold" yaml:"threshold"`
	Pass      bool   `json:"pass" yaml:"pass"`
}

// ExperimentSummary describes one experiment present in fact_sessions.
type ExperimentSummary struct {
	ID        string    `json:"id" yaml:"id"`
	Sessions  int       `json:"sessions" yaml:"sessions"`
	Users     int       `json:"users" yaml:"users"`
	FirstDate time.Time `json:"first_date" yaml:"first_date"`
	LastDate  time.Time `json:"last_date" yaml:"last_date"`
}

// Window is an inclusive event_date range. A zero bound is open.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether d falls inside the window.
func (w Window) Contains(d time.Time) bool {
	if !w.Start.IsZero() && d.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && d.After(w.End) {
		return false
	}
	return true
}

// bounds renders the window as date strings with open ends widened.
func (w Window) bounds() (string, string) {
	start, end := "0001-01-01", "9999-12-31"
	if !w.Start.IsZero() {
		start = w.Start.Format(DateLayout)
	}
	if !w.End.IsZero() {
		end = w.End.Format(DateLayout)
	}
	return start, end
}

func (w Window) String() string {
	start, end := w.bounds()
	return start + ".." + end
}

// ParseDate parses a YYYY-MM-DD calendar date in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "parse date %q", s)
	}
	return t, nil
}

type relation struct {
	name    string
	columns []string
}

var relations = []relation{
	{"fact_sessions", []string{
		"user_id", "session_id", "experiment_id", "variant", "event_date", "is_experiment_period",
		"has_impression", "has_click", "has_add_to_cart", "has_purchase", "revenue",
	}},
	{"daily_metrics", []string{
		"event_date", "experiment_id", "variant", "is_experiment_period", "sessions",
		"sessions_with_impression", "sessions_with_click", "sessions_with_add_to_cart",
		"sessions_with_purchase", "revenue",
	}},
	{"dq_checks", []string{"check_name", "observed", "threshold", "pass"}},
}

func relationNames() []string {
	names := make([]string, len(relations))
	for i, r := range relations {
		names[i] = r.name
	}
	return names
}

// verifySchema compares the columns a store reports per relation against the
// required set and returns the first gap found.
func verifySchema(present map[string]map[string]bool) error {
	for _, r := range relations {
		cols, ok := present[r.name]
		if !ok || len(cols) == 0 {
			return &SchemaError{Relation: r.name}
		}
		for _, c := range r.columns {
			if !cols[c] {
				return &SchemaError{Relation: r.name, Column: c}
			}
		}
	}
	return nil
}
