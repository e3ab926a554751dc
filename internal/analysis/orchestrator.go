package analysis

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Usaidkhxn/LaunchLens/internal/metrics"
	"github.com/Usaidkhxn/LaunchLens/internal/warehouse"
)

// readoutNamespace scopes bundle ids.
var readoutNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("launchlens/readout"))

// Config is everything the engine needs besides the data.
type Config struct {
	Catalog         metrics.Catalog
	Guardrails      GuardrailPolicies
	Alpha           float64
	SRMAlpha        float64
	Control         string
	Treatment       string
	Allocation      map[string]float64
	TrendWindowDays int
	Window          warehouse.Window
}

// DefaultConfig is a 1:1 control/treatment test of the built-in catalog at alpha 0.05.
func DefaultConfig() Config {
	return Config{
		Catalog:         metrics.DefaultCatalog(),
		Guardrails:      GuardrailPolicies{Default: DefaultGuardrailPolicy()},
		Alpha:           0.05,
		SRMAlpha:        0.05,
		Control:         "control",
		Treatment:       "treatment",
		Allocation:      map[string]float64{"control": 0.5, "treatment": 0.5},
		TrendWindowDays: 7,
	}
}

func (c Config) Validate() error {
	if !(c.Alpha > 0 && c.Alpha < 1) {
		return eris.Wrapf(ErrInvalidConfig, "alpha %v not in (0, 1)", c.Alpha)
	}
	if !(c.SRMAlpha > 0 && c.SRMAlpha < 1) {
		return eris.Wrapf(ErrInvalidConfig, "srm alpha %v not in (0, 1)", c.SRMAlpha)
	}
	if c.Control == "" || c.Treatment == "" || c.Control == c.Treatment {
		return eris.Wrapf(ErrInvalidConfig, "arms %q and %q must be distinct and non-empty", c.Control, c.Treatment)
	}
	for _, arm := range c.arms() {
		if r, ok := c.Allocation[arm]; !ok || !(r > 0) {
			return eris.Wrapf(ErrInvalidConfig, "allocation for %s must be positive", arm)
		}
	}
	if len(c.Allocation) != 2 {
		return eris.Wrapf(ErrInvalidConfig, "allocation names %d arms, want 2", len(c.Allocation))
	}
	if c.TrendWindowDays < 1 {
		return eris.Wrapf(ErrInvalidConfig, "trend window %d days", c.TrendWindowDays)
	}
	if !c.Window.Start.IsZero() && !c.Window.End.IsZero() && c.Window.End.Before(c.Window.Start) {
		return eris.Wrapf(ErrInvalidConfig, "window %s ends before it starts", c.Window)
	}
	if err := c.Catalog.Validate(); err != nil {
		return eris.Wrap(ErrInvalidConfig, err.Error())
	}
	return c.Guardrails.Validate()
}

func (c Config) arms() []string { return []string{c.Control, c.Treatment} }

func (c Config) allocation() []float64 {
	return []float64{c.Allocation[c.Control], c.Allocation[c.Treatment]}
}

func (c Config) confidence() float64 { return 1 - c.Alpha }

// Source is the aggregated-counts capability the readout reads from.
type Source interface {
	CheckSchema(ctx context.Context) error
	SessionFacts(ctx context.Context, experimentID string, w warehouse.Window) ([]warehouse.SessionFact, error)
	DataQualityChecks(ctx context.Context) ([]warehouse.DQCheck, error)
}

// Bundle is the complete, immutable result of one readout.
type Bundle struct {
	ID           string              `json:"id" yaml:"id"`
	ExperimentID string              `json:"experiment_id" yaml:"experiment_id"`
	Window       string              `json:"window" yaml:"window"`
	Control      string              `json:"control" yaml:"control"`
	Treatment    string              `json:"treatment" yaml:"treatment"`
	Alpha        float64             `json:"alpha" yaml:"alpha"`
	Counts       []VariantCounts     `json:"counts" yaml:"-"`
	Rows         []ReadoutRow        `json:"rows" yaml:"rows"`
	Guardrails   []GuardrailResult   `json:"guardrails" yaml:"guardrails"`
	UserSRM      SRMResult           `json:"user_srm" yaml:"user_srm"`
	SessionSRM   SRMResult           `json:"session_srm" yaml:"session_srm"`
	Arms         []ArmSummary        `json:"arms" yaml:"arms"`
	Trend        []TrendRow          `json:"trend" yaml:"trend"`
	Trailing     TrailingWindow      `json:"trailing" yaml:"trailing"`
	DataQuality  []warehouse.DQCheck `json:"data_quality,omitempty" yaml:"data_quality,omitempty"`
	Decision     Decision            `json:"decision" yaml:"decision"`
	Notes        []string            `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Row returns the readout row for metric.
func (b *Bundle) Row(metric string) (ReadoutRow, bool) {
	for _, r := range b.Rows {
		if r.Metric == metric {
			return r, true
		}
	}
	return ReadoutRow{}, false
}

// Run computes the readout of experimentID. ErrNotFound and schema mismatches
// are fatal; per-metric problems are carried on the rows.
func Run(ctx context.Context, src Source, experimentID string, cfg Config) (*Bundle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("component", "readout"), zap.String("experiment", experimentID))
	start := time.Now()

	if err := src.CheckSchema(ctx); err != nil {
		return nil, eris.Wrapf(err, "readout %s", experimentID)
	}
	facts, err := src.SessionFacts(ctx, experimentID, cfg.Window)
	if err != nil {
		return nil, eris.Wrapf(err, "readout %s", experimentID)
	}
	if len(facts) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "experiment %s has no sessions in window %s", experimentID, cfg.Window)
	}
	checks, err := src.DataQualityChecks(ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "readout %s", experimentID)
	}

	var inPeriod []warehouse.SessionFact
	for _, f := range facts {
		if f.ExperimentPeriod {
			inPeriod = append(inPeriod, f)
		}
	}
	if len(inPeriod) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "experiment %s has no experiment-period sessions in window %s", experimentID, cfg.Window)
	}

	counts, err := Aggregate(inPeriod, cfg.Catalog, cfg.arms()...)
	if err != nil {
		return nil, eris.Wrapf(err, "readout %s", experimentID)
	}
	control, treatment := counts[0], counts[1]
	log.Debug("aggregated sessions",
		zap.Int("control_sessions", control.Sessions),
		zap.Int("treatment_sessions", treatment.Sessions))

	tasks := readoutTasks(cfg, control, treatment, facts)
	results := make([]func(*Bundle), len(tasks))
	var g errgroup.Group
	for i, t := range tasks {
		g.Go(func() error {
			taskStart := time.Now()
			apply, err := t.run()
			if err != nil {
				return eris.Wrap(err, t.name)
			}
			results[i] = apply
			log.Debug("task done", zap.String("task", t.name), zap.Duration("duration", time.Since(taskStart)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrapf(err, "readout %s", experimentID)
	}

	b := &Bundle{
		ExperimentID: experimentID,
		Window:       cfg.Window.String(),
		Control:      cfg.Control,
		Treatment:    cfg.Treatment,
		Alpha:        cfg.Alpha,
		Counts:       counts,
	}
	for _, apply := range results {
		apply(b)
	}

	primaryDef, _ := cfg.Catalog.Primary()
	var primary ReadoutRow
	for _, row := range b.Rows {
		switch {
		case row.Metric == primaryDef.Name:
			primary = row
		case row.Role == metrics.RoleGuardrail:
			b.Guardrails = append(b.Guardrails, EvaluateGuardrail(row, cfg.Guardrails.For(row.Metric)))
		}
		if row.Status == NonComputable {
			log.Warn("metric not computable", zap.String("metric", row.Metric), zap.String("reason", row.Reason))
		}
	}
	sort.Slice(b.Rows, func(i, j int) bool { return b.Rows[i].Metric < b.Rows[j].Metric })
	sort.Slice(b.Guardrails, func(i, j int) bool { return b.Guardrails[i].Metric < b.Guardrails[j].Metric })

	for _, c := range checks {
		if !c.Pass {
			b.DataQuality = append(b.DataQuality, c)
			b.Notes = append(b.Notes, "data-quality check failed: "+c.Name)
			log.Warn("data-quality check failed", zap.String("check", c.Name), zap.Int64("observed", c.Observed))
		}
	}
	for _, gr := range b.Guardrails {
		if gr.Status == StatusFlag {
			b.Notes = append(b.Notes, "guardrail flagged: "+gr.Metric)
		}
	}

	b.Decision = Decide(primary, b.UserSRM, b.SessionSRM)
	b.Notes = append(b.Notes, b.Decision.Notes...)

	id, err := bundleID(b)
	if err != nil {
		return nil, err
	}
	b.ID = id

	log.Info("readout complete",
		zap.String("decision", string(b.Decision.Recommendation)),
		zap.Int("sessions", len(inPeriod)),
		zap.Duration("duration", time.Since(start)))
	return b, nil
}

// readoutTask is one independent section of a readout. run must not touch
// shared state; the returned apply folds its result into the bundle once
// every task has finished.
type readoutTask struct {
	name string
	run  func() (func(*Bundle), error)
}

func readoutTasks(cfg Config, control, treatment VariantCounts, facts []warehouse.SessionFact) []readoutTask {
	var tasks []readoutTask
	for _, def := range cfg.Catalog {
		tasks = append(tasks, readoutTask{"metric " + def.Name, func() (func(*Bundle), error) {
			row := EvaluateMetric(def, control, treatment, cfg.confidence())
			return func(b *Bundle) { b.Rows = append(b.Rows, row) }, nil
		}})
	}
	tasks = append(tasks,
		readoutTask{"user srm", func() (func(*Bundle), error) {
			res := CheckSRM(GranularityUser, cfg.arms(), []int{control.Users, treatment.Users}, cfg.allocation(), cfg.SRMAlpha)
			return func(b *Bundle) { b.UserSRM = res }, nil
		}},
		readoutTask{"session srm", func() (func(*Bundle), error) {
			res := CheckSRM(GranularitySession, cfg.arms(), []int{control.Sessions, treatment.Sessions}, cfg.allocation(), cfg.SRMAlpha)
			return func(b *Bundle) { b.SessionSRM = res }, nil
		}},
		readoutTask{"arms", func() (func(*Bundle), error) {
			arms := []ArmSummary{SummarizeArm(control, cfg.confidence()), SummarizeArm(treatment, cfg.confidence())}
			return func(b *Bundle) { b.Arms = arms }, nil
		}},
		readoutTask{"trend", func() (func(*Bundle), error) {
			trend, err := BuildTrend(warehouse.Rollup(facts), cfg.Catalog, cfg.arms()...)
			if err != nil {
				return nil, err
			}
			trailing := Trailing(trend, cfg.Catalog, cfg.TrendWindowDays, cfg.Control, cfg.Treatment)
			return func(b *Bundle) {
				b.Trend = trend
				b.Trailing = trailing
			}, nil
		}},
	)
	return tasks
}

// bundleID derives a stable id from the experiment, window and counts.
func bundleID(b *Bundle) (string, error) {
	key, err := json.Marshal(struct {
		Experiment string          `json:"experiment"`
		Window     string          `json:"window"`
		Alpha      float64         `json:"alpha"`
		Counts     []VariantCounts `json:"counts"`
	}{b.ExperimentID, b.Window, b.Alpha, b.Counts})
	if err != nil {
		return "", eris.Wrap(err, "readout: encode id key")
	}
	return uuid.NewSHA1(readoutNamespace, key).String(), nil
}

// TrendReport is the trend view read straight from the daily rollup relation.
type TrendReport struct {
	ExperimentID string         `json:"experiment_id" yaml:"experiment_id"`
	Rows         []TrendRow     `json:"rows" yaml:"rows"`
	Trailing     TrailingWindow `json:"trailing" yaml:"trailing"`
}

// RollupSource serves pre-aggregated daily rows.
type RollupSource interface {
	DailyRollups(ctx context.Context, experimentID string, w warehouse.Window) ([]warehouse.DailyRollup, error)
}

// RunTrend builds the trend of experimentID from daily rollups.
func RunTrend(ctx context.Context, src RollupSource, experimentID string, cfg Config) (*TrendReport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rollups, err := src.DailyRollups(ctx, experimentID, cfg.Window)
	if err != nil {
		return nil, eris.Wrapf(err, "trend %s", experimentID)
	}
	if len(rollups) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "experiment %s has no daily rollups in window %s", experimentID, cfg.Window)
	}
	rows, err := BuildTrend(rollups, cfg.Catalog, cfg.arms()...)
	if err != nil {
		return nil, eris.Wrapf(err, "trend %s", experimentID)
	}
	return &TrendReport{
		ExperimentID: experimentID,
		Rows:         rows,
		Trailing:     Trailing(rows, cfg.Catalog, cfg.TrendWindowDays, cfg.Control, cfg.Treatment),
	}, nil
}
