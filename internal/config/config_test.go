package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Usaidkhxn/LaunchLens/internal/analysis"
	"github.com/Usaidkhxn/LaunchLens/internal/metrics"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "data/launchlens.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 0.05, cfg.Readout.Alpha, 1e-12)
	assert.InDelta(t, 0.05, cfg.Readout.SRMAlpha, 1e-12)
	assert.Equal(t, 7, cfg.Readout.TrendWindowDays)
	assert.Empty(t, cfg.Readout.PrimaryMetric)
	assert.Equal(t, analysis.ModeRelative, cfg.Readout.Guardrails.Default.Mode)
	assert.InDelta(t, 0.05, cfg.Readout.Guardrails.Default.Threshold, 1e-12)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/launchlens
log:
  level: debug
analysis:
  alpha: 0.1
  control: a
  treatment: b
  expected_allocation:
    a: 2
    b: 1
  window:
    start: "2024-03-01"
    end: "2024-03-14"
  guardrails:
    default:
      mode: absolute
      threshold: 0.01
      gate: significant
    overrides:
      ctr:
        mode: relative
        threshold: 0.02
        gate: practical
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "launchlens.yaml"), []byte(yaml), 0644))

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 7, cfg.Readout.TrendWindowDays)

	a, err := cfg.Analysis()
	require.NoError(t, err)
	assert.InDelta(t, 0.1, a.Alpha, 1e-12)
	assert.Equal(t, map[string]float64{"a": 2, "b": 1}, a.Allocation)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), a.Window.Start)
	assert.Equal(t, time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC), a.Window.End)
	assert.Equal(t, analysis.ModeAbsolute, a.Guardrails.For("atc_rate").Mode)
	assert.Equal(t, analysis.GatePractical, a.Guardrails.For("ctr").Gate)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "launchlens.yaml"), []byte("server:\n  port: 9090\n"), 0644))
	t.Setenv("LAUNCHLENS_SERVER_PORT", "7070")
	t.Setenv("LAUNCHLENS_ANALYSIS_ALPHA", "0.01")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.InDelta(t, 0.01, cfg.Readout.Alpha, 1e-12)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("LAUNCHLENS_STORE_PATH", "from-env.db")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("db", "", "")
	flags.String("driver", "", "")
	require.NoError(t, flags.Parse([]string{"--db", "from-flag.db"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, "from-flag.db", cfg.Store.Path)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestLoadExplicitFile(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  format: json\n"), 0644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Log.Format)

	_, err = Load(filepath.Join(dir, "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestLoadInvalidDriver(t *testing.T) {
	chdirTemp(t)
	t.Setenv("LAUNCHLENS_STORE_DRIVER", "duckdb")

	_, err := Load("", nil)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestAnalysis_DefaultsMatchEngine(t *testing.T) {
	chdirTemp(t)
	cfg, err := Load("", nil)
	require.NoError(t, err)

	a, err := cfg.Analysis()
	require.NoError(t, err)

	want := analysis.DefaultConfig()
	assert.Equal(t, want.Catalog, a.Catalog)
	assert.Equal(t, want.Allocation, a.Allocation)
	assert.Equal(t, want.Control, a.Control)
	assert.Equal(t, want.TrendWindowDays, a.TrendWindowDays)
	assert.True(t, a.Window.Start.IsZero())
}

func TestAnalysis_CustomCatalogAndPrimary(t *testing.T) {
	cfg := &Config{Readout: AnalysisConfig{
		Alpha: 0.05, SRMAlpha: 0.05, TrendWindowDays: 7, Control: "control", Treatment: "treatment",
		PrimaryMetric: "ctr",
		Metrics: []metrics.Definition{
			{Name: "ctr", Kind: metrics.KindProportion, Numerator: metrics.StageClick, Denominator: metrics.StageImpression},
			{Name: "atc_rate", Kind: metrics.KindProportion, Numerator: metrics.StageAddToCart, Denominator: metrics.StageClick},
		},
		Guardrails: analysis.GuardrailPolicies{Default: analysis.DefaultGuardrailPolicy()},
	}}

	a, err := cfg.Analysis()
	require.NoError(t, err)

	primary, ok := a.Catalog.Primary()
	require.True(t, ok)
	assert.Equal(t, "ctr", primary.Name)
	assert.Equal(t, metrics.RoleGuardrail, a.Catalog[1].Role)
}

func TestLoad_CustomCatalogKeepsItsPrimary(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
analysis:
  metrics:
    - name: ctr
      kind: proportion
      numerator: click
      denominator: impression
      role: primary
    - name: atc_rate
      kind: proportion
      numerator: add_to_cart
      denominator: click
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "launchlens.yaml"), []byte(yaml), 0644))

	cfg, err := Load("", nil)
	require.NoError(t, err)

	a, err := cfg.Analysis()
	require.NoError(t, err)
	primary, ok := a.Catalog.Primary()
	require.True(t, ok)
	assert.Equal(t, "ctr", primary.Name)
	assert.Equal(t, metrics.RoleGuardrail, a.Catalog[1].Role)
}

func TestAnalysis_CustomCatalogWithoutPrimary(t *testing.T) {
	cfg := &Config{Readout: AnalysisConfig{
		Alpha: 0.05, SRMAlpha: 0.05, TrendWindowDays: 7, Control: "control", Treatment: "treatment",
		Metrics: []metrics.Definition{
			{Name: "ctr", Kind: metrics.KindProportion, Numerator: metrics.StageClick, Denominator: metrics.StageImpression},
		},
		Guardrails: analysis.GuardrailPolicies{Default: analysis.DefaultGuardrailPolicy()},
	}}

	_, err := cfg.Analysis()
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoad_PartialGuardrailOverride(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
analysis:
  guardrails:
    default:
      mode: absolute
      threshold: 0.02
      gate: significant
    overrides:
      ctr:
        threshold: 0.10
      atc_rate:
        gate: practical
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "launchlens.yaml"), []byte(yaml), 0644))

	cfg, err := Load("", nil)
	require.NoError(t, err)

	a, err := cfg.Analysis()
	require.NoError(t, err)

	ctr := a.Guardrails.For("ctr")
	assert.Equal(t, analysis.ModeAbsolute, ctr.Mode)
	assert.Equal(t, analysis.GateSignificant, ctr.Gate)
	assert.InDelta(t, 0.10, ctr.Threshold, 1e-12)

	atc := a.Guardrails.For("atc_rate")
	assert.Equal(t, analysis.ModeAbsolute, atc.Mode)
	assert.Equal(t, analysis.GatePractical, atc.Gate)
	assert.InDelta(t, 0.02, atc.Threshold, 1e-12)
}

func TestAnalysis_Invalid(t *testing.T) {
	base := func() *Config {
		return &Config{Readout: AnalysisConfig{
			Alpha: 0.05, SRMAlpha: 0.05, TrendWindowDays: 7, Control: "control", Treatment: "treatment",
			PrimaryMetric: "purchase_rate_per_session",
			Guardrails:    analysis.GuardrailPolicies{Default: analysis.DefaultGuardrailPolicy()},
		}}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown primary", func(c *Config) { c.Readout.PrimaryMetric = "bounce_rate" }},
		{"alpha out of range", func(c *Config) { c.Readout.Alpha = 1 }},
		{"bad window date", func(c *Config) { c.Readout.Window.Start = "03/01/2024" }},
		{"window ends before start", func(c *Config) {
			c.Readout.Window = WindowConfig{Start: "2024-03-10", End: "2024-03-01"}
		}},
		{"allocation misses an arm", func(c *Config) { c.Readout.ExpectedAllocation = map[string]float64{"control": 1, "other": 1} }},
		{"zero trend window", func(c *Config) { c.Readout.TrendWindowDays = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			_, err := c.Analysis()
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestInitLogger(t *testing.T) {
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "json"}))
	assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))

	assert.Error(t, InitLogger(LogConfig{Level: "loud", Format: "console"}))
}
