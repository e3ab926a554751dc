// Package config loads launchlens settings from file, environment and flags.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Usaidkhxn/LaunchLens/internal/analysis"
	"github.com/Usaidkhxn/LaunchLens/internal/metrics"
	"github.com/Usaidkhxn/LaunchLens/internal/warehouse"
)

// ErrInvalid is returned when settings cannot form a usable configuration.
var ErrInvalid = eris.New("invalid configuration")

// DefaultPrimaryMetric is the primary metric used when neither
// analysis.primary_metric nor the catalog names one.
const DefaultPrimaryMetric = "purchase_rate_per_session"

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig    `yaml:"store" mapstructure:"store"`
	Log     LogConfig      `yaml:"log" mapstructure:"log"`
	Server  ServerConfig   `yaml:"server" mapstructure:"server"`
	Readout AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
}

// StoreConfig selects the warehouse.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API. An empty Token leaves the API open.
type ServerConfig struct {
	Port  int    `yaml:"port" mapstructure:"port"`
	Token string `yaml:"token" mapstructure:"token"`
}

// WindowConfig is an optional YYYY-MM-DD date range.
type WindowConfig struct {
	Start string `yaml:"start" mapstructure:"start"`
	End   string `yaml:"end" mapstructure:"end"`
}

// AnalysisConfig holds the statistical settings of a readout.
type AnalysisConfig struct {
	Alpha              float64                    `yaml:"alpha" mapstructure:"alpha"`
	SRMAlpha           float64                    `yaml:"srm_alpha" mapstructure:"srm_alpha"`
	TrendWindowDays    int                        `yaml:"trend_window_days" mapstructure:"trend_window_days"`
	Control            string                     `yaml:"control" mapstructure:"control"`
	Treatment          string                     `yaml:"treatment" mapstructure:"treatment"`
	ExpectedAllocation map[string]float64         `yaml:"expected_allocation" mapstructure:"expected_allocation"`
	PrimaryMetric      string                     `yaml:"primary_metric" mapstructure:"primary_metric"`
	Window             WindowConfig               `yaml:"window" mapstructure:"window"`
	Metrics            []metrics.Definition       `yaml:"metrics" mapstructure:"metrics"`
	Guardrails         analysis.GuardrailPolicies `yaml:"guardrails" mapstructure:"guardrails"`
}

// flagKeys maps config keys to the CLI flags that override them.
var flagKeys = map[string]string{
	"store.path":   "db",
	"store.driver": "driver",
	"server.port":  "port",
}

// Load reads configuration from file and environment. An explicit file must
// exist; otherwise launchlens.yaml in the working directory is optional.
// Flags present in flags override both.
func Load(file string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Config file
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("launchlens")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("LAUNCHLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "data/launchlens.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.token", "")
	v.SetDefault("analysis.alpha", 0.05)
	v.SetDefault("analysis.srm_alpha", 0.05)
	v.SetDefault("analysis.trend_window_days", 7)
	v.SetDefault("analysis.control", "control")
	v.SetDefault("analysis.treatment", "treatment")
	v.SetDefault("analysis.window.start", "")
	v.SetDefault("analysis.window.end", "")
	v.SetDefault("analysis.guardrails.default.mode", string(analysis.ModeRelative))
	v.SetDefault("analysis.guardrails.default.threshold", 0.05)
	v.SetDefault("analysis.guardrails.default.gate", string(analysis.GatePractical))

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, eris.Wrapf(err, "config: bind flag %s", name)
				}
			}
		}
	}

	// Read config file (optional unless named)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || file != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// Overrides without their own threshold inherit the default one.
	g := &cfg.Readout.Guardrails
	for name, o := range g.Overrides {
		if !v.IsSet("analysis.guardrails.overrides." + name + ".threshold") {
			o.Threshold = g.Default.Threshold
			g.Overrides[name] = o
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the settings that do not depend on the analysis engine.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return eris.Wrap(ErrInvalid, "store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.Wrap(ErrInvalid, "store.database_url is required for the postgres driver")
		}
	default:
		return eris.Wrapf(ErrInvalid, "store.driver %q (want sqlite or postgres)", c.Store.Driver)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return eris.Wrapf(ErrInvalid, "server.port %d", c.Server.Port)
	}
	return nil
}

// Analysis converts the analysis settings into the engine configuration.
func (c *Config) Analysis() (analysis.Config, error) {
	a := c.Readout
	out := analysis.DefaultConfig()
	out.Alpha = a.Alpha
	out.SRMAlpha = a.SRMAlpha
	out.TrendWindowDays = a.TrendWindowDays
	out.Control = a.Control
	out.Treatment = a.Treatment
	out.Guardrails = a.Guardrails

	if len(a.ExpectedAllocation) > 0 {
		out.Allocation = a.ExpectedAllocation
	} else {
		out.Allocation = map[string]float64{a.Control: 0.5, a.Treatment: 0.5}
	}

	catalog := metrics.DefaultCatalog()
	if len(a.Metrics) > 0 {
		catalog = make(metrics.Catalog, len(a.Metrics))
		for i, d := range a.Metrics {
			if d.Role == "" {
				d.Role = metrics.RoleGuardrail
			}
			catalog[i] = d
		}
	}
	primary := a.PrimaryMetric
	if _, ok := catalog.Primary(); !ok && primary == "" {
		primary = DefaultPrimaryMetric
	}
	if primary != "" {
		var err error
		if catalog, err = catalog.WithPrimary(primary); err != nil {
			return analysis.Config{}, eris.Wrap(ErrInvalid, err.Error())
		}
	}
	out.Catalog = catalog

	var err error
	if a.Window.Start != "" {
		if out.Window.Start, err = warehouse.ParseDate(a.Window.Start); err != nil {
			return analysis.Config{}, eris.Wrapf(ErrInvalid, "analysis.window.start: %v", err)
		}
	}
	if a.Window.End != "" {
		if out.Window.End, err = warehouse.ParseDate(a.Window.End); err != nil {
			return analysis.Config{}, eris.Wrapf(ErrInvalid, "analysis.window.end: %v", err)
		}
	}

	if err := out.Validate(); err != nil {
		return analysis.Config{}, eris.Wrap(ErrInvalid, err.Error())
	}
	return out, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
