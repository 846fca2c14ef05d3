// Package config loads the recycling-monitor configuration and bootstraps
// the global logger.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/recycling-monitor/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig      `yaml:"store" mapstructure:"store"`
	Source    SourceConfig     `yaml:"source" mapstructure:"source"`
	Inputs    InputsConfig     `yaml:"inputs" mapstructure:"inputs"`
	Outputs   OutputsConfig    `yaml:"outputs" mapstructure:"outputs"`
	Reconcile ReconcileConfig  `yaml:"reconcile" mapstructure:"reconcile"`
	Reports   ReportsConfig    `yaml:"reports" mapstructure:"reports"`
	Log       LogConfig        `yaml:"log" mapstructure:"log"`
	Divisions []DivisionConfig `yaml:"divisions" mapstructure:"divisions"`
}

// StoreConfig configures the run-history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SourceConfig points at the form database that submissions are exported from.
type SourceConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// InputsConfig locates the files a run reads.
type InputsConfig struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	RegionsFile string `yaml:"regions_file" mapstructure:"regions_file"`
	Charset     string `yaml:"charset" mapstructure:"charset"`
}

// OutputsConfig configures where reconciled workbooks are written.
type OutputsConfig struct {
	Dir    string `yaml:"dir" mapstructure:"dir"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ReconcileConfig tunes the reconciliation itself.
type ReconcileConfig struct {
	Concurrency        int     `yaml:"concurrency" mapstructure:"concurrency"`
	DeviationThreshold float64 `yaml:"deviation_threshold" mapstructure:"deviation_threshold"`
	Now                string  `yaml:"now" mapstructure:"now"` // YYYY-MM-DD, empty for the wall clock
}

// ReportsConfig tunes the gap and engagement reports.
type ReportsConfig struct {
	// EngagementSince is the first MM.YY month counted as expected in the
	// engagement summary.
	EngagementSince string `yaml:"engagement_since" mapstructure:"engagement_since"`
}

// Since parses EngagementSince.
func (r ReportsConfig) Since() (model.Period, error) {
	p, ok := model.ParsePeriod(r.EngagementSince)
	if !ok {
		return model.Period{}, eris.Errorf("config: reports.engagement_since %q is not MM.YY", r.EngagementSince)
	}
	return p, nil
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DivisionConfig names a division and its tracking workbook.
type DivisionConfig struct {
	Name     string `yaml:"name" mapstructure:"name"`
	Snapshot string `yaml:"snapshot" mapstructure:"snapshot"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "monitor.db")
	v.SetDefault("source.database_url", "")
	v.SetDefault("inputs.dir", "data")
	v.SetDefault("inputs.regions_file", "configs/regions.yaml")
	v.SetDefault("inputs.charset", "")
	v.SetDefault("outputs.dir", "out")
	v.SetDefault("outputs.format", "xlsx")
	v.SetDefault("reconcile.concurrency", 4)
	v.SetDefault("reconcile.deviation_threshold", 60.0)
	v.SetDefault("reconcile.now", "")
	v.SetDefault("reports.engagement_since", "11.24")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("divisions", []map[string]any{
		{"name": "belem"},
		{"name": "expansao"},
		{"name": "grs"},
		{"name": "expansao_ms"},
	})

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a reconcile run depends on.
func (c *Config) Validate() error {
	var missing []string
	if c.Reconcile.Concurrency < 1 {
		missing = append(missing, "reconcile.concurrency must be >= 1")
	}
	if c.Reconcile.DeviationThreshold <= 0 {
		missing = append(missing, "reconcile.deviation_threshold must be > 0")
	}
	if _, err := c.Reconcile.Clock(); err != nil {
		missing = append(missing, "reconcile.now must be YYYY-MM-DD")
	}
	if c.Reports.EngagementSince != "" {
		if _, err := c.Reports.Since(); err != nil {
			missing = append(missing, "reports.engagement_since must be MM.YY")
		}
	}
	seen := make(map[string]bool)
	for i, d := range c.Divisions {
		switch {
		case d.Name == "":
			missing = append(missing, fmt.Sprintf("divisions[%d] has no name", i))
		case seen[d.Name]:
			missing = append(missing, fmt.Sprintf("division %q listed twice", d.Name))
		}
		seen[d.Name] = true
	}
	if len(c.Divisions) == 0 {
		missing = append(missing, "at least one division is required")
	}
	if len(missing) > 0 {
		return eris.Errorf("config: invalid: %s", strings.Join(missing, "; "))
	}
	return nil
}

// Clock returns the configured evaluation date, or the zero time when runs
// should use the wall clock.
func (r ReconcileConfig) Clock() (time.Time, error) {
	if r.Now == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, r.Now, time.Local)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "config: parse reconcile.now %q", r.Now)
	}
	return t, nil
}

// SnapshotPath returns the tracking workbook of a division for a form. An
// explicit snapshot path wins; otherwise the workbook lives under
// <inputs.dir>/<division>/<workbook>.
func (c *Config) SnapshotPath(d DivisionConfig, workbook string) string {
	if d.Snapshot != "" {
		return d.Snapshot
	}
	return filepath.Join(c.Inputs.Dir, d.Name, workbook)
}

// Division returns the configured division called name.
func (c *Config) Division(name string) (DivisionConfig, bool) {
	for _, d := range c.Divisions {
		if d.Name == name {
			return d, true
		}
	}
	return DivisionConfig{}, false
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
