// Package config loads autoref.cfg.json through viper and decodes it into
// the typed settings handed to each component.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/robocup-autoref/autoref/internal/client"
	"github.com/robocup-autoref/autoref/internal/field"
	"github.com/robocup-autoref/autoref/internal/frame"
	"github.com/robocup-autoref/autoref/internal/influx"
	"github.com/robocup-autoref/autoref/internal/phase"
	"github.com/robocup-autoref/autoref/internal/runner"
	"github.com/robocup-autoref/autoref/internal/source"
	"github.com/robocup-autoref/autoref/internal/storage"
	"github.com/robocup-autoref/autoref/internal/violation"
)

// FileName is the configuration file looked up by Load.
const FileName = "autoref.cfg.json"

// Geometry presets.
const (
	FieldDivA = "divA"
	FieldDivB = "divB"
)

// FieldConfig selects the field geometry.
type FieldConfig struct {
	Preset string `json:"preset" mapstructure:"preset"`
}

// SourceConfig selects where world frames come from.
type SourceConfig struct {
	// Type is "tracker" or "replay".
	Type    string               `json:"type" mapstructure:"type"`
	Tracker source.TrackerConfig `json:"tracker" mapstructure:"tracker"`
	Replay  source.ReplayConfig  `json:"replay" mapstructure:"replay"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// MonitorConfig configures the status writer.
type MonitorConfig struct {
	StatusFile string        `json:"statusFile" mapstructure:"statusFile"`
	Interval   time.Duration `json:"interval" mapstructure:"interval"`
}

// JournalConfig sizes the decision journal buffer.
type JournalConfig struct {
	Buffer int `json:"buffer" mapstructure:"buffer"`
}

// Config is the whole application configuration.
type Config struct {
	LogLevel   string `json:"logLevel" mapstructure:"logLevel"`
	LogsDir    string `json:"logsDir" mapstructure:"logsDir"`
	Mode       string `json:"mode" mapstructure:"mode"`
	Simulation bool   `json:"simulation" mapstructure:"simulation"`

	Field        FieldConfig      `json:"field" mapstructure:"field"`
	Preprocessor frame.Config     `json:"preprocessor" mapstructure:"preprocessor"`
	Detectors    violation.Config `json:"detectors" mapstructure:"detectors"`
	Phases       phase.Config     `json:"phases" mapstructure:"phases"`
	Protocol     client.Config    `json:"protocol" mapstructure:"protocol"`
	Runner       runner.Config    `json:"runner" mapstructure:"runner"`
	Source       SourceConfig     `json:"source" mapstructure:"source"`
	Storage      storage.Config   `json:"storage" mapstructure:"storage"`
	Journal      JournalConfig    `json:"journal" mapstructure:"journal"`
	Influx       influx.Config    `json:"influx" mapstructure:"influx"`
	OTel         OTelConfig       `json:"otel" mapstructure:"otel"`
	Monitor      MonitorConfig    `json:"monitor" mapstructure:"monitor"`
}

// Geometry returns the field preset. Unknown presets fall back to division B.
func (c Config) Geometry() field.Geometry {
	if strings.EqualFold(c.Field.Preset, FieldDivA) {
		return field.DivisionA()
	}
	return field.DivisionB()
}

// defaults holds the component tunings that are not registered key by key
// with viper. Keys present in the file override them field by field.
func defaults() Config {
	return Config{
		Preprocessor: frame.DefaultConfig(),
		Detectors:    violation.DefaultConfig(),
		Phases:       phase.DefaultConfig(),
		Protocol:     client.DefaultConfig(),
		Runner:       runner.DefaultConfig(),
		Source:       SourceConfig{Tracker: source.DefaultTrackerConfig(), Replay: source.ReplayConfig{Speed: 1}},
	}
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. The defaults stay
// in place when the file cannot be read.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./autoreflogs")
	viper.SetDefault("mode", "active")
	viper.SetDefault("simulation", false)

	viper.SetDefault("field.preset", FieldDivB)

	viper.SetDefault("source.type", "tracker")

	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.memory.outputDir", "./journal")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "1m")
	viper.SetDefault("storage.sqlite.dumpPath", "./journal/autoref.db")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "autoref")
	viper.SetDefault("storage.postgres.fallbackPath", "./journal/autoref_fallback.db")
	viper.SetDefault("journal.buffer", 256)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "autoref")
	viper.SetDefault("influx.backupPath", "./journal/influx_backup.lp.gz")
	viper.SetDefault("influx.retentionDays", 30)

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "autoref")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("monitor.statusFile", "")
	viper.SetDefault("monitor.interval", "1s")

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// Get decodes the loaded settings.
func Get() (Config, error) {
	cfg := defaults()
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
