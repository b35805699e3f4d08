// Package config loads run configuration for the generator from YAML.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is one generation run's parameters.
type Config struct {
	// Seed drives every random decision of the run. Two runs with the same
	// seed, population, and module set produce identical output.
	Seed int64 `yaml:"seed"`

	// Population is the number of entities to generate.
	Population int `yaml:"population"`

	// Workers is the number of concurrent generation workers. Zero means
	// one worker per CPU.
	Workers int `yaml:"workers"`

	// TimeStepDays is the simulated interval between engine activations.
	TimeStepDays int `yaml:"time_step_days"`

	// Start and End bound the simulated run, as YYYY-MM-DD dates. End
	// defaults to today; Start defaults to End.
	Start string `yaml:"start"`
	End   string `yaml:"end"`

	// MinAge and MaxAge bound sampled entity ages at the end date.
	MinAge int `yaml:"min_age"`
	MaxAge int `yaml:"max_age"`

	ModuleDir    string `yaml:"module_dir"`
	OverrideFile string `yaml:"override_file,omitempty"`

	// StorePath is the SQLite chronicle database. Empty disables storage.
	StorePath string `yaml:"store_path,omitempty"`

	// ExportDir receives one canonical JSON document per entity. Empty
	// disables export.
	ExportDir string `yaml:"export_dir,omitempty"`

	// MetricsAddr is the listen address for Prometheus exposition. Empty
	// disables the metrics server.
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

const dateLayout = "2006-01-02"

// Default returns the configuration used when a field is unset.
func Default() Config {
	return Config{
		Seed:         1,
		Population:   1,
		TimeStepDays: 7,
		MaxAge:       90,
	}
}

// Load reads a YAML config file, applies defaults, and validates.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config source, applies defaults, and validates.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.End == "" {
		c.End = time.Now().UTC().Format(dateLayout)
	}
	if c.Start == "" {
		c.Start = c.End
	}
}

// Validate reports the first structural problem with the configuration.
func (c *Config) Validate() error {
	if c.Population < 1 {
		return fmt.Errorf("config: population must be at least 1, got %d", c.Population)
	}
	if c.TimeStepDays < 1 {
		return fmt.Errorf("config: time_step_days must be at least 1, got %d", c.TimeStepDays)
	}
	if c.MinAge < 0 || c.MaxAge < c.MinAge {
		return fmt.Errorf("config: age range [%d, %d] is invalid", c.MinAge, c.MaxAge)
	}
	if c.ModuleDir == "" {
		return fmt.Errorf("config: module_dir is required")
	}
	start, err := c.StartTime()
	if err != nil {
		return err
	}
	end, err := c.EndTime()
	if err != nil {
		return err
	}
	if end < start {
		return fmt.Errorf("config: end %s precedes start %s", c.End, c.Start)
	}
	return nil
}

// StartTime returns the run start as milliseconds since the epoch.
func (c *Config) StartTime() (int64, error) {
	return parseDate("start", c.Start)
}

// EndTime returns the run end as milliseconds since the epoch.
func (c *Config) EndTime() (int64, error) {
	return parseDate("end", c.End)
}

// TimeStepMillis returns the activation interval in milliseconds.
func (c *Config) TimeStepMillis() int64 {
	return int64(c.TimeStepDays) * 24 * 60 * 60 * 1000
}

func parseDate(field, value string) (int64, error) {
	t, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", field, err)
	}
	return t.UnixMilli(), nil
}
