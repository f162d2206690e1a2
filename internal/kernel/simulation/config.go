package simulation

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/scarab-sim/scarab/internal/kernel/eventlog"
	"github.com/scarab-sim/scarab/internal/kernel/kerr"
)

// EventLoggerConfig configures the optional secondary observer that writes
// a filtered, one-JSON-line-per-event log. An empty Path means stdout.
type EventLoggerConfig struct {
	Path   string          `yaml:"path,omitempty" json:"path,omitempty"`
	Filter eventlog.Filter `yaml:"filter" json:"filter"`
}

// Config is the configuration surface consumed by the Simulation
// constructor, grounded on the teacher's protocol.Config /
// server.DefaultServerConfig dual-format loading pattern.
type Config struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`

	NumberSteps uint64        `yaml:"number_steps" json:"number_steps"`
	StepLength  time.Duration `yaml:"step_length" json:"step_length"`
	StartPaused bool          `yaml:"start_paused" json:"start_paused"`

	// Headless disables the control server entirely, in place of a
	// separate no-network "test harness" code path: a headless Simulation
	// only accepts commands submitted in-process via Submit.
	Headless bool `yaml:"headless" json:"headless"`

	EventLogger *EventLoggerConfig `yaml:"event_logger,omitempty" json:"event_logger,omitempty"`
}

// DefaultConfig mirrors the teacher's DefaultServerConfig/DefaultGlobalConfig
// pattern: a usable zero-touch configuration for local runs.
func DefaultConfig() Config {
	return Config{
		Host:        "localhost",
		Port:        1234,
		NumberSteps: 0,
		StepLength:  0,
	}
}

// Validate checks the fields a Simulation can't sensibly start with.
// Returns a ConfigurationError, which is fatal at construction.
func (c Config) Validate() error {
	if c.Host == "" {
		return &kerr.ConfigurationError{Reason: "host must not be empty"}
	}
	if !c.Headless && (c.Port <= 0 || c.Port > 65535) {
		return &kerr.ConfigurationError{Reason: "port must be between 1 and 65535"}
	}
	if c.StepLength < 0 {
		return &kerr.ConfigurationError{Reason: "step_length must not be negative"}
	}
	return nil
}

// LoadYAML loads a Config from a YAML file.
func LoadYAML(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read config file")
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse yaml config")
	}
	return cfg, nil
}

// LoadJSON loads a Config from a JSON file.
func LoadJSON(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read config file")
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse json config")
	}
	return cfg, nil
}
