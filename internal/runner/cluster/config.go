package cluster

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/genimp/genimp/internal/model"
)

// defaultPollInterval is used when the configuration does not set one.
const defaultPollInterval = 30 * time.Second

// Config is the scheduler adapter configuration, loaded from a YAML file.
type Config struct {
	SubmitCommand       []string `yaml:"submit_command"`
	StatusCommand       []string `yaml:"status_command"`
	PollIntervalSeconds int      `yaml:"poll_interval_seconds"`
}

// PollInterval returns the configured polling interval.
func (c Config) PollInterval() time.Duration {
	if c.PollIntervalSeconds <= 0 {
		return defaultPollInterval
	}
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c Config) validate() error {
	if len(c.SubmitCommand) == 0 {
		return fmt.Errorf("submit_command is required: %w", model.ErrConfiguration)
	}
	if len(c.StatusCommand) == 0 {
		return fmt.Errorf("status_command is required: %w", model.ErrConfiguration)
	}
	return nil
}

// LoadConfig reads the scheduler adapter configuration. Requesting cluster
// mode without a configuration file is a configuration error.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, fmt.Errorf("cluster configuration file was not provided, but cluster mode is used: %w", model.ErrConfiguration)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("%s: no such file: %w", path, model.ErrMissingFile)
		}
		return Config{}, fmt.Errorf("could not read cluster configuration: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("could not parse cluster configuration: %w: %w", err, model.ErrInvalidData)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
