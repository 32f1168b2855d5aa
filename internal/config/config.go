package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"people-search/internal/backend"
	"people-search/internal/probe"
	"people-search/internal/progress"
	"people-search/internal/submitter"
)

// EnvPrefix prefixes every environment override, e.g. PEOPLE_SEARCH_BASE_URL.
const EnvPrefix = "PEOPLE_SEARCH"

type Config struct {
	BaseURL  string         `yaml:"base_url" envconfig:"BASE_URL" validate:"required,url"`
	LogFile  string         `yaml:"log_file" envconfig:"LOG_FILE"`
	LogLevel string         `yaml:"log_level" envconfig:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	Health   HealthConfig   `yaml:"health"`
	Upload   UploadConfig   `yaml:"upload"`
	Progress ProgressConfig `yaml:"progress"`
}

type HealthConfig struct {
	Timeout time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
}

type UploadConfig struct {
	Timeout     time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	MaxAttempts int           `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS" validate:"min=1"`
	BackoffStep time.Duration `yaml:"backoff_step" envconfig:"BACKOFF_STEP" validate:"gte=0"`
}

type ProgressConfig struct {
	Step     int           `yaml:"step" envconfig:"STEP" validate:"min=1,max=100"`
	Interval time.Duration `yaml:"interval" envconfig:"INTERVAL" validate:"gt=0"`
	Ceiling  int           `yaml:"ceiling" envconfig:"CEILING" validate:"min=0,max=100"`
}

func Default() *Config {
	return &Config{
		BaseURL:  backend.DefaultBaseURL,
		LogFile:  "people-search.log",
		LogLevel: "info",
		Health: HealthConfig{
			Timeout: probe.DefaultTimeout,
		},
		Upload: UploadConfig{
			Timeout:     submitter.DefaultAttemptTimeout,
			MaxAttempts: submitter.DefaultMaxAttempts,
			BackoffStep: submitter.DefaultBackoffStep,
		},
		Progress: ProgressConfig{
			Step:     progress.DefaultStep,
			Interval: progress.DefaultInterval,
			Ceiling:  progress.DefaultCeiling,
		},
	}
}

// Load layers the defaults, the optional YAML file at path and the
// environment, in that order, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
