package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds everything the simulator needs at boot. Defaults reproduce
// the behaviour of the original demo; the YAML file and environment only
// override them.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	History   HistoryConfig   `yaml:"history"`
	Model     ModelConfig     `yaml:"model"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Address     string `yaml:"address"`
	Environment string `yaml:"environment"`
}

type HistoryConfig struct {
	Capacity int `yaml:"capacity"`
}

// ModelConfig describes the synthetic training set and the forest fitted on it.
type ModelConfig struct {
	Samples       int     `yaml:"samples"`
	Mean          float64 `yaml:"mean"`
	StdDev        float64 `yaml:"stddev"`
	Contamination float64 `yaml:"contamination"`
	Seed          uint64  `yaml:"seed"`
	Trees         int     `yaml:"trees"`
}

// RateLimitConfig limits /simulate per client IP. RPS 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:     "127.0.0.1:8080",
			Environment: "prod",
		},
		History: HistoryConfig{Capacity: defaultHistoryCapacity},
		Model: ModelConfig{
			Samples:       200,
			Mean:          50,
			StdDev:        15,
			Contamination: 0.2,
			Seed:          42,
			Trees:         100,
		},
		RateLimit: RateLimitConfig{RPS: 0, Burst: 10},
		Logging:   LoggingConfig{Level: "info", JSON: false},
	}
}

// loadConfig applies defaults, then the YAML file at path (or QSHIELD_CONFIG),
// then environment overrides, and validates the result.
func loadConfig(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("QSHIELD_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("LISTEN_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Server.Environment = v
	}
	if v := os.Getenv("QSHIELD_HISTORY_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse QSHIELD_HISTORY_CAPACITY: %w", err)
		}
		cfg.History.Capacity = n
	}
	if v := os.Getenv("QSHIELD_RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse QSHIELD_RATE_LIMIT_RPS: %w", err)
		}
		cfg.RateLimit.RPS = f
	}
	if v := os.Getenv("QSHIELD_RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse QSHIELD_RATE_LIMIT_BURST: %w", err)
		}
		cfg.RateLimit.Burst = n
	}
	if v := os.Getenv("QSHIELD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("QSHIELD_LOG_FORMAT"); v != "" {
		cfg.Logging.JSON = strings.EqualFold(v, "json")
	}

	return nil
}

func (c *Config) validate() error {
	if c.Server.Address == "" {
		return errors.New("server.address must not be empty")
	}
	if c.History.Capacity <= 0 {
		return fmt.Errorf("history.capacity must be positive, got %d", c.History.Capacity)
	}
	if c.Model.Samples <= 0 {
		return fmt.Errorf("model.samples must be positive, got %d", c.Model.Samples)
	}
	if c.Model.StdDev <= 0 {
		return fmt.Errorf("model.stddev must be positive, got %g", c.Model.StdDev)
	}
	if c.Model.Contamination <= 0 || c.Model.Contamination > 0.5 {
		return fmt.Errorf("model.contamination must be in (0, 0.5], got %g", c.Model.Contamination)
	}
	if c.Model.Trees <= 0 {
		return fmt.Errorf("model.trees must be positive, got %d", c.Model.Trees)
	}
	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("ratelimit.rps must not be negative, got %g", c.RateLimit.RPS)
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		return fmt.Errorf("ratelimit.burst must be positive when rate limiting, got %d", c.RateLimit.Burst)
	}

	return nil
}
