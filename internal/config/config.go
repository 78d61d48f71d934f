package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds process-level settings for the warroom backend. Values come
// from an optional YAML file, with environment variables taking precedence.
type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	FrontendURL string `yaml:"frontend_url"`
	NATSURL     string `yaml:"nats_url"`
	JWTSecret   string `yaml:"jwt_secret"`

	// SweepEveryRaw is the YAML form of SweepEvery ("10m"); zero or absent
	// leaves the expired-action sweeper disabled.
	SweepEveryRaw string        `yaml:"sweep_every"`
	SweepEvery    time.Duration `yaml:"-"`
}

// Default returns the configuration used when no file or env overrides
// are present.
func Default() Config {
	return Config{
		HTTPAddr:    ":8080",
		FrontendURL: "http://localhost:3000",
		NATSURL:     "nats://localhost:4222",
		SweepEvery:  0, // sweeper disabled
	}
}

// Load reads the YAML file at path (if it exists) on top of the defaults,
// then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	if cfg.SweepEveryRaw != "" {
		d, err := time.ParseDuration(cfg.SweepEveryRaw)
		if err != nil {
			return cfg, fmt.Errorf("parse sweep_every: %w", err)
		}
		cfg.SweepEvery = d
	}

	cfg.applyEnv()

	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("jwt secret is required (set JWT_SECRET or jwt_secret)")
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv("FRONTEND_URL"); v != "" {
		c.FrontendURL = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATSURL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("SWEEP_EVERY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.SweepEvery = d
		}
	}
}
