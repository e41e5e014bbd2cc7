package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"quizhub-service/internal/scoring"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Rankings struct {
		GlobalTop  int `yaml:"global_top"`
		CountryTop int `yaml:"country_top"`
		// Interval schedules the batch rank rebuild inside `start`; empty disables it.
		Interval    string `yaml:"interval"`
		RankingsTTL string `yaml:"rankings_ttl"`
		FeedSize    int    `yaml:"feed_size"`
	} `yaml:"rankings"`
	Scoring struct {
		PointsPerCorrect *int `yaml:"points_per_correct"`
		PerfectBonus     *int `yaml:"perfect_bonus"`
		SpeedBonus       *int `yaml:"speed_bonus"`
	} `yaml:"scoring"`
}

// Load reads YAML config from path. A missing file yields the defaults so the
// service can start in memory without any configuration.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// validate rejects scoring rates that could drive a score below zero.
func (c Config) validate() error {
	rates := []struct {
		name string
		v    *int
	}{
		{"scoring.points_per_correct", c.Scoring.PointsPerCorrect},
		{"scoring.perfect_bonus", c.Scoring.PerfectBonus},
		{"scoring.speed_bonus", c.Scoring.SpeedBonus},
	}
	for _, r := range rates {
		if r.v != nil && *r.v < 0 {
			return fmt.Errorf("config: %s must not be negative, got %d", r.name, *r.v)
		}
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// ScoringRules overlays the configured rates on scoring.DefaultRules. An
// explicit zero disables that part of the reward.
func (c Config) ScoringRules() scoring.Rules {
	rules := scoring.DefaultRules
	if v := c.Scoring.PointsPerCorrect; v != nil {
		rules.PointsPerCorrect = *v
	}
	if v := c.Scoring.PerfectBonus; v != nil {
		rules.PerfectBonus = *v
	}
	if v := c.Scoring.SpeedBonus; v != nil {
		rules.SpeedBonus = *v
	}
	return rules
}
