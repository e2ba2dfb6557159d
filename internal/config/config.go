package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"kintai/internal/notify"
)

// Config is the full tree read from kintai.yaml. Zero values are filled
// in by WithDefaults so a partial file is always usable.
type Config struct {
	RedisURL    string `yaml:"redis_url"`
	WorklogPath string `yaml:"worklog_path"`

	Gateway   GatewayConfig   `yaml:"gateway"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Client    ClientConfig    `yaml:"client"`
	Log       LogConfig       `yaml:"log"`

	Email *notify.EmailConfig `yaml:"email"`
}

type GatewayConfig struct {
	Listen         string   `yaml:"listen"`
	URL            string   `yaml:"url"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type SchedulerConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Trigger string `yaml:"trigger"`
}

type ClientConfig struct {
	UserID         string `yaml:"user_id"`
	UserName       string `yaml:"user_name"`
	PollEvery      string `yaml:"poll_every"`
	EncourageEvery string `yaml:"encourage_every"`
}

// PollInterval parses poll_every, falling back to a minute on anything
// unusable.
func (c ClientConfig) PollInterval() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(c.PollEvery))
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// EncourageInterval parses encourage_every. Zero means disabled.
func (c ClientConfig) EncourageInterval() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(c.EncourageEvery))
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func DefaultConfig() Config {
	return Config{
		RedisURL:    "redis://127.0.0.1:6379/0",
		WorklogPath: "kintai.db",
		Gateway: GatewayConfig{
			Listen: ":8787",
			URL:    "http://127.0.0.1:8787",
		},
		Scheduler: SchedulerConfig{
			Trigger: "@every 1m",
		},
		Client: ClientConfig{
			PollEvery: "1m",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func (c Config) WithDefaults() Config {
	out := c
	def := DefaultConfig()
	if strings.TrimSpace(out.RedisURL) == "" {
		out.RedisURL = def.RedisURL
	}
	if strings.TrimSpace(out.WorklogPath) == "" {
		out.WorklogPath = def.WorklogPath
	}
	if strings.TrimSpace(out.Gateway.Listen) == "" {
		out.Gateway.Listen = def.Gateway.Listen
	}
	if strings.TrimSpace(out.Gateway.URL) == "" {
		out.Gateway.URL = def.Gateway.URL
	}
	if out.Scheduler.Enabled == nil {
		v := true
		out.Scheduler.Enabled = &v
	}
	if strings.TrimSpace(out.Scheduler.Trigger) == "" {
		out.Scheduler.Trigger = def.Scheduler.Trigger
	}
	if strings.TrimSpace(out.Client.PollEvery) == "" {
		out.Client.PollEvery = def.Client.PollEvery
	}
	if strings.TrimSpace(out.Log.Level) == "" {
		out.Log.Level = def.Log.Level
	}
	return out
}

// Load reads the yaml config at path. A missing file is not an error;
// defaults apply. KINTAI_REDIS_URL and KINTAI_GATEWAY_URL override the
// file so containers can point at their own backends.
func Load(path string) (Config, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		p = "kintai.yaml"
	}
	cfg := Config{}
	data, err := os.ReadFile(p)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", p, err)
	}

	if v := strings.TrimSpace(os.Getenv("KINTAI_REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("KINTAI_GATEWAY_URL")); v != "" {
		cfg.Gateway.URL = v
	}
	return cfg.WithDefaults(), nil
}
