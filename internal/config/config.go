package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port              int `yaml:"port"`
		RatePerSecond     int `yaml:"rate_per_second"`
		RateBurst         int `yaml:"rate_burst"`
		ShutdownTimeoutMS int `yaml:"shutdown_timeout_ms"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Enabled         bool   `yaml:"enabled"`
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Audit struct {
		ExportEnabled     bool   `yaml:"export_enabled"`
		ExportDir         string `yaml:"export_dir"`
		DataRetentionDays int    `yaml:"data_retention_days"`
		ExportOnStart     bool   `yaml:"export_on_start"`
	} `yaml:"audit"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RatePerSecond <= 0 {
		cfg.Server.RatePerSecond = 20
	}
	if cfg.Server.RateBurst <= 0 {
		cfg.Server.RateBurst = 40
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/studiobook.db"
	}
	if cfg.Redis.CacheTTLSeconds <= 0 {
		cfg.Redis.CacheTTLSeconds = 300
	}
	if cfg.Backup.Path == "" {
		cfg.Backup.Path = "data/backups"
	}
	if cfg.Audit.ExportDir == "" {
		cfg.Audit.ExportDir = "data/exports"
	}
	if cfg.Audit.DataRetentionDays <= 0 {
		cfg.Audit.DataRetentionDays = 365
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) ShutdownTimeout() time.Duration {
	if c.Server.ShutdownTimeoutMS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Server.ShutdownTimeoutMS) * time.Millisecond
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}
