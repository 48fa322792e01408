// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // terminal try-on status cache TTL
}

type StorageConfig struct {
	URL        string        `yaml:"url"` // Supabase project URL
	ServiceKey string        `yaml:"service_key"`
	Bucket     string        `yaml:"bucket"`
	Timeout    time.Duration `yaml:"timeout"`
}

type DesignConfig struct {
	Provider  string        `yaml:"provider"` // openai | gemini | noop
	OpenAIKey string        `yaml:"openai_key"`
	GeminiKey string        `yaml:"gemini_key"`
	GeminiURL string        `yaml:"gemini_url"`
	Model     string        `yaml:"model"`
	Timeout   time.Duration `yaml:"timeout"`
}

type TryOnConfig struct {
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"api_key"`
	Model         string        `yaml:"model"`
	SubmitTimeout time.Duration `yaml:"submit_timeout"`
	PollTimeout   time.Duration `yaml:"poll_timeout"`
	Retries       int           `yaml:"retries"`       // extra attempts after the first
	RetryBackoff  time.Duration `yaml:"retry_backoff"` // base for exponential backoff
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type RateLimitConfig struct {
	GeneratePerMinute int `yaml:"generate_per_minute"`
}

type WorkerConfig struct {
	CleanupWorkers int `yaml:"cleanup_workers"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Design    DesignConfig    `yaml:"design"`
	TryOn     TryOnConfig     `yaml:"tryon"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Worker    WorkerConfig    `yaml:"worker"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Storage.URL == "" || cfg.Storage.Bucket == "" {
		return nil, errors.New("storage.url and storage.bucket are required")
	}
	if cfg.Auth.JWTSecret == "" && !dev {
		return nil, errors.New("auth.jwt_secret is required outside dev mode")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// applyDefaults fills in every knob a provider call depends on; an
// unset timeout is treated as a configuration defect, not "no timeout".
func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 180 * time.Second
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}
	if cfg.Storage.Timeout <= 0 {
		cfg.Storage.Timeout = 30 * time.Second
	}
	if cfg.Design.Provider == "" {
		cfg.Design.Provider = "openai"
	}
	if cfg.Design.Timeout <= 0 {
		cfg.Design.Timeout = 120 * time.Second
	}
	if cfg.TryOn.SubmitTimeout <= 0 {
		cfg.TryOn.SubmitTimeout = 30 * time.Second
	}
	if cfg.TryOn.PollTimeout <= 0 {
		cfg.TryOn.PollTimeout = 15 * time.Second
	}
	if cfg.TryOn.Retries <= 0 {
		cfg.TryOn.Retries = 2
	}
	if cfg.TryOn.RetryBackoff <= 0 {
		cfg.TryOn.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.RateLimit.GeneratePerMinute <= 0 {
		cfg.RateLimit.GeneratePerMinute = 5
	}
	if cfg.Worker.CleanupWorkers <= 0 {
		cfg.Worker.CleanupWorkers = 2
	}
}
