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
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AIConfig struct {
	OpenAIKey    string `yaml:"openai_key"`
	OpenAIURL    string `yaml:"openai_url"` // override for Ollama-compatible servers
	GeminiKey    string `yaml:"gemini_key"`
	GeminiURL    string `yaml:"gemini_url"`
	DefaultModel string `yaml:"default_model"`
	MaxTokensOut int    `yaml:"max_tokens_out"`
}

type ChatConfig struct {
	SessionTimeout    time.Duration `yaml:"session_timeout"`
	ResetTriggerWords []string      `yaml:"reset_trigger_words"`
	HistoryTokenLimit int           `yaml:"history_token_limit"`
	DefaultTestMode   bool          `yaml:"default_test_mode"`
}

type OrganizeConfig struct {
	MaxItemsPerStep int `yaml:"max_items_per_step"`
	// AutoInterval enables periodic background runs when > 0.
	AutoInterval time.Duration `yaml:"auto_interval"`
}

type AdminConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	Password   string        `yaml:"password"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Chat     ChatConfig     `yaml:"chat"`
	Organize OrganizeConfig `yaml:"organize"`
	Admin    AdminConfig    `yaml:"admin"`

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
	// defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = 24 * time.Hour
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}
	if cfg.AI.MaxTokensOut <= 0 {
		cfg.AI.MaxTokensOut = 1024
	}
	if cfg.Chat.SessionTimeout <= 0 {
		cfg.Chat.SessionTimeout = 30 * time.Minute
	}
	if cfg.Chat.HistoryTokenLimit <= 0 {
		cfg.Chat.HistoryTokenLimit = 4000
	}
	if cfg.Organize.MaxItemsPerStep <= 0 {
		cfg.Organize.MaxItemsPerStep = 20
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
