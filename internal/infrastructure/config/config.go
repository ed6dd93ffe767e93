package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all client configuration
type Config struct {
	Backend BackendConfig `yaml:"backend" toml:"backend"`
	Stream  StreamConfig  `yaml:"stream" toml:"stream"`
	Session SessionConfig `yaml:"session" toml:"session"`
	Speech  SpeechConfig  `yaml:"speech" toml:"speech"`
	Logging LogConfig     `yaml:"logging" toml:"logging"`
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
}

// BackendConfig holds request/response API settings
type BackendConfig struct {
	APIURL    string        `envconfig:"API_URL" default:"http://localhost:8000" yaml:"api_url" toml:"api_url"`
	Timeout   time.Duration `envconfig:"HTTP_TIMEOUT" default:"60s" yaml:"timeout" toml:"timeout"`
	RateLimit float64       `envconfig:"RATE_LIMIT_RPS" default:"0" yaml:"rate_limit_rps" toml:"rate_limit_rps"`
}

// StreamConfig holds streaming channel settings
type StreamConfig struct {
	WSURL                string        `envconfig:"WS_URL" default:"ws://localhost:8000" yaml:"ws_url" toml:"ws_url"`
	MaxReconnectAttempts int           `envconfig:"RECONNECT_MAX" default:"5" yaml:"reconnect_max" toml:"reconnect_max"`
	ReconnectDelay       time.Duration `envconfig:"RECONNECT_DELAY" default:"1s" yaml:"reconnect_delay" toml:"reconnect_delay"`
}

// SessionConfig holds the persisted session id location
type SessionConfig struct {
	File string `envconfig:"SESSION_FILE" default:"" yaml:"file" toml:"file"`
}

// SpeechConfig holds optional TTS/STT settings
type SpeechConfig struct {
	APIKey   string `envconfig:"OPENAI_API_KEY" yaml:"api_key" toml:"api_key"`
	TTSModel string `envconfig:"TTS_MODEL" default:"gpt-4o-mini-tts" yaml:"tts_model" toml:"tts_model"`
	STTModel string `envconfig:"STT_MODEL" default:"whisper-1" yaml:"stt_model" toml:"stt_model"`
	Voice    string `envconfig:"TTS_VOICE" default:"alloy" yaml:"voice" toml:"voice"`
	Language string `envconfig:"STT_LANGUAGE" default:"ro" yaml:"language" toml:"language"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development" toml:"development"`
}

// MetricsConfig holds the optional scrape endpoint
type MetricsConfig struct {
	Addr string `envconfig:"METRICS_ADDR" default:"" yaml:"addr" toml:"addr"`
}

// Enabled reports whether speech services are configured
func (s SpeechConfig) Enabled() bool {
	return s.APIKey != ""
}

// Load loads configuration from a .env file (if present) and environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile loads environment configuration and then overlays a YAML or TOML file.
// Fields absent from the file keep their environment/default values.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			APIURL:  "http://localhost:8000",
			Timeout: 60 * time.Second,
		},
		Stream: StreamConfig{
			WSURL:                "ws://localhost:8000",
			MaxReconnectAttempts: 5,
			ReconnectDelay:       time.Second,
		},
		Speech: SpeechConfig{
			TTSModel: "gpt-4o-mini-tts",
			STTModel: "whisper-1",
			Voice:    "alloy",
			Language: "ro",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}

// Validate checks URLs and numeric bounds
func (c *Config) Validate() error {
	if err := checkURL(c.Backend.APIURL, "http", "https"); err != nil {
		return fmt.Errorf("invalid API_URL: %w", err)
	}
	if err := checkURL(c.Stream.WSURL, "ws", "wss"); err != nil {
		return fmt.Errorf("invalid WS_URL: %w", err)
	}
	if c.Stream.MaxReconnectAttempts < 0 {
		return fmt.Errorf("RECONNECT_MAX must not be negative")
	}
	if c.Stream.ReconnectDelay <= 0 {
		return fmt.Errorf("RECONNECT_DELAY must be positive")
	}
	if c.Backend.RateLimit < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative")
	}
	return nil
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("missing host in %q", raw)
			}
			return nil
		}
	}
	return fmt.Errorf("scheme %q not in %v", u.Scheme, schemes)
}
