// Package config loads the vme configuration: a YAML file with environment
// variable expansion, validated after loading.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

// Load loads configuration from a YAML file with environment variable expansion.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	return validate(target)
}

// LoadOrDefault loads filename over target. A missing file is not an error:
// target keeps its values, and is validated as is.
func LoadOrDefault[T any](filename string, target *T) error {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return validate(target)
	}
	return Load(filename, target)
}

func validate(target any) error {
	if v, ok := target.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}

// Config is the vme configuration.
type Config struct {
	LogLevel slog.Level    `yaml:"log_level"`
	Market   MarketConfig  `yaml:"market"`
	History  HistoryConfig `yaml:"history"`
	AI       AIConfig      `yaml:"ai"`
	HTTP     HTTPConfig    `yaml:"http"`
	Calc     CalcConfig    `yaml:"calc"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Market.Validate(); err != nil {
		return fmt.Errorf("market: %w", err)
	}
	if err := c.History.Validate(); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("ai: %w", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	if err := c.Calc.Validate(); err != nil {
		return fmt.Errorf("calc: %w", err)
	}
	return nil
}

// MarketConfig tells where market data comes from. Without a base URL, the
// built-in static market is used.
type MarketConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Cache       bool          `yaml:"cache"`
	CacheDir    string        `yaml:"cache_dir"`    // defaults to the user cache directory
	CachePeriod time.Duration `yaml:"cache_period"` // how long responses are reused
	Timeout     time.Duration `yaml:"timeout"`
	Sector      string        `yaml:"sector"` // default sector for leverage multiples
}

// Offline reports whether the static market must be used.
func (c *MarketConfig) Offline() bool { return c.BaseURL == "" }

// Validate validates the market configuration.
func (c *MarketConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.By(absoluteURL)),
		validation.Field(&c.CachePeriod, validation.Min(time.Duration(0))),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Duration(0))),
	)
}

// HistoryConfig bounds the undo history.
type HistoryConfig struct {
	Limit int `yaml:"limit"` // 0 is unbounded
}

// Validate validates the history configuration.
func (c *HistoryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Limit, validation.Min(0)),
	)
}

// AIConfig configures the suggestion model. The API key is read from the
// environment by the genai client.
type AIConfig struct {
	Model         string  `yaml:"model"`
	MinConfidence float64 `yaml:"min_confidence"`
}

// Validate validates the AI configuration.
func (c *AIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.MinConfidence, validation.Min(0.0), validation.Max(1.0)),
	)
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// CalcConfig locates the valuation calculation service.
type CalcConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

// Validate validates the calculation service configuration.
func (c *CalcConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.By(absoluteURL)),
	)
}

func absoluteURL(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return errors.New("must be an absolute http(s) URL")
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		LogLevel: slog.LevelInfo,
		Market: MarketConfig{
			Cache:       true,
			CachePeriod: time.Hour,
			Timeout:     10 * time.Second,
		},
		AI: AIConfig{
			Model:         "gemini-2.5-flash",
			MinConfidence: 0.5,
		},
		HTTP: HTTPConfig{
			Port: 8080,
		},
	}
}
