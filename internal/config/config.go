// Package config provides configuration management for the account console.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"dhan-trader/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Alerts  AlertsConfig  `mapstructure:"alerts"`
	Search  SearchConfig  `mapstructure:"search"`
	Trading TradingConfig `mapstructure:"trading"`
	Logging LoggingConfig `mapstructure:"logging"`
	UI      UIConfig      `mapstructure:"ui"`
}

// BackendConfig holds the connection settings for the automation backend.
type BackendConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

// SyncConfig holds account synchronizer settings.
type SyncConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// AlertsConfig holds alert ledger settings.
type AlertsConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	EvictInterval time.Duration `mapstructure:"evict_interval"`
	TTL           time.Duration `mapstructure:"ttl"`
	MaxLog        int           `mapstructure:"max_log"`
}

// SearchConfig holds instrument search settings.
type SearchConfig struct {
	Debounce       time.Duration `mapstructure:"debounce"`
	MinLength      int           `mapstructure:"min_length"`
	DefaultSegment string        `mapstructure:"default_segment"`
}

// TradingConfig holds order defaults.
type TradingConfig struct {
	DefaultProduct   string `mapstructure:"default_product"`   // DELIVERY, CNC, INTRADAY
	DefaultValidity  string `mapstructure:"default_validity"`  // DAY, IOC
	DefaultOrderType string `mapstructure:"default_order_type"` // MARKET, LIMIT
	ConfirmCancel    bool   `mapstructure:"confirm_cancel"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`
	Console        bool   `mapstructure:"console"`
	File           bool   `mapstructure:"file"`
	FilePath       string `mapstructure:"file_path"`
	AlertTracePath string `mapstructure:"alert_trace_path"`
}

// UIConfig holds output-related configuration.
type UIConfig struct {
	ColorEnabled  bool          `mapstructure:"color_enabled"`
	TimeFormat    string        `mapstructure:"time_format"`
	NotifyTimeout time.Duration `mapstructure:"notify_timeout"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/dhan-trader"
	}
	return filepath.Join(home, ".config", "dhan-trader")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A commented
// template is written when no config.toml exists yet.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir, "config"); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no file overrides anything.
func Default() *Config {
	v := viper.New()
	setDefaults(v, DefaultConfigDir())
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("backend.base_url", "http://127.0.0.1:8000")
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("backend.retry_attempts", 2)
	v.SetDefault("backend.retry_delay", 250*time.Millisecond)

	v.SetDefault("sync.interval", 30*time.Second)

	v.SetDefault("alerts.poll_interval", 5*time.Second)
	v.SetDefault("alerts.evict_interval", time.Second)
	v.SetDefault("alerts.ttl", 20*time.Second)
	v.SetDefault("alerts.max_log", 200)

	v.SetDefault("search.debounce", 300*time.Millisecond)
	v.SetDefault("search.min_length", 2)
	v.SetDefault("search.default_segment", string(models.SegmentNSEEquity))

	v.SetDefault("trading.default_product", string(models.ProductDelivery))
	v.SetDefault("trading.default_validity", string(models.ValidityDay))
	v.SetDefault("trading.default_order_type", string(models.OrderTypeMarket))
	v.SetDefault("trading.confirm_cancel", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "trader.log"))
	v.SetDefault("logging.alert_trace_path", filepath.Join(configDir, "logs", "alerts.log"))

	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.time_format", "15:04:05")
	v.SetDefault("ui.notify_timeout", 6*time.Second)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DHAN_BACKEND_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("DHAN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute URL: %q", c.Backend.BaseURL)
	}
	if c.Backend.RetryAttempts < 1 {
		return fmt.Errorf("backend.retry_attempts must be at least 1")
	}

	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive")
	}

	if c.Alerts.PollInterval <= 0 || c.Alerts.EvictInterval <= 0 || c.Alerts.TTL <= 0 {
		return fmt.Errorf("alerts intervals and ttl must be positive")
	}
	if c.Alerts.EvictInterval > c.Alerts.PollInterval {
		return fmt.Errorf("alerts.evict_interval must not exceed alerts.poll_interval")
	}
	if c.Alerts.MaxLog < 1 {
		return fmt.Errorf("alerts.max_log must be at least 1")
	}

	if c.Search.MinLength < 1 {
		return fmt.Errorf("search.min_length must be at least 1")
	}
	if _, ok := models.ParseSegment(c.Search.DefaultSegment); !ok {
		return fmt.Errorf("invalid search.default_segment: %s", c.Search.DefaultSegment)
	}

	switch models.OrderType(c.Trading.DefaultOrderType) {
	case models.OrderTypeMarket, models.OrderTypeLimit:
	default:
		return fmt.Errorf("invalid trading.default_order_type: %s (must be MARKET or LIMIT)", c.Trading.DefaultOrderType)
	}
	switch models.Validity(c.Trading.DefaultValidity) {
	case models.ValidityDay, models.ValidityIOC:
	default:
		return fmt.Errorf("invalid trading.default_validity: %s (must be DAY or IOC)", c.Trading.DefaultValidity)
	}

	return nil
}
