// Package config provides configuration loading and validation for the
// telepharm pipeline. Values come from defaults, an optional config.yaml,
// and TELEPHARM_-prefixed environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds the full application configuration. It is constructed once
// at process start and passed by reference into each component; there is
// no ambient global configuration state.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Lake      LakeConfig      `mapstructure:"lake"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Server    ServerConfig    `mapstructure:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig configures the scraping collaborator. Channels restricts
// collection to the named public channels; empty means collect from every
// channel the bot can see.
type TelegramConfig struct {
	Token    string   `mapstructure:"token"`
	Channels []string `mapstructure:"channels"`
}

// LakeConfig describes the date/channel-partitioned raw file store.
type LakeConfig struct {
	DataDir string `mapstructure:"data_dir" validate:"required"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// DetectorConfig selects and configures the object-detection collaborator.
type DetectorConfig struct {
	Backend string             `mapstructure:"backend" validate:"oneof=none http gemini"`
	HTTP    HTTPDetectorConfig `mapstructure:"http"`
	Gemini  GeminiConfig       `mapstructure:"gemini"`
	MinConf float64            `mapstructure:"min_confidence" validate:"min=0,max=1"`
}

type HTTPDetectorConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type GeminiConfig struct {
	APIKey            string `mapstructure:"api_key"`
	Model             string `mapstructure:"model"`
	MaxRetries        int    `mapstructure:"max_retries" validate:"min=0,max=10"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"min=0"`
}

// AnalyticsConfig tunes the read-only query layer. TermPattern is the
// token-extraction rule for the top-products report; it is deliberately
// configurable because the default first-alphabetic-run rule is a naive
// placeholder, not an NLP pipeline.
type AnalyticsConfig struct {
	TermPattern        string `mapstructure:"term_pattern" validate:"required"`
	ActivityWindowDays int    `mapstructure:"activity_window_days" validate:"min=1,max=365"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// TaskConfig enables and schedules one recurring pipeline task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// SchedulerConfig drives the daily pipeline. Task keys are looked up in the
// task registry; unknown keys are logged and skipped.
type SchedulerConfig struct {
	Timezone string                `mapstructure:"timezone" validate:"required"`
	Tasks    map[string]TaskConfig `mapstructure:"tasks"`
}

// Load reads configuration from the given path (optional file), applies
// defaults and environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("TELEPHARM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env still apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", true)

	v.SetDefault("lake.data_dir", "./data")
	v.SetDefault("database.path", "telepharm.db")

	v.SetDefault("detector.backend", "none")
	v.SetDefault("detector.min_confidence", 0.0)
	v.SetDefault("detector.http.base_url", "http://localhost:8500")
	v.SetDefault("detector.http.timeout", 30*time.Second)
	v.SetDefault("detector.gemini.model", "gemini-2.0-flash")
	v.SetDefault("detector.gemini.max_retries", 2)
	v.SetDefault("detector.gemini.retry_delay_seconds", 5)

	v.SetDefault("analytics.term_pattern", "[A-Za-z]+")
	v.SetDefault("analytics.activity_window_days", 30)

	v.SetDefault("server.addr", ":8000")

	v.SetDefault("scheduler.timezone", "Africa/Addis_Ababa")
	v.SetDefault("scheduler.tasks", map[string]TaskConfig{
		"flush_lake":      {Enabled: true, Schedule: "0 0 * * *"},
		"load_raw":        {Enabled: true, Schedule: "10 0 * * *"},
		"transform_marts": {Enabled: true, Schedule: "20 0 * * *"},
		"detect_objects":  {Enabled: false, Schedule: "30 0 * * *"},
	})
}
