// Package config loads and validates the YAML configuration file.
package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads and validates the config at path. Credentials may also come
// from the environment: PAPERTRADE_API_KEY / PAPERTRADE_API_SECRET and
// the Telegram pair override the file values when set.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PAPERTRADE_API_KEY"); v != "" {
		c.Live.APIKey = v
	}
	if v := os.Getenv("PAPERTRADE_API_SECRET"); v != "" {
		c.Live.APISecret = v
	}
	if v := os.Getenv("PAPERTRADE_TG_TOKEN"); v != "" {
		c.Notify.Telegram.BotToken = v
	}
	if v := os.Getenv("PAPERTRADE_TG_CHAT"); v != "" {
		c.Notify.Telegram.ChatID = v
	}
}

// Dump serializes the config to YAML with credentials masked, for the
// /api/config endpoint.
func (c *Config) Dump() ([]byte, error) {
	redacted := *c
	redacted.Live.APIKey = mask(redacted.Live.APIKey)
	redacted.Live.APISecret = mask(redacted.Live.APISecret)
	redacted.Notify.Telegram.BotToken = mask(redacted.Notify.Telegram.BotToken)
	return yaml.Marshal(redacted)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}
