// Package config defines the scraper configuration, its defaults, and
// YAML-file loading and saving.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Viewport is a browser viewport size in CSS pixels.
type Viewport struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// Config holds all scraper configuration. Field names map 1:1 onto the YAML
// config file keys.
type Config struct {
	// Core crawl bounds.
	MaxPages         int `mapstructure:"max_pages" yaml:"max_pages"`
	MaxDepth         int `mapstructure:"max_depth" yaml:"max_depth"`
	ConcurrencyPages int `mapstructure:"concurrency_pages" yaml:"concurrency_pages"`

	// Timeouts and delays (milliseconds, as in the config file).
	NavigationTimeoutMS int `mapstructure:"navigation_timeout_ms" yaml:"navigation_timeout_ms"`
	NetworkIdleMS       int `mapstructure:"network_idle_ms" yaml:"network_idle_ms"`
	PageDelayMS         int `mapstructure:"page_delay_ms" yaml:"page_delay_ms"`

	// Content filtering.
	SaveContentTypes  []string `mapstructure:"save_content_types" yaml:"save_content_types"`
	BlockHostPatterns []string `mapstructure:"block_host_patterns" yaml:"block_host_patterns"`

	// Browser settings.
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	UserAgent       string   `mapstructure:"user_agent" yaml:"user_agent"`
	ViewportDesktop Viewport `mapstructure:"viewport_desktop" yaml:"viewport_desktop"`
	ViewportMobile  Viewport `mapstructure:"viewport_mobile" yaml:"viewport_mobile"`

	// Output toggles.
	SaveScreenshots    bool `mapstructure:"save_screenshots" yaml:"save_screenshots"`
	SaveHTML           bool `mapstructure:"save_html" yaml:"save_html"`
	SaveMarkdown       bool `mapstructure:"save_markdown" yaml:"save_markdown"`
	SaveAssets         bool `mapstructure:"save_assets" yaml:"save_assets"`
	CollectUIInventory bool `mapstructure:"collect_ui_inventory" yaml:"collect_ui_inventory"`

	// Advanced settings.
	RetryFailedPages bool              `mapstructure:"retry_failed_pages" yaml:"retry_failed_pages"`
	MaxRetries       int               `mapstructure:"max_retries" yaml:"max_retries"`
	AllowCrossOrigin bool              `mapstructure:"allow_cross_origin" yaml:"allow_cross_origin"`
	RespectRobotsTxt bool              `mapstructure:"respect_robots_txt" yaml:"respect_robots_txt"`
	CustomHeaders    map[string]string `mapstructure:"custom_headers" yaml:"custom_headers"`

	Log LogConfig `mapstructure:"log" yaml:"log"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // default: "info"
	Format string `mapstructure:"format" yaml:"format"` // "json" or "text"; default: "text"
}

// NavigationTimeout returns the per-navigation deadline.
func (c *Config) NavigationTimeout() time.Duration {
	return time.Duration(c.NavigationTimeoutMS) * time.Millisecond
}

// PageDelay returns the configured inter-page delay.
func (c *Config) PageDelay() time.Duration {
	return time.Duration(c.PageDelayMS) * time.Millisecond
}

// NetworkIdle returns the DOM-stability window waited after navigation.
func (c *Config) NetworkIdle() time.Duration {
	return time.Duration(c.NetworkIdleMS) * time.Millisecond
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

func setDefaults(v *viper.Viper) {
	v.SetDefault("max_pages", 200)
	v.SetDefault("max_depth", 3)
	v.SetDefault("concurrency_pages", 4)

	v.SetDefault("navigation_timeout_ms", 30000)
	v.SetDefault("network_idle_ms", 1500)
	v.SetDefault("page_delay_ms", 100)

	v.SetDefault("save_content_types", []string{
		"text/html", "text/css", "application/javascript",
		"application/x-javascript", "image/", "font/",
	})
	v.SetDefault("block_host_patterns", []string{
		`googletagmanager\.com`, `google-analytics\.com`, `hotjar\.com`,
		`facebook\.com`, `doubleclick\.net`, `googlesyndication\.com`,
	})

	v.SetDefault("headless", true)
	v.SetDefault("user_agent", defaultUserAgent)
	v.SetDefault("viewport_desktop.width", 1920)
	v.SetDefault("viewport_desktop.height", 1080)
	v.SetDefault("viewport_mobile.width", 390)
	v.SetDefault("viewport_mobile.height", 844)

	v.SetDefault("save_screenshots", true)
	v.SetDefault("save_html", true)
	v.SetDefault("save_markdown", false)
	v.SetDefault("save_assets", true)
	v.SetDefault("collect_ui_inventory", true)

	v.SetDefault("retry_failed_pages", true)
	v.SetDefault("max_retries", 3)
	v.SetDefault("allow_cross_origin", false)
	v.SetDefault("respect_robots_txt", false)
	v.SetDefault("custom_headers", map[string]string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Unmarshalling pure defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads the YAML file at path on top of the defaults. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Save writes the configuration to path as YAML, for --save-config.
func (c *Config) Save(path string) error {
	v := viper.New()

	v.Set("max_pages", c.MaxPages)
	v.Set("max_depth", c.MaxDepth)
	v.Set("concurrency_pages", c.ConcurrencyPages)
	v.Set("navigation_timeout_ms", c.NavigationTimeoutMS)
	v.Set("network_idle_ms", c.NetworkIdleMS)
	v.Set("page_delay_ms", c.PageDelayMS)
	v.Set("save_content_types", c.SaveContentTypes)
	v.Set("block_host_patterns", c.BlockHostPatterns)
	v.Set("headless", c.Headless)
	v.Set("user_agent", c.UserAgent)
	v.Set("viewport_desktop.width", c.ViewportDesktop.Width)
	v.Set("viewport_desktop.height", c.ViewportDesktop.Height)
	v.Set("viewport_mobile.width", c.ViewportMobile.Width)
	v.Set("viewport_mobile.height", c.ViewportMobile.Height)
	v.Set("save_screenshots", c.SaveScreenshots)
	v.Set("save_html", c.SaveHTML)
	v.Set("save_markdown", c.SaveMarkdown)
	v.Set("save_assets", c.SaveAssets)
	v.Set("collect_ui_inventory", c.CollectUIInventory)
	v.Set("retry_failed_pages", c.RetryFailedPages)
	v.Set("max_retries", c.MaxRetries)
	v.Set("allow_cross_origin", c.AllowCrossOrigin)
	v.Set("respect_robots_txt", c.RespectRobotsTxt)
	v.Set("custom_headers", c.CustomHeaders)
	v.Set("log.level", c.Log.Level)
	v.Set("log.format", c.Log.Format)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("save config %s: %w", path, err)
	}
	return nil
}
