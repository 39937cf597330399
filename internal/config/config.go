// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

// Package config loads stockwatch settings from a TOML file, the
// environment, and built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loomkit/loom/stockwatch"
)

// Config holds application configuration.
type Config struct {
	Feed    FeedConfig
	Chart   ChartConfig
	Runtime RuntimeConfig
	Log     LogConfig
	Stocks  []StockConfig
}

// FeedConfig holds quote source settings.
type FeedConfig struct {
	URL    string
	Points int
	Cost   time.Duration
}

// ChartConfig holds presentation settings.
type ChartConfig struct {
	Tick      time.Duration
	Marker    int
	ExportDir string `mapstructure:"export_dir"`
}

// RuntimeConfig holds scheduler settings.
type RuntimeConfig struct {
	Workers int
}

// LogConfig holds log and trace output paths. An empty Trace disables
// trace export.
type LogConfig struct {
	Path  string
	Trace string
}

// StockConfig is one catalog entry as written in the config file.
type StockConfig struct {
	Name  string
	Key   string
	Color string
}

// Load reads configuration from file and env. Env var overrides use prefix
// STOCKWATCH_; STOCKWATCH_CONFIG points at an explicit config file.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("feed.url", "https://stooq.com/q/d/l/?i=d")
	v.SetDefault("feed.points", 500)
	v.SetDefault("feed.cost", "2s")
	v.SetDefault("chart.tick", "500ms")
	v.SetDefault("chart.marker", 6)
	v.SetDefault("chart.export_dir", ".")
	v.SetDefault("runtime.workers", 0)
	v.SetDefault("log.path", filepath.Join(os.Getenv("HOME"), ".local", "state", "stockwatch", "stockwatch.log"))
	v.SetDefault("log.trace", "")
	v.SetDefault("stocks", []map[string]any{
		{"name": "Microsoft", "key": "msft.us", "color": "#001ebe"},
		{"name": "Apple", "key": "aapl.us", "color": "#7d7d7d"},
		{"name": "Alphabet", "key": "googl.us", "color": "#d83a2e"},
	})

	v.SetConfigType("toml")

	cfgPath := os.Getenv("STOCKWATCH_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "stockwatch"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("STOCKWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Catalog converts the configured stock entries into the workflow's stock
// type, validating colors along the way.
func (c Config) Catalog() ([]stockwatch.Stock, error) {
	if len(c.Stocks) == 0 {
		return nil, fmt.Errorf("no stocks configured")
	}
	stocks := make([]stockwatch.Stock, len(c.Stocks))
	for i, s := range c.Stocks {
		col, err := ParseColor(s.Color)
		if err != nil {
			return nil, fmt.Errorf("stock %q: %w", s.Key, err)
		}
		stocks[i] = stockwatch.Stock{Name: s.Name, Key: s.Key, Color: col}
	}
	return stocks, nil
}

// ParseColor parses a "#rrggbb" hex color, with the "#" optional.
func ParseColor(s string) (stockwatch.Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 {
		return stockwatch.Color{}, fmt.Errorf("color %q: want 6 hex digits", s)
	}
	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return stockwatch.Color{}, fmt.Errorf("color %q: %w", s, err)
	}
	return stockwatch.Color{
		R: uint8(n >> 16),
		G: uint8(n >> 8),
		B: uint8(n),
	}, nil
}
