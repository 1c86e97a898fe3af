// Package config loads CKG configuration from .ckg/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete CKG configuration
type Config struct {
	Version  int    `json:"version" mapstructure:"version"`
	RepoRoot string `json:"repoRoot" mapstructure:"repoRoot"`

	Store     StoreConfig     `json:"store" mapstructure:"store"`
	Embedding EmbeddingConfig `json:"embedding" mapstructure:"embedding"`
	Lens      LensConfig      `json:"lens" mapstructure:"lens"`
	Query     QueryConfig     `json:"query" mapstructure:"query"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
}

// StoreConfig contains graph store configuration
type StoreConfig struct {
	// BusyTimeoutMs is passed to the sqlite busy_timeout pragma
	BusyTimeoutMs int `json:"busyTimeoutMs" mapstructure:"busyTimeoutMs"`
	// ReopenDelayMs is the pause callers should insert between a close
	// and the next open, letting the engine release its lock
	ReopenDelayMs int `json:"reopenDelayMs" mapstructure:"reopenDelayMs"`
}

// EmbeddingConfig contains embedding backend configuration
type EmbeddingConfig struct {
	Enabled      bool   `json:"enabled" mapstructure:"enabled"`
	ModelDir     string `json:"modelDir" mapstructure:"modelDir"`
	TensorName   string `json:"tensorName" mapstructure:"tensorName"`
	MaxWordChars int    `json:"maxWordChars" mapstructure:"maxWordChars"`
	// MockDims enables the deterministic mock backend with the given
	// dimensionality when no model directory is configured
	MockDims int `json:"mockDims" mapstructure:"mockDims"`
}

// LensConfig contains lens configuration
type LensConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// QueryConfig contains retrieval configuration
type QueryConfig struct {
	DefaultLimit int `json:"defaultLimit" mapstructure:"defaultLimit"`
	MaxLimit     int `json:"maxLimit" mapstructure:"maxLimit"`
	PreviewChars int `json:"previewChars" mapstructure:"previewChars"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
}

// Default returns the default configuration rooted at repoRoot.
func Default(repoRoot string) *Config {
	return &Config{
		Version:  1,
		RepoRoot: repoRoot,
		Store: StoreConfig{
			BusyTimeoutMs: 5000,
			ReopenDelayMs: 50,
		},
		Embedding: EmbeddingConfig{
			Enabled:      true,
			TensorName:   "embeddings.word_embeddings.weight",
			MaxWordChars: 100,
			MockDims:     64,
		},
		Lens: LensConfig{
			Path: filepath.Join(repoRoot, ".ckg", "lens.yaml"),
		},
		Query: QueryConfig{
			DefaultLimit: 10,
			MaxLimit:     50,
			PreviewChars: 240,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "human",
		},
	}
}

// Load reads .ckg/config.yaml under repoRoot, applying defaults for any
// missing keys. A missing config file is not an error.
func Load(repoRoot string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(repoRoot, ".ckg"))

	def := Default(repoRoot)
	v.SetDefault("version", def.Version)
	v.SetDefault("store.busyTimeoutMs", def.Store.BusyTimeoutMs)
	v.SetDefault("store.reopenDelayMs", def.Store.ReopenDelayMs)
	v.SetDefault("embedding.enabled", def.Embedding.Enabled)
	v.SetDefault("embedding.tensorName", def.Embedding.TensorName)
	v.SetDefault("embedding.maxWordChars", def.Embedding.MaxWordChars)
	v.SetDefault("embedding.mockDims", def.Embedding.MockDims)
	v.SetDefault("lens.path", def.Lens.Path)
	v.SetDefault("query.defaultLimit", def.Query.DefaultLimit)
	v.SetDefault("query.maxLimit", def.Query.MaxLimit)
	v.SetDefault("query.previewChars", def.Query.PreviewChars)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.RepoRoot = repoRoot
	return &cfg, nil
}

// Save writes the configuration to .ckg/config.yaml under cfg.RepoRoot.
func Save(cfg *Config) error {
	dir := filepath.Join(cfg.RepoRoot, ".ckg")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating .ckg directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("version", cfg.Version)
	v.Set("store", map[string]interface{}{
		"busyTimeoutMs": cfg.Store.BusyTimeoutMs,
		"reopenDelayMs": cfg.Store.ReopenDelayMs,
	})
	v.Set("embedding", map[string]interface{}{
		"enabled":      cfg.Embedding.Enabled,
		"modelDir":     cfg.Embedding.ModelDir,
		"tensorName":   cfg.Embedding.TensorName,
		"maxWordChars": cfg.Embedding.MaxWordChars,
		"mockDims":     cfg.Embedding.MockDims,
	})
	v.Set("lens", map[string]interface{}{"path": cfg.Lens.Path})
	v.Set("query", map[string]interface{}{
		"defaultLimit": cfg.Query.DefaultLimit,
		"maxLimit":     cfg.Query.MaxLimit,
		"previewChars": cfg.Query.PreviewChars,
	})
	v.Set("logging", map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	})

	return v.WriteConfigAs(filepath.Join(dir, "config.yaml"))
}
