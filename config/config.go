// Package config loads runtime settings from defaults, an optional YAML
// file and TALECORE_* environment variables, in that order.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/nathoo/talecore/engine/save"
)

// EnvPrefix prefixes every environment variable the config reads.
const EnvPrefix = "TALECORE_"

// Config holds all runtime settings.
type Config struct {
	Environment string `yaml:"environment" env:"ENV"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL"`
	ContentDir  string `yaml:"content_dir" env:"CONTENT_DIR"`

	Save SaveConfig `yaml:"save" envPrefix:"SAVE_"`

	// Seed fixes the skill-check RNG; zero seeds from the clock.
	Seed int64 `yaml:"seed" env:"SEED"`

	// Overrides for the story's starting values; zero keeps the story's.
	ArtifactSlots int `yaml:"artifact_slots" env:"ARTIFACT_SLOTS"`
	PerkPoints    int `yaml:"perk_points" env:"PERK_POINTS"`
}

// SaveConfig selects the snapshot store.
type SaveConfig struct {
	Backend    string `yaml:"backend" env:"BACKEND"`
	Dir        string `yaml:"dir" env:"DIR"`
	RedisAddr  string `yaml:"redis_addr" env:"REDIS_ADDR"`
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH"`
	Compress   bool   `yaml:"compress" env:"COMPRESS"`
}

// Default returns the built-in settings.
func Default() Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".talecore")
	return Config{
		Environment: "development",
		LogLevel:    "warn",
		Save: SaveConfig{
			Backend:    save.BackendFile,
			Dir:        filepath.Join(base, "saves"),
			RedisAddr:  "localhost:6379",
			SQLitePath: filepath.Join(base, "saves.db"),
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies the
// environment. A missing file is not an error; an empty path skips it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	switch c.Save.Backend {
	case save.BackendFile, save.BackendRedis, save.BackendSQLite:
	default:
		return fmt.Errorf("invalid save backend %q", c.Save.Backend)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.ArtifactSlots < 0 || c.PerkPoints < 0 {
		return fmt.Errorf("artifact_slots and perk_points must not be negative")
	}
	return nil
}

// Level returns the parsed log level, defaulting to warn.
func (c Config) Level() slog.Level {
	l, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelWarn
	}
	return l
}

// IsProduction reports whether logs should be machine-readable.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// StoreOptions maps the save settings onto the store factory.
func (c Config) StoreOptions() save.Options {
	return save.Options{
		Backend:    c.Save.Backend,
		Dir:        c.Save.Dir,
		RedisAddr:  c.Save.RedisAddr,
		SQLitePath: c.Save.SQLitePath,
	}
}

// ParseLevel maps a level name onto slog. Empty means warn.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, fmt.Errorf("invalid log level %q", s)
	}
}
