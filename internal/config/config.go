// Package config handles configuration loading, validation, and management for t9d.
package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"t9d/internal/ime"
)

// Version is the current configuration schema version.
const Version = 1

// Environment variables read by the loader.
const (
	EnvConfig        = "T9D_CONFIG"
	EnvLanguages     = "T9D_LANGUAGES"
	EnvMaxCandidates = "T9D_MAX_CANDIDATES"
	EnvWordlistDir   = "T9D_WORDLIST_DIR"
	EnvUserDictDir   = "T9D_USER_DICT_DIR"
	EnvLogLevel      = "T9D_LOG_LEVEL"
)

// Config holds the complete input method configuration.
type Config struct {
	// Version is the configuration schema version for migrations.
	// Files without one are treated as the legacy layout.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Languages are the active language codes, highest priority first.
	Languages []string `toml:"languages" json:"languages" yaml:"languages" validate:"required,min=1,dive,required"`

	// WordlistDir holds one <lang>.txt per language.
	WordlistDir string `toml:"wordlist_dir" json:"wordlist_dir" yaml:"wordlist_dir" validate:"required"`

	// UserDictDir holds the learned words of each language.
	UserDictDir string `toml:"user_dict_dir" json:"user_dict_dir" yaml:"user_dict_dir"`

	// CommentPrefix marks ignored wordlist lines.
	CommentPrefix string `toml:"comment_prefix" json:"comment_prefix" yaml:"comment_prefix" validate:"required"`

	// MaxCandidates caps the candidate strip.
	MaxCandidates int `toml:"max_candidates" json:"max_candidates" yaml:"max_candidates" validate:"min=1,max=50"`

	// Punctuation is the cycle of the 1 key.
	Punctuation []string `toml:"punctuation" json:"punctuation" yaml:"punctuation" validate:"dive,required"`

	// DiacriticOverrides maps single characters to digits 2-9.
	DiacriticOverrides map[string]string `toml:"diacritic_overrides" json:"diacritic_overrides" yaml:"diacritic_overrides"`

	// LearnOnConfirm records every confirmed word, not only those
	// confirmed with the learn key.
	LearnOnConfirm bool `toml:"learn_on_confirm" json:"learn_on_confirm" yaml:"learn_on_confirm"`

	Learning LearningConfig `toml:"learning" json:"learning" yaml:"learning"`
	Overlay  OverlayConfig  `toml:"overlay" json:"overlay" yaml:"overlay"`
	Logging  LoggingConfig  `toml:"logging" json:"logging" yaml:"logging"`
	Watch    WatchConfig    `toml:"watch" json:"watch" yaml:"watch"`
}

// LearningConfig holds persistence of learned words.
type LearningConfig struct {
	// Backend is "file", "sqlite" or "memory".
	Backend string `toml:"backend" json:"backend" yaml:"backend" validate:"oneof=file sqlite memory"`

	// SQLitePath is the database used by the sqlite backend.
	SQLitePath string `toml:"sqlite_path" json:"sqlite_path" yaml:"sqlite_path" validate:"required_if=Backend sqlite"`

	// FlushIntervalMs is the periodic flush interval. 0 flushes only on
	// batch size and shutdown.
	FlushIntervalMs int `toml:"flush_interval_ms" json:"flush_interval_ms" yaml:"flush_interval_ms" validate:"min=0"`

	// BatchSize flushes a language after this many confirms. 0 disables it.
	BatchSize int `toml:"batch_size" json:"batch_size" yaml:"batch_size" validate:"min=0"`
}

// OverlayConfig positions the candidate strip next to the caret.
type OverlayConfig struct {
	OffsetX int     `toml:"offset_x" json:"offset_x" yaml:"offset_x"`
	OffsetY int     `toml:"offset_y" json:"offset_y" yaml:"offset_y"`
	Opacity float64 `toml:"opacity" json:"opacity" yaml:"opacity" validate:"gte=0,lte=1"`

	// MaxCandidates is where the legacy layout kept the candidate limit.
	//
	// Deprecated: use Config.MaxCandidates. Migration moves it.
	MaxCandidates int `toml:"max_candidates,omitempty" json:"max_candidates,omitempty" yaml:"max_candidates,omitempty"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `toml:"level" json:"level" yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`

	// Format is "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format" validate:"omitempty,oneof=text json"`

	// Output is "stderr", "stdout", "file" or "both".
	Output string `toml:"output" json:"output" yaml:"output" validate:"omitempty,oneof=stderr stdout file both"`

	// FilePath is the log file for the "file" and "both" outputs.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	MaxSizeMB  int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb" validate:"min=0"`
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups" validate:"min=0"`
}

// WatchConfig controls reloading of wordlists while running.
type WatchConfig struct {
	Wordlists  bool `toml:"wordlists" json:"wordlists" yaml:"wordlists"`
	DebounceMs int  `toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms" validate:"min=0"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	dataDir := PlatformDataDir()
	return &Config{
		Version:       Version,
		Languages:     []string{"en"},
		WordlistDir:   filepath.Join(dataDir, "wordlists"),
		UserDictDir:   filepath.Join(dataDir, "user"),
		CommentPrefix: "#",
		MaxCandidates: ime.DefaultMaxCandidates,
		Punctuation:   slices.Clone(ime.DefaultPunctuation),
		Learning: LearningConfig{
			Backend:         "file",
			SQLitePath:      filepath.Join(dataDir, "learning.db"),
			FlushIntervalMs: int(ime.DefaultFlushInterval / time.Millisecond),
			BatchSize:       ime.DefaultBatchSize,
		},
		Overlay: OverlayConfig{
			OffsetX: 16,
			OffsetY: 24,
			Opacity: 0.93,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "t9d.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Watch: WatchConfig{
			Wordlists:  false,
			DebounceMs: 250,
		},
	}
}

// Load loads the configuration from path, or from the first file found by
// FindConfigFile when path is empty. With no file at all it returns the
// defaults with environment overrides applied.
func Load(path string) (*Config, error) {
	if path == "" {
		path = FindConfigFile()
	}
	if path == "" {
		cfg, err := LoadFromEnv()
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return NewLoader(path).Load()
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ApplyEnvOverrides applies T9D_* environment variables. Malformed values
// are reported and leave the field unchanged.
func (c *Config) ApplyEnvOverrides() error {
	var errs ValidationErrors

	if v := os.Getenv(EnvLanguages); v != "" {
		c.Languages = splitList(v)
	}
	if v := os.Getenv(EnvMaxCandidates); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   EnvMaxCandidates,
				Message: fmt.Sprintf("not an integer: %q", v),
			})
		} else {
			c.MaxCandidates = n
		}
	}
	if v := os.Getenv(EnvWordlistDir); v != "" {
		c.WordlistDir = v
	}
	if v := os.Getenv(EnvUserDictDir); v != "" {
		c.UserDictDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// splitList splits a comma separated list, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Languages = slices.Clone(c.Languages)
	clone.Punctuation = slices.Clone(c.Punctuation)
	clone.DiacriticOverrides = maps.Clone(c.DiacriticOverrides)
	return &clone
}

// EngineOptions converts the configuration into engine options.
func (c *Config) EngineOptions() ime.Options {
	return ime.Options{
		Languages:          slices.Clone(c.Languages),
		MaxCandidates:      c.MaxCandidates,
		Punctuation:        slices.Clone(c.Punctuation),
		DiacriticOverrides: maps.Clone(c.DiacriticOverrides),
		CommentPrefix:      c.CommentPrefix,
		FlushInterval:      c.FlushInterval(),
		BatchSize:          c.batchSize(),
	}
}

func (c *Config) batchSize() int {
	if c.Learning.BatchSize == 0 {
		return -1
	}
	return c.Learning.BatchSize
}

// FlushInterval returns the learning flush interval. A zero setting
// disables the periodic flush.
func (c *Config) FlushInterval() time.Duration {
	if c.Learning.FlushIntervalMs == 0 {
		return -1
	}
	return time.Duration(c.Learning.FlushIntervalMs) * time.Millisecond
}

// Debounce returns the wordlist watch debounce delay.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}

// WordlistPath returns the wordlist file of lang.
func (c *Config) WordlistPath(lang string) string {
	return filepath.Join(c.WordlistDirPath(), lang+".txt")
}

// WordlistDirPath returns the expanded wordlist directory.
func (c *Config) WordlistDirPath() string {
	return expandPath(c.WordlistDir)
}

// UserDictPath returns the expanded user dictionary directory.
func (c *Config) UserDictPath() string {
	return expandPath(c.UserDictDir)
}
