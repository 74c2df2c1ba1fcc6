package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/jamesainslie/tidy/pkg/tidy/logging"
	"github.com/jamesainslie/tidy/pkg/tidy/types"
)

// EnvPrefix prefixes environment overrides, e.g. TIDY_MODE=copy.
const EnvPrefix = "TIDY"

// SizeBucketConfig routes large files into their own folder.
type SizeBucketConfig struct {
	Threshold string `mapstructure:"threshold" yaml:"threshold"`
	Folder    string `mapstructure:"folder" yaml:"folder"`
}

// DedupeConfig configures duplicate detection.
type DedupeConfig struct {
	Algorithm        string `mapstructure:"algorithm" yaml:"algorithm"`
	Keep             string `mapstructure:"keep" yaml:"keep"`
	DuplicatesFolder string `mapstructure:"duplicates_folder" yaml:"duplicates_folder"`
	Workers          int    `mapstructure:"workers" yaml:"workers"`
}

// CacheConfig configures the fingerprint cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// TrashConfig configures disposal of duplicates.
type TrashConfig struct {
	Path   string `mapstructure:"path" yaml:"path"`
	System bool   `mapstructure:"system" yaml:"system"`
}

// HistoryConfig configures undo log retention.
type HistoryConfig struct {
	RetentionDays int `mapstructure:"retention_days" yaml:"retention_days"`
}

// WatchConfig configures the inbox watcher.
type WatchConfig struct {
	Debounce string `mapstructure:"debounce" yaml:"debounce"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level" yaml:"level"`
	Path       string            `mapstructure:"path" yaml:"path"`
	MaxSize    string            `mapstructure:"max_size" yaml:"max_size"`
	MaxAge     int               `mapstructure:"max_age" yaml:"max_age"`
	MaxBackups int               `mapstructure:"max_backups" yaml:"max_backups"`
	Components map[string]string `mapstructure:"components" yaml:"components"`
}

// Config represents the application configuration.
type Config struct {
	Target     string           `mapstructure:"target" yaml:"target"`
	By         string           `mapstructure:"by" yaml:"by"`
	Mode       string           `mapstructure:"mode" yaml:"mode"`
	Naming     string           `mapstructure:"naming" yaml:"naming"`
	DateSource string           `mapstructure:"date_source" yaml:"date_source"`
	Exclude    []string         `mapstructure:"exclude" yaml:"exclude"`
	Output     string           `mapstructure:"output" yaml:"output"`
	SizeBucket SizeBucketConfig `mapstructure:"size_bucket" yaml:"size_bucket"`
	Dedupe     DedupeConfig     `mapstructure:"dedupe" yaml:"dedupe"`
	Cache      CacheConfig      `mapstructure:"cache" yaml:"cache"`
	Trash      TrashConfig      `mapstructure:"trash" yaml:"trash"`
	History    HistoryConfig    `mapstructure:"history" yaml:"history"`
	Watch      WatchConfig      `mapstructure:"watch" yaml:"watch"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

// Dir returns $XDG_CONFIG_HOME/tidy.
func Dir() string {
	return filepath.Join(xdg.ConfigHome, "tidy")
}

// Path returns the default config file path.
func Path() string {
	return filepath.Join(Dir(), "config.yaml")
}

// StateDir returns $XDG_STATE_HOME/tidy for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "tidy")
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("target", "")
	v.SetDefault("by", DefaultBy)
	v.SetDefault("mode", DefaultMode)
	v.SetDefault("naming", DefaultNaming)
	v.SetDefault("date_source", DefaultDateSource)
	v.SetDefault("exclude", DefaultExclusions)
	v.SetDefault("output", DefaultOutput)

	v.SetDefault("size_bucket.threshold", "")
	v.SetDefault("size_bucket.folder", DefaultSizeBucketFolder)

	v.SetDefault("dedupe.algorithm", DefaultAlgorithm)
	v.SetDefault("dedupe.keep", DefaultKeep)
	v.SetDefault("dedupe.duplicates_folder", DefaultDuplicatesFolder)
	v.SetDefault("dedupe.workers", 0)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "") // empty means $XDG_CACHE_HOME/tidy/fingerprints

	v.SetDefault("trash.path", "") // empty means $XDG_DATA_HOME/tidy/trash
	v.SetDefault("trash.system", true)

	v.SetDefault("history.retention_days", DefaultRetentionDays)
	v.SetDefault("watch.debounce", DefaultDebounce)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "") // empty means $XDG_STATE_HOME/tidy/tidy.log
	v.SetDefault("logging.max_size", DefaultLogMaxSize)
	v.SetDefault("logging.max_age", DefaultLogMaxAge)
	v.SetDefault("logging.max_backups", DefaultLogMaxBackups)
	v.SetDefault("logging.components", map[string]string{
		"executor": "info",
		"undo":     "info",
		"watcher":  "info",
		"dedupe":   "info",
	})
}

// Prepare points v at the config file (file, or the default search path
// when empty), enables TIDY_ environment overrides and sets defaults.
func Prepare(v *viper.Viper, file string) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(Dir())
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "tidy"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)
}

// Read reads the config file into v. A missing file in the default search
// path is not an error; a missing explicit file is.
func Read(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var err error
	if cfg.Target, err = ExpandPath(cfg.Target); err != nil {
		return nil, err
	}
	if cfg.Cache.Path, err = ExpandPath(cfg.Cache.Path); err != nil {
		return nil, err
	}
	if cfg.Trash.Path, err = ExpandPath(cfg.Trash.Path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads configuration from file (or the default search path when
// empty) and the environment.
func Load(file string) (*Config, error) {
	v := viper.New()
	Prepare(v, file)
	if err := Read(v); err != nil {
		return nil, err
	}
	return FromViper(v)
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if _, err := types.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("config mode: %w", err)
	}
	if c.SizeBucket.Threshold != "" {
		if _, err := types.ParseSize(c.SizeBucket.Threshold); err != nil {
			return fmt.Errorf("config size_bucket.threshold: %w", err)
		}
	}
	if _, err := c.DebounceDuration(); err != nil {
		return err
	}
	if c.History.RetentionDays < 0 {
		return fmt.Errorf("config history.retention_days must not be negative")
	}
	return nil
}

// DebounceDuration parses Watch.Debounce.
func (c *Config) DebounceDuration() (time.Duration, error) {
	if c.Watch.Debounce == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 0, fmt.Errorf("config watch.debounce: %w", err)
	}
	return d, nil
}

// LoggingConfig converts the logging section into a logging.Config.
func (c *Config) LoggingConfig() (logging.Config, error) {
	lc := logging.DefaultConfig()
	lc.Level = c.Logging.Level
	if c.Logging.Path != "" {
		p, err := ExpandPath(c.Logging.Path)
		if err != nil {
			return lc, err
		}
		lc.Path = p
	}
	if c.Logging.MaxSize != "" {
		size, err := types.ParseSize(c.Logging.MaxSize)
		if err != nil {
			return lc, fmt.Errorf("config logging.max_size: %w", err)
		}
		lc.Rotation.MaxSize = size
	}
	lc.Rotation.MaxAge = c.Logging.MaxAge
	lc.Rotation.MaxBackups = c.Logging.MaxBackups
	lc.Components = c.Logging.Components
	return lc, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

// WriteDefault writes a commented default config to path unless a file is
// already there. It reports whether a file was written.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultFile), 0o644); err != nil {
		return false, fmt.Errorf("failed to write default config: %w", err)
	}
	return true, nil
}

const defaultFile = `# tidy configuration

# Target root for organized files (required by organize and watch unless
# given with --target)
target: ""

# Grouping key: type or date
by: type

# Action for each file: move, copy, hardlink or index
mode: move

# Collision naming: numbered ("name (1).ext") or underscore ("name_1.ext")
naming: numbered

# Date used by --by date: mtime, filename or exif
date_source: mtime

# Glob patterns never scanned
exclude:
  - "**/node_modules"
  - "**/.Trash"

# Output format: pretty, plain, json, yaml, tsv or csv
output: pretty

# Files at or above the threshold go to their own folder
size_bucket:
  threshold: ""
  folder: Large

dedupe:
  algorithm: sha256     # sha256, sha512, sha1 or md5
  keep: oldest          # oldest, newest or first
  duplicates_folder: duplicates
  workers: 0            # 0 picks a count from the CPU

cache:
  enabled: true
  path: ""              # default: $XDG_CACHE_HOME/tidy/fingerprints

trash:
  path: ""              # default: $XDG_DATA_HOME/tidy/trash
  system: true          # try the desktop trash first

history:
  retention_days: 90

watch:
  debounce: 2s

logging:
  level: info
  path: ""              # default: $XDG_STATE_HOME/tidy/tidy.log
  max_size: 10MB
  max_age: 30
  max_backups: 5
  components:
    executor: info
    undo: info
    watcher: info
    dedupe: info
`
