package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/phraseling-formula/internal/domain/formula"
	"github.com/oshokin/phraseling-formula/internal/logger"
)

// Config holds installation settings shared by every subcommand.
type Config struct {
	// Prefix is the installation prefix the three role directories derive from.
	Prefix string `yaml:"prefix"`
	// BinDir overrides the executable root (defaults to <prefix>/bin).
	BinDir string `yaml:"bin_dir,omitempty"`
	// ShareDir overrides the package-scoped shared-data root (defaults to <prefix>/share/<name>).
	ShareDir string `yaml:"share_dir,omitempty"`
	// DocDir overrides the package-scoped documentation root (defaults to <prefix>/share/doc/<name>).
	DocDir string `yaml:"doc_dir,omitempty"`
	// Catalog is an optional path to a manifest catalog; empty means the built-in one.
	Catalog string `yaml:"catalog,omitempty"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level,omitempty"`
	// DownloadTimeout bounds the archive download.
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	// CommandTimeout bounds each smoke-test invocation.
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

const (
	// DefaultConfigFilename is the settings file looked up when none is given.
	DefaultConfigFilename = "phraseling-formula.yaml"

	// DefaultPrefix matches the Homebrew prefix on Apple Silicon.
	DefaultPrefix = "/opt/homebrew"

	// DefaultDownloadTimeout bounds archive downloads.
	DefaultDownloadTimeout = 5 * time.Minute

	// DefaultCommandTimeout bounds each smoke-test invocation.
	DefaultCommandTimeout = 10 * time.Second

	// DefaultFilePermissions is used when saving settings.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errRelativePrefix is returned for prefixes that are not absolute.
	errRelativePrefix = errors.New("installation directories must be absolute")
	// errBadLogLevel is returned for unknown log levels.
	errBadLogLevel = errors.New("unknown log level")
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := new(Config)
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from path and validates it.
// A missing file at the default location yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) && path == DefaultConfigFilename {
		return Default(), nil
	}

	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the provided settings.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}

	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = DefaultDownloadTimeout
	}

	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}

	for _, dir := range []string{cfg.Prefix, cfg.BinDir, cfg.ShareDir, cfg.DocDir} {
		if dir != "" && !filepath.IsAbs(dir) {
			return fmt.Errorf("%s: %w", dir, errRelativePrefix)
		}
	}

	if cfg.LogLevel != "" {
		if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
			return fmt.Errorf("%q: %w", cfg.LogLevel, errBadLogLevel)
		}
	}

	return nil
}

// Prefixes returns the destination roots for the named package.
func (c *Config) Prefixes(name string) formula.Prefixes {
	prefixes := formula.LayoutFor(c.Prefix, name)

	if c.BinDir != "" {
		prefixes.BinDir = c.BinDir
	}

	if c.ShareDir != "" {
		prefixes.ShareDir = c.ShareDir
	}

	if c.DocDir != "" {
		prefixes.DocDir = c.DocDir
	}

	return prefixes
}
