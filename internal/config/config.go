// Package config loads and validates the optional .pkgguard YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deixis/pkgguard/internal/logging"
	"github.com/deixis/pkgguard/internal/policy"
)

// FileName is the configuration file looked up from the working directory.
const FileName = ".pkgguard"

// Default values.
const (
	DefaultBinary      = "winget"
	DefaultTimeout     = 2 * time.Minute
	DefaultKillGrace   = 2 * time.Second
	DefaultMaxOutput   = 1 << 20 // 1 MB
	DefaultConcurrency = 2
	MaxConcurrency     = 16
	DefaultScanLines   = 50
	DefaultCacheSize   = 16
	DefaultStoreTTL    = 7 * 24 * time.Hour
	DefaultNamespace   = "pkgguard"
)

// Config holds the parsed .pkgguard configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version           int           `yaml:"version"`
	Binary            string        `yaml:"binary"`
	RawTimeout        string        `yaml:"timeout"`    // e.g. "2m", "30s"
	RawKillGrace      string        `yaml:"kill_grace"` // wait after each termination step
	RawMaxOutput      int           `yaml:"max_output"` // bytes per stream
	RawConcurrency    int           `yaml:"concurrency"`
	RawScanLines      int           `yaml:"scan_lines"`
	KeepPartialOutput bool          `yaml:"keep_partial_output"`
	RawLogLevel       string        `yaml:"log_level"` // debug, info or error
	Policy            PolicyConfig  `yaml:"policy"`
	Store             StoreConfig   `yaml:"store"`
	Metrics           MetricsConfig `yaml:"metrics"`
}

// PolicyConfig narrows the built-in command policy.
type PolicyConfig struct {
	DisabledOperations []string `yaml:"disabled_operations"`
}

// StoreConfig selects where run history is kept.
type StoreConfig struct {
	Dir          string `yaml:"dir"`
	RedisURL     string `yaml:"redis_url"`
	RawTTL       string `yaml:"ttl"`
	RawCacheSize int    `yaml:"cache_size"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr         string `yaml:"addr"` // empty disables the endpoint
	RawNamespace string `yaml:"namespace"`
}

// BinaryPath returns the package-manager binary to run.
func (c *Config) BinaryPath() string {
	if c.Binary != "" {
		return c.Binary
	}
	return DefaultBinary
}

// Timeout returns the configured timeout or the default.
func (c *Config) Timeout() time.Duration {
	return parseDuration(c.RawTimeout, DefaultTimeout)
}

// KillGrace returns the configured termination grace or the default.
func (c *Config) KillGrace() time.Duration {
	return parseDuration(c.RawKillGrace, DefaultKillGrace)
}

// MaxOutputBytes returns the configured max output size or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// Concurrency returns the admission ceiling, clamped to 1..MaxConcurrency.
func (c *Config) Concurrency() int {
	switch {
	case c.RawConcurrency <= 0:
		return DefaultConcurrency
	case c.RawConcurrency > MaxConcurrency:
		return MaxConcurrency
	}
	return c.RawConcurrency
}

// ScanLines returns how many lines the parser searches for a header.
func (c *Config) ScanLines() int {
	if c.RawScanLines > 0 {
		return c.RawScanLines
	}
	return DefaultScanLines
}

// LogLevel returns the log threshold. A valid PKGGUARD_LOG value wins over
// the file.
func (c *Config) LogLevel() logging.Level {
	if env := os.Getenv(logging.EnvVar); env != "" {
		if l, err := logging.ParseLevel(env); err == nil {
			return l
		}
	}
	l, _ := logging.ParseLevel(c.RawLogLevel)
	return l
}

// DisabledOperations returns the operations removed from the policy.
// Unknown names are ignored; the schema rejects them at load time.
func (c *Config) DisabledOperations() []policy.Operation {
	var ops []policy.Operation
	for _, name := range c.Policy.DisabledOperations {
		if op, ok := policy.ParseOperation(name); ok {
			ops = append(ops, op)
		}
	}
	return ops
}

// CommandPolicy returns the default policy narrowed by this config.
func (c *Config) CommandPolicy() *policy.Policy {
	return policy.Default().Without(c.DisabledOperations()...)
}

// TTL returns how long Redis keeps a run.
func (s StoreConfig) TTL() time.Duration {
	return parseDuration(s.RawTTL, DefaultStoreTTL)
}

// CacheSize returns the in-memory run cache capacity.
func (s StoreConfig) CacheSize() int {
	if s.RawCacheSize > 0 {
		return s.RawCacheSize
	}
	return DefaultCacheSize
}

// Directory returns the run history directory: the configured one, else
// pkgguard/runs under the user cache directory, else "" (a temp dir).
func (s StoreConfig) Directory() string {
	if s.Dir != "" {
		return s.Dir
	}
	if cache, err := os.UserCacheDir(); err == nil {
		return filepath.Join(cache, "pkgguard", "runs")
	}
	return ""
}

// Namespace returns the metrics namespace.
func (m MetricsConfig) Namespace() string {
	if m.RawNamespace != "" {
		return m.RawNamespace
	}
	return DefaultNamespace
}

func parseDuration(raw string, def time.Duration) time.Duration {
	if raw != "" {
		d, err := time.ParseDuration(raw)
		if err == nil && d > 0 {
			return d
		}
	}
	return def
}

// LoadResult holds the parsed config and where it came from.
type LoadResult struct {
	Config *Config
	Path   string // empty when no file was found
}

// Load looks for a .pkgguard file in dir and each of its parents. If none
// exists, a default Config is returned.
func Load(dir string) (*LoadResult, error) {
	path, err := find(dir)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return &LoadResult{Config: &Config{}}, nil
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return &LoadResult{Config: cfg, Path: path}, nil
}

// LoadFile reads, validates and decodes the file at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := Validate(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// find walks upward from dir looking for FileName.
func find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		path := filepath.Join(dir, FileName)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}
