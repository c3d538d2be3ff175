package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/deixis/pkgguard/internal/logging"
	"github.com/deixis/pkgguard/internal/policy"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_FromDirectory(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "version: 1\ntimeout: 10m\nbinary: /opt/pm\n")

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Path != path {
		t.Errorf("Path = %q, want %q", res.Path, path)
	}
	if res.Config.Version != 1 {
		t.Errorf("Config.Version = %d, want 1", res.Config.Version)
	}
	if got := res.Config.Timeout(); got != 10*time.Minute {
		t.Errorf("Timeout = %v, want 10m", got)
	}
	if got := res.Config.BinaryPath(); got != "/opt/pm" {
		t.Errorf("BinaryPath = %q, want /opt/pm", got)
	}
}

func TestLoad_FromSubdirectory(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "version: 2\n")

	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	res, err := Load(sub)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Config.Version != 2 {
		t.Errorf("Config.Version = %d, want 2", res.Config.Version)
	}
}

func TestLoad_NoFile(t *testing.T) {
	res, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// A parent of the temp dir could hold a stray .pkgguard; only assert
	// defaults when nothing was found.
	if res.Path != "" {
		t.Skipf("found %s above the temp dir", res.Path)
	}
	cfg := res.Config
	if cfg.BinaryPath() != DefaultBinary {
		t.Errorf("BinaryPath = %q, want %q", cfg.BinaryPath(), DefaultBinary)
	}
	if cfg.Timeout() != DefaultTimeout || cfg.KillGrace() != DefaultKillGrace {
		t.Errorf("Timeout/KillGrace = %v/%v, want defaults", cfg.Timeout(), cfg.KillGrace())
	}
	if cfg.MaxOutputBytes() != DefaultMaxOutput {
		t.Errorf("MaxOutputBytes = %d, want %d", cfg.MaxOutputBytes(), DefaultMaxOutput)
	}
	if cfg.Concurrency() != DefaultConcurrency || cfg.ScanLines() != DefaultScanLines {
		t.Errorf("Concurrency/ScanLines = %d/%d, want defaults", cfg.Concurrency(), cfg.ScanLines())
	}
	if cfg.Metrics.Namespace() != DefaultNamespace {
		t.Errorf("Namespace = %q", cfg.Metrics.Namespace())
	}
}

func TestLoad_FullDocument(t *testing.T) {
	t.Setenv(logging.EnvVar, "")
	dir := t.TempDir()
	writeConfig(t, dir, `
version: 1
binary: winget
timeout: 90s
kill_grace: 500ms
max_output: 65536
concurrency: 4
scan_lines: 80
keep_partial_output: true
log_level: debug
policy:
  disabled_operations: [uninstall, repair]
store:
  dir: /var/lib/pkgguard
  redis_url: redis://localhost:6379/2
  ttl: 24h
  cache_size: 32
metrics:
  addr: 127.0.0.1:9464
  namespace: pkg
`)
	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg := res.Config
	if cfg.Timeout() != 90*time.Second || cfg.KillGrace() != 500*time.Millisecond {
		t.Errorf("Timeout/KillGrace = %v/%v", cfg.Timeout(), cfg.KillGrace())
	}
	if cfg.MaxOutputBytes() != 65536 || cfg.Concurrency() != 4 || cfg.ScanLines() != 80 {
		t.Errorf("MaxOutput/Concurrency/ScanLines = %d/%d/%d", cfg.MaxOutputBytes(), cfg.Concurrency(), cfg.ScanLines())
	}
	if !cfg.KeepPartialOutput {
		t.Error("KeepPartialOutput = false")
	}
	if cfg.LogLevel() != logging.LevelDebug {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel())
	}
	if got, want := cfg.DisabledOperations(), []policy.Operation{policy.Uninstall, policy.Repair}; !reflect.DeepEqual(got, want) {
		t.Errorf("DisabledOperations = %v, want %v", got, want)
	}
	if cfg.Store.TTL() != 24*time.Hour || cfg.Store.CacheSize() != 32 || cfg.Store.Directory() != "/var/lib/pkgguard" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Store.RedisURL != "redis://localhost:6379/2" {
		t.Errorf("RedisURL = %q", cfg.Store.RedisURL)
	}
	if cfg.Metrics.Addr != "127.0.0.1:9464" || cfg.Metrics.Namespace() != "pkg" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "colour: blue\n"},
		{"concurrency too high", "concurrency: 64\n"},
		{"concurrency zero", "concurrency: 0\n"},
		{"bad duration", "timeout: soon\n"},
		{"unknown operation", "policy:\n  disabled_operations: [export]\n"},
		{"bad redis url", "store:\n  redis_url: http://cache\n"},
		{"wrong type", "keep_partial_output: maybe\n"},
		{"unknown log level", "log_level: verbose\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.body)
			_, err := Load(dir)
			if err == nil {
				t.Fatal("Load succeeded, want schema error")
			}
			if !strings.Contains(err.Error(), "invalid config") {
				t.Errorf("err = %v, want invalid config", err)
			}
		})
	}
}

func TestValidate_Empty(t *testing.T) {
	if err := Validate(nil); err != nil {
		t.Errorf("Validate(nil) = %v", err)
	}
	if err := Validate([]byte("# only a comment\n")); err != nil {
		t.Errorf("Validate(comment) = %v", err)
	}
}

func TestConcurrency_Clamped(t *testing.T) {
	cfg := &Config{RawConcurrency: 100}
	if got := cfg.Concurrency(); got != MaxConcurrency {
		t.Errorf("Concurrency = %d, want %d", got, MaxConcurrency)
	}
}

func TestCommandPolicy_Narrows(t *testing.T) {
	cfg := &Config{Policy: PolicyConfig{DisabledOperations: []string{"install"}}}
	p := cfg.CommandPolicy()
	if _, ok := p.Spec(policy.Install); ok {
		t.Error("install still allowed")
	}
	if _, ok := p.Spec(policy.List); !ok {
		t.Error("list removed")
	}
}

func TestLogLevel_EnvOverrides(t *testing.T) {
	cfg := &Config{RawLogLevel: "error"}
	t.Setenv(logging.EnvVar, "")
	if got := cfg.LogLevel(); got != logging.LevelError {
		t.Errorf("LogLevel = %v, want error from file", got)
	}
	t.Setenv(logging.EnvVar, "debug")
	if got := cfg.LogLevel(); got != logging.LevelDebug {
		t.Errorf("LogLevel = %v, want debug from env", got)
	}
	t.Setenv(logging.EnvVar, "loud")
	if got := cfg.LogLevel(); got != logging.LevelError {
		t.Errorf("LogLevel = %v, want file level when env is invalid", got)
	}
	if got := (&Config{}).LogLevel(); got != logging.LevelInfo {
		t.Errorf("default LogLevel = %v, want info", got)
	}
}
