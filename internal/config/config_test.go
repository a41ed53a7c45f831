package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vango-go/vstore/internal/errors"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Server.Host != DefaultHost {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, DefaultHost)
	}
	if cfg.Server.SendBuffer != DefaultSendBuffer {
		t.Errorf("Server.SendBuffer = %d, want %d", cfg.Server.SendBuffer, DefaultSendBuffer)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics should be enabled by default")
	}
	if cfg.Persist.Backend != BackendNone {
		t.Errorf("Persist.Backend = %q, want none", cfg.Persist.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	// Test loading non-existent config
	_, err := Load(tmpDir)
	if !errors.HasCode(err, "E101") {
		t.Errorf("Load(missing) error = %v, want E101", err)
	}

	configPath := filepath.Join(tmpDir, ConfigFileName)
	configJSON := `{
  "server": {
    "host": "0.0.0.0",
    "port": 8080,
    "autoCreate": true,
    "allowedOrigins": ["https://example.com"]
  },
  "log": {"level": "debug", "format": "json"},
  "metrics": {"enabled": false},
  "persist": {"backend": "file", "dir": "data"},
  "stores": [
    {"name": "counter", "initial": 0, "persist": true},
    {"name": "todos", "initial": []}
  ],
  "files": [
    {"name": "flags", "path": "flags.yaml"}
  ]
}
`
	if err := os.WriteFile(configPath, []byte(configJSON), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if !cfg.Server.AutoCreate {
		t.Error("Server.AutoCreate should be true")
	}
	if len(cfg.Server.AllowedOrigins) != 1 {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should be false")
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want default /metrics", cfg.Metrics.Path)
	}
	if cfg.Server.ReadTimeout != "60s" {
		t.Errorf("Server.ReadTimeout = %q, want default 60s", cfg.Server.ReadTimeout)
	}
	if len(cfg.Stores) != 2 || cfg.Stores[0].Name != "counter" || !cfg.Stores[0].Persist {
		t.Errorf("Stores = %+v", cfg.Stores)
	}
	if string(cfg.Stores[1].Initial) != "[]" {
		t.Errorf("Stores[1].Initial = %s, want []", cfg.Stores[1].Initial)
	}
	if len(cfg.Files) != 1 || cfg.Files[0].Path != "flags.yaml" {
		t.Errorf("Files = %+v", cfg.Files)
	}
	if cfg.Path() != configPath {
		t.Errorf("Path() = %q, want %q", cfg.Path(), configPath)
	}
	if cfg.Dir() != tmpDir {
		t.Errorf("Dir() = %q, want %q", cfg.Dir(), tmpDir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadFile_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)
	content := "{\n  \"server\": {\n    \"port\": 70x0\n  }\n}\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(configPath)
	if !errors.HasCode(err, "E102") {
		t.Fatalf("LoadFile() error = %v, want E102", err)
	}
	ve := err.(*errors.Error)
	if ve.Location == nil || ve.Location.Line != 3 {
		t.Errorf("Location = %v, want line 3", ve.Location)
	}
}

func TestLoadFile_TypeError(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), ConfigFileName)
	content := "{\n  \"server\": {\"port\": \"high\"}\n}\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(configPath)
	if !errors.HasCode(err, "E102") {
		t.Fatalf("LoadFile() error = %v, want E102", err)
	}
	if ve := err.(*errors.Error); ve.Location == nil || ve.Location.Line != 2 {
		t.Errorf("Location = %v, want line 2", ve.Location)
	}
}

func TestSave(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	cfg := New()
	cfg.Server.Port = 9000
	cfg.Stores = []StoreConfig{{Name: "counter", Initial: []byte("5")}}

	if err := cfg.Save(); err == nil {
		t.Error("Save() without a path should fail")
	}
	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasSuffix(data, []byte("\n")) {
		t.Error("saved config should end with a newline")
	}

	loaded, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", loaded.Server.Port)
	}
	if len(loaded.Stores) != 1 || string(loaded.Stores[0].Initial) != "5" {
		t.Errorf("Stores = %+v", loaded.Stores)
	}

	loaded.Server.Port = 9001
	if err := loaded.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	again, _ := Load(tmpDir)
	if again.Server.Port != 9001 {
		t.Errorf("Server.Port = %d after Save, want 9001", again.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		code   string
	}{
		{"negative port", func(c *Config) { c.Server.Port = -1 }, "E103"},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, "E103"},
		{"negative buffer", func(c *Config) { c.Server.SendBuffer = -1 }, "E103"},
		{"bad read timeout", func(c *Config) { c.Server.ReadTimeout = "soon" }, "E103"},
		{"zero write timeout", func(c *Config) { c.Server.WriteTimeout = "0s" }, "E103"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "E106"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "E106"},
		{"unknown backend", func(c *Config) { c.Persist.Backend = "redis" }, "E105"},
		{"s3 without bucket", func(c *Config) { c.Persist.Backend = BackendS3 }, "E105"},
		{"unnamed store", func(c *Config) { c.Stores = []StoreConfig{{}} }, "E104"},
		{"slash in name", func(c *Config) { c.Stores = []StoreConfig{{Name: "a/b"}} }, "E104"},
		{"invalid initial", func(c *Config) { c.Stores = []StoreConfig{{Name: "a", Initial: []byte("{")}} }, "E104"},
		{"file without path", func(c *Config) { c.Files = []FileConfig{{Name: "flags"}} }, "E104"},
		{"duplicate name", func(c *Config) {
			c.Stores = []StoreConfig{{Name: "x"}}
			c.Files = []FileConfig{{Name: "x", Path: "x.json"}}
		}, "E104"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.HasCode(err, tt.code) {
				t.Errorf("Validate() = %v, want %s", err, tt.code)
			}
		})
	}

	cfg := New()
	cfg.Persist = PersistConfig{Backend: BackendS3, Bucket: "b"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("s3 with bucket should validate: %v", err)
	}
}

func TestAddress(t *testing.T) {
	cfg := New()
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8080

	if got := cfg.Address(); got != "0.0.0.0:8080" {
		t.Errorf("Address() = %q, want 0.0.0.0:8080", got)
	}
	if got := cfg.URL(); got != "http://0.0.0.0:8080" {
		t.Errorf("URL() = %q", got)
	}
}

func TestTimeouts(t *testing.T) {
	cfg := New()
	cfg.Server.ReadTimeout = "2m"
	cfg.Server.WriteTimeout = "garbage"

	if got := cfg.ReadTimeout(); got != 2*time.Minute {
		t.Errorf("ReadTimeout() = %v, want 2m", got)
	}
	if got := cfg.WriteTimeout(); got != 10*time.Second {
		t.Errorf("WriteTimeout() = %v, want fallback 10s", got)
	}
}

func TestPaths(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := New()
	if err := cfg.SaveTo(filepath.Join(tmpDir, ConfigFileName)); err != nil {
		t.Fatal(err)
	}

	if got, want := cfg.PersistPath(), filepath.Join(tmpDir, DefaultPersistDir); got != want {
		t.Errorf("PersistPath() = %q, want %q", got, want)
	}
	if got, want := cfg.FilePath(FileConfig{Path: "flags.yaml"}), filepath.Join(tmpDir, "flags.yaml"); got != want {
		t.Errorf("FilePath() = %q, want %q", got, want)
	}

	abs := filepath.Join(tmpDir, "elsewhere")
	cfg.Persist.Dir = abs
	if got := cfg.PersistPath(); got != abs {
		t.Errorf("PersistPath() = %q, want absolute %q", got, abs)
	}
}

func TestLogger(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := (LogConfig{Level: tt.level}).SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}

	var buf bytes.Buffer
	logger := LogConfig{Level: "info", Format: "json"}.NewLogger(&buf)
	logger.Debug("hidden")
	logger.Info("shown", "store", "counter")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug message should be filtered at info level")
	}
	if !strings.Contains(out, `"store":"counter"`) {
		t.Errorf("expected JSON output, got %q", out)
	}
}

func TestExists(t *testing.T) {
	tmpDir := t.TempDir()

	if Exists(tmpDir) {
		t.Error("Exists() = true for empty dir")
	}

	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	if !Exists(tmpDir) {
		t.Error("Exists() = false after creating config")
	}
}

func TestFindRoot(t *testing.T) {
	tmpDir := t.TempDir()
	nested := filepath.Join(tmpDir, "a", "b", "c")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	if _, err := FindRoot(nested); !errors.HasCode(err, "E101") {
		t.Errorf("FindRoot() without config = %v, want E101", err)
	}

	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	root, err := FindRoot(nested)
	if err != nil {
		t.Fatalf("FindRoot() error = %v", err)
	}
	want, _ := filepath.Abs(tmpDir)
	if root != want {
		t.Errorf("FindRoot() = %q, want %q", root, want)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Server.WriteTimeout != "10s" {
		t.Errorf("Server.WriteTimeout = %q, want 10s", cfg.Server.WriteTimeout)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Tracing.TracerName != "vstore" {
		t.Errorf("Tracing.TracerName = %q", cfg.Tracing.TracerName)
	}
	if cfg.Persist.Dir != DefaultPersistDir {
		t.Errorf("Persist.Dir = %q", cfg.Persist.Dir)
	}
}
