package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vango-go/vstore/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "vstore.json"

	// DefaultPort is the default hub port.
	DefaultPort = 7070

	// DefaultHost is the default hub host.
	DefaultHost = "localhost"

	// DefaultSendBuffer is the default per-connection send buffer.
	DefaultSendBuffer = 64

	// DefaultPersistDir is the default directory for the file backend.
	DefaultPersistDir = ".vstore"
)

// Persistence backends.
const (
	BackendNone   = ""
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendS3     = "s3"
)

// Config represents the complete vstore.json configuration.
type Config struct {
	// Server contains hub settings.
	Server ServerConfig `json:"server"`

	// Log contains logging settings.
	Log LogConfig `json:"log"`

	// Metrics contains Prometheus settings.
	Metrics MetricsConfig `json:"metrics"`

	// Tracing contains OpenTelemetry settings.
	Tracing TracingConfig `json:"tracing"`

	// Persist selects where store snapshots are kept.
	Persist PersistConfig `json:"persist"`

	// Stores declares writable stores created at startup.
	Stores []StoreConfig `json:"stores,omitempty"`

	// Files declares read-only stores backed by watched files.
	Files []FileConfig `json:"files,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains hub settings.
type ServerConfig struct {
	// Host is the host to bind to.
	Host string `json:"host,omitempty"`

	// Port is the port to listen on.
	Port int `json:"port,omitempty"`

	// AutoCreate creates unknown stores on first PUT.
	AutoCreate bool `json:"autoCreate,omitempty"`

	// ReadTimeout is the websocket read deadline, refreshed by pongs (e.g., "60s").
	ReadTimeout string `json:"readTimeout,omitempty"`

	// WriteTimeout bounds each websocket write (e.g., "10s").
	WriteTimeout string `json:"writeTimeout,omitempty"`

	// SendBuffer is the number of values queued per connection before it
	// is dropped as a slow consumer.
	SendBuffer int `json:"sendBuffer,omitempty"`

	// AllowedOrigins lists origins accepted for websocket upgrades.
	// Empty means same-origin only.
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled exposes metrics and attaches the Prometheus observer.
	Enabled bool `json:"enabled"`

	// Namespace is the metric name prefix.
	Namespace string `json:"namespace,omitempty"`

	// Path is the HTTP path for the exposition endpoint.
	Path string `json:"path,omitempty"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	// Enabled attaches the OpenTelemetry observer.
	Enabled bool `json:"enabled"`

	// TracerName is the tracer name.
	TracerName string `json:"tracerName,omitempty"`
}

// PersistConfig selects the snapshot backend.
type PersistConfig struct {
	// Backend is memory, file, s3, or empty for none.
	Backend string `json:"backend,omitempty"`

	// Dir is the directory for the file backend.
	Dir string `json:"dir,omitempty"`

	// Bucket, Prefix, Region and Endpoint configure the s3 backend.
	Bucket   string `json:"bucket,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
	Region   string `json:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

// StoreConfig declares a writable store.
type StoreConfig struct {
	// Name is the store name used in URLs.
	Name string `json:"name"`

	// Initial is the JSON value the store starts with. Default: null.
	Initial json.RawMessage `json:"initial,omitempty"`

	// Persist binds the store to the persistence backend.
	Persist bool `json:"persist,omitempty"`
}

// FileConfig declares a read-only store backed by a file.
type FileConfig struct {
	// Name is the store name used in URLs.
	Name string `json:"name"`

	// Path is the file to watch, relative to the config directory.
	Path string `json:"path"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         DefaultHost,
			Port:         DefaultPort,
			ReadTimeout:  "60s",
			WriteTimeout: "10s",
			SendBuffer:   DefaultSendBuffer,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "vstore",
			Path:      "/metrics",
		},
		Tracing: TracingConfig{
			TracerName: "vstore",
		},
		Persist: PersistConfig{
			Dir: DefaultPersistDir,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for vstore.json in the directory.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	return LoadFile(configPath)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E101").
				WithDetail("No vstore.json found in " + filepath.Dir(path)).
				WithSuggestion("Run 'vstore init' to create one")
		}
		return nil, errors.New("E102").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		e := errors.New("E102").
			Wrap(err).
			WithSuggestion("Check that vstore.json is valid JSON")
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case stderrors.As(err, &syntaxErr):
			e.WithOffset(path, data, syntaxErr.Offset)
		case stderrors.As(err, &typeErr):
			e.WithOffset(path, data, typeErr.Offset)
		}
		return nil, e
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E102").Wrap(err)
	}

	// Add newline at end of file
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E102").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	// Server
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "60s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "10s"
	}
	if c.Server.SendBuffer == 0 {
		c.Server.SendBuffer = DefaultSendBuffer
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	// Metrics
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "vstore"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	// Tracing
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = "vstore"
	}

	// Persist
	if c.Persist.Dir == "" {
		c.Persist.Dir = DefaultPersistDir
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.New("E103").
			WithDetail("Port must be between 0 and 65535")
	}
	if c.Server.SendBuffer < 0 {
		return errors.New("E103").
			WithDetail("sendBuffer must not be negative")
	}
	for field, value := range map[string]string{
		"readTimeout":  c.Server.ReadTimeout,
		"writeTimeout": c.Server.WriteTimeout,
	} {
		if d, err := time.ParseDuration(value); err != nil || d <= 0 {
			return errors.New("E103").
				WithDetail(fmt.Sprintf("server.%s %q is not a positive duration", field, value)).
				WithExample(`"` + field + `": "30s"`)
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("E106").WithDetail(fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.New("E106").WithDetail(fmt.Sprintf("unknown log format %q", c.Log.Format))
	}

	switch c.Persist.Backend {
	case BackendNone, BackendMemory, BackendFile:
	case BackendS3:
		if c.Persist.Bucket == "" {
			return errors.New("E105").
				WithDetail("persist.bucket is required for the s3 backend")
		}
	default:
		return errors.New("E105").
			WithDetail(fmt.Sprintf("unknown persist backend %q", c.Persist.Backend))
	}

	seen := make(map[string]bool)
	for i, s := range c.Stores {
		if err := checkName(seen, s.Name, "stores", i); err != nil {
			return err
		}
		if len(s.Initial) > 0 && !json.Valid(s.Initial) {
			return errors.New("E104").
				WithDetail(fmt.Sprintf("stores[%d].initial is not valid JSON", i))
		}
	}
	for i, f := range c.Files {
		if err := checkName(seen, f.Name, "files", i); err != nil {
			return err
		}
		if f.Path == "" {
			return errors.New("E104").
				WithDetail(fmt.Sprintf("files[%d] (%s) has no path", i, f.Name))
		}
	}
	return nil
}

func checkName(seen map[string]bool, name, section string, i int) error {
	if name == "" {
		return errors.New("E104").
			WithDetail(fmt.Sprintf("%s[%d] has no name", section, i))
	}
	if strings.ContainsAny(name, "/?#") {
		return errors.New("E104").
			WithDetail(fmt.Sprintf("%s[%d] name %q must not contain '/', '?' or '#'", section, i, name))
	}
	if seen[name] {
		return errors.New("E104").
			WithDetail(fmt.Sprintf("store %q is declared more than once", name))
	}
	seen[name] = true
	return nil
}

// Address returns the listen address for the hub.
func (c *Config) Address() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// URL returns the base URL clients use to reach the hub.
func (c *Config) URL() string {
	return "http://" + c.Address()
}

// ReadTimeout returns the parsed websocket read timeout.
func (c *Config) ReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 60*time.Second)
}

// WriteTimeout returns the parsed websocket write timeout.
func (c *Config) WriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 10*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// SlogLevel returns the slog level for Log.Level. Unknown levels map to Info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds a logger writing to w with the configured level and format.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.SlogLevel()}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// PersistPath returns the absolute path to the file backend directory.
func (c *Config) PersistPath() string {
	return c.resolve(c.Persist.Dir)
}

// FilePath returns the absolute path of a file source.
func (c *Config) FilePath(f FileConfig) string {
	return c.resolve(f.Path)
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}

// FindRoot walks up directories to find vstore.json.
// Returns the directory containing it, or an error if not found.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E101").
				WithDetail("No vstore.json found in " + startDir + " or any parent directory").
				WithSuggestion("Run 'vstore init' to create one")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory
// or the nearest parent containing vstore.json.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}
