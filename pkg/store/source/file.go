package source

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/vango-go/vstore/pkg/store"
)

// Decoder decodes file contents into v, which is a pointer.
type Decoder func(data []byte, v any) error

// DecoderFor returns the decoder for path's extension:
// .json, .yaml, .yml or .toml.
func DecoderFor(path string) (Decoder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return json.Unmarshal, nil
	case ".yaml", ".yml":
		return yaml.Unmarshal, nil
	case ".toml":
		return toml.Unmarshal, nil
	default:
		return nil, fmt.Errorf("source: no decoder for %q", filepath.Ext(path))
	}
}

// FileOption configures a file source.
type FileOption func(*fileConfig)

type fileConfig struct {
	decoder   Decoder
	logger    *slog.Logger
	storeOpts []store.Option
}

// WithDecoder overrides the decoder chosen from the file extension.
func WithDecoder(d Decoder) FileOption {
	return func(c *fileConfig) {
		c.decoder = d
	}
}

// WithFileLogger sets the logger for load and watch errors.
// Default: slog.Default().
func WithFileLogger(logger *slog.Logger) FileOption {
	return func(c *fileConfig) {
		c.logger = logger
	}
}

// WithStoreOptions passes options to the underlying store.
func WithStoreOptions(opts ...store.Option) FileOption {
	return func(c *fileConfig) {
		c.storeOpts = append(c.storeOpts, opts...)
	}
}

// File creates a store holding the decoded contents of the file at path.
//
// The file is read when the store becomes active and again whenever it is
// written or replaced while the store stays active. A file that is missing
// or fails to decode is logged and leaves the previous value in place.
func File[T any](path string, initial T, opts ...FileOption) store.ReadableStore[T] {
	cfg := fileConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.decoder == nil {
		d, err := DecoderFor(path)
		if err != nil {
			cfg.logger.Warn("file source falls back to JSON", "path", path, "error", err)
			d = json.Unmarshal
		}
		cfg.decoder = d
	}

	return store.Readable(initial, func(set func(T), _ func(func(T) T)) store.StopFunc {
		load := func() {
			v, err := Load[T](path, cfg.decoder)
			if err != nil {
				cfg.logger.Warn("file source load failed", "path", path, "error", err)
				return
			}
			set(v)
		}
		load()

		// Watch the directory so editors that replace the file by rename
		// are still picked up.
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			cfg.logger.Error("file source watcher failed", "path", path, "error", err)
			return nil
		}
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			cfg.logger.Error("file source watch failed", "path", path, "error", err)
			watcher.Close()
			return nil
		}

		target := filepath.Clean(path)
		go func() {
			for {
				select {
				case ev, ok := <-watcher.Events:
					if !ok {
						return
					}
					if filepath.Clean(ev.Name) != target {
						continue
					}
					if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
						load()
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return
					}
					cfg.logger.Warn("file source watch error", "path", path, "error", err)
				}
			}
		}()

		return func() { watcher.Close() }
	}, cfg.storeOpts...)
}

// Load reads and decodes the file at path once.
func Load[T any](path string, decode Decoder) (T, error) {
	var v T
	data, err := os.ReadFile(path)
	if err != nil {
		return v, err
	}
	if err := decode(data, &v); err != nil {
		return v, fmt.Errorf("source: decode %s: %w", path, err)
	}
	return v, nil
}
