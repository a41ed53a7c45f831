package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-go/vstore/internal/config"
	"github.com/vango-go/vstore/internal/errors"
	"github.com/vango-go/vstore/pkg/middleware"
	"github.com/vango-go/vstore/pkg/persist"
	"github.com/vango-go/vstore/pkg/server"
	"github.com/vango-go/vstore/pkg/store"
)

func serveCmd() *cobra.Command {
	var (
		configDir string
		addr      string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the store hub",
		Long: `Run the store hub described by vstore.json.

The hub shuts down gracefully on SIGINT or SIGTERM, flushing
persisted stores before it exits.

Examples:
  vstore serve
  vstore serve --config ./hub
  vstore serve --addr 0.0.0.0:8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configDir)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, addr)
		},
	}

	cmd.Flags().StringVarP(&configDir, "config", "c", "", "Directory containing vstore.json (default: nearest parent)")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from vstore.json)")

	return cmd
}

func loadConfig(dir string) (*config.Config, error) {
	if dir == "" {
		return config.LoadFromWorkingDir()
	}
	return config.Load(dir)
}

// hub bundles what runServe builds so it can be torn down in order.
type hub struct {
	*server.Hub
	registry *server.Registry
	backend  persist.Backend
}

func (h *hub) close(logger *slog.Logger) {
	if err := h.registry.Close(); err != nil {
		logger.Error("store snapshot flush failed", "error", err)
	}
	if h.backend != nil {
		if err := h.backend.Close(); err != nil {
			logger.Error("backend close failed", "error", err)
		}
	}
}

func runServe(ctx context.Context, cfg *config.Config, addr string) error {
	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	h, err := buildHub(ctx, cfg, addr, logger)
	if err != nil {
		return err
	}
	defer h.close(logger)

	printBanner()
	success("Serving %d stores on %s", h.registry.Len(), cfg.URL())
	if cfg.Metrics.Enabled {
		info("Metrics at %s%s", cfg.URL(), cfg.Metrics.Path)
	}
	fmt.Println()

	if err := h.Run(ctx); err != nil {
		return errors.New("E206").
			WithDetail("Could not listen on " + cfg.Address()).
			WithSuggestion("Choose another port with --addr or server.port").
			Wrap(err)
	}
	return nil
}

func buildHub(ctx context.Context, cfg *config.Config, addr string, logger *slog.Logger) (*hub, error) {
	if addr != "" {
		host, port, err := splitAddr(addr)
		if err != nil {
			return nil, errors.New("E103").WithDetail("Invalid --addr " + addr).Wrap(err)
		}
		cfg.Server.Host, cfg.Server.Port = host, port
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	observers := []store.Observer{middleware.Logger(logger)}

	var (
		metrics  *middleware.Metrics
		gatherer prometheus.Gatherer
	)
	if cfg.Metrics.Enabled {
		promReg := prometheus.NewRegistry()
		promReg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = middleware.Prometheus(
			middleware.WithNamespace(cfg.Metrics.Namespace),
			middleware.WithRegistry(promReg),
		)
		observers = append(observers, metrics)
		gatherer = promReg
	}
	if cfg.Tracing.Enabled {
		observers = append(observers, middleware.OpenTelemetry(
			middleware.WithTracerName(cfg.Tracing.TracerName),
		))
	}

	backend, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	regOpts := []server.RegistryOption{
		server.WithRegistryLogger(logger),
		server.WithStoreOptions(store.WithObserver(middleware.Chain(observers...))),
	}
	if backend != nil {
		regOpts = append(regOpts, server.WithBackend(backend))
	}
	reg := server.NewRegistry(regOpts...)
	h := &hub{registry: reg, backend: backend}

	for _, s := range cfg.Stores {
		if _, err := reg.Create(ctx, s.Name, s.Initial, s.Persist); err != nil {
			h.close(logger)
			return nil, errors.New("E301").
				WithDetail("Store '" + s.Name + "' could not be restored").
				Wrap(err)
		}
	}
	for _, f := range cfg.Files {
		if _, err := reg.AddFile(f.Name, cfg.FilePath(f)); err != nil {
			h.close(logger)
			return nil, errors.New("E104").WithDetail(err.Error())
		}
	}

	hubConfig := server.DefaultConfig()
	hubConfig.Address = cfg.Address()
	hubConfig.AutoCreate = cfg.Server.AutoCreate
	hubConfig.ReadTimeout = cfg.ReadTimeout()
	hubConfig.WriteTimeout = cfg.WriteTimeout()
	hubConfig.SendBuffer = cfg.Server.SendBuffer
	hubConfig.Metrics = metrics
	hubConfig.Gatherer = gatherer
	hubConfig.MetricsPath = cfg.Metrics.Path
	hubConfig.Logger = logger
	if len(cfg.Server.AllowedOrigins) > 0 {
		hubConfig.CheckOrigin = server.AllowOrigins(cfg.Server.AllowedOrigins...)
	}

	h.Hub = server.New(reg, hubConfig)
	return h, nil
}

// newBackend returns the configured snapshot backend, or nil when
// persistence is disabled.
func newBackend(ctx context.Context, cfg *config.Config) (persist.Backend, error) {
	switch cfg.Persist.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendMemory:
		return persist.NewMemoryBackend(), nil
	case config.BackendFile:
		dir := cfg.PersistPath()
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.New("E302").WithDetail("Cannot create " + dir).Wrap(err)
		}
		return persist.NewFileBackend(dir), nil
	case config.BackendS3:
		client, err := newS3Client(ctx, cfg.Persist)
		if err != nil {
			return nil, errors.New("E302").WithDetail("Cannot load AWS configuration").Wrap(err)
		}
		return persist.NewS3Backend(client, cfg.Persist.Bucket, cfg.Persist.Prefix), nil
	default:
		return nil, errors.New("E105").WithDetail("Unknown backend " + cfg.Persist.Backend)
	}
}

// newS3Client builds an S3 client from the default AWS configuration chain
// (environment, shared config and credentials files, SSO, web identity,
// container and instance roles). Region and Endpoint override it.
func newS3Client(ctx context.Context, pc config.PersistConfig) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if pc.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(pc.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if pc.Endpoint != "" {
			o.BaseEndpoint = aws.String(pc.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
