package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"pollchain/config"
	"pollchain/core"
	"pollchain/core/genesis"
	"pollchain/native/common"
	"pollchain/native/polls"
	"pollchain/observability/logging"
	"pollchain/observability/metrics"
	telemetry "pollchain/observability/otel"
	"pollchain/rpc"
	"pollchain/storage"
)

const genesisPathEnv = "POLLS_GENESIS"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis YAML file (overrides POLLS_GENESIS and config GenesisFile)")
	flag.Parse()

	if err := run(*configFile, *genesisFlag); err != nil {
		fmt.Fprintf(os.Stderr, "pollsd: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, genesisFlag string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	env := strings.TrimSpace(os.Getenv("POLLS_ENV"))
	if env == "" {
		env = cfg.Log.Env
	}
	logger := logging.Setup("pollsd", env, logging.Options{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetryConfig(cfg, env, os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	node, err := core.NewNode(db, nodeOptions(cfg))
	if err != nil {
		db.Close()
		return fmt.Errorf("create node: %w", err)
	}
	defer node.Close()
	node.SetLogger(logger)
	pollMetrics := metrics.Polls()
	node.SetMetrics(pollMetrics)

	if path := resolveGenesisPath(genesisFlag, cfg.GenesisFile, os.LookupEnv); path != "" {
		spec, err := genesis.LoadGenesisSpec(path)
		if err != nil {
			return fmt.Errorf("load genesis: %w", err)
		}
		applied, err := node.ApplyGenesis(spec)
		if err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
		logger.Info("genesis checked", slog.String("path", path), slog.Bool("applied", applied))
	}

	server := rpc.NewServer(node, rpc.ServerConfig{
		AuthTokenEnv:       cfg.RPC.AuthTokenEnv,
		RateLimitPerMinute: cfg.RPC.RateLimitPerMinute,
		RateLimitBurst:     cfg.RPC.RateLimitBurst,
		MaxBodyBytes:       cfg.RPC.MaxBodyBytes,
		TrustedProxies:     cfg.RPC.TrustedProxies,
		Logger:             logger,
		Metrics:            pollMetrics,
	})

	httpServer := &http.Server{
		Addr:         cfg.RPCAddress,
		Handler:      newRouter(server, node),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go produceBlocks(stopCtx, node, time.Duration(cfg.BlockIntervalMs)*time.Millisecond, logger)

	errs := make(chan error, 1)
	go func() {
		logger.Info("pollsd listening", slog.String("addr", cfg.RPCAddress), slog.Uint64("height", node.Height()))
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case <-stopCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return err
		}
		logger.Info("pollsd stopped")
		return nil
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func nodeOptions(cfg *config.Config) core.Options {
	policy := polls.DefaultPolicy()
	if cfg.Polls.MaxContentRefBytes > 0 {
		policy.MaxContentRefBytes = cfg.Polls.MaxContentRefBytes
	}
	policy.MaxVotingPeriod = cfg.Polls.MaxVotingPeriodBlocks
	return core.Options{
		Policy:              policy,
		Pauses:              common.Pauses(cfg.Pauses.Modules()),
		MaxClosuresPerBlock: cfg.Polls.MaxClosuresPerBlock,
	}
}

func telemetryConfig(cfg *config.Config, env, rawHeaders string) telemetry.Config {
	headers := telemetry.ParseHeaders(cfg.Telemetry.Headers)
	for key, value := range telemetry.ParseHeaders(rawHeaders) {
		headers[key] = value
	}
	return telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: env,
		NetworkName: cfg.NetworkName,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     headers,
		Traces:      cfg.Telemetry.Traces,
		Metrics:     cfg.Telemetry.Metrics,
	}
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StorageBackend)) {
	case "", config.StorageLevelDB:
		return storage.NewLevelDB(cfg.DataDir)
	case config.StorageBolt:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "polls.bolt"))
	case config.StorageMemory:
		return storage.NewMemDB(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func resolveGenesisPath(flagValue, configValue string, lookup func(string) (string, bool)) string {
	if trimmed := strings.TrimSpace(flagValue); trimmed != "" {
		return trimmed
	}
	if lookup != nil {
		if value, ok := lookup(genesisPathEnv); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return strings.TrimSpace(configValue)
}

func newRouter(server http.Handler, node *core.Node) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, "{\"status\":\"ok\",\"height\":%d}\n", node.Height())
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/", server)
	return otelhttp.NewHandler(r, "pollsd")
}

// produceBlocks advances the chain on a fixed interval until ctx is done.
func produceBlocks(ctx context.Context, node *core.Node, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := node.AdvanceBlock(); err != nil {
				logger.Error("advance block failed", slog.Any("error", err))
			}
		}
	}
}
