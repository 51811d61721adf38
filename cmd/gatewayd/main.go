// Command gatewayd is the process entry point for the gateway: it loads
// config.yaml, wires the Orchestrator to its Adapters, stands up the Event
// Bus and its three consumers (Monitoring Loop, Recovery Loop, Activity
// Log), and serves the WebSocket bridge until told to stop.
//
// Wiring order mirrors spec.md §2's component graph:
//
//	Config -> Telemetry -> Adapters -> Orchestrator -> EventBus ->
//	  {WebSocket Bridge, Monitoring Loop, Recovery Loop, Activity Log}
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mediabridge/gatewayd/activity"
	"github.com/mediabridge/gatewayd/cache"
	"github.com/mediabridge/gatewayd/config"
	"github.com/mediabridge/gatewayd/eventbus"
	"github.com/mediabridge/gatewayd/health"
	"github.com/mediabridge/gatewayd/monitoring"
	"github.com/mediabridge/gatewayd/observe"
	"github.com/mediabridge/gatewayd/orchestrator"
	"github.com/mediabridge/gatewayd/recovery"
	"github.com/mediabridge/gatewayd/secret"
	"github.com/mediabridge/gatewayd/upstream"
	"github.com/mediabridge/gatewayd/wsbridge"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	addr := flag.String("addr", ":8090", "address the WebSocket bridge and health endpoints listen on")
	shutdownTimeout := flag.Duration("shutdown-timeout", 15*time.Second, "grace period for in-flight tool calls during shutdown")
	flag.Parse()

	if err := run(*configPath, *addr, *shutdownTimeout); err != nil {
		fmt.Fprintf(os.Stderr, "gatewayd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addr string, shutdownTimeout time.Duration) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	observer, err := observe.NewObserver(ctx, loaded.Observe)
	if err != nil {
		return fmt.Errorf("starting telemetry: %w", err)
	}
	defer observer.Shutdown(context.Background())

	logger := observer.Logger()
	tracer := observe.NewTracer(observer.Tracer())
	metrics, err := observe.NewMetrics(observer.Meter())
	if err != nil {
		return fmt.Errorf("building metrics: %w", err)
	}

	resolver := secret.NewResolver(true)
	toolCache := upstream.NewToolCache(cache.NewMemoryCache(cache.DefaultPolicy()))

	orch := orchestrator.New(loaded.Orchestrator, tracer, metrics, logger).WithToolCache(toolCache)
	if err := registerAdapters(orch, loaded.Upstreams, resolver); err != nil {
		return fmt.Errorf("registering adapters: %w", err)
	}

	// settingsRepo backs the out-of-scope REST/settings surface; Loaded.Upstreams
	// is already the source of truth for registerAdapters above.
	_ = config.NewStaticSettingsRepository(loaded.Upstreams)

	logger.Info(ctx, "connecting upstream adapters")
	for kind, connErr := range orch.ConnectAll(ctx) {
		if connErr != nil {
			logger.Warn(ctx, "upstream adapter failed to connect",
				observe.Field{Key: "upstream", Value: kind.String()},
				observe.Field{Key: "error", Value: connErr.Error()},
			)
		}
	}

	bus := eventbus.New(loaded.EventBus)

	monitor := monitoring.New(orch, bus, loaded.Monitoring, logger)
	recoveryEngine := recovery.New(orch, bus, loaded.Recovery, logger)
	activityLog := activity.New(bus, activity.Config{})
	bridge := wsbridge.New(bus, wsbridge.Config{}, logger)

	go monitor.Run(ctx)
	go recoveryEngine.Run(ctx)
	go activityLog.Run(ctx)
	go bridge.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", bridge.ServeHTTP)
	mux.Handle("/healthz", health.LivenessHandler())
	mux.Handle("/readyz", health.ReadinessHandler(newHealthAggregator(orch)))
	mux.HandleFunc("/upstreams/{kind}/tools", listToolsHandler(orch))

	server := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "gatewayd listening", observe.Field{Key: "addr", Value: addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "http server shutdown error", observe.Field{Key: "error", Value: err.Error()})
	}
	return orch.Shutdown(shutdownCtx, true, shutdownTimeout)
}

// registerAdapters constructs and registers one Adapter per configured
// upstream. At most one Adapter per upstream.Kind may be registered;
// config.Load already rejects duplicate kinds, so a registration failure
// here indicates a programming error rather than bad input.
func registerAdapters(orch *orchestrator.Orchestrator, upstreams []upstream.Config, resolver *secret.Resolver) error {
	for _, cfg := range upstreams {
		var adapter upstream.Adapter
		var err error

		switch cfg.Kind {
		case upstream.Download:
			adapter, err = upstream.NewDownloadAdapter(cfg, resolver)
		case upstream.TvManager:
			adapter, err = upstream.NewTvManagerAdapter(cfg, resolver)
		case upstream.MovieManager:
			adapter, err = upstream.NewMovieManagerAdapter(cfg, resolver)
		case upstream.MediaLibrary:
			adapter, err = upstream.NewMediaLibraryAdapter(cfg, resolver)
		default:
			return fmt.Errorf("unknown upstream kind %s", cfg.Kind)
		}
		if err != nil {
			return fmt.Errorf("constructing %s adapter: %w", cfg.Kind, err)
		}

		if err := orch.RegisterAdapter(adapter, cfg.Enabled); err != nil {
			return err
		}
	}
	return nil
}

// listToolsHandler serves the cached tool vocabulary for one upstream kind,
// exercising Orchestrator.ListTools (and, through it, upstream.ToolCache).
func listToolsHandler(orch *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := upstream.ParseKind(r.PathValue("kind"))
		if !ok {
			http.Error(w, "unknown upstream kind", http.StatusNotFound)
			return
		}
		tools, err := orch.ListTools(r.Context(), kind)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tools)
	}
}

// newHealthAggregator exposes the Orchestrator's per-upstream breaker and
// connectivity state, plus the gatewayd process's own memory pressure,
// through health.Aggregator's CheckAll/OverallStatus machinery, the same
// readiness contract jonwraymond-toolops' services use.
func newHealthAggregator(orch *orchestrator.Orchestrator) *health.Aggregator {
	agg := health.NewAggregator()
	for _, snap := range orch.BreakerSnapshots() {
		kind := snap.Kind
		agg.Register(kind.String(), health.NewCheckerFunc(kind.String(), func(ctx context.Context) health.Result {
			if orch.Health(ctx, kind) {
				return health.Result{Status: health.StatusHealthy}
			}
			return health.Result{Status: health.StatusUnhealthy, Message: "upstream health check failed"}
		}))
	}
	agg.Register("memory", health.NewMemoryChecker(health.MemoryCheckerConfig{}))
	return agg
}
