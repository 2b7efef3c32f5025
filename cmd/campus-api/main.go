// Package main provides the entry point for the campus API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/placementcell/campus-api/internal/admin"
	"github.com/placementcell/campus-api/internal/auth"
	"github.com/placementcell/campus-api/internal/config"
	"github.com/placementcell/campus-api/internal/export"
	"github.com/placementcell/campus-api/internal/logging"
	"github.com/placementcell/campus-api/internal/masking"
	"github.com/placementcell/campus-api/internal/metrics"
	"github.com/placementcell/campus-api/internal/middleware"
	"github.com/placementcell/campus-api/internal/pipeline"
	"github.com/placementcell/campus-api/internal/policy"
	"github.com/placementcell/campus-api/internal/records"
	"github.com/placementcell/campus-api/internal/sanitize"
	"github.com/placementcell/campus-api/internal/storage"
)

const version = "2026.10.1"

// components holds everything run wires together.
type components struct {
	logger          *slog.Logger
	logLevel        *slog.LevelVar
	store           *storage.SQLiteStorage
	registry        *policy.Registry
	engine          *sanitize.Engine
	adapter         *pipeline.Adapter
	validator       *auth.Validator
	bootstrap       *auth.BootstrapService
	metricsRegistry *prometheus.Registry
	mainRouter      http.Handler
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "campus-api: %v\n", err)
		os.Exit(1)
	}
}

// run loads configuration and either serves HTTP or runs a subcommand.
func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if len(args) > 0 && args[0] == "tokens" {
		return runTokens(context.Background(), cfg, args[1:], os.Stdout)
	}
	if len(args) > 0 && args[0] != "serve" {
		return fmt.Errorf("unknown command %q (want serve or tokens)", args[0])
	}

	c, err := initializeComponents(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.store.Close(); err != nil {
			c.logger.Error("failed to close storage", "error", err)
		}
	}()

	state, err := c.bootstrap.GetState(context.Background())
	if err != nil {
		return fmt.Errorf("failed to read bootstrap state: %w", err)
	}
	c.logger.Info("campus-api starting",
		"version", version,
		"listen_addr", cfg.ListenAddr,
		"environment", cfg.Environment,
		"bootstrap_state", state.String(),
	)
	if state == auth.StateUnconfigured && cfg.BootstrapKey == "" {
		c.logger.Warn("no admin token exists and BOOTSTRAP_KEY is empty; create one with 'campus-api tokens create'")
	}

	server := createServer(cfg, c.mainRouter)
	metricsServer := createMetricsServer(cfg, c.metricsRegistry)
	return startServerAndWaitForShutdown(server, metricsServer, c.logger, cfg.ShutdownTimeout)
}

// loadPolicy builds the registry and masking rules, applying the overlay
// file when one is configured.
func loadPolicy(cfg *config.Config) (*policy.Registry, *masking.RuleSet, error) {
	registry, file, err := policy.Load(cfg.PolicyFile)
	if err != nil {
		return nil, nil, err
	}
	var aliases map[string]string
	if file != nil {
		aliases = file.MaskRules
	}
	rules, err := masking.NewRuleSet(aliases)
	if err != nil {
		return nil, nil, err
	}
	return registry, rules, nil
}

func initializeComponents(cfg *config.Config) (*components, error) {
	logLevel := new(slog.LevelVar)
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logLevel.Set(level)
	logger := logging.New(os.Stdout, cfg.LogFormat, logLevel)

	registry, rules, err := loadPolicy(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	engine := sanitize.NewEngine(registry, rules, cfg.Limits())

	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.Version = version
	if err := metrics.Init(metricsRegistry); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	adapter := pipeline.New(engine, auth.RoleFromContext, logger)
	validator := auth.NewValidator(store)
	bootstrap := auth.NewBootstrapService(store, registry, cfg.BootstrapKey)

	adminHandler := admin.NewHandler(store, registry, adapter, logLevel, logger)
	recordsHandler := records.NewHandler(store, adapter, export.New(registry, rules), engine.Limits(), logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer(logger))
	r.Use(metrics.Middleware)
	r.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	r.Use(middleware.HTTPLogging(logger, engine))
	r.Use(middleware.MaxBodySize(cfg.MaxBodyBytes))

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(store))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(validator, bootstrap, logger))
		r.Use(adapter.Middleware)
		r.Mount("/collections", recordsHandler.Routes(auth.RequireAdmin(registry)))
		r.Mount("/", adminHandler.Routes())
	})

	return &components{
		logger:          logger,
		logLevel:        logLevel,
		store:           store,
		registry:        registry,
		engine:          engine,
		adapter:         adapter,
		validator:       validator,
		bootstrap:       bootstrap,
		metricsRegistry: metricsRegistry,
		mainRouter:      r,
	}, nil
}

func createServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// createMetricsServer serves /metrics on its own listener so it can stay
// off the public interface.
func createMetricsServer(cfg *config.Config, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HandlerFor(reg))
	return &http.Server{
		Addr:              cfg.MetricsListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// startServerAndWaitForShutdown serves until SIGINT/SIGTERM or a listener
// fails, then shuts both servers down within timeout.
func startServerAndWaitForShutdown(server, metricsServer *http.Server, logger *slog.Logger, timeout time.Duration) error {
	serverErr := make(chan error, 2)
	go func() {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("server failed: %w", err)
		}
	}()
	go func() {
		logger.Info("metrics listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("metrics server failed: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("shutdown signal received", "signal", sig.String())
	case runErr = <-serverErr:
		logger.Error("listener stopped", "error", runErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", "error", err)
		runErr = errors.Join(runErr, err)
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("metrics server shutdown failed", "error", err)
	}

	logger.Info("server stopped")
	return runErr
}

// healthHandler returns OK if the process is alive
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Response write errors are unrecoverable
	fmt.Fprint(w, `{"status":"ok"}`)
}

// readyHandler returns OK if the database answers a ping.
func readyHandler(store interface{ Ping(context.Context) error }) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			//nolint:errcheck // Response write errors are unrecoverable
			fmt.Fprint(w, `{"status":"not_ready","database":"unavailable"}`)
			return
		}

		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // Response write errors are unrecoverable
		fmt.Fprint(w, `{"status":"ok","database":"connected"}`)
	}
}
