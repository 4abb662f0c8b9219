package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/stakehouse/rgs/internal/app"
	"github.com/stakehouse/rgs/internal/audit"
	"github.com/stakehouse/rgs/internal/auth"
	"github.com/stakehouse/rgs/internal/engine"
	"github.com/stakehouse/rgs/internal/guard"
	"github.com/stakehouse/rgs/internal/infra"
	"github.com/stakehouse/rgs/internal/round"
	"github.com/stakehouse/rgs/internal/session"
	"github.com/stakehouse/rgs/internal/wallet"
)

const serverVersion = "1.0.0"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load and validate config
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	// Connect to Postgres and run migrations
	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	if err := infra.RunMigrations(cfg.DSN(), logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	// Session store with encrypted private state
	stateKey, err := cfg.StateKey()
	if err != nil {
		return fmt.Errorf("state key: %w", err)
	}
	cipher, err := infra.NewStateCipher(stateKey)
	if err != nil {
		return fmt.Errorf("state cipher: %w", err)
	}
	sessions := session.NewManager(session.NewMemoryStore(), cipher, cfg.SessionTTL, logger)

	// Game engines: scripted modules plus remote adapters
	registry := engine.NewRegistry()
	if cfg.EngineModulesDir != "" {
		if _, err := os.Stat(cfg.EngineModulesDir); err == nil {
			loaded, err := engine.LoadModulesDir(registry, cfg.EngineModulesDir, serverVersion, logger)
			if err != nil {
				return fmt.Errorf("load game modules: %w", err)
			}
			logger.Info("game modules loaded", "count", loaded)
		} else {
			logger.Warn("modules directory missing, no scripted engines", "dir", cfg.EngineModulesDir)
		}
	}
	if err := registerRemoteEngines(ctx, registry, cfg, logger); err != nil {
		return fmt.Errorf("register remote engines: %w", err)
	}

	// Wallet
	walletClient := wallet.NewHTTPClient(cfg.WalletBaseURL, cfg.WalletTimeout, logger)

	// Audit recorder
	recorder := audit.NewPostgresRecorder(pool)

	// Reconciliation dead-letter sink
	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()
	reconciler := round.NewKafkaReconciler(producer, cfg.ReconcileTopic, logger)

	// Saga orchestrator
	orchCfg := round.DefaultConfig()
	orchCfg.EngineTimeout = cfg.EngineTimeout
	orch := round.NewOrchestrator(
		sessions,
		registry,
		walletClient,
		recorder,
		guard.NewSessionLocks(cfg.SessionLockWait),
		guard.NewCircuitBreaker(5, 30*time.Second),
		reconciler,
		orchCfg,
		logger,
	)

	// Expired-session sweep
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.SweepInterval),
		gocron.NewTask(func() {
			if _, err := sessions.CleanupExpired(context.Background()); err != nil {
				logger.Error("session sweep failed", "error", err)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("schedule session sweep: %w", err)
	}
	scheduler.Start()
	defer scheduler.Shutdown()

	// Router
	router := app.NewRouter(app.RouterDeps{
		Pool:         pool,
		Verifier:     auth.NewTokenVerifier(cfg.LaunchTokenSecret, cfg.LaunchTokenExpiry),
		Orchestrator: orch,
		Registry:     registry,
		Wallet:       walletClient,
		Recorder:     recorder,
		ModulesDir:   cfg.EngineModulesDir,
		Version:      serverVersion,
		Logger:       logger,
	})

	// Start server
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("rgs server starting", "addr", addr, "games", registry.GameCodes())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	// Shutdown with timeout; in-flight sagas finish because they run
	// on non-cancelable contexts once money has moved.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

// registerRemoteEngines parses REMOTE_ENGINES ("code=url,code=url") and
// registers an adapter per entry. An unreachable engine fails startup:
// a game advertised in config must be playable.
func registerRemoteEngines(ctx context.Context, registry *engine.Registry, cfg *infra.Config, logger *slog.Logger) error {
	if cfg.RemoteEngines == "" {
		return nil
	}

	for _, entry := range strings.Split(cfg.RemoteEngines, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		code, url, ok := strings.Cut(entry, "=")
		if !ok {
			return fmt.Errorf("malformed REMOTE_ENGINES entry %q", entry)
		}
		remote, err := engine.NewRemoteEngine(ctx, code, url, cfg.EngineTimeout, logger)
		if err != nil {
			return fmt.Errorf("remote engine %s: %w", code, err)
		}
		registry.Register(code, remote)
		logger.Info("remote engine registered", "game_code", code, "url", url)
	}
	return nil
}
