// wallet-sim is a standalone in-memory wallet ledger for local
// development and integration testing. It serves the same HTTP
// protocol a production operator wallet must implement.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stakehouse/rgs/internal/wallet"
	"github.com/stakehouse/rgs/internal/walletserver"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("wallet simulator failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	port := 4001
	if p := os.Getenv("WALLET_SIM_PORT"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("parse WALLET_SIM_PORT: %w", err)
		}
		port = n
	}

	ledger := wallet.NewMemoryWallet()

	// Optional starting balance for ad-hoc testing:
	// WALLET_SIM_SEED="player-1=100.00=EUR"
	if seed := os.Getenv("WALLET_SIM_SEED"); seed != "" {
		playerID, rest, _ := strings.Cut(seed, "=")
		amount, currency, _ := strings.Cut(rest, "=")
		bal, err := decimal.NewFromString(amount)
		if err != nil {
			return fmt.Errorf("parse WALLET_SIM_SEED: %w", err)
		}
		ledger.SetBalance(playerID, currency, bal)
		logger.Info("seeded player", "player_id", playerID, "balance", bal, "currency", currency)
	}

	router := walletserver.NewRouter(ledger, logger)

	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("wallet simulator starting", "addr", addr)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
