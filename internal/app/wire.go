// Package app assembles the HTTP surface from its parts.
package app

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stakehouse/rgs/internal/audit"
	"github.com/stakehouse/rgs/internal/auth"
	"github.com/stakehouse/rgs/internal/engine"
	"github.com/stakehouse/rgs/internal/handler"
	"github.com/stakehouse/rgs/internal/round"
	"github.com/stakehouse/rgs/internal/wallet"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Pool         *pgxpool.Pool
	Verifier     *auth.TokenVerifier
	Orchestrator *round.Orchestrator
	Registry     *engine.Registry
	Wallet       wallet.Client
	Recorder     audit.Recorder
	ModulesDir   string
	Version      string
	Logger       *slog.Logger
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	logger := deps.Logger

	sessionHandler := handler.NewSessionHandler(deps.Orchestrator, deps.Wallet)
	roundHandler := handler.NewRoundHandler(deps.Orchestrator, deps.Recorder)
	engineHandler := handler.NewEngineHandler(deps.Registry, deps.ModulesDir, deps.Version, logger)

	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORS)
	r.Use(handler.JSONContentType)

	// Health and game catalogue (no auth)
	r.Get("/health", handler.HealthHandler(deps.Pool))
	r.Get("/games", engineHandler.ListGames)

	// Player routes, authorized by operator-minted launch tokens
	r.Group(func(r chi.Router) {
		r.Use(auth.AuthenticatePlayer(deps.Verifier))

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.Create)
			r.Get("/{sessionID}", sessionHandler.Get)
			r.Delete("/{sessionID}", sessionHandler.Delete)
			r.Post("/{sessionID}/rounds", roundHandler.Execute)
		})

		r.Get("/wallet/balance", sessionHandler.GetBalance)
	})

	// Operator back-office routes
	r.Group(func(r chi.Router) {
		r.Use(auth.AuthenticateOperator(deps.Verifier))

		r.Route("/audit", func(r chi.Router) {
			r.Get("/rounds/{roundID}", roundHandler.GetRound)
			r.Get("/rounds/{roundID}/verify", roundHandler.VerifyRound)
			r.Get("/sessions/{sessionID}/rounds", roundHandler.GetSessionRounds)
		})

		r.Post("/admin/engines/reload", engineHandler.Reload)
	})

	return r
}
