// Package walletserver is a standalone wallet ledger for development
// and integration testing. It speaks the same HTTP protocol the game
// server's wallet client expects, with the same idempotency rules a
// production operator wallet must honor.
package walletserver

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stakehouse/rgs/internal/domain"
	"github.com/stakehouse/rgs/internal/handler"
	"github.com/stakehouse/rgs/internal/wallet"
)

// NewRouter builds the wallet simulator router over the given ledger.
func NewRouter(ledger *wallet.MemoryWallet, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Info("wallet request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr)
			next.ServeHTTP(w, r)
		})
	})
	r.Use(handler.JSONContentType)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Post("/debit", debitHandler(ledger, logger))
	r.Post("/credit", creditHandler(ledger, logger))
	r.Post("/rollback", rollbackHandler(ledger, logger))
	r.Get("/balance", balanceHandler(ledger))

	// Dev convenience: seed a player balance.
	r.Post("/players", seedHandler(ledger, logger))

	return r
}

// walletRequest mirrors the game server's wallet call body.
type walletRequest struct {
	PlayerID      string          `json:"player_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	TransactionID string          `json:"transaction_id"`
	RoundID       string          `json:"round_id"`
}

func debitHandler(ledger *wallet.MemoryWallet, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req walletRequest
		if err := handler.DecodeJSON(r, &req); err != nil {
			handler.RespondError(w, domain.ErrValidation("invalid request body"))
			return
		}

		resp, err := ledger.Debit(r.Context(), wallet.DebitParams{
			PlayerID:      req.PlayerID,
			Amount:        req.Amount,
			Currency:      req.Currency,
			TransactionID: req.TransactionID,
			RoundID:       req.RoundID,
		})
		if err != nil {
			handler.RespondError(w, err)
			return
		}

		logger.Info("debit", "player_id", req.PlayerID, "amount", req.Amount, "tx_id", req.TransactionID)
		handler.RespondJSON(w, http.StatusOK, resp)
	}
}

func creditHandler(ledger *wallet.MemoryWallet, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req walletRequest
		if err := handler.DecodeJSON(r, &req); err != nil {
			handler.RespondError(w, domain.ErrValidation("invalid request body"))
			return
		}

		resp, err := ledger.Credit(r.Context(), wallet.CreditParams{
			PlayerID:      req.PlayerID,
			Amount:        req.Amount,
			Currency:      req.Currency,
			TransactionID: req.TransactionID,
			RoundID:       req.RoundID,
		})
		if err != nil {
			handler.RespondError(w, err)
			return
		}

		logger.Info("credit", "player_id", req.PlayerID, "amount", req.Amount, "tx_id", req.TransactionID)
		handler.RespondJSON(w, http.StatusOK, resp)
	}
}

func rollbackHandler(ledger *wallet.MemoryWallet, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req walletRequest
		if err := handler.DecodeJSON(r, &req); err != nil {
			handler.RespondError(w, domain.ErrValidation("invalid request body"))
			return
		}

		resp, err := ledger.Rollback(r.Context(), req.PlayerID, req.TransactionID)
		if err != nil {
			handler.RespondError(w, err)
			return
		}

		logger.Info("rollback", "player_id", req.PlayerID, "tx_id", req.TransactionID)
		handler.RespondJSON(w, http.StatusOK, resp)
	}
}

func balanceHandler(ledger *wallet.MemoryWallet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID := r.URL.Query().Get("player_id")
		currency := r.URL.Query().Get("currency")
		if playerID == "" {
			handler.RespondError(w, domain.ErrValidation("player_id is required"))
			return
		}

		resp, err := ledger.Balance(r.Context(), playerID, currency)
		if err != nil {
			handler.RespondError(w, err)
			return
		}
		handler.RespondJSON(w, http.StatusOK, resp)
	}
}

type seedRequest struct {
	PlayerID string          `json:"player_id"`
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

func seedHandler(ledger *wallet.MemoryWallet, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req seedRequest
		if err := handler.DecodeJSON(r, &req); err != nil {
			handler.RespondError(w, domain.ErrValidation("invalid request body"))
			return
		}
		if req.PlayerID == "" {
			handler.RespondError(w, domain.ErrValidation("player_id is required"))
			return
		}
		if err := domain.ValidateCurrency(req.Currency); err != nil {
			handler.RespondError(w, domain.ErrValidation(err.Error()))
			return
		}

		ledger.SetBalance(req.PlayerID, req.Currency, req.Balance)
		logger.Info("player seeded", "player_id", req.PlayerID, "balance", req.Balance, "currency", req.Currency)
		handler.RespondJSON(w, http.StatusCreated, map[string]string{"player_id": req.PlayerID})
	}
}
