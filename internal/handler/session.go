package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stakehouse/rgs/internal/auth"
	"github.com/stakehouse/rgs/internal/domain"
	"github.com/stakehouse/rgs/internal/round"
	"github.com/stakehouse/rgs/internal/wallet"
)

// SessionHandler handles session lifecycle and balance endpoints.
type SessionHandler struct {
	orch   *round.Orchestrator
	wallet wallet.Client
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(orch *round.Orchestrator, walletClient wallet.Client) *SessionHandler {
	return &SessionHandler{orch: orch, wallet: walletClient}
}

// sessionResponse is the shape of a session in API responses. Private
// engine state never appears here.
type sessionResponse struct {
	SessionID   string               `json:"session_id"`
	GameCode    string               `json:"game_code"`
	Currency    string               `json:"currency"`
	PublicState interface{}          `json:"public_state,omitempty"`
	Bonus       *domain.BonusSession `json:"bonus,omitempty"`
	Balance     *decimal.Decimal     `json:"balance,omitempty"`
}

func toSessionResponse(s *domain.Session) sessionResponse {
	return sessionResponse{
		SessionID:   s.ID,
		GameCode:    s.GameCode,
		Currency:    s.Currency,
		PublicState: rawOrNil(s.PublicState),
		Bonus:       s.Bonus,
	}
}

// Create handles POST /sessions. Game, currency and player identity
// all come from the launch token, not the body: the operator decided
// them when it minted the token.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		RespondError(w, domain.ErrUnauthorized("no auth context"))
		return
	}
	if err := domain.ValidateGameCode(claims.GameCode); err != nil {
		RespondError(w, domain.ErrValidation(err.Error()))
		return
	}
	if err := domain.ValidateCurrency(claims.Currency); err != nil {
		RespondError(w, domain.ErrValidation(err.Error()))
		return
	}

	result, err := h.orch.StartSession(r.Context(), round.StartSessionParams{
		PlayerID:   claims.Subject,
		OperatorID: claims.OperatorID,
		GameCode:   claims.GameCode,
		Currency:   claims.Currency,
	})
	if err != nil {
		RespondError(w, err)
		return
	}

	resp := toSessionResponse(result.Session)
	resp.Balance = &result.Balance
	RespondJSON(w, http.StatusCreated, resp)
}

// Get handles GET /sessions/{sessionID}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.ownedSession(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, toSessionResponse(s))
}

// Delete handles DELETE /sessions/{sessionID}.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	s, err := h.ownedSession(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	if err := h.orch.EndSession(r.Context(), s.ID); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusNoContent, nil)
}

// GetBalance handles GET /wallet/balance.
func (h *SessionHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		RespondError(w, domain.ErrUnauthorized("no auth context"))
		return
	}

	resp, err := h.wallet.Balance(r.Context(), claims.Subject, claims.Currency)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"balance":  resp.Balance,
		"currency": resp.Currency,
	})
}

// ownedSession loads the session from the URL and checks it belongs to
// the calling player. A foreign session reads as not found, never as
// forbidden, so session ids cannot be probed.
func (h *SessionHandler) ownedSession(r *http.Request) (*domain.Session, error) {
	sessionID := chi.URLParam(r, "sessionID")
	playerID := auth.SubjectFromContext(r.Context())
	if playerID == "" {
		return nil, domain.ErrUnauthorized("no subject in context")
	}

	s, err := h.orch.GetSession(r.Context(), sessionID)
	if err != nil {
		return nil, err
	}
	if s.PlayerID != playerID {
		return nil, domain.ErrSessionNotFound(sessionID)
	}
	return s, nil
}
