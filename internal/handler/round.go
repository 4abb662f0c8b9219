package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stakehouse/rgs/internal/audit"
	"github.com/stakehouse/rgs/internal/auth"
	"github.com/stakehouse/rgs/internal/domain"
	"github.com/stakehouse/rgs/internal/round"
)

// RoundHandler handles round execution and audit lookup endpoints.
type RoundHandler struct {
	orch     *round.Orchestrator
	recorder audit.Recorder
}

// NewRoundHandler creates a new RoundHandler.
func NewRoundHandler(orch *round.Orchestrator, recorder audit.Recorder) *RoundHandler {
	return &RoundHandler{orch: orch, recorder: recorder}
}

// executeRequest is the body of POST /sessions/{sessionID}/rounds.
type executeRequest struct {
	Type    string          `json:"type"`
	Bet     decimal.Decimal `json:"bet"`
	Lines   int             `json:"lines,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// roundResponse is the shape of a completed round.
type roundResponse struct {
	RoundID        string               `json:"round_id"`
	Outcome        interface{}          `json:"outcome,omitempty"`
	PublicState    interface{}          `json:"public_state,omitempty"`
	Win            decimal.Decimal      `json:"win"`
	Balance        decimal.Decimal      `json:"balance"`
	TriggeredBonus *domain.BonusTrigger `json:"triggered_bonus,omitempty"`
}

func toRoundResponse(r *domain.RoundResult) roundResponse {
	return roundResponse{
		RoundID:        r.RoundID,
		Outcome:        rawOrNil(r.Outcome),
		PublicState:    rawOrNil(r.PublicState),
		Win:            r.Win,
		Balance:        r.Balance,
		TriggeredBonus: r.TriggeredBonus,
	}
}

// Execute handles POST /sessions/{sessionID}/rounds.
func (h *RoundHandler) Execute(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	playerID := auth.SubjectFromContext(r.Context())

	var req executeRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	s, err := h.orch.GetSession(r.Context(), sessionID)
	if err != nil {
		RespondError(w, err)
		return
	}
	if s.PlayerID != playerID {
		RespondError(w, domain.ErrSessionNotFound(sessionID))
		return
	}

	cmd := domain.GameActionCommand{
		Type:    domain.CommandType(req.Type),
		Bet:     req.Bet,
		Lines:   req.Lines,
		Payload: req.Payload,
	}

	result, err := h.orch.ExecuteRound(r.Context(), sessionID, cmd)
	if err != nil {
		// A partial result still reaches the caller: the round id and
		// best-known balance are what support asks for first.
		if result != nil {
			RespondErrorWithRound(w, err, toRoundResponse(result))
			return
		}
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, toRoundResponse(result))
}

// auditRoundResponse is the operator-facing audit record shape.
type auditRoundResponse struct {
	RoundID     string          `json:"round_id"`
	SessionID   string          `json:"session_id"`
	PlayerID    string          `json:"player_id"`
	GameCode    string          `json:"game_code"`
	Timestamp   string          `json:"timestamp"`
	Bet         decimal.Decimal `json:"bet"`
	Win         decimal.Decimal `json:"win"`
	Currency    string          `json:"currency"`
	DebitTxID   string          `json:"debit_tx_id,omitempty"`
	CreditTxID  string          `json:"credit_tx_id,omitempty"`
	OutcomeHash string          `json:"outcome_hash"`
	Outcome     interface{}     `json:"outcome,omitempty"`
}

func toAuditRoundResponse(rec *domain.GameRoundRecord) auditRoundResponse {
	return auditRoundResponse{
		RoundID:     rec.RoundID,
		SessionID:   rec.SessionID,
		PlayerID:    rec.PlayerID,
		GameCode:    rec.GameCode,
		Timestamp:   rec.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Bet:         rec.Bet,
		Win:         rec.Win,
		Currency:    rec.Currency,
		DebitTxID:   rec.DebitTxID,
		CreditTxID:  rec.CreditTxID,
		OutcomeHash: rec.OutcomeHash,
		Outcome:     rawOrNil(rec.Outcome),
	}
}

// GetRound handles GET /audit/rounds/{roundID} (operator realm).
func (h *RoundHandler) GetRound(w http.ResponseWriter, r *http.Request) {
	roundID := chi.URLParam(r, "roundID")

	rec, err := h.recorder.GetRound(r.Context(), roundID)
	if err != nil {
		RespondError(w, auditLookupError(roundID, err))
		return
	}
	RespondJSON(w, http.StatusOK, toAuditRoundResponse(rec))
}

// VerifyRound handles GET /audit/rounds/{roundID}/verify (operator
// realm): recomputes the outcome hash against the stored record.
func (h *RoundHandler) VerifyRound(w http.ResponseWriter, r *http.Request) {
	roundID := chi.URLParam(r, "roundID")

	ok, err := audit.VerifyRound(r.Context(), h.recorder, roundID)
	if err != nil {
		RespondError(w, auditLookupError(roundID, err))
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"round_id": roundID,
		"valid":    ok,
	})
}

func auditLookupError(roundID string, err error) error {
	if errors.Is(err, audit.ErrRoundNotFound) {
		return domain.ErrRoundNotFound(roundID)
	}
	return domain.ErrInternal("audit lookup", err)
}

// GetSessionRounds handles GET /audit/sessions/{sessionID}/rounds
// (operator realm).
func (h *RoundHandler) GetSessionRounds(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	records, err := h.recorder.GetSessionRounds(r.Context(), sessionID)
	if err != nil {
		RespondError(w, err)
		return
	}

	out := make([]auditRoundResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toAuditRoundResponse(rec))
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"rounds":     out,
	})
}

// rawOrNil converts raw JSON to a value the encoder can inline, or nil
// when empty.
func rawOrNil(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
