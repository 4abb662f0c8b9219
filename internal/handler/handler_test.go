package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stakehouse/rgs/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondJSON(t *testing.T) {
	t.Run("200 with body", func(t *testing.T) {
		w := httptest.NewRecorder()
		RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		assert.Equal(t, http.StatusOK, w.Code)
		var body map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("204 with nil body", func(t *testing.T) {
		w := httptest.NewRecorder()
		RespondJSON(w, http.StatusNoContent, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestRespondError(t *testing.T) {
	t.Run("AppError maps to its status", func(t *testing.T) {
		tests := []struct {
			err        error
			wantStatus int
			wantCode   string
		}{
			{domain.ErrSessionNotFound("s-1"), 404, "SESSION_NOT_FOUND"},
			{domain.ErrValidation("bad input"), 400, "VALIDATION_ERROR"},
			{domain.ErrUnauthorized("no token"), 401, "UNAUTHORIZED"},
			{domain.ErrSessionBusy("s-1"), 429, "SESSION_BUSY"},
			{domain.ErrInsufficientFunds(), 402, "INSUFFICIENT_FUNDS"},
			{domain.ErrWalletTimeout(errors.New("late")), 504, "WALLET_TIMEOUT"},
		}

		for _, tt := range tests {
			w := httptest.NewRecorder()
			RespondError(w, tt.err)
			assert.Equal(t, tt.wantStatus, w.Code)
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body["code"])
		}
	})

	t.Run("wrapped AppError still maps", func(t *testing.T) {
		w := httptest.NewRecorder()
		wrapped := domain.ErrEngineFailed("r-1", errors.New("trap"))
		RespondError(w, wrapped)
		assert.Equal(t, 502, w.Code)
	})

	t.Run("unknown error maps to 500", func(t *testing.T) {
		w := httptest.NewRecorder()
		RespondError(w, errors.New("boom"))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "INTERNAL_ERROR", body["code"])
	})
}

func TestRespondErrorWithRound(t *testing.T) {
	w := httptest.NewRecorder()
	err := domain.ErrCreditPending("r-1", "tx-1", errors.New("wallet down"))
	RespondErrorWithRound(w, err, map[string]string{"round_id": "r-1"})

	assert.Equal(t, 500, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "CREDIT_PENDING", body["code"])
	round, ok := body["round"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "r-1", round["round_id"])
}

func TestRequestIDMiddleware(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, GetRequestID(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("generates id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("propagates incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "req-42")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	})
}

func TestDecodeJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":"spin"}`))
	var dst struct {
		Type string `json:"type"`
	}
	require.NoError(t, DecodeJSON(req, &dst))
	assert.Equal(t, "spin", dst.Type)
}
