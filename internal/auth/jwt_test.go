package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayerTokenRoundTrip(t *testing.T) {
	v := NewTokenVerifier("test-secret", time.Hour)

	token, err := v.MintPlayerToken("player-1", "op-1", "book-of-gold", "EUR")
	require.NoError(t, err)

	claims, err := v.VerifyForRealm(token, RealmPlayer)
	require.NoError(t, err)
	assert.Equal(t, "player-1", claims.Subject)
	assert.Equal(t, "op-1", claims.OperatorID)
	assert.Equal(t, "book-of-gold", claims.GameCode)
	assert.Equal(t, "EUR", claims.Currency)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v := NewTokenVerifier("test-secret", time.Hour)
	other := NewTokenVerifier("other-secret", time.Hour)

	token, err := v.MintPlayerToken("player-1", "op-1", "book-of-gold", "EUR")
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	v := NewTokenVerifier("test-secret", -time.Minute)

	token, err := v.MintPlayerToken("player-1", "op-1", "book-of-gold", "EUR")
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsRealmMismatch(t *testing.T) {
	v := NewTokenVerifier("test-secret", time.Hour)

	token, err := v.MintOperatorToken("op-1", time.Hour)
	require.NoError(t, err)

	_, err = v.VerifyForRealm(token, RealmPlayer)
	assert.Error(t, err)
}

func TestAuthenticatePlayerMiddleware(t *testing.T) {
	v := NewTokenVerifier("test-secret", time.Hour)
	token, err := v.MintPlayerToken("player-1", "op-1", "book-of-gold", "EUR")
	require.NoError(t, err)

	var gotSubject string
	handler := AuthenticatePlayer(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid token", header: "Bearer " + token, wantStatus: http.StatusOK},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not-a-token", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}

	assert.Equal(t, "player-1", gotSubject)
}
