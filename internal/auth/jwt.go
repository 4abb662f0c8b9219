// Package auth verifies launch tokens. An operator mints a short-lived
// token when a player opens a game; the server never issues player
// credentials of its own.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Realm identifies the token realm.
type Realm string

const (
	// RealmPlayer tokens authorize session and round calls for one
	// player on one game.
	RealmPlayer Realm = "player"
	// RealmOperator tokens authorize back-office calls such as audit
	// lookups and engine reloads.
	RealmOperator Realm = "operator"
)

// Claims holds the launch token claims. Subject is the player id in
// the player realm and the operator id in the operator realm.
type Claims struct {
	jwt.RegisteredClaims
	Realm      Realm  `json:"realm"`
	OperatorID string `json:"operator_id,omitempty"`
	GameCode   string `json:"game_code,omitempty"`
	Currency   string `json:"currency,omitempty"`
}

// TokenVerifier validates launch tokens against the shared operator
// secret. It can also mint tokens, which operators use in their own
// backends and tests use directly.
type TokenVerifier struct {
	secret       []byte
	playerExpiry time.Duration
}

// NewTokenVerifier creates a verifier with the given player token
// lifetime.
func NewTokenVerifier(secret string, playerExpiry time.Duration) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), playerExpiry: playerExpiry}
}

// MintPlayerToken signs a launch token for one player on one game.
func (v *TokenVerifier) MintPlayerToken(playerID, operatorID, gameCode, currency string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.playerExpiry)),
			ID:        uuid.New().String(),
		},
		Realm:      RealmPlayer,
		OperatorID: operatorID,
		GameCode:   gameCode,
		Currency:   currency,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// MintOperatorToken signs a back-office token for an operator.
func (v *TokenVerifier) MintOperatorToken(operatorID string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operatorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			ID:        uuid.New().String(),
		},
		Realm:      RealmOperator,
		OperatorID: operatorID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Verify parses and validates a token.
func (v *TokenVerifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// VerifyForRealm validates a token and checks its realm.
func (v *TokenVerifier) VerifyForRealm(tokenString string, expected Realm) (*Claims, error) {
	claims, err := v.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Realm != expected {
		return nil, fmt.Errorf("expected realm %s, got %s", expected, claims.Realm)
	}
	return claims, nil
}
