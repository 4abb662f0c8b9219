package domain

import (
	"errors"
	"fmt"
)

// AppError is the base domain error type.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// HasCode reports whether err is (or wraps) an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Error codes for the session / engine / wallet / round / audit taxonomy.
const (
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
	CodeSessionConflict    = "SESSION_CONFLICT"
	CodeSessionUnavailable = "SESSION_UNAVAILABLE"
	CodeSessionExists      = "SESSION_EXISTS"
	CodeSessionBusy        = "SESSION_BUSY"
	CodeBonusActive        = "BONUS_ACTIVE"

	CodeUnknownGame           = "UNKNOWN_GAME"
	CodeEngineUnreachable     = "ENGINE_UNREACHABLE"
	CodeEngineInvalidResponse = "ENGINE_INVALID_RESPONSE"
	CodeEngineFaulted         = "ENGINE_FAULTED"

	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeWalletUnreachable = "WALLET_UNREACHABLE"
	CodeWalletTimeout     = "WALLET_TIMEOUT"

	CodeEngineFailed           = "ENGINE_FAILED"
	CodeCreditPending          = "CREDIT_PENDING"
	CodeUnreconciled           = "UNRECONCILED"
	CodeStatePersistenceFailed = "STATE_PERSISTENCE_FAILED"

	CodeAuditWriteFailed  = "AUDIT_WRITE_FAILED"
	CodeAuditHashMismatch = "AUDIT_HASH_MISMATCH"
	CodeRoundNotFound     = "ROUND_NOT_FOUND"

	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInternal     = "INTERNAL_ERROR"
)

// Session errors.

func ErrSessionNotFound(id string) *AppError {
	return &AppError{Code: CodeSessionNotFound, Message: fmt.Sprintf("session %s not found", id), Status: 404}
}

func ErrSessionConflict(id string) *AppError {
	return &AppError{Code: CodeSessionConflict, Message: fmt.Sprintf("session %s was concurrently modified", id), Status: 409}
}

func ErrSessionUnavailable(cause error) *AppError {
	return &AppError{Code: CodeSessionUnavailable, Message: "session store unavailable", Status: 503, Cause: cause}
}

func ErrSessionExists(id string) *AppError {
	return &AppError{Code: CodeSessionExists, Message: fmt.Sprintf("session %s already exists", id), Status: 409}
}

func ErrSessionBusy(id string) *AppError {
	return &AppError{Code: CodeSessionBusy, Message: fmt.Sprintf("session %s has a round in flight", id), Status: 429}
}

func ErrBonusActive(id string) *AppError {
	return &AppError{Code: CodeBonusActive, Message: fmt.Sprintf("session %s has an unresolved bonus", id), Status: 409}
}

// Engine errors.

func ErrUnknownGame(gameCode string) *AppError {
	return &AppError{Code: CodeUnknownGame, Message: fmt.Sprintf("no engine registered for game %s", gameCode), Status: 404}
}

func ErrEngineUnreachable(gameCode string, cause error) *AppError {
	return &AppError{Code: CodeEngineUnreachable, Message: fmt.Sprintf("engine for %s unreachable", gameCode), Status: 502, Cause: cause}
}

func ErrEngineInvalidResponse(gameCode string, cause error) *AppError {
	return &AppError{Code: CodeEngineInvalidResponse, Message: fmt.Sprintf("engine for %s returned malformed response", gameCode), Status: 502, Cause: cause}
}

func ErrEngineFaulted(gameCode string, cause error) *AppError {
	return &AppError{Code: CodeEngineFaulted, Message: fmt.Sprintf("engine for %s faulted during execution", gameCode), Status: 500, Cause: cause}
}

// Wallet errors.

func ErrInsufficientFunds() *AppError {
	return &AppError{Code: CodeInsufficientFunds, Message: "insufficient funds", Status: 402}
}

func ErrWalletUnreachable(cause error) *AppError {
	return &AppError{Code: CodeWalletUnreachable, Message: "wallet unreachable", Status: 502, Cause: cause}
}

func ErrWalletTimeout(cause error) *AppError {
	return &AppError{Code: CodeWalletTimeout, Message: "wallet call timed out", Status: 504, Cause: cause}
}

// Round errors. The message always carries the ids an operator needs
// for out-of-band repair.

func ErrEngineFailed(roundID string, cause error) *AppError {
	return &AppError{Code: CodeEngineFailed, Message: fmt.Sprintf("round %s failed in engine, wager refunded", roundID), Status: 502, Cause: cause}
}

func ErrCreditPending(roundID, creditTxID string, cause error) *AppError {
	return &AppError{Code: CodeCreditPending, Message: fmt.Sprintf("round %s settled but credit %s is pending", roundID, creditTxID), Status: 500, Cause: cause}
}

func ErrUnreconciled(roundID, debitTxID string, cause error) *AppError {
	return &AppError{Code: CodeUnreconciled, Message: fmt.Sprintf("round %s needs reconciliation, debit %s not rolled back", roundID, debitTxID), Status: 500, Cause: cause}
}

func ErrStatePersistenceFailed(roundID string, cause error) *AppError {
	return &AppError{Code: CodeStatePersistenceFailed, Message: fmt.Sprintf("round %s settled but session state not persisted", roundID), Status: 500, Cause: cause}
}

// Audit errors.

func ErrAuditWriteFailed(roundID string, cause error) *AppError {
	return &AppError{Code: CodeAuditWriteFailed, Message: fmt.Sprintf("audit write for round %s failed", roundID), Status: 500, Cause: cause}
}

func ErrRoundNotFound(roundID string) *AppError {
	return &AppError{Code: CodeRoundNotFound, Message: fmt.Sprintf("round %s not found", roundID), Status: 404}
}

func ErrAuditHashMismatch(roundID string) *AppError {
	return &AppError{Code: CodeAuditHashMismatch, Message: fmt.Sprintf("stored outcome hash for round %s does not match payload", roundID), Status: 500}
}

// Generic errors.

func ErrValidation(msg string) *AppError {
	return &AppError{Code: CodeValidation, Message: msg, Status: 400}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: msg, Status: 401}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: msg, Status: 500, Cause: cause}
}
