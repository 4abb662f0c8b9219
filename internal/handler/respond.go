package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stakehouse/rgs/internal/domain"
)

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// errorResponse is the error body shape for every endpoint. Round is
// set when a round reached a partial outcome: the caller gets the
// round id and best-known balance alongside the error code.
type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Round   interface{} `json:"round,omitempty"`
}

// RespondError writes a JSON error response, detecting domain.AppError
// for status codes.
func RespondError(w http.ResponseWriter, err error) {
	RespondErrorWithRound(w, err, nil)
}

// RespondErrorWithRound writes an error response carrying a partial
// round result when one exists.
func RespondErrorWithRound(w http.ResponseWriter, err error, round interface{}) {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		RespondJSON(w, appErr.Status, errorResponse{
			Code:    appErr.Code,
			Message: appErr.Message,
			Round:   round,
		})
		return
	}
	RespondJSON(w, http.StatusInternalServerError, errorResponse{
		Code:    domain.CodeInternal,
		Message: "internal server error",
	})
}

// DecodeJSON reads and decodes a JSON request body into dst.
func DecodeJSON(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
