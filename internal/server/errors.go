package server

import (
	"encoding/json"
	"net/http"
)

// Deterministic reason codes for stable error classification.
const (
	ReasonUnauthenticated    = "unauthenticated"
	ReasonInvalidCredentials = "invalid_credentials"
	ReasonInvalidPin         = "invalid_pin"
	ReasonBadRequest         = "bad_request"
	ReasonNotFound           = "not_found"
	ReasonRoomExhausted      = "room_exhausted"
	ReasonInternalError      = "internal_error"
)

// ErrorEnvelope is the standard error response format.
type ErrorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code       string `json:"code"`        // HTTP status text
	ReasonCode string `json:"reason_code"` // Deterministic reason code
	Message    string `json:"message"`     // Human-readable message
}

// writeError writes a standardized JSON error response.
func writeError(w http.ResponseWriter, statusCode int, reasonCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorEnvelope{
		Error: ErrorDetail{
			Code:       http.StatusText(statusCode),
			ReasonCode: reasonCode,
			Message:    message,
		},
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
