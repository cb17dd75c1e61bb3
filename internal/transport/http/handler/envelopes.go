package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-employment-verify/internal/domain"
)

// maxBodyBytes bounds request bodies; base64 uploads dominate.
const maxBodyBytes = 16 << 20

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// ListEnvelope wraps verification list responses.
type ListEnvelope struct {
	Count int                   `json:"count"`
	Data  []domain.Verification `json:"data"`
}

// LinkEnvelope answers the single-use email link endpoints. Status is
// "recorded" or "already_processed".
type LinkEnvelope struct {
	Status         string `json:"status"`
	VerificationID string `json:"verification_id"`
	Outcome        string `json:"outcome,omitempty"`
	Message        string `json:"message,omitempty"`
}

const (
	linkRecorded         = "recorded"
	linkAlreadyProcessed = "already_processed"
)

func linkStatus(alreadyProcessed bool) string {
	if alreadyProcessed {
		return linkAlreadyProcessed
	}
	return linkRecorded
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg, ErrorCode: status})
}

// writeServiceError maps a service error onto its HTTP status. Unmapped
// errors are logged and hidden behind a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrQuotaExceeded):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrTokenExpired):
		return http.StatusGone
	case errors.Is(err, domain.ErrExternalService), errors.Is(err, domain.ErrChannelDispatch):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
