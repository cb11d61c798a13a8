// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/manager"
)

const pairingSuggestion = "Make sure the number has WhatsApp and try again"

type errorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message,omitempty"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// pairingError maps a StartPairing failure class to status and body.
func pairingError(err error) (int, errorResponse) {
	switch {
	case errors.Is(err, manager.ErrInvalidNumber):
		return http.StatusBadRequest, errorResponse{Error: capitalize(err.Error())}
	case errors.Is(err, manager.ErrAlreadyRegistered):
		return http.StatusBadRequest, errorResponse{Error: "Number already registered"}
	case errors.Is(err, manager.ErrCapacityExceeded):
		return http.StatusServiceUnavailable, errorResponse{Error: "Too many active pairing sessions, try again later"}
	case errors.Is(err, manager.ErrShuttingDown):
		return http.StatusServiceUnavailable, errorResponse{Error: "Service is shutting down"}
	case errors.Is(err, manager.ErrPairingRequestFailed):
		return http.StatusInternalServerError, errorResponse{
			Error:      "Failed to generate pairing code",
			Details:    causeOf(err, manager.ErrPairingRequestFailed),
			Suggestion: pairingSuggestion,
		}
	case errors.Is(err, manager.ErrSetupFailed):
		return http.StatusInternalServerError, errorResponse{
			Error:   "Setup failed",
			Details: causeOf(err, manager.ErrSetupFailed),
		}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "Internal server error", Details: err.Error()}
	}
}

// causeOf strips the class prefix so details carry only the underlying cause.
func causeOf(err, class error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, class.Error()+": "); ok {
		return rest
	}
	return msg
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
