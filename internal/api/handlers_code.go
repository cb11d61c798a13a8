// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/alpha-x-team-ofc/web-pair/internal/log"
	"github.com/go-chi/chi/v5"
)

var pairingInstructions = []string{
	"1. Open WhatsApp on your phone",
	"2. Go to Settings → Linked Devices",
	"3. Tap \"Link a Device\"",
	"4. Enter this pairing code",
}

type startResponse struct {
	Success      bool     `json:"success"`
	SessionID    string   `json:"sessionId"`
	PairingCode  string   `json:"pairingCode"`
	Message      string   `json:"message"`
	Instructions []string `json:"instructions"`
}

type statusResponse struct {
	Status         string  `json:"status"`
	State          string  `json:"state,omitempty"`
	Reason         string  `json:"reason,omitempty"`
	PairingCode    string  `json:"pairingCode,omitempty"`
	AgeSeconds     float64 `json:"ageSeconds,omitempty"`
	FilesCount     int     `json:"filesCount"`
	HasCredentials bool    `json:"hasCredentials"`
	Connected      bool    `json:"connected"`
}

type cleanupResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	Removed       int    `json:"removed"`
	Remaining     int    `json:"remaining"`
	OrphansPurged int    `json:"orphansPurged"`
}

// handleStart serves POST|GET /code/start.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")
	number := numberFromRequest(w, r)

	res, err := s.deps.Pairing.StartPairing(r.Context(), number)
	if err != nil {
		code, body := pairingError(err)
		ev := logger.Warn()
		if code >= http.StatusInternalServerError {
			ev = logger.Error()
		}
		ev.Err(err).
			Str(log.FieldEvent, "pairing.start_rejected").
			Int(log.FieldStatus, code).
			Str(log.FieldPhone, log.MaskPhone(number)).
			Msg("pairing request failed")
		writeJSON(w, code, body)
		return
	}

	writeJSON(w, http.StatusOK, startResponse{
		Success:      true,
		SessionID:    res.SessionID,
		PairingCode:  res.PairingCode,
		Message:      "Pairing code generated successfully",
		Instructions: pairingInstructions,
	})
}

// handleStatus serves GET /code/status/{id}. Unknown ids answer 200 not_found.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := s.deps.Pairing.Status(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "error": err.Error()})
		return
	}
	if !st.Active {
		writeJSON(w, http.StatusOK, statusResponse{
			Status: "not_found",
			State:  string(st.State),
			Reason: string(st.Reason),
		})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status:         "active",
		State:          string(st.State),
		Reason:         string(st.Reason),
		PairingCode:    st.PairingCode,
		AgeSeconds:     st.Age.Seconds(),
		FilesCount:     st.FilesCount,
		HasCredentials: st.HasCredentials,
		Connected:      st.Connected,
	})
}

// handleCleanup serves GET /code/cleanup, an on-demand sweep.
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Pairing.Sweep(r.Context())
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str(log.FieldEvent, "sweep.failed").Msg("on-demand cleanup failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Cleanup failed", Details: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, cleanupResponse{
		Success:       true,
		Message:       "Cleanup completed",
		Removed:       res.Removed,
		Remaining:     res.Remaining,
		OrphansPurged: res.OrphansPurged,
	})
}
