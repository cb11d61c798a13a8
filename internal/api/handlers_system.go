// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net"
	"net/http"
)

type infoResponse struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	Port           string `json:"port"`
	StorageBackend string `json:"storageBackend"`
	ActiveSessions int    `json:"activeSessions"`
}

// handleInfo serves GET /info.
func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	info := s.deps.Info
	port := info.ListenAddr
	if _, p, err := net.SplitHostPort(info.ListenAddr); err == nil {
		port = p
	}
	writeJSON(w, http.StatusOK, infoResponse{
		Name:           info.Name,
		Version:        info.Version,
		Port:           port,
		StorageBackend: info.StorageBackend,
		ActiveSessions: s.deps.Pairing.ActiveSessions(),
	})
}
