package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListDevices returns the current worker status for every
// registered device, sorted by serial.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.registry.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns the worker status for a single device.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	serial := chi.URLParam(r, "serial")

	status, ok := s.registry.Get(serial)
	if !ok {
		writeNotFound(w, "device not registered in this run: "+serial)
		return
	}

	writeJSON(w, http.StatusOK, status)
}
