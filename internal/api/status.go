package api

import (
	"net/http"
	"time"
)

// StatusResponse is the run summary returned by GET /api/v1/status.
type StatusResponse struct {
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Workers       int            `json:"workers"`
	Active        int            `json:"active"`
	ByState       map[string]int `json:"by_state"`
	Detections    int            `json:"detections"`
	WSClients     int            `json:"ws_clients"`
}

// handleStatus returns a summary of the current automation run.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	stats := s.registry.GetStats()

	byState := make(map[string]int, len(stats.ByState))
	for state, n := range stats.ByState {
		byState[string(state)] = n
	}

	resp := StatusResponse{
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Workers:       stats.Total,
		Active:        stats.Active,
		ByState:       byState,
		Detections:    stats.Detections,
	}
	if s.hub != nil {
		resp.WSClients = s.hub.ClientCount()
	}

	writeJSON(w, http.StatusOK, resp)
}
