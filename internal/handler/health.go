package handler

import (
	"net/http"
	"time"

	"bus-simulator/internal/sim"
)

type HealthHandler struct {
	mgr *sim.Manager
}

func NewHealthHandler(mgr *sim.Manager) *HealthHandler {
	return &HealthHandler{mgr: mgr}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type StatusResponse struct {
	Running    bool      `json:"running"`
	Tick       uint64    `json:"tick"`
	SessionID  string    `json:"sessionId"`
	RouteCount int       `json:"routeCount"`
	ServerTime time.Time `json:"serverTime"`
}

func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	snap := h.mgr.Snapshot()
	respondJSON(w, http.StatusOK, StatusResponse{
		Running:    snap.Running,
		Tick:       snap.Tick,
		SessionID:  snap.SessionID,
		RouteCount: len(snap.Routes),
		ServerTime: time.Now(),
	})
}
