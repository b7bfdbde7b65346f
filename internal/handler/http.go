package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"bus-simulator/internal/sim"
	"bus-simulator/internal/transit"
)

// SimHandler exposes the simulation controls and passenger actions over HTTP.
type SimHandler struct {
	mgr *sim.Manager
	// ctx outlives individual requests; the ticker started by Start runs under it.
	ctx context.Context
}

func NewSimHandler(ctx context.Context, mgr *sim.Manager) *SimHandler {
	return &SimHandler{mgr: mgr, ctx: ctx}
}

type RoutesResponse struct {
	Routes []transit.Route `json:"routes"`
	Count  int             `json:"count"`
}

type ActionResponse struct {
	Action        string           `json:"action,omitempty"`
	RouteID       string           `json:"routeId,omitempty"`
	TravelSeconds *int64           `json:"travelSeconds,omitempty"`
	Snapshot      transit.Snapshot `json:"snapshot"`
}

type StartResponse struct {
	Started  bool             `json:"started"`
	Snapshot transit.Snapshot `json:"snapshot"`
}

func (h *SimHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.mgr.Snapshot())
}

func (h *SimHandler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	routes := h.mgr.Routes()
	respondJSON(w, http.StatusOK, RoutesResponse{Routes: routes, Count: len(routes)})
}

func (h *SimHandler) Start(w http.ResponseWriter, r *http.Request) {
	started := h.mgr.Start(h.ctx)
	respondJSON(w, http.StatusOK, StartResponse{Started: started, Snapshot: h.mgr.Snapshot()})
}

func (h *SimHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.mgr.Stop()
	respondJSON(w, http.StatusOK, h.mgr.Snapshot())
}

func (h *SimHandler) Reset(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.mgr.Reset())
}

func (h *SimHandler) Tick(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.mgr.Tick())
}

func (h *SimHandler) Board(w http.ResponseWriter, r *http.Request) {
	routeID, ok := routeParam(w, r)
	if !ok {
		return
	}
	snap, err := h.mgr.AttemptBoarding(routeID)
	if err != nil {
		respondRejection(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ActionResponse{Action: string(sim.ActionBoarded), RouteID: routeID, Snapshot: snap})
}

func (h *SimHandler) Disembark(w http.ResponseWriter, r *http.Request) {
	routeID, ok := routeParam(w, r)
	if !ok {
		return
	}
	d, snap, err := h.mgr.AttemptDisembark(routeID)
	if err != nil {
		respondRejection(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ActionResponse{
		Action:        string(sim.ActionDisembarked),
		RouteID:       routeID,
		TravelSeconds: seconds(d),
		Snapshot:      snap,
	})
}

func (h *SimHandler) Interact(w http.ResponseWriter, r *http.Request) {
	routeID, ok := routeParam(w, r)
	if !ok {
		return
	}
	out, snap, err := h.mgr.Interact(routeID)
	if err != nil {
		respondRejection(w, err)
		return
	}
	resp := ActionResponse{Action: string(out.Action), RouteID: routeID, Snapshot: snap}
	if out.Action == sim.ActionDisembarked {
		resp.TravelSeconds = seconds(out.TravelTime)
	}
	respondJSON(w, http.StatusOK, resp)
}

func routeParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing route id")
		return "", false
	}
	return id, true
}

func seconds(d time.Duration) *int64 {
	s := int64(d / time.Second)
	return &s
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

func respondRejection(w http.ResponseWriter, err error) {
	respondJSON(w, statusFor(err), errorResponse{Error: err.Error(), Reason: sim.Reason(err)})
}

// statusFor maps passenger-action rejections to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sim.ErrUnknownRoute):
		return http.StatusNotFound

	// State conflicts
	case errors.Is(err, sim.ErrNotRunning),
		errors.Is(err, sim.ErrAlreadyRiding),
		errors.Is(err, sim.ErrTripCompleted),
		errors.Is(err, sim.ErrNotOnBus),
		errors.Is(err, sim.ErrWrongBus):
		return http.StatusConflict

	// Eligibility
	case errors.Is(err, sim.ErrRouteNotServing),
		errors.Is(err, sim.ErrBusTooFar),
		errors.Is(err, sim.ErrNotAtDestination):
		return http.StatusUnprocessableEntity

	default:
		return http.StatusInternalServerError
	}
}
