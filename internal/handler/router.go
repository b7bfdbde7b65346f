package handler

import "net/http"

// NewRouter wires the control API, the websocket stream and health checks.
func NewRouter(sh *SimHandler, ws *WSHandler, health *HealthHandler) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /v1/snapshot", GzipMiddleware(http.HandlerFunc(sh.GetSnapshot)))
	mux.Handle("GET /v1/routes", GzipMiddleware(http.HandlerFunc(sh.ListRoutes)))

	mux.HandleFunc("POST /v1/simulation/start", sh.Start)
	mux.HandleFunc("POST /v1/simulation/stop", sh.Stop)
	mux.HandleFunc("POST /v1/simulation/reset", sh.Reset)
	mux.HandleFunc("POST /v1/simulation/tick", sh.Tick)

	mux.HandleFunc("POST /v1/routes/{id}/board", sh.Board)
	mux.HandleFunc("POST /v1/routes/{id}/disembark", sh.Disembark)
	mux.HandleFunc("POST /v1/routes/{id}/interact", sh.Interact)

	if ws != nil {
		mux.HandleFunc("/v1/ws", ws.ServeWS)
	}

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /v1/status", health.Status)

	return CORSMiddleware(mux)
}
