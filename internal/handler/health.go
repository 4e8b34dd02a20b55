package handler

import "net/http"

// HandleHealthz serves GET /healthz for load balancer checks.
func HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
