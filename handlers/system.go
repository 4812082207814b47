package handlers

import (
	"log"
	"net/http"

	"github.com/veralens/veralensbackend/upstream"
)

type SystemHandler struct {
	Upstream *upstream.Client
}

// Status handles GET /status: passes the upstream system health JSON through.
func (sh *SystemHandler) Status(w http.ResponseWriter, r *http.Request) {
	raw, err := sh.Upstream.SystemStatus(r.Context())
	if err != nil {
		log.Printf("Error fetching upstream system status: %v", err)
		writeError(w, http.StatusInternalServerError, "Upstream unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(raw); err != nil {
		log.Printf("Error relaying system status: %v", err)
	}
}
