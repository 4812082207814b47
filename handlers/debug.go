package handlers

import (
	"net/http"

	"github.com/veralens/veralensbackend/diagnostics"
)

type DebugHandler struct {
	CallLog *diagnostics.CallLog
}

// RecentAPICalls handles GET /debug/api-calls: the bounded in-memory log of
// recent requests, oldest first.
func (dh *DebugHandler) RecentAPICalls(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": dh.CallLog.Len(),
		"calls": dh.CallLog.Snapshot(),
	})
}
