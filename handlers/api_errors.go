package handlers

import (
	"encoding/json"
	"log"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("Error encoding JSON response: %v", err)
		}
	}
}

// writeError emits the standard {error} payload.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeErrorDetails emits {error, details} with an already-sanitized detail.
func writeErrorDetails(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, map[string]string{"error": message, "details": details})
}

// writeSecurityRejection answers any failed security check (malformed
// identifier, traversal, SSRF target, blocked redirect, suspicious storage
// path) with the same generic 400. Deliberately uniform: the response must
// not reveal which check fired, and the offending input is never echoed.
func writeSecurityRejection(w http.ResponseWriter) {
	writeError(w, http.StatusBadRequest, "invalid request")
}
