package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"gorm.io/gorm"

	"github.com/veralens/veralensbackend/models"
	"github.com/veralens/veralensbackend/repository"
)

type HistoryHandler struct {
	Repo repository.AnalysisRepositoryInterface
}

// ListHistory handles GET /history: the most recent analysis records.
func (hh *HistoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := hh.Repo.ListRecent(limit)
	if err != nil {
		log.Printf("Error listing analysis history: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve history")
		return
	}
	if records == nil {
		records = []models.AnalysisRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// GetHistoryEntry handles GET /history/{uuid}.
func (hh *HistoryHandler) GetHistoryEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	record, err := hh.Repo.GetBySessionUUID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "No history for this session")
			return
		}
		log.Printf("Error fetching history for session %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve history")
		return
	}
	writeJSON(w, http.StatusOK, record)
}
