package handlers

import (
	"errors"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/facette/natsort"

	"github.com/veralens/veralensbackend/analysis"
	"github.com/veralens/veralensbackend/config"
	"github.com/veralens/veralensbackend/upstream"
	"github.com/veralens/veralensbackend/validation"
	"github.com/veralens/veralensbackend/workers"
)

type ReportHandler struct {
	Upstream *upstream.Client
	Reports  *workers.ReportGenerator
	Cfg      config.Config
}

// GeneratePDF handles GET /generate-pdf/{uuid}: renders a report for a
// completed session and returns the downloadable filename. The artifact is
// then served from /reports/{filename}.
func (rh *ReportHandler) GeneratePDF(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	session, _, err := rh.Upstream.GetSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		log.Printf("Error fetching session %s for report: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Upstream request failed")
		return
	}

	if len(session.Faces) == 0 {
		writeError(w, http.StatusBadRequest, "Session has no faces to report")
		return
	}

	results := analysis.Format(session)
	filename, err := rh.Reports.Generate(r.Context(), id, session, results)
	if err != nil {
		log.Printf("Error generating report for session %s: %v", id, err)
		writeErrorDetails(w, http.StatusInternalServerError, "Failed to generate report",
			validation.TruncateDetail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"message":  "Report generated successfully",
		"filename": filename,
	})
}

// ListReports handles GET /api/reports: the available report files in
// natural order.
func (rh *ReportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(rh.Cfg.ReportsPath)
	if err != nil {
		if os.IsNotExist(err) {
			writeJSON(w, http.StatusOK, map[string][]string{"reports": {}})
			return
		}
		log.Printf("Error listing report directory %s: %v", rh.Cfg.ReportsPath, err)
		writeError(w, http.StatusInternalServerError, "Failed to list reports")
		return
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".pdf") {
			continue
		}
		files = append(files, entry.Name())
	}
	natsort.Sort(files)

	writeJSON(w, http.StatusOK, map[string][]string{"reports": files})
}
