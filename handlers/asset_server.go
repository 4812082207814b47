package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

const reportCacheDuration = 24 * time.Hour

// ReportFileServer serves generated PDF reports from the flat reports
// directory. The directory holds no subdirectories, so any separator or
// dot-segment in the requested name is rejected outright, and only .pdf
// files are served.
func ReportFileServer(reportsDir string) http.HandlerFunc {
	reportsDir = filepath.Clean(reportsDir)

	return func(w http.ResponseWriter, r *http.Request) {
		name, err := url.PathUnescape(chi.URLParam(r, "*"))
		if err != nil {
			http.Error(w, "Invalid report name", http.StatusBadRequest)
			return
		}
		if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
			http.Error(w, "Invalid report name", http.StatusBadRequest)
			return
		}
		if !strings.EqualFold(filepath.Ext(name), ".pdf") {
			http.Error(w, "Invalid report name", http.StatusBadRequest)
			return
		}

		reportPath := filepath.Join(reportsDir, name)
		info, err := os.Stat(reportPath)
		if os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}
		if err != nil || info.IsDir() {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(reportCacheDuration.Seconds())))
		http.ServeFile(w, r, reportPath)
	}
}
