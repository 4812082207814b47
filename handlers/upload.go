package handlers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/veralens/veralensbackend/models"
	"github.com/veralens/veralensbackend/repository"
	"github.com/veralens/veralensbackend/upstream"
	"github.com/veralens/veralensbackend/utils"
	"github.com/veralens/veralensbackend/validation"
	"github.com/veralens/veralensbackend/workers"
)

const (
	// maxUploadBytes bounds both direct uploads and remote image fetches.
	maxUploadBytes = 32 << 20

	defaultRemoteFilename = "image.jpg"

	// remote image fetches identify as a browser; some hosts refuse plain
	// Go user agents outright
	remoteFetchUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

type UploadHandler struct {
	Upstream    *upstream.Client
	Repo        repository.AnalysisRepositoryInterface
	Tracker     *workers.SessionTracker
	FetchClient *http.Client // remote URL fetches; bounded timeout set in main
}

// Upload handles POST /upload: forwards a multipart file to the upstream
// create-session endpoint and returns the assigned session UUID.
func (uh *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing required file field: file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		log.Printf("Error reading upload body: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to read uploaded file")
		return
	}
	if len(data) > maxUploadBytes {
		writeError(w, http.StatusBadRequest, "Uploaded file is too large")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "Uploaded file is empty")
		return
	}

	contentType := header.Header.Get("Content-Type")
	sessionUUID, ok := uh.forwardUpload(r.Context(), w, header.Filename, contentType, data)
	if !ok {
		return
	}

	uh.recordSubmission(sessionUUID, models.SourceFile, header.Filename, data, true)
	writeJSON(w, http.StatusOK, map[string]string{"uuid": sessionUUID})
}

// UploadURL handles POST /upload-url: validates the submitted URL against
// the SSRF guards, fetches the remote image with a bounded timeout, and
// re-submits the bytes through the same create-session path as Upload.
func (uh *UploadHandler) UploadURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "Missing required field: url")
		return
	}

	if err := validation.CheckRemoteURL(req.URL); err != nil {
		log.Printf("SECURITY: rejected upload-url target: %v", err)
		writeSecurityRejection(w)
		return
	}

	data, contentType, ok := uh.fetchRemoteImage(w, r, req.URL)
	if !ok {
		return
	}

	filename := remoteFilename(req.URL)
	sessionUUID, ok := uh.forwardUpload(r.Context(), w, filename, contentType, data)
	if !ok {
		return
	}

	uh.recordSubmission(sessionUUID, models.SourceURL, req.URL, data, false)
	writeJSON(w, http.StatusOK, map[string]string{"uuid": sessionUUID})
}

// fetchRemoteImage downloads the user-supplied URL and enforces the declared
// content type. Writes the error response itself on failure.
func (uh *UploadHandler) fetchRemoteImage(w http.ResponseWriter, r *http.Request, rawURL string) ([]byte, string, bool) {
	fetchReq, err := http.NewRequestWithContext(r.Context(), http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid URL")
		return nil, "", false
	}
	fetchReq.Header.Set("User-Agent", remoteFetchUserAgent)
	fetchReq.Header.Set("Accept", "image/*")

	resp, err := uh.FetchClient.Do(fetchReq)
	if err != nil {
		writeErrorDetails(w, http.StatusBadRequest, "Failed to fetch image from URL",
			validation.TruncateDetail(err.Error()))
		return nil, "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		writeErrorDetails(w, http.StatusBadRequest, "Failed to fetch image from URL",
			validation.TruncateDetail(resp.Status))
		return nil, "", false
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusBadRequest, "URL does not point to an image")
		return nil, "", false
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxUploadBytes+1))
	if err != nil {
		writeErrorDetails(w, http.StatusBadRequest, "Failed to fetch image from URL",
			validation.TruncateDetail(err.Error()))
		return nil, "", false
	}
	if len(data) > maxUploadBytes {
		writeError(w, http.StatusBadRequest, "Remote image is too large")
		return nil, "", false
	}
	return data, contentType, true
}

// forwardUpload submits image bytes upstream and returns the session UUID.
// Writes the error response itself on failure.
func (uh *UploadHandler) forwardUpload(ctx context.Context, w http.ResponseWriter, filename, contentType string, data []byte) (string, bool) {
	sessionUUID, err := uh.Upstream.Upload(ctx, filename, contentType, bytes.NewReader(data))
	if err != nil {
		log.Printf("Error forwarding upload %q upstream: %v", filename, err)
		var upErr *upstream.Error
		if errors.As(err, &upErr) {
			writeErrorDetails(w, http.StatusInternalServerError, "Upload failed", upErr.Detail)
			return "", false
		}
		writeErrorDetails(w, http.StatusInternalServerError, "Upload failed",
			validation.TruncateDetail(err.Error()))
		return "", false
	}
	return sessionUUID, true
}

// recordSubmission creates the local history record and hands the session to
// the tracker. History is best effort and never fails the request.
func (uh *UploadHandler) recordSubmission(sessionUUID, sourceKind, sourceName string, data []byte, withExif bool) {
	if uh.Repo != nil {
		digest := sha256.Sum256(data)
		record := &models.AnalysisRecord{
			SessionUUID: sessionUUID,
			SourceKind:  sourceKind,
			SourceName:  validation.TruncateDetail(sourceName),
			SHA256:      hex.EncodeToString(digest[:]),
			Status:      string(models.StatusUploading),
		}

		if withExif {
			if meta, err := utils.GetCaptureMetadata(bytes.NewReader(data)); err == nil && meta != nil {
				record.Width = meta.Width
				record.Height = meta.Height
				record.CameraMake = meta.CameraMake
				record.CameraModel = meta.CameraModel
				record.TakenAt = meta.TakenAt
			}
		}

		if err := uh.Repo.Create(record); err != nil {
			log.Printf("Error creating history record for session %s: %v", sessionUUID, err)
		}
	}

	if uh.Tracker != nil {
		uh.Tracker.QueueJob(workers.TrackJob{SessionUUID: sessionUUID})
	}
}

// remoteFilename derives an upload filename from the URL's last path
// segment, falling back to a generic name.
func remoteFilename(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return defaultRemoteFilename
	}
	base := path.Base(parsed.Path)
	if base == "" || base == "." || base == "/" {
		return defaultRemoteFilename
	}
	return base
}
