package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/veralens/veralensbackend/analysis"
	"github.com/veralens/veralensbackend/upstream"
	"github.com/veralens/veralensbackend/validation"
)

const imageCacheDuration = 24 * time.Hour

type SessionHandler struct {
	Upstream *upstream.Client
}

// sessionID extracts and validates the {uuid} route parameter. A failed
// check writes the generic rejection and returns false; the malformed value
// is never echoed back or logged raw.
func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "uuid")
	if validation.HasTraversal(id) || !validation.IsSessionID(id) {
		writeSecurityRejection(w)
		return "", false
	}
	return id, true
}

// GetSession handles GET /session/{uuid}: relays the upstream session JSON
// verbatim, so repeated calls for an unchanged session are byte-identical.
func (sh *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	_, raw, err := sh.Upstream.GetSession(r.Context(), id)
	if err != nil {
		sh.writeUpstreamError(w, id, "session info", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(raw); err != nil {
		log.Printf("Error relaying session info for %s: %v", id, err)
	}
}

// GetSessionStatus handles GET /session/{uuid}/status.
func (sh *SessionHandler) GetSessionStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	status, err := sh.Upstream.GetStatus(r.Context(), id)
	if err != nil {
		sh.writeUpstreamError(w, id, "session status", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

// GetOriginalImage handles GET /session/{uuid}/original-image. The storage
// path comes from the session's own image_path field, never guessed from the
// identifier, and must match the fixed original-image path shape.
func (sh *SessionHandler) GetOriginalImage(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	session, _, err := sh.Upstream.GetSession(r.Context(), id)
	if err != nil {
		sh.writeUpstreamError(w, id, "session info", err)
		return
	}

	if session.ImagePath == "" {
		writeError(w, http.StatusNotFound, "Original image not found")
		return
	}
	if validation.HasTraversal(session.ImagePath) || !analysis.IsValidImagePath(session.ImagePath) {
		log.Printf("SECURITY: session %s has suspicious image_path, refusing fetch", id)
		writeError(w, http.StatusNotFound, "Original image not found")
		return
	}

	sh.serveStorage(w, r, id, upstream.StorageOriginal, analysis.StorageFilename(session.ImagePath))
}

// GetFaceImage handles GET /session/{uuid}/face/{faceIndex}. The requested
// 0-based index is matched against the numeric suffix of each face_path;
// faces with paths outside the storage allow-list never match, whatever
// their index.
func (sh *SessionHandler) GetFaceImage(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	faceIndex, err := validation.ParseFaceIndex(chi.URLParam(r, "faceIndex"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid face index")
		return
	}

	session, _, err := sh.Upstream.GetSession(r.Context(), id)
	if err != nil {
		sh.writeUpstreamError(w, id, "session info", err)
		return
	}

	for i := range session.Faces {
		facePath := session.Faces[i].FacePath
		if !analysis.IsAllowedStoragePath(facePath) {
			if facePath != "" {
				log.Printf("SECURITY: session %s face %d has suspicious face_path, skipping", id, i)
			}
			continue
		}
		storageIdx, err := analysis.StorageIndex(facePath)
		if err != nil || storageIdx != faceIndex {
			continue
		}
		sh.serveStorage(w, r, id, upstream.StorageFaces, analysis.StorageFilename(facePath))
		return
	}

	writeError(w, http.StatusNotFound, "Face not found")
}

// serveStorage fetches a binary from upstream storage and relays it with the
// upstream content type and a public cache directive.
func (sh *SessionHandler) serveStorage(w http.ResponseWriter, r *http.Request, id string, kind upstream.StorageKind, filename string) {
	obj, err := sh.Upstream.FetchStorage(r.Context(), kind, filename)
	if err != nil {
		switch {
		case errors.Is(err, upstream.ErrRedirectBlocked):
			log.Printf("SECURITY: upstream storage answered a redirect for session %s, refusing to follow", id)
			writeSecurityRejection(w)
		case errors.Is(err, upstream.ErrNotFound):
			writeError(w, http.StatusNotFound, "Image not found")
		default:
			log.Printf("Error fetching %s storage object for session %s: %v", kind, id, err)
			writeError(w, http.StatusInternalServerError, "Failed to fetch image")
		}
		return
	}

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(imageCacheDuration.Seconds())))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(obj.Data); err != nil {
		log.Printf("Error writing %s image for session %s: %v", kind, id, err)
	}
}

// writeUpstreamError converts upstream client failures into the sanitized
// boundary responses. Upstream bodies and headers are never relayed.
func (sh *SessionHandler) writeUpstreamError(w http.ResponseWriter, id, op string, err error) {
	if errors.Is(err, upstream.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	log.Printf("Error fetching %s for session %s: %v", op, id, err)
	writeError(w, http.StatusInternalServerError, "Upstream request failed")
}
