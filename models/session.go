package models

import (
	"encoding/json"
	"fmt"
)

// Status is the upstream session status string. The upstream API has used
// several spellings over its lifetime ("completed" vs "done"), so the set
// here is deliberately wider than what a single API version returns.
type Status string

const (
	StatusUploading    Status = "uploading"
	StatusProcessing   Status = "processing"
	StatusInProgress   Status = "in progress"
	StatusCompleted    Status = "completed"
	StatusDone         Status = "done"
	StatusNoFacesFound Status = "no faces found"
	StatusFailed       Status = "failed"
)

// IsTerminal reports whether polling the session again can change anything.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusDone, StatusNoFacesFound, StatusFailed:
		return true
	}
	return false
}

// HasResults reports whether a terminal session has a fetchable result set.
// "no faces found" is terminal but still yields a well-formed (empty) result.
func (s Status) HasResults() bool {
	switch s {
	case StatusCompleted, StatusDone, StatusNoFacesFound:
		return true
	}
	return false
}

// ModelScoreCount is the fixed number of per-model score slots the upstream
// ensemble is built from. Slots are positional: model_1 .. model_10.
const ModelScoreCount = 10

// modelScoreKeys lists the upstream JSON keys for the per-model scores, in
// display order.
var modelScoreKeys = [ModelScoreCount]string{
	"model_1", "model_2", "model_3", "model_4", "model_5",
	"model_6", "model_7", "model_8", "model_9", "model_10",
}

// Face is one detected face in a session's source image. The upstream payload
// is open-ended; everything we do not explicitly understand lands in Extra so
// shape drift is visible instead of silently swallowed.
type Face struct {
	// FacePath is the upstream storage-relative path of the cropped face
	// image. Its trailing "_<index>.<ext>" segment is the only reliable
	// correlation key between this entry and its fetchable crop.
	FacePath string

	// Verdict is an optional upstream-supplied authenticity label.
	Verdict string

	// Ansamble is the aggregated real-probability score. The field name
	// matches the upstream API's own spelling.
	Ansamble *float64

	// Real is the generic real-probability fallback used when no explicit
	// ensemble score is present.
	Real *float64

	// ModelScores holds the fixed per-model real probabilities, positional
	// by model number. A nil slot means the upstream omitted that model.
	ModelScores [ModelScoreCount]*float64

	// Metrics is a generic display-name keyed score map some upstream
	// versions return instead of the fixed model fields.
	Metrics map[string]float64

	// Extra holds unrecognized upstream fields verbatim.
	Extra map[string]json.RawMessage
}

// UnmarshalJSON decodes a face payload into the closed record above,
// collecting unknown keys into Extra.
func (f *Face) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("face: %w", err)
	}

	*f = Face{}

	if v, ok := raw["face_path"]; ok {
		if err := json.Unmarshal(v, &f.FacePath); err != nil {
			return fmt.Errorf("face: face_path: %w", err)
		}
		delete(raw, "face_path")
	}
	if v, ok := raw["verdict"]; ok {
		if err := json.Unmarshal(v, &f.Verdict); err != nil {
			return fmt.Errorf("face: verdict: %w", err)
		}
		delete(raw, "verdict")
	}
	if v, ok := raw["ansamble"]; ok {
		if err := json.Unmarshal(v, &f.Ansamble); err != nil {
			return fmt.Errorf("face: ansamble: %w", err)
		}
		delete(raw, "ansamble")
	}
	if v, ok := raw["real"]; ok {
		if err := json.Unmarshal(v, &f.Real); err != nil {
			return fmt.Errorf("face: real: %w", err)
		}
		delete(raw, "real")
	}
	if v, ok := raw["metrics"]; ok {
		if err := json.Unmarshal(v, &f.Metrics); err != nil {
			return fmt.Errorf("face: metrics: %w", err)
		}
		delete(raw, "metrics")
	}
	for i, key := range modelScoreKeys {
		if v, ok := raw[key]; ok {
			if err := json.Unmarshal(v, &f.ModelScores[i]); err != nil {
				return fmt.Errorf("face: %s: %w", key, err)
			}
			delete(raw, key)
		}
	}

	if len(raw) > 0 {
		f.Extra = raw
	}
	return nil
}

// HasModelScores reports whether at least one of the fixed per-model score
// fields was present in the payload.
func (f *Face) HasModelScores() bool {
	for _, s := range f.ModelScores {
		if s != nil {
			return true
		}
	}
	return false
}

// Session is the upstream session-info payload. The client never writes
// session state; this type is read-only from our side.
type Session struct {
	Status     Status
	SHA256     string
	ImagePath  string
	TotalFaces *int
	Faces      []Face
	Error      string

	// Extra holds unrecognized upstream fields verbatim.
	Extra map[string]json.RawMessage
}

// UnmarshalJSON decodes a session payload, collecting unknown keys into Extra.
func (s *Session) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("session: %w", err)
	}

	*s = Session{}

	if v, ok := raw["status"]; ok {
		if err := json.Unmarshal(v, &s.Status); err != nil {
			return fmt.Errorf("session: status: %w", err)
		}
		delete(raw, "status")
	}
	if v, ok := raw["sha256"]; ok {
		if err := json.Unmarshal(v, &s.SHA256); err != nil {
			return fmt.Errorf("session: sha256: %w", err)
		}
		delete(raw, "sha256")
	}
	if v, ok := raw["image_path"]; ok {
		if err := json.Unmarshal(v, &s.ImagePath); err != nil {
			return fmt.Errorf("session: image_path: %w", err)
		}
		delete(raw, "image_path")
	}
	if v, ok := raw["total_faces"]; ok {
		if err := json.Unmarshal(v, &s.TotalFaces); err != nil {
			return fmt.Errorf("session: total_faces: %w", err)
		}
		delete(raw, "total_faces")
	}
	if v, ok := raw["faces"]; ok {
		if err := json.Unmarshal(v, &s.Faces); err != nil {
			return fmt.Errorf("session: faces: %w", err)
		}
		delete(raw, "faces")
	}
	if v, ok := raw["error"]; ok {
		if err := json.Unmarshal(v, &s.Error); err != nil {
			return fmt.Errorf("session: error: %w", err)
		}
		delete(raw, "error")
	}

	if len(raw) > 0 {
		s.Extra = raw
	}
	return nil
}
