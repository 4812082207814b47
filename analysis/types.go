// Package analysis turns raw upstream session payloads into normalized
// per-face authenticity results. Everything here is a pure transformation;
// no I/O happens in this package.
package analysis

// Verdict labels derived from the ensemble real-probability score.
const (
	VerdictLikelyReal      = "Likely Real"
	VerdictProbablyReal    = "Probably Real"
	VerdictUncertain       = "Uncertain"
	VerdictProbablyFake    = "Probably Deepfake"
	VerdictLikelyFake      = "Likely Deepfake"
)

// neutralScore substitutes for any per-model score the upstream omitted, so
// the positional model identity stays stable even with missing data.
const neutralScore = 0.5

// Probability is a real/fake pair. Fake is always the exact complement of
// Real, by construction.
type Probability struct {
	Real float64 `json:"real"`
	Fake float64 `json:"fake"`
}

// ModelScore is one entry of a face's per-model breakdown.
type ModelScore struct {
	Model           string  `json:"model"`
	RealProbability float64 `json:"real_probability"`
	FakeProbability float64 `json:"fake_probability"`
}

// Result is the normalized outcome for a single face.
type Result struct {
	// FaceIndex is the 1-based display index ("Face N"). It is distinct
	// from the 0-based storage index used to fetch the crop image.
	FaceIndex int          `json:"face_index"`
	FacePath  string       `json:"face_path"`
	Ensemble  Probability  `json:"ensemble_probability"`
	Models    []ModelScore `json:"model_probabilities"`
	Verdict   string       `json:"verdict"`
}

// VerdictFor maps an ensemble real-probability to its display label.
func VerdictFor(real float64) string {
	switch {
	case real > 0.95:
		return VerdictLikelyReal
	case real > 0.7:
		return VerdictProbablyReal
	case real > 0.3:
		return VerdictUncertain
	case real > 0.05:
		return VerdictProbablyFake
	default:
		return VerdictLikelyFake
	}
}
