package analysis

import (
	"fmt"
	"sort"

	"github.com/veralens/veralensbackend/models"
)

// Format produces one Result per face, in face order. A session with an
// empty face list (e.g. status "no faces found") yields an empty slice,
// not an error.
func Format(session *models.Session) []Result {
	results := make([]Result, 0, len(session.Faces))
	for i := range session.Faces {
		face := &session.Faces[i]
		real := ensembleReal(face)

		result := Result{
			FaceIndex: i + 1,
			FacePath:  face.FacePath,
			Ensemble:  Probability{Real: real, Fake: 1 - real},
			Models:    modelBreakdown(face),
			Verdict:   face.Verdict,
		}
		if result.Verdict == "" {
			result.Verdict = VerdictFor(real)
		}
		results = append(results, result)
	}
	return results
}

// ensembleReal picks the explicit ensemble score when present, then the
// generic real-probability field, then a neutral default.
func ensembleReal(face *models.Face) float64 {
	if face.Ansamble != nil {
		return *face.Ansamble
	}
	if face.Real != nil {
		return *face.Real
	}
	return neutralScore
}

// modelBreakdown builds the per-model score table. Faces carrying the fixed
// model fields (or nothing at all) get exactly models.ModelScoreCount slots
// with neutral substitutes for missing values; faces carrying only a generic
// metrics map get one entry per metric, ordered by display name.
func modelBreakdown(face *models.Face) []ModelScore {
	if !face.HasModelScores() && len(face.Metrics) > 0 {
		names := make([]string, 0, len(face.Metrics))
		for name := range face.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)

		scores := make([]ModelScore, 0, len(names))
		for _, name := range names {
			real := face.Metrics[name]
			scores = append(scores, ModelScore{
				Model:           name,
				RealProbability: real,
				FakeProbability: 1 - real,
			})
		}
		return scores
	}

	scores := make([]ModelScore, 0, models.ModelScoreCount)
	for i := 0; i < models.ModelScoreCount; i++ {
		real := neutralScore
		if face.ModelScores[i] != nil {
			real = *face.ModelScores[i]
		}
		scores = append(scores, ModelScore{
			Model:           fmt.Sprintf("Model %d", i+1),
			RealProbability: real,
			FakeProbability: 1 - real,
		})
	}
	return scores
}
