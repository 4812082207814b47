package repository

import (
	"github.com/veralens/veralensbackend/models"
)

// AnalysisRepositoryInterface defines the methods for analysis-history data
// operations. Session state itself lives upstream; this store only mirrors
// outcomes for the local history view.
type AnalysisRepositoryInterface interface {
	Create(record *models.AnalysisRecord) error
	GetBySessionUUID(sessionUUID string) (*models.AnalysisRecord, error)
	ListRecent(limit int) ([]models.AnalysisRecord, error)
	UpdateStatus(sessionUUID, status string) error
	SetResult(sessionUUID, status string, faceCount *int, worstFakeScore *float64, verdictSummary, errorMessage string) error
	SetReportFilename(sessionUUID, filename string) error
}
