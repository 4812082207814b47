package repository

import (
	"fmt"
	"time"

	"github.com/veralens/veralensbackend/models"
	"gorm.io/gorm"
)

const defaultHistoryLimit = 50

// AnalysisRepository handles database operations for AnalysisRecord entities
type AnalysisRepository struct {
	DB *gorm.DB
}

// NewAnalysisRepository creates a new instance of AnalysisRepository
func NewAnalysisRepository(db *gorm.DB) *AnalysisRepository {
	return &AnalysisRepository{DB: db}
}

// Create creates a new analysis record in the database
func (r *AnalysisRepository) Create(record *models.AnalysisRecord) error {
	now := time.Now().Unix()
	if record.CreatedAt == 0 {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	if err := r.DB.Create(record).Error; err != nil {
		return fmt.Errorf("failed to create analysis record for session %s: %w", record.SessionUUID, err)
	}
	return nil
}

// GetBySessionUUID retrieves an analysis record by its upstream session UUID
func (r *AnalysisRepository) GetBySessionUUID(sessionUUID string) (*models.AnalysisRecord, error) {
	var record models.AnalysisRecord
	err := r.DB.Where("session_uuid = ?", sessionUUID).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get analysis record for session %s: %w", sessionUUID, err)
	}
	return &record, nil
}

// ListRecent retrieves the most recent analysis records, newest first
func (r *AnalysisRepository) ListRecent(limit int) ([]models.AnalysisRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultHistoryLimit
	}
	var records []models.AnalysisRecord
	err := r.DB.Order("created_at DESC, id DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent analysis records: %w", err)
	}
	return records, nil
}

// UpdateStatus sets only the mirrored status for a session
func (r *AnalysisRepository) UpdateStatus(sessionUUID, status string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().Unix(),
	}
	result := r.DB.Model(&models.AnalysisRecord{}).Where("session_uuid = ?", sessionUUID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update status for session %s: %w", sessionUUID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetResult records the terminal outcome of a tracked session
func (r *AnalysisRepository) SetResult(sessionUUID, status string, faceCount *int, worstFakeScore *float64, verdictSummary, errorMessage string) error {
	updates := map[string]interface{}{
		"status":           status,
		"face_count":       faceCount,
		"worst_fake_score": worstFakeScore,
		"verdict_summary":  verdictSummary,
		"error_message":    errorMessage,
		"updated_at":       time.Now().Unix(),
	}
	result := r.DB.Model(&models.AnalysisRecord{}).Where("session_uuid = ?", sessionUUID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to set result for session %s: %w", sessionUUID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetReportFilename records the generated report artifact for a session
func (r *AnalysisRepository) SetReportFilename(sessionUUID, filename string) error {
	updates := map[string]interface{}{
		"report_filename": filename,
		"updated_at":      time.Now().Unix(),
	}
	result := r.DB.Model(&models.AnalysisRecord{}).Where("session_uuid = ?", sessionUUID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to set report filename for session %s: %w", sessionUUID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
