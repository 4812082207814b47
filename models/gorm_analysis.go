package models

// Source kinds for an analysis record.
const (
	SourceFile = "file"
	SourceURL  = "url"
)

// AnalysisRecord is the local history row for one submitted session, using
// GORM. It corresponds to the 'analyses' table. Session state itself lives
// upstream; this record only mirrors the terminal outcome for the history UI.
type AnalysisRecord struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionUUID string `gorm:"uniqueIndex;not null" json:"session_uuid"`
	SourceKind  string `gorm:"not null" json:"source_kind"` // "file" or "url"
	SourceName  string `gorm:"not null" json:"source_name"` // filename or submitted URL
	SHA256      string `json:"sha256,omitempty"`

	// capture metadata from the uploaded file's EXIF, when available
	Width       *int    `json:"width,omitempty"`
	Height      *int    `json:"height,omitempty"`
	CameraMake  *string `json:"camera_make,omitempty"`
	CameraModel *string `json:"camera_model,omitempty"`
	TakenAt     *int64  `json:"taken_at,omitempty"` // Unix timestamp

	Status         string   `gorm:"not null;index" json:"status"`
	FaceCount      *int     `json:"face_count,omitempty"`
	WorstFakeScore *float64 `json:"worst_fake_score,omitempty"` // highest fake probability across faces
	VerdictSummary string   `json:"verdict_summary,omitempty"`  // verdict of the worst face
	ErrorMessage   string   `json:"error_message,omitempty"`

	ReportFilename string `json:"report_filename,omitempty"`

	CreatedAt int64 `gorm:"not null" json:"created_at"` // Unix timestamp
	UpdatedAt int64 `gorm:"not null" json:"updated_at"` // Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (AnalysisRecord) TableName() string {
	return "analyses"
}
