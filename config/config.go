package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	DefaultReportsSubDir = "reports"
)

const (
	defaultReportQueueSize   = 50
	defaultNumReportWorkers  = 2
	defaultTrackerQueueSize  = 100
	defaultNumTrackerWorkers = 4
	defaultPollIntervalSecs  = 2
	defaultMaxPollAttempts   = 60
	defaultURLFetchSecs      = 20
	defaultUploadSecs        = 60
)

type Config struct {
	// upstream detection API base URL (required)
	UpstreamBaseURL string

	// database path
	DatabasePath string

	// report storage configuration
	ReportStoragePath string // primary root for generated assets
	ReportsPath       string // full-calculated path for report PDFs

	// polling settings
	PollInterval    time.Duration
	MaxPollAttempts int

	// outbound timeouts
	URLFetchTimeout time.Duration
	UploadTimeout   time.Duration

	// worker settings
	ReportQueueSize   int
	NumReportWorkers  int
	TrackerQueueSize  int
	NumTrackerWorkers int
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	upstreamBase := os.Getenv("UPSTREAM_BASE_URL")
	if upstreamBase == "" {
		return Config{}, fmt.Errorf("UPSTREAM_BASE_URL must be set to the detection API base URL")
	}

	dbPath := getEnvOrDefault("DATABASE_PATH", "analyses.db")

	reportStorage := getEnvOrDefault("REPORT_STORAGE_PATH", filepath.Join(".", "report_storage"))
	absReportStorage, err := filepath.Abs(reportStorage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for report storage '%s': %w", reportStorage, err)
	}

	reportsSubDir := getEnvOrDefault("REPORTS_SUBDIR", DefaultReportsSubDir)
	absReportsPath := filepath.Join(absReportStorage, reportsSubDir)

	pollInterval := getEnvIntOrDefault("POLL_INTERVAL_SECONDS", defaultPollIntervalSecs)
	maxAttempts := getEnvIntOrDefault("MAX_POLL_ATTEMPTS", defaultMaxPollAttempts)
	urlFetchSecs := getEnvIntOrDefault("URL_FETCH_TIMEOUT_SECONDS", defaultURLFetchSecs)
	uploadSecs := getEnvIntOrDefault("UPLOAD_TIMEOUT_SECONDS", defaultUploadSecs)

	reportQueueSize := getEnvIntOrDefault("REPORT_QUEUE_SIZE", defaultReportQueueSize)
	numReportWorkers := getEnvIntOrDefault("NUM_REPORT_WORKERS", defaultNumReportWorkers)
	trackerQueueSize := getEnvIntOrDefault("TRACKER_QUEUE_SIZE", defaultTrackerQueueSize)
	numTrackerWorkers := getEnvIntOrDefault("NUM_TRACKER_WORKERS", defaultNumTrackerWorkers)

	cfg := Config{
		UpstreamBaseURL:   upstreamBase,
		DatabasePath:      dbPath,
		ReportStoragePath: absReportStorage,
		ReportsPath:       absReportsPath,
		PollInterval:      time.Duration(pollInterval) * time.Second,
		MaxPollAttempts:   maxAttempts,
		URLFetchTimeout:   time.Duration(urlFetchSecs) * time.Second,
		UploadTimeout:     time.Duration(uploadSecs) * time.Second,
		ReportQueueSize:   reportQueueSize,
		NumReportWorkers:  numReportWorkers,
		TrackerQueueSize:  trackerQueueSize,
		NumTrackerWorkers: numTrackerWorkers,
	}

	return cfg, nil
}
