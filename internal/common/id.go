package common

import (
	"github.com/google/uuid"
)

// NewSourceID generates a unique source ID with the "src_" prefix
func NewSourceID() string {
	return "src_" + uuid.New().String()
}

// NewJobID generates a unique job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewLogID generates a unique crawl log ID with the "log_" prefix
func NewLogID() string {
	return "log_" + uuid.New().String()
}

// NewHistoryID generates a unique enrichment history ID
func NewHistoryID() string {
	return "enr_" + uuid.New().String()
}

// NewFailureID generates a unique failed-insert ID
func NewFailureID() string {
	return "fail_" + uuid.New().String()
}
