package domain

import "time"

// RunStatus represents the status of a fetch run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusCancelled RunStatus = "cancelled"
	RunStatusFailed    RunStatus = "failed"
)

// FetchRun records one orchestrator run and its outcome counters.
type FetchRun struct {
	ID            string     `gorm:"type:text;primaryKey" json:"id"`
	Status        RunStatus  `gorm:"type:text;default:running" json:"status"`
	TotalJobs     int        `gorm:"default:0" json:"total_jobs"`
	ProcessedJobs int        `gorm:"default:0" json:"processed_jobs"`
	FailedJobs    int        `gorm:"default:0" json:"failed_jobs"`
	SkippedJobs   int        `gorm:"default:0" json:"skipped_jobs"`
	CachedJobs    int        `gorm:"default:0" json:"cached_jobs"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	ErrorLog      string     `json:"error_log,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName returns the database table name for FetchRun.
func (FetchRun) TableName() string {
	return "fetch_runs"
}
