package dto

import "time"

// Export formats supported by the timetable export pipeline.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

// Export job lifecycle states.
const (
	ExportStatusPending   = "PENDING"
	ExportStatusRunning   = "RUNNING"
	ExportStatusCompleted = "COMPLETED"
	ExportStatusFailed    = "FAILED"
)

// ExportTimetableRequest queues a timetable export for one class.
type ExportTimetableRequest struct {
	ClassID    string `json:"class_id" validate:"required"`
	SchoolYear string `json:"school_year" validate:"required"`
	Semester   string `json:"semester" validate:"required,oneof=ODD EVEN"`
	Format     string `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportJobStatus describes a queued or finished export job.
type ExportJobStatus struct {
	JobID       string     `json:"job_id"`
	Status      string     `json:"status"`
	Format      string     `json:"format"`
	ClassID     string     `json:"class_id"`
	FileName    string     `json:"file_name,omitempty"`
	DownloadURL string     `json:"download_url,omitempty"`
	Error       string     `json:"error,omitempty"`
	EnqueuedAt  time.Time  `json:"enqueued_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
