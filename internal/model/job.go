package model

import "time"

// JobStatus is a node in the job status DAG: pending -> downloading ->
// (merging?) -> completed; pending/downloading -> cancelled; any
// non-terminal -> failed.
type JobStatus string

const (
	JobPending     JobStatus = "pending"
	JobDownloading JobStatus = "downloading"
	JobMerging     JobStatus = "merging"
	JobCompleted   JobStatus = "completed"
	JobFailed      JobStatus = "failed"
	JobCancelled   JobStatus = "cancelled"
)

// IsTerminal reports whether the status ends the job's lifecycle.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether the job is still occupying a scheduler slot.
func (s JobStatus) IsActive() bool {
	switch s {
	case JobDownloading, JobMerging:
		return true
	default:
		return false
	}
}

// DownloadProgress is the mutable progress snapshot carried on a job and
// mirrored into DOWNLOAD_PROGRESS messages.
type DownloadProgress struct {
	DownloadedBytes int64   `json:"downloadedBytes"`
	TotalBytes      int64   `json:"totalBytes"` // 0 if unknown
	SpeedBps        float64 `json:"speedBps"`
	ETASeconds      float64 `json:"etaSeconds"`
	Percentage      float64 `json:"percentage"` // 0..100
	CurrentSegment  int     `json:"currentSegment,omitempty"`
	TotalSegments   int     `json:"totalSegments,omitempty"`
}

// DownloadJob is one requested download and its lifecycle state.
type DownloadJob struct {
	ID          string           `json:"id"`
	Stream      DetectedStream   `json:"stream"`
	Quality     VideoQuality     `json:"quality"`
	Audio       *AudioTrack      `json:"audio,omitempty"`
	OutputDir   string           `json:"outputDir,omitempty"`
	Status      JobStatus        `json:"status"`
	Progress    DownloadProgress `json:"progress"`
	OutputPath  string           `json:"outputPath,omitempty"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
}

// Clamp enforces the progress invariants: downloadedBytes <= totalBytes
// when totalBytes is known, and 0 <= percentage <= 100.
func (p *DownloadProgress) Clamp() {
	if p.TotalBytes > 0 && p.DownloadedBytes > p.TotalBytes {
		p.DownloadedBytes = p.TotalBytes
	}
	if p.Percentage < 0 {
		p.Percentage = 0
	}
	if p.Percentage > 100 {
		p.Percentage = 100
	}
}
