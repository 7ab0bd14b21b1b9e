package store

import (
	"github.com/siliconyouth/aigrabber-core/internal/model"
)

// FromDownloadJob projects a scheduler job into its persisted row shape.
func FromDownloadJob(job model.DownloadJob) Job {
	row := Job{
		ID:              job.ID,
		StreamURL:       job.Stream.URL,
		StreamType:      string(job.Stream.Type),
		PageURL:         job.Stream.PageURL,
		PageTitle:       job.Stream.PageTitle,
		Title:           job.Stream.Title,
		QualityLabel:    job.Quality.Label,
		Height:          job.Quality.Height,
		Bitrate:         job.Quality.Bitrate,
		OutputDir:       job.OutputDir,
		OutputPath:      job.OutputPath,
		Status:          string(job.Status),
		DownloadedBytes: job.Progress.DownloadedBytes,
		TotalBytes:      job.Progress.TotalBytes,
		Error:           job.Error,
		CreatedAt:       job.CreatedAt,
		CompletedAt:     job.CompletedAt,
	}
	if job.Audio != nil {
		row.AudioLanguage = job.Audio.Language
	}
	return row
}

// ToDownloadJob reverses FromDownloadJob, reconstructing the scheduler's
// job shape from a persisted row so it can rehydrate the in-memory job
// table at startup.
func ToDownloadJob(row Job) model.DownloadJob {
	job := model.DownloadJob{
		ID: row.ID,
		Stream: model.DetectedStream{
			URL:       row.StreamURL,
			Type:      model.StreamType(row.StreamType),
			PageURL:   row.PageURL,
			PageTitle: row.PageTitle,
			Title:     row.Title,
		},
		Quality: model.VideoQuality{
			Label:   row.QualityLabel,
			Height:  row.Height,
			Bitrate: row.Bitrate,
		},
		OutputDir:  row.OutputDir,
		OutputPath: row.OutputPath,
		Status:     model.JobStatus(row.Status),
		Progress: model.DownloadProgress{
			DownloadedBytes: row.DownloadedBytes,
			TotalBytes:      row.TotalBytes,
		},
		Error:       row.Error,
		CreatedAt:   row.CreatedAt,
		CompletedAt: row.CompletedAt,
	}
	if row.AudioLanguage != "" {
		job.Audio = &model.AudioTrack{Language: row.AudioLanguage}
	}
	return job
}

// Upsert persists the current state of a job, inserting or replacing the
// existing row keyed by ID.
func Upsert(job model.DownloadJob) error {
	if DB == nil {
		return nil
	}
	row := FromDownloadJob(job)
	return DB.Save(&row).Error
}

// ListRecent returns the most recently created jobs, newest first.
func ListRecent(limit int) ([]Job, error) {
	if DB == nil {
		return nil, nil
	}
	var rows []Job
	err := DB.Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
