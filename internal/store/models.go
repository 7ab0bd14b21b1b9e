package store

import (
	"time"

	"gorm.io/gorm"
)

// Job is the persisted record of one download, mirroring model.DownloadJob
// so job history survives process restarts independent of the in-memory
// scheduler table.
type Job struct {
	ID            string `gorm:"primaryKey"`
	StreamURL     string `gorm:"not null"`
	StreamType    string `gorm:"not null;index"`
	PageURL       string `gorm:""`
	PageTitle     string `gorm:""`
	Title         string `gorm:""`
	QualityLabel  string `gorm:""`
	Height        int    `gorm:"default:0"`
	Bitrate       int64  `gorm:"default:0"`
	AudioLanguage string `gorm:""`
	OutputDir     string `gorm:""`
	OutputPath    string `gorm:""`
	Status        string `gorm:"not null;index"`
	DownloadedBytes int64 `gorm:"default:0"`
	TotalBytes      int64 `gorm:"default:0"`
	Error           string `gorm:""`

	CreatedAt   time.Time  `gorm:"index;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time  `gorm:""`
	CompletedAt *time.Time `gorm:""`
}

// TableName overrides the table name.
func (Job) TableName() string {
	return "jobs"
}

// Migrate runs GORM AutoMigrate for the job-history schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Job{})
}
