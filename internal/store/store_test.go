package store

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/siliconyouth/aigrabber-core/internal/model"
)

// newTestDB opens a fresh in-memory database directly rather than through
// Init: Init's schema-cache-clearing double-open would discard an
// in-memory database's tables the moment the first connection closes.
func newTestDB(t *testing.T) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	DB = db
	t.Cleanup(func() { _ = Close() })
}

func TestUpsertAndListRecent(t *testing.T) {
	newTestDB(t)

	job := model.DownloadJob{
		ID:         "job-1",
		Stream:     model.DetectedStream{URL: "https://example.com/a.m3u8", Type: model.StreamHLS, Title: "clip"},
		Status:     model.JobCompleted,
		OutputPath: "/downloads/clip.mp4",
	}
	require.NoError(t, Upsert(job))

	rows, err := ListRecent(10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, job.ID, rows[0].ID)
	assert.Equal(t, "/downloads/clip.mp4", rows[0].OutputPath)

	restored := ToDownloadJob(rows[0])
	assert.Equal(t, job.ID, restored.ID)
	assert.Equal(t, model.JobCompleted, restored.Status)
}

func TestUpsertOverwritesExistingRow(t *testing.T) {
	newTestDB(t)

	job := model.DownloadJob{ID: "job-1", Status: model.JobDownloading}
	require.NoError(t, Upsert(job))

	job.Status = model.JobCompleted
	job.OutputPath = "/downloads/done.mp4"
	require.NoError(t, Upsert(job))

	rows, err := ListRecent(10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, string(model.JobCompleted), rows[0].Status)
}

func TestGetDBReturnsUsableHandle(t *testing.T) {
	newTestDB(t)

	db := GetDB()
	require.NotNil(t, db)

	var count int64
	require.NoError(t, db.Model(&Job{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
