package scheduler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siliconyouth/aigrabber-core/internal/fetcher"
	"github.com/siliconyouth/aigrabber-core/internal/model"
)

func testFetcher() *fetcher.Fetcher {
	return fetcher.New(fetcher.Config{Timeout: 5 * time.Second})
}

func directStream(url string) model.DetectedStream {
	return model.DetectedStream{
		ID:         "s1",
		URL:        url,
		Type:       model.StreamDirect,
		Protection: model.ProtectionNone,
		Title:      "clip",
	}
}

// TestScheduler_BoundedConcurrency verifies that with MaxConcurrent=2,
// at most 2 of 3 concurrently submitted jobs are downloading at once.
func TestScheduler_BoundedConcurrency(t *testing.T) {
	var inFlight int32
	var maxSeen int32
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			cur := atomic.LoadInt32(&maxSeen)
			if n <= cur || atomic.CompareAndSwapInt32(&maxSeen, cur, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&inFlight, -1)
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	sched := New(context.Background(), Config{DownloadPath: dir, MaxConcurrent: 2}, Sinks{}, testFetcher(), nil)

	for i := 0; i < 3; i++ {
		sched.StartDownload(directStream(srv.URL), model.VideoQuality{}, nil, dir)
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&inFlight) == 2 }, time.Second, 5*time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt32(&maxSeen), int32(2))

	close(release)
	sched.Wait()

	for _, j := range sched.GetDownloads() {
		assert.Equal(t, model.JobCompleted, j.Status)
	}
}

// TestScheduler_CancelPendingJob verifies a job cancelled while still
// queued (pending, never acquired a slot) lands on cancelled without
// ever reaching downloading.
func TestScheduler_CancelPendingJob(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	var mu sync.Mutex
	statuses := map[string]model.JobStatus{}
	sinks := Sinks{
		OnProgress: func(jobID string, _ model.DownloadProgress, status model.JobStatus) {
			mu.Lock()
			statuses[jobID] = status
			mu.Unlock()
		},
	}
	sched := New(context.Background(), Config{DownloadPath: dir, MaxConcurrent: 1}, sinks, testFetcher(), nil)

	occupying := sched.StartDownload(directStream(srv.URL), model.VideoQuality{}, nil, dir)
	_ = occupying
	queued := sched.StartDownload(directStream(srv.URL), model.VideoQuality{}, nil, dir)

	require.NoError(t, sched.CancelDownload(queued))
	close(block)
	sched.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, model.JobCancelled, statuses[queued])
}

// TestScheduler_DRMRefusedBeforeFetch verifies a DRM-flagged stream
// fails immediately with no network request ever made.
func TestScheduler_DRMRefusedBeforeFetch(t *testing.T) {
	var requested int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requested, 1)
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	stream := directStream(srv.URL)
	stream.Protection = model.ProtectionDRM

	sched := New(context.Background(), Config{DownloadPath: dir}, Sinks{}, testFetcher(), nil)
	id := sched.StartDownload(stream, model.VideoQuality{}, nil, dir)
	sched.Wait()

	jobs := sched.GetDownloads()
	require.Len(t, jobs, 1)
	assert.Equal(t, id, jobs[0].ID)
	assert.Equal(t, model.JobFailed, jobs[0].Status)
	assert.Equal(t, ErrDRMRefused.Error(), jobs[0].Error)
	assert.Equal(t, int32(0), atomic.LoadInt32(&requested))
}

// TestScheduler_CancelIdempotent verifies cancelling an already-terminal
// job is a no-op, not an error.
func TestScheduler_CancelIdempotent(t *testing.T) {
	dir := t.TempDir()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	sched := New(context.Background(), Config{DownloadPath: dir}, Sinks{}, testFetcher(), nil)
	id := sched.StartDownload(directStream(srv.URL), model.VideoQuality{}, nil, dir)
	sched.Wait()

	require.NoError(t, sched.CancelDownload(id))
	require.NoError(t, sched.CancelDownload(id))
}

func TestSanitizeFilename_UsedForDirectOutput(t *testing.T) {
	name := SanitizeFilename("My: Video / Clip?")
	assert.NotContains(t, name, ":")
	assert.NotContains(t, name, "/")
	assert.Equal(t, filepath.Clean(name), name)
}
