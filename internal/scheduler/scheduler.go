// Package scheduler implements the bounded-concurrency job scheduler:
// it accepts download requests, enforces maxConcurrent in-flight jobs,
// and runs each job as an independent cancellable task.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/siliconyouth/aigrabber-core/internal/fetcher"
	"github.com/siliconyouth/aigrabber-core/internal/model"
)

// Config mirrors config.SchedulerConfig plus the pieces resolved at
// startup (discovered encoder/helper binaries).
type Config struct {
	DownloadPath   string
	MaxConcurrent  int
	MinFreeSpaceGB int
	EncoderBinary  string // empty if no encoder is available
	HelperBinary   string // empty if no external helper is configured
}

// Sinks are the opaque function values the scheduler reports through;
// they are owned by the transport layer, never back-pointers into it,
// breaking the cyclic reference between scheduler and its consumer.
type Sinks struct {
	OnProgress func(jobID string, progress model.DownloadProgress, status model.JobStatus)
	OnComplete func(jobID string, outputPath string)
	OnError    func(jobID string, err error)
}

// Scheduler is the single-writer owner of the job table.
type Scheduler struct {
	config  Config
	sinks   Sinks
	logger  *slog.Logger
	fetcher *fetcher.Fetcher

	rootCtx context.Context
	sem     *semaphore.Weighted

	mu      sync.RWMutex
	jobs    map[string]*model.DownloadJob
	cancels map[string]context.CancelFunc

	wg sync.WaitGroup
}

// New constructs a Scheduler bound to rootCtx; cancelling rootCtx tears
// down every running job.
func New(rootCtx context.Context, cfg Config, sinks Sinks, f *fetcher.Fetcher, logger *slog.Logger) *Scheduler {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		config:  cfg,
		sinks:   sinks,
		logger:  logger,
		fetcher: f,
		rootCtx: rootCtx,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		jobs:    make(map[string]*model.DownloadJob),
		cancels: make(map[string]context.CancelFunc),
	}
}

// StartDownload allocates a job in pending, enqueues it, and returns
// immediately. DRM-marked streams are refused before any fetch: the job
// table reaches failed with DRMRefused and no network requests occur.
func (s *Scheduler) StartDownload(stream model.DetectedStream, quality model.VideoQuality, audio *model.AudioTrack, outputDir string) string {
	id := uuid.NewString()
	job := &model.DownloadJob{
		ID:        id,
		Stream:    stream,
		Quality:   quality,
		Audio:     audio,
		OutputDir: outputDir,
		Status:    model.JobPending,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.jobs[id] = job
	s.mu.Unlock()

	if stream.Protection == model.ProtectionDRM {
		s.failJob(id, ErrDRMRefused)
		return id
	}

	jobCtx, cancel := context.WithCancel(s.rootCtx)
	s.mu.Lock()
	s.cancels[id] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.launch(jobCtx, job)

	return id
}

// launch blocks on the concurrency semaphore, then runs the job unless
// it was cancelled while still pending.
func (s *Scheduler) launch(ctx context.Context, job *model.DownloadJob) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.failJob(job.ID, fmt.Errorf("job panicked: %v", r))
		}
	}()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		// Context was cancelled before a slot freed up: the job never
		// left pending.
		s.markCancelled(job.ID)
		return
	}
	defer s.sem.Release(1)

	if ctx.Err() != nil {
		s.markCancelled(job.ID)
		return
	}

	if err := s.checkDiskSpace(); err != nil {
		s.failJob(job.ID, err)
		return
	}

	s.setStatus(job.ID, model.JobDownloading)
	s.runJob(ctx, job)
}

// CancelDownload signals the job's cancellation token. If the job is
// still pending, it is marked cancelled immediately; if active, the
// in-flight I/O observes the signal at its next suspension point.
// Idempotent.
func (s *Scheduler) CancelDownload(jobID string) error {
	s.mu.Lock()
	cancel, ok := s.cancels[jobID]
	job, jobOk := s.jobs[jobID]
	s.mu.Unlock()

	if !jobOk {
		return fmt.Errorf("unknown job %s", jobID)
	}
	if job.Status.IsTerminal() {
		return nil // idempotent: already terminal
	}
	if ok {
		cancel()
	}
	return nil
}

// Seed rehydrates the job table from persisted history at startup so
// GetDownloads can answer truthfully about jobs from a prior process.
// Any job still in a non-terminal status when the process last ran was
// orphaned by the crash/restart: no goroutine is resuming it, so it is
// recorded as failed rather than left claiming to be in-flight forever.
func (s *Scheduler) Seed(jobs []model.DownloadJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range jobs {
		job := jobs[i]
		if !job.Status.IsTerminal() {
			job.Status = model.JobFailed
			job.Error = "interrupted by process restart"
			t := time.Now()
			job.CompletedAt = &t
		}
		s.jobs[job.ID] = &job
	}
}

// GetDownloads returns a coherent snapshot of every known job.
func (s *Scheduler) GetDownloads() []model.DownloadJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.DownloadJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	return out
}

// Wait blocks until every launched job goroutine has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) setStatus(jobID string, status model.JobStatus) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	var progress model.DownloadProgress
	if ok {
		job.Status = status
		progress = job.Progress
	}
	s.mu.Unlock()
	if ok && s.sinks.OnProgress != nil {
		s.sinks.OnProgress(jobID, progress, status)
	}
}

func (s *Scheduler) updateProgress(jobID string, progress model.DownloadProgress) {
	progress.Clamp()
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	var status model.JobStatus
	if ok {
		job.Progress = progress
		status = job.Status
	}
	s.mu.Unlock()
	if ok && s.sinks.OnProgress != nil {
		s.sinks.OnProgress(jobID, progress, status)
	}
}

func (s *Scheduler) completeJob(jobID, outputPath string) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if ok {
		job.Status = model.JobCompleted
		job.OutputPath = outputPath
		t := time.Now()
		job.CompletedAt = &t
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	if s.sinks.OnComplete != nil {
		s.sinks.OnComplete(jobID, outputPath)
	}
}

func (s *Scheduler) failJob(jobID string, err error) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if ok {
		job.Status = model.JobFailed
		job.Error = err.Error()
		t := time.Now()
		job.CompletedAt = &t
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	if s.sinks.OnError != nil {
		s.sinks.OnError(jobID, err)
	}
}

func (s *Scheduler) markCancelled(jobID string) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	var progress model.DownloadProgress
	if ok {
		if job.Status.IsTerminal() {
			s.mu.Unlock()
			return
		}
		job.Status = model.JobCancelled
		t := time.Now()
		job.CompletedAt = &t
		progress = job.Progress
	}
	s.mu.Unlock()
	if ok && s.sinks.OnProgress != nil {
		s.sinks.OnProgress(jobID, progress, model.JobCancelled)
	}
}

// EncoderAvailable reports whether a merge binary was discovered at
// startup, for APP_STATUS responses.
func (s *Scheduler) EncoderAvailable() bool {
	return s.config.EncoderBinary != ""
}
