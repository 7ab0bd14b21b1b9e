package scheduler

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/siliconyouth/aigrabber-core/internal/encoder"
	"github.com/siliconyouth/aigrabber-core/internal/helper"
	"github.com/siliconyouth/aigrabber-core/internal/manifest/dash"
	"github.com/siliconyouth/aigrabber-core/internal/manifest/hls"
	"github.com/siliconyouth/aigrabber-core/internal/model"
)

// runJob dispatches to the per-type execution path and resolves the
// job's terminal status from the result: a cancelled context always
// wins over an error it produced, so a job aborted mid-fetch lands on
// cancelled, not failed.
func (s *Scheduler) runJob(ctx context.Context, job *model.DownloadJob) {
	var err error
	switch job.Stream.Type {
	case model.StreamHLS:
		err = s.runHLS(ctx, job)
	case model.StreamDASH:
		err = s.runDASH(ctx, job)
	case model.StreamDirect:
		err = s.runDirect(ctx, job)
	case model.StreamYTDLP:
		err = s.runYTDLP(ctx, job)
	default:
		err = fmt.Errorf("unsupported stream type %q", job.Stream.Type)
	}
	if err == nil {
		return
	}
	if ctx.Err() != nil {
		s.markCancelled(job.ID)
		return
	}
	s.failJob(job.ID, err)
}

type segmentRef struct {
	url         string
	rangeHeader string
}

func hlsRangeHeader(br *hls.ByteRange) string {
	if br == nil {
		return ""
	}
	return fmt.Sprintf("bytes=%d-%d", br.Offset, br.Offset+br.Length-1)
}

func (s *Scheduler) runHLS(ctx context.Context, job *model.DownloadJob) error {
	body, err := s.fetcher.FetchManifest(ctx, job.Stream.URL)
	if err != nil {
		return err
	}
	pl, err := hls.Parse(string(body), job.Stream.URL)
	if err != nil {
		return err
	}

	media := pl
	if pl.Kind == hls.KindMaster {
		variant := selectHLSVariant(pl, job.Quality)
		if variant == nil {
			return fmt.Errorf("no matching variant for requested quality")
		}
		variantBody, err := s.fetcher.FetchManifest(ctx, variant.URL)
		if err != nil {
			return err
		}
		media, err = hls.Parse(string(variantBody), variant.URL)
		if err != nil {
			return err
		}
	}
	if media.IsDRM {
		return ErrDRMRefused
	}

	scratchDir, err := s.makeScratchDir(job)
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratchDir)

	var refs []segmentRef
	if media.Map != nil {
		refs = append(refs, segmentRef{url: media.Map.URI, rangeHeader: hlsRangeHeader(media.Map.ByteRange)})
	}
	for _, seg := range media.Segments {
		refs = append(refs, segmentRef{url: seg.URI, rangeHeader: hlsRangeHeader(seg.ByteRange)})
	}
	if len(refs) == 0 {
		return fmt.Errorf("media playlist has no segments")
	}

	files, err := s.fetchSegmentsToFiles(ctx, job, scratchDir, "ts", refs)
	if err != nil {
		return err
	}

	s.setStatus(job.ID, model.JobMerging)
	ext := ".mp4"
	if s.config.EncoderBinary == "" {
		ext = ".ts"
	}
	outPath := s.resolveOutputPath(job, ext)
	if err := s.mergeOrConcat(ctx, files, outPath); err != nil {
		return err
	}

	s.completeJob(job.ID, outPath)
	return nil
}

// selectHLSVariant picks the variant whose height matches the requested
// quality, falling back to the closest variant at or below it, and
// finally to the highest-bandwidth variant (pl.Variants is sorted
// descending already).
func selectHLSVariant(pl *hls.Playlist, q model.VideoQuality) *hls.Variant {
	for i := range pl.Variants {
		if pl.Variants[i].Height == q.Height {
			return &pl.Variants[i]
		}
	}
	if q.Height > 0 {
		for i := range pl.Variants {
			if pl.Variants[i].Height > 0 && pl.Variants[i].Height <= q.Height {
				return &pl.Variants[i]
			}
		}
	}
	if len(pl.Variants) > 0 {
		return &pl.Variants[0]
	}
	return nil
}

func (s *Scheduler) runDASH(ctx context.Context, job *model.DownloadJob) error {
	body, err := s.fetcher.FetchManifest(ctx, job.Stream.URL)
	if err != nil {
		return err
	}
	mf, err := dash.Parse(body, job.Stream.URL)
	if err != nil {
		return err
	}
	if mf.IsDRM {
		return ErrDRMRefused
	}

	videoRep, audioRep := selectDASHRepresentations(mf, job.Quality, job.Audio)
	if videoRep == nil {
		return fmt.Errorf("no matching representation for requested quality")
	}

	scratchDir, err := s.makeScratchDir(job)
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratchDir)

	videoPlan, err := dash.MaterializeSegments(*videoRep, mf.DurationSeconds)
	if err != nil {
		return err
	}
	videoFiles, err := s.fetchSegmentsToFiles(ctx, job, scratchDir, "video.m4s", planToRefs(videoPlan))
	if err != nil {
		return err
	}

	s.setStatus(job.ID, model.JobMerging)
	videoOut := filepath.Join(scratchDir, "video_merged.m4s")
	if err := s.mergeOrConcat(ctx, videoFiles, videoOut); err != nil {
		return err
	}

	outPath := s.resolveOutputPath(job, ".mp4")

	if audioRep == nil {
		if err := os.Rename(videoOut, outPath); err != nil {
			return err
		}
		s.completeJob(job.ID, outPath)
		return nil
	}

	audioPlan, err := dash.MaterializeSegments(*audioRep, mf.DurationSeconds)
	if err != nil {
		return err
	}
	audioFiles, err := s.fetchSegmentsToFiles(ctx, job, scratchDir, "audio.m4s", planToRefs(audioPlan))
	if err != nil {
		return err
	}
	audioOut := filepath.Join(scratchDir, "audio_merged.m4s")
	if err := s.mergeOrConcat(ctx, audioFiles, audioOut); err != nil {
		return err
	}

	if s.config.EncoderBinary == "" {
		return fmt.Errorf("an encoder binary is required to mux separate audio and video tracks")
	}
	if err := encoder.MuxAV(ctx, s.config.EncoderBinary, videoOut, audioOut, outPath); err != nil {
		return err
	}

	s.completeJob(job.ID, outPath)
	return nil
}

func planToRefs(plan *dash.SegmentPlan) []segmentRef {
	refs := make([]segmentRef, 0, len(plan.MediaURLs)+1)
	if plan.InitializationURL != "" {
		refs = append(refs, segmentRef{url: plan.InitializationURL})
	}
	for _, u := range plan.MediaURLs {
		refs = append(refs, segmentRef{url: u})
	}
	return refs
}

// selectDASHRepresentations picks the video representation matching the
// requested height (falling back to the highest-bandwidth one, since
// video representations sort descending) and an audio representation
// whenever the manifest has an audio adaptation set: the highest-bandwidth
// one of a set whose language matches the requested track, else the
// lowest-bandwidth one of the first audio set.
func selectDASHRepresentations(mf *dash.Manifest, q model.VideoQuality, audio *model.AudioTrack) (*dash.Representation, *dash.Representation) {
	var video, audioRep *dash.Representation

	for ai := range mf.AdaptationSets {
		as := &mf.AdaptationSets[ai]
		switch as.ContentType {
		case dash.ContentVideo:
			for ri := range as.Representations {
				r := &as.Representations[ri]
				if video == nil {
					video = r
				}
				if r.Height == q.Height {
					video = r
				}
			}
		case dash.ContentAudio:
			matchesLanguage := audio != nil && as.Language == audio.Language
			for ri := range as.Representations {
				r := &as.Representations[ri]
				if audioRep == nil || matchesLanguage {
					audioRep = r
				}
			}
		}
	}
	return video, audioRep
}

func (s *Scheduler) runDirect(ctx context.Context, job *model.DownloadJob) error {
	outPath := s.resolveOutputPath(job, ".mp4")

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}

	start := time.Now()
	err = s.fetcher.FetchDirect(ctx, job.Stream.URL, f, func(total, downloaded int64) {
		elapsed := time.Since(start).Seconds()
		var speed float64
		if elapsed > 0 {
			speed = float64(downloaded) / elapsed
		}
		var pct, eta float64
		if total > 0 {
			pct = 100 * float64(downloaded) / float64(total)
			if speed > 0 {
				eta = float64(total-downloaded) / speed
			}
		}
		progress := model.DownloadProgress{
			DownloadedBytes: downloaded,
			SpeedBps:        speed,
			Percentage:      pct,
			ETASeconds:      eta,
		}
		if total > 0 {
			progress.TotalBytes = total
		}
		s.updateProgress(job.ID, progress)
	})
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(outPath)
		return err
	}

	s.completeJob(job.ID, outPath)
	return nil
}

func (s *Scheduler) runYTDLP(ctx context.Context, job *model.DownloadJob) error {
	if s.config.HelperBinary == "" {
		return fmt.Errorf("no external helper binary is configured")
	}

	dir := job.OutputDir
	if dir == "" {
		dir = s.config.DownloadPath
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	base := SanitizeFilename(job.Stream.Title)
	outTemplate := filepath.Join(dir, base+".%(ext)s")

	var finalPath string
	err := helper.Run(ctx, s.config.HelperBinary, job.Stream.URL, job.Quality.Height, outTemplate,
		func(p model.DownloadProgress) { s.updateProgress(job.ID, p) },
		func(path string) { finalPath = path },
	)
	if err != nil {
		return err
	}
	if finalPath == "" {
		finalPath = outTemplate
	}

	s.completeJob(job.ID, finalPath)
	return nil
}

// makeScratchDir creates the job's temporary segment directory under its
// output directory (or the scheduler's default download path).
func (s *Scheduler) makeScratchDir(job *model.DownloadJob) (string, error) {
	dir := job.OutputDir
	if dir == "" {
		dir = s.config.DownloadPath
	}
	scratch := filepath.Join(dir, ".scratch-"+job.ID)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return "", err
	}
	return scratch, nil
}

// resolveOutputPath builds the final, collision-free output path for a
// completed job from its stream's page title.
func (s *Scheduler) resolveOutputPath(job *model.DownloadJob, ext string) string {
	dir := job.OutputDir
	if dir == "" {
		dir = s.config.DownloadPath
	}
	os.MkdirAll(dir, 0o755)
	name := SanitizeFilename(job.Stream.PageTitle)
	path := filepath.Join(dir, name+ext)
	return EnsureUniqueFilename(path)
}

// fetchSegmentsToFiles fetches refs in order into scratchDir, reporting
// progress after each segment using a running average segment size to
// estimate total bytes and ETA, per the progress formulas: speed is
// bytes over elapsed wall time, percentage is segment-count based, and
// totalBytes/eta are estimates that firm up as more segments land.
func (s *Scheduler) fetchSegmentsToFiles(ctx context.Context, job *model.DownloadJob, scratchDir, ext string, refs []segmentRef) ([]string, error) {
	files := make([]string, 0, len(refs))
	start := time.Now()
	total := len(refs)
	var downloaded, segBytesSum int64

	for i, ref := range refs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		fp := filepath.Join(scratchDir, fmt.Sprintf("segment-%05d.%s", i, ext))
		f, err := os.Create(fp)
		if err != nil {
			return nil, err
		}
		n, err := s.fetcher.FetchSegment(ctx, ref.url, ref.rangeHeader, f)
		f.Close()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &SegmentFetchFailedError{Index: i, Cause: err}
		}
		files = append(files, fp)
		downloaded += n
		segBytesSum += n

		elapsed := time.Since(start).Seconds()
		var speed float64
		if elapsed > 0 {
			speed = float64(downloaded) / elapsed
		}
		avgSeg := float64(segBytesSum) / float64(i+1)
		totalBytes := int64(avgSeg * float64(total))
		remaining := total - (i + 1)
		var eta float64
		if speed > 0 {
			eta = float64(remaining) * avgSeg / speed
		}

		progress := model.DownloadProgress{
			DownloadedBytes: downloaded,
			TotalBytes:      totalBytes,
			SpeedBps:        speed,
			ETASeconds:      eta,
			Percentage:      100 * float64(i+1) / float64(total),
			CurrentSegment:  i + 1,
			TotalSegments:   total,
		}
		s.updateProgress(job.ID, progress)
	}
	return files, nil
}

// mergeOrConcat produces a single output file from ordered input files,
// using the configured encoder when available and falling back to raw
// byte concatenation (valid for fmp4 segments sharing one init segment,
// and for MPEG-TS, but not a substitute for a real mux of separate
// audio/video tracks).
func (s *Scheduler) mergeOrConcat(ctx context.Context, files []string, outputPath string) error {
	if s.config.EncoderBinary != "" {
		return encoder.Merge(ctx, s.config.EncoderBinary, files, outputPath)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	for _, fp := range files {
		in, err := os.Open(fp)
		if err != nil {
			return err
		}
		_, err = io.Copy(out, in)
		in.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
