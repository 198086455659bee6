// Package processor orchestrates a single claimed job from validation
// through fetch, render, publish, and the terminal status write. Every
// failure funnels through one place so the job row and the webhook always
// agree on the outcome.
package processor

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/shirou/gopsutil/v3/disk"

	"loopmix/internal/ffmpeg"
	"loopmix/internal/jobs"
	"loopmix/internal/pkg/errors"
	"loopmix/internal/pkg/logger"
	"loopmix/internal/worker/pipeline"
)

// Progress checkpoints written to the job row as the render advances.
const (
	pctClaimed   = 5
	pctFetched   = 25
	pctLooped    = 70
	pctMerged    = 85
	pctPublished = 100
)

// Claimer is the slice of the claim protocol the processor drives: the
// terminal transitions and advisory progress. Claiming itself happens in
// the worker loop.
type Claimer interface {
	Complete(ctx context.Context, job *jobs.Job, artifactKey string, meta jobs.OutputMeta) error
	Fail(ctx context.Context, job *jobs.Job, cause error) error
	ReportProgress(ctx context.Context, id int64, pct int, label string)
}

// Fetcher downloads one source to local scratch.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string, minBytes int64) error
}

// Renderer turns the two fetched sources into the merged artifact.
type Renderer interface {
	SetStageHook(fn func(stage string))
	Render(ctx context.Context, videoPath, audioPath string, minutes int, workDir string) (string, *ffmpeg.MediaInfo, error)
}

// Publisher uploads the artifact and returns the key later reads use.
type Publisher interface {
	Publish(ctx context.Context, localPath, channelID string, jobID int64) (string, int64, error)
}

type Deps struct {
	Claimer   Claimer
	Fetcher   Fetcher
	Pipeline  Renderer
	Publisher Publisher

	ScratchDir       string
	MinVideoBytes    int64
	MinAudioBytes    int64
	MinFreeDiskBytes int64

	Log *logger.Logger
}

type Processor struct {
	claimer   Claimer
	fetcher   Fetcher
	pipeline  Renderer
	publisher Publisher

	scratchDir       string
	minVideoBytes    int64
	minAudioBytes    int64
	minFreeDiskBytes int64

	log *logger.Logger
}

func New(d Deps) *Processor {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Processor{
		claimer:          d.Claimer,
		fetcher:          d.Fetcher,
		pipeline:         d.Pipeline,
		publisher:        d.Publisher,
		scratchDir:       d.ScratchDir,
		minVideoBytes:    d.MinVideoBytes,
		minAudioBytes:    d.MinAudioBytes,
		minFreeDiskBytes: d.MinFreeDiskBytes,
		log:              log.WithComponent("processor"),
	}
}

// ProcessJob runs one already-claimed job to a terminal status. The
// returned error reports what went wrong; the job row has been marked
// FAILED by the time it is returned.
func (p *Processor) ProcessJob(ctx context.Context, job *jobs.Job) error {
	log := p.log.FromContext(ctx).WithJobID(job.ID)

	p.claimer.ReportProgress(ctx, job.ID, pctClaimed, "claimed")

	// Validation happens before any download is attempted.
	if err := validateJob(job); err != nil {
		return p.failJob(ctx, job, err)
	}

	if err := p.checkDisk(); err != nil {
		return p.failJob(ctx, job, err)
	}

	workDir := filepath.Join(p.scratchDir, "jobs", strconv.FormatInt(job.ID, 10))
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return p.failJob(ctx, job, errors.Wrap(err, "processor.scratch", "creating scratch dir"))
	}

	videoPath := filepath.Join(workDir, sourceFilename(job.SourceVideoURL, "source_video.mp4"))
	audioPath := filepath.Join(workDir, sourceFilename(job.SourceAudioURL, "source_audio.m4a"))

	log.Debug("fetching sources")
	if err := p.fetcher.Fetch(ctx, job.SourceVideoURL, videoPath, p.minVideoBytes); err != nil {
		p.cleanupScratch(workDir, log)
		return p.failJob(ctx, job, errors.Wrap(err, "processor.fetch", "fetching video source"))
	}
	if err := p.fetcher.Fetch(ctx, job.SourceAudioURL, audioPath, p.minAudioBytes); err != nil {
		p.cleanupScratch(workDir, log)
		return p.failJob(ctx, job, errors.Wrap(err, "processor.fetch", "fetching audio source"))
	}
	p.claimer.ReportProgress(ctx, job.ID, pctFetched, "fetched")

	p.pipeline.SetStageHook(func(stage string) {
		switch stage {
		case pipeline.StageLooped:
			p.claimer.ReportProgress(ctx, job.ID, pctLooped, stage)
		case pipeline.StageMerged:
			p.claimer.ReportProgress(ctx, job.ID, pctMerged, stage)
		}
	})

	outPath, meta, err := p.pipeline.Render(ctx, videoPath, audioPath, job.TargetMinutes, workDir)
	if err != nil {
		p.cleanupScratch(workDir, log)
		return p.failJob(ctx, job, errors.Wrap(err, "processor.render", "render failed"))
	}

	key, size, err := p.publisher.Publish(ctx, outPath, job.ChannelID, job.ID)
	if err != nil {
		// The rendered artifact stays on disk so it can be recovered and
		// uploaded by hand; only the source downloads are removed.
		pipeline.RemovePaths(videoPath, audioPath)
		log.Warn("publish failed, rendered artifact retained",
			"artifact", outPath,
		)
		return p.failJob(ctx, job, errors.Wrap(err, "processor.publish", "publishing artifact"))
	}
	p.claimer.ReportProgress(ctx, job.ID, pctPublished, "published")

	if err := p.claimer.Complete(ctx, job, key, jobs.OutputMeta{
		DurationSeconds: meta.DurationSeconds,
		Width:           meta.Width,
		Height:          meta.Height,
		VideoCodec:      meta.VideoCodec,
		SizeBytes:       size,
	}); err != nil {
		return p.failJob(ctx, job, errors.Wrap(err, "processor.complete", "recording completion"))
	}

	p.cleanupScratch(workDir, log)
	return nil
}

// failJob is the single funnel for job failure: it writes the FAILED row,
// triggers the webhook, and logs the cause with its code.
func (p *Processor) failJob(ctx context.Context, job *jobs.Job, cause error) error {
	log := p.log.FromContext(ctx).WithJobID(job.ID)

	var lerr *errors.Error
	if errors.As(cause, &lerr) {
		log.Error("job failed",
			"code", string(lerr.Code),
			"op", lerr.Op,
			"error", cause.Error(),
		)
	} else {
		log.Error("job failed", "error", cause.Error())
	}

	if err := p.claimer.Fail(ctx, job, cause); err != nil {
		log.Error("recording job failure", "error", err.Error())
	}
	return cause
}

func (p *Processor) checkDisk() error {
	usage, err := disk.Usage(p.scratchDir)
	if err != nil {
		// A missing scratch dir is created later; only a real stat failure
		// on an existing path blocks the job.
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "processor.disk", "checking scratch disk")
	}
	if usage.Free < uint64(p.minFreeDiskBytes) {
		return errors.Internal("insufficient scratch disk space").
			WithField("free_bytes", usage.Free).
			WithField("required_bytes", p.minFreeDiskBytes)
	}
	return nil
}

func (p *Processor) cleanupScratch(workDir string, log *logger.Logger) {
	if err := os.RemoveAll(workDir); err != nil {
		log.Warn("scratch cleanup failed", "dir", workDir, "error", err.Error())
	}
}

func validateJob(job *jobs.Job) error {
	if job.SourceVideoURL == "" {
		return errors.ValidationField("source_video_url", "missing required field")
	}
	if job.SourceAudioURL == "" {
		return errors.ValidationField("source_audio_url", "missing required field")
	}
	if job.TargetMinutes <= 0 {
		return errors.ValidationField("target_minutes", "must be positive")
	}
	if job.ChannelID == "" {
		return errors.ValidationField("channel_id", "missing required field")
	}
	return nil
}

// sourceFilename picks a local name for a downloaded source, keeping the
// URL's extension when it has one so ffmpeg sees the right container.
func sourceFilename(rawURL, fallback string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	ext := path.Ext(u.Path)
	if ext == "" || len(ext) > 8 {
		return fallback
	}
	base := fallback[:len(fallback)-len(path.Ext(fallback))]
	return base + ext
}
