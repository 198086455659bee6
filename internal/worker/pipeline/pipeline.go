// Package pipeline orchestrates one render: both sources are looped to the
// target duration concurrently, then merged into a single artifact. Every
// exit path removes the intermediates it produced.
package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"loopmix/internal/ffmpeg"
	"loopmix/internal/pkg/errors"
	"loopmix/internal/pkg/logger"
	"loopmix/internal/profile"
	"loopmix/internal/worker/planner"
)

// Stage names reported through the stage hook as the render advances.
const (
	StageLooped = "looped"
	StageMerged = "merged"
)

// Pipeline runs the loop-and-merge render.
type Pipeline struct {
	runner  *ffmpeg.Runner
	prober  *ffmpeg.Prober
	prof    profile.Profile
	log     *logger.Logger
	onStage func(stage string)
}

func New(runner *ffmpeg.Runner, prober *ffmpeg.Prober, prof profile.Profile, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Pipeline{
		runner: runner,
		prober: prober,
		prof:   prof,
		log:    log.WithComponent("pipeline"),
	}
}

// SetStageHook installs a callback invoked as each render stage completes.
// The hook must be fast; it runs on the render path.
func (p *Pipeline) SetStageHook(fn func(stage string)) {
	p.onStage = fn
}

func (p *Pipeline) reportStage(stage string) {
	if p.onStage != nil {
		p.onStage(stage)
	}
}

// Render loops videoPath and audioPath to minutes of output each, merges
// them, and returns the merged file plus its probed metadata. Intermediate
// files live in workDir and are gone by the time Render returns, success
// or not; the final artifact is the only file left behind.
func (p *Pipeline) Render(ctx context.Context, videoPath, audioPath string, minutes int, workDir string) (string, *ffmpeg.MediaInfo, error) {
	log := p.log.FromContext(ctx)

	// Each source is planned against its own duration; video and audio are
	// not assumed to share one.
	vinfo, err := p.prober.Inspect(ctx, videoPath)
	if err != nil {
		return "", nil, errors.WrapWithCode(err, errors.CodePlanning, "pipeline.probe", "probing video source")
	}
	if !vinfo.HasVideo() {
		return "", nil, errors.Planning("source has no video stream")
	}

	ainfo, err := p.prober.Inspect(ctx, audioPath)
	if err != nil {
		return "", nil, errors.WrapWithCode(err, errors.CodePlanning, "pipeline.probe", "probing audio source")
	}
	if !ainfo.HasAudio() {
		return "", nil, errors.Planning("source has no audio stream")
	}

	vplan, err := planner.Plan(videoPath, vinfo.DurationSeconds, minutes)
	if err != nil {
		return "", nil, errors.Wrap(err, "pipeline.plan", "planning video loop")
	}
	aplan, err := planner.Plan(audioPath, ainfo.DurationSeconds, minutes)
	if err != nil {
		return "", nil, errors.Wrap(err, "pipeline.plan", "planning audio loop")
	}

	log.Info("render planned",
		"video_loops", vplan.LoopCount,
		"video_strategy", string(vplan.Strategy),
		"audio_loops", aplan.LoopCount,
		"audio_strategy", string(aplan.Strategy),
		"target_seconds", vplan.TargetSeconds,
	)

	loopedVideo := filepath.Join(workDir, "video_looped.mp4")
	loopedAudio := filepath.Join(workDir, "audio_looped"+audioExt(audioPath))
	videoList := filepath.Join(workDir, "video_concat.txt")
	audioList := filepath.Join(workDir, "audio_concat.txt")
	intermediates := []string{loopedVideo, loopedAudio, videoList, audioList}

	if vplan.Strategy == planner.StrategyConcatenate {
		if err := writeConcatList(videoList, videoPath, vplan.LoopCount); err != nil {
			return "", nil, errors.Wrap(err, "pipeline.loop", "writing video concat list")
		}
	}
	if aplan.Strategy == planner.StrategyConcatenate {
		if err := writeConcatList(audioList, audioPath, aplan.LoopCount); err != nil {
			RemovePaths(intermediates...)
			return "", nil, errors.Wrap(err, "pipeline.loop", "writing audio concat list")
		}
	}

	// Both loops run concurrently. If either fails the group context is
	// canceled, which kills the surviving ffmpeg process; whatever output
	// either branch produced is removed below.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.runner.Run(gctx, buildVideoLoopArgs(vplan, p.prof, vinfo.Height, videoList, loopedVideo))
	})
	g.Go(func() error {
		return p.runner.Run(gctx, buildAudioLoopArgs(aplan, audioList, loopedAudio))
	})
	if err := g.Wait(); err != nil {
		RemovePaths(intermediates...)
		return "", nil, errors.Wrap(err, "pipeline.loop", "loop stage failed")
	}
	p.reportStage(StageLooped)

	outPath := filepath.Join(workDir, "final.mp4")
	if err := p.runner.Run(ctx, buildMergeArgs(loopedVideo, loopedAudio, p.prof, outPath)); err != nil {
		RemovePaths(append(intermediates, outPath)...)
		return "", nil, errors.Wrap(err, "pipeline.merge", "merge stage failed")
	}

	p.reportStage(StageMerged)

	RemovePaths(intermediates...)

	meta, err := p.prober.Inspect(ctx, outPath)
	if err != nil {
		RemovePaths(outPath)
		return "", nil, errors.WrapWithCode(err, errors.CodeTranscode, "pipeline.verify", "probing merged output")
	}

	log.Info("render complete",
		"output", outPath,
		"duration_seconds", meta.DurationSeconds,
		"size_bytes", meta.SizeBytes,
	)
	return outPath, meta, nil
}

// RemovePaths deletes whatever exists among paths. Paths that were never
// created or are already gone are fine; cleanup must never fail a render
// that has already succeeded or add noise to one that has already failed.
func RemovePaths(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			// Leftovers are collected with the scratch dir at end of job.
			continue
		}
	}
}

// audioExt keeps the looped audio in a container matching its source so
// the stream copy is valid.
func audioExt(path string) string {
	if ext := filepath.Ext(path); ext != "" {
		return ext
	}
	return ".m4a"
}
