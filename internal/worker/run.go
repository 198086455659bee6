// Package worker wires the render components together and drains the job
// queue until its context is canceled.
package worker

import (
	"context"
	"time"

	"loopmix/internal/ffmpeg"
	"loopmix/internal/jobs"
	"loopmix/internal/pkg/logger"
	"loopmix/internal/worker/fetcher"
	"loopmix/internal/worker/notify"
	"loopmix/internal/worker/pipeline"
	"loopmix/internal/worker/processor"
	"loopmix/internal/worker/publisher"
	"loopmix/internal/worker/queue"
	"loopmix/internal/worker/util"
)

// wakeTimeout bounds how long an idle worker blocks on the wake queue
// before polling the database anyway.
const wakeTimeout = 30 * time.Second

func Run(ctx context.Context, d Deps) error {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("worker")

	runner, err := ffmpeg.NewRunner(d.Cfg.FFmpegBin, log)
	if err != nil {
		return err
	}
	prober := ffmpeg.NewProber(d.Cfg.FFprobeBin)

	pipe := pipeline.New(runner, prober, d.Prof, log)
	fet := fetcher.New(d.Cfg.DownloadTimeout, d.Cfg.DownloadRetries, d.Cfg.MaxDownloadBytes, log)
	pub := publisher.New(d.SP, log)
	claimer := jobs.NewClaimer(jobs.NewStore(d.Pool), notify.NewWebhookNotifier(), log)
	wake := queue.NewWakeQueue(d.RDB, d.Cfg.QueueName)

	proc := processor.New(processor.Deps{
		Claimer:          claimer,
		Fetcher:          fet,
		Pipeline:         pipe,
		Publisher:        pub,
		ScratchDir:       d.Cfg.ScratchDir,
		MinVideoBytes:    d.Cfg.MinVideoBytes,
		MinAudioBytes:    d.Cfg.MinAudioBytes,
		MinFreeDiskBytes: d.Cfg.MinFreeDiskBytes,
		Log:              log,
	})

	log.Info("worker started",
		"worker_id", util.WorkerID(),
		"preset", d.Prof.Name,
		"queue", d.Cfg.QueueName,
	)

	for {
		select {
		case <-ctx.Done():
			log.Info("worker context canceled, stopping")
			return ctx.Err()
		default:
		}

		job, err := claimer.Claim(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("claim attempt failed, retrying",
				"error", err.Error(),
			)
			time.Sleep(1 * time.Second)
			continue
		}

		if job != nil {
			jobCtx := logger.ContextWithJobID(ctx, job.ID)
			jobLog := log.WithJobID(job.ID)
			if d.Tracker != nil {
				d.Tracker.SetCurrent(job.ID)
			}

			jobLog.Info("processing job", "channel_id", job.ChannelID)
			startTime := time.Now()

			if err := proc.ProcessJob(jobCtx, job); err != nil {
				jobLog.Error("job failed",
					"error", err.Error(),
					"duration_ms", time.Since(startTime).Milliseconds(),
				)
			} else {
				jobLog.Info("job completed",
					"duration_ms", time.Since(startTime).Milliseconds(),
				)
			}

			if d.Tracker != nil {
				d.Tracker.ClearCurrent()
			}
			// Try the next row immediately; the queue drains without
			// waiting for wake signals.
			continue
		}

		// Queue is empty. Block on the wake signal, but with a bound so a
		// signal pushed while nobody was listening is still picked up.
		if _, err := wake.Wait(ctx, wakeTimeout); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("wake queue error, retrying",
				"error", err.Error(),
			)
			time.Sleep(1 * time.Second)
		}
	}
}
