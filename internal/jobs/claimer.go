package jobs

import (
	"context"
	"time"

	"loopmix/internal/pkg/errors"
	"loopmix/internal/pkg/logger"
	"loopmix/internal/worker/notify"
)

// maxErrorText caps how much of a failure message is persisted on the row.
const maxErrorText = 2000

// Claimer implements the race-safe claim protocol plus the terminal
// transitions. Exclusivity rests entirely on the store's conditional
// write: no lock service, no advisory locks.
type Claimer struct {
	store    Store
	notifier notify.Notifier
	log      *logger.Logger
}

func NewClaimer(store Store, notifier notify.Notifier, log *logger.Logger) *Claimer {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Claimer{
		store:    store,
		notifier: notifier,
		log:      log.WithComponent("claimer"),
	}
}

// Claim picks the lowest-id waiting job and attempts the WAITING→CLAIMED
// compare-and-swap. A lost race (another worker updated the row first) is
// not an error: Claim returns (nil, nil) and the caller re-polls.
func (c *Claimer) Claim(ctx context.Context) (*Job, error) {
	cand, err := c.store.SelectCandidate(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "claimer.claim", "candidate selection failed")
	}
	if cand == nil {
		return nil, nil
	}

	now := time.Now().UTC()
	won, err := c.store.ConditionalTransition(ctx, cand.ID, StatusWaiting, StatusClaimed, Fields{
		"claimed_at": now,
	})
	if err != nil {
		return nil, errors.Wrap(err, "claimer.claim", "conditional transition failed")
	}
	if !won {
		c.log.FromContext(ctx).Debug("lost claim race", "job_id", cand.ID)
		return nil, nil
	}

	cand.Status = StatusClaimed
	cand.ClaimedAt = &now
	return cand, nil
}

// Complete transitions the job to RENDERED and records the artifact. The
// webhook that follows is best-effort: its failure never reverts the
// transition.
func (c *Claimer) Complete(ctx context.Context, job *Job, artifactKey string, meta OutputMeta) error {
	now := time.Now().UTC()
	_, err := c.store.UnconditionalTransition(ctx, job.ID, StatusRendered, Fields{
		"final_artifact_key":     artifactKey,
		"final_duration_seconds": meta.DurationSeconds,
		"final_size_bytes":       meta.SizeBytes,
		"finished_at":            now,
	})
	if err != nil {
		return errors.Wrap(err, "claimer.complete", "marking job rendered")
	}

	c.notifyBestEffort(ctx, job, notify.Event{
		JobID:       job.ID,
		Status:      StatusRendered,
		ArtifactKey: artifactKey,
		Timestamp:   now,
	})
	return nil
}

// Fail transitions the job to FAILED, persisting a truncated error text,
// and fires a best-effort failure notification.
func (c *Claimer) Fail(ctx context.Context, job *Job, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
		if len(msg) > maxErrorText {
			msg = msg[:maxErrorText]
		}
	}

	now := time.Now().UTC()
	_, err := c.store.UnconditionalTransition(ctx, job.ID, StatusFailed, Fields{
		"error_text":  msg,
		"finished_at": now,
	})
	if err != nil {
		return errors.Wrap(err, "claimer.fail", "marking job failed")
	}

	c.notifyBestEffort(ctx, job, notify.Event{
		JobID:     job.ID,
		Status:    StatusFailed,
		Error:     msg,
		Timestamp: now,
	})
	return nil
}

// ReportProgress records advisory progress. Failures are logged and
// swallowed; progress must never block or fail a job.
func (c *Claimer) ReportProgress(ctx context.Context, id int64, pct int, label string) {
	if err := c.store.SetProgress(ctx, id, pct, label); err != nil {
		c.log.FromContext(ctx).Warn("progress update failed",
			"job_id", id,
			"pct", pct,
			"error", err.Error(),
		)
	}
}

func (c *Claimer) notifyBestEffort(ctx context.Context, job *Job, e notify.Event) {
	if c.notifier == nil || job.CallbackURL == "" {
		return
	}
	if err := c.notifier.Notify(ctx, job.CallbackURL, e); err != nil {
		c.log.FromContext(ctx).Warn("webhook delivery failed",
			"job_id", job.ID,
			"status", e.Status,
			"error", err.Error(),
		)
	}
}
