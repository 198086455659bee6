// Package jobs holds the render job model, the Postgres-backed store, and
// the claim protocol that coordinates concurrent workers.
package jobs

import "time"

// Job statuses. WAITING→CLAIMED is the only contested transition; RENDERED
// and FAILED are terminal.
const (
	StatusWaiting  = "WAITING"
	StatusClaimed  = "CLAIMED"
	StatusRendered = "RENDERED"
	StatusFailed   = "FAILED"
)

// Job is one row of the shared render queue.
type Job struct {
	ID               int64
	Status           string
	SourceVideoURL   string
	SourceAudioURL   string
	TargetMinutes    int
	FinalArtifactKey string
	CallbackURL      string
	ChannelID        string
	ErrorText        string
	CreatedAt        time.Time
	ClaimedAt        *time.Time
	FinishedAt       *time.Time
}

// OutputMeta describes the published artifact; it is attached to the
// completion record for downstream consumers.
type OutputMeta struct {
	DurationSeconds float64
	Width           int
	Height          int
	VideoCodec      string
	SizeBytes       int64
}
