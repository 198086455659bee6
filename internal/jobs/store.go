package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Fields carries the extra columns set alongside a status transition.
type Fields map[string]any

// Store is the queue contract the claimer runs against. The backing store
// must evaluate the predicate and the write of ConditionalTransition
// atomically; no other coordination is assumed.
type Store interface {
	// SelectCandidate returns the lowest-id WAITING job with no final
	// artifact, or nil when the queue is empty.
	SelectCandidate(ctx context.Context) (*Job, error)

	// ConditionalTransition updates status (and fields) only if the row is
	// still in from-status at write time. Returns true iff exactly one row
	// was updated.
	ConditionalTransition(ctx context.Context, id int64, from, to string, fields Fields) (bool, error)

	// UnconditionalTransition updates status (and fields) regardless of the
	// current status. Returns true iff the row existed.
	UnconditionalTransition(ctx context.Context, id int64, to string, fields Fields) (bool, error)

	// SetProgress records advisory progress; it never affects status.
	SetProgress(ctx context.Context, id int64, pct int, label string) error
}

// transitionColumns is the whitelist of columns a transition may set.
var transitionColumns = map[string]bool{
	"claimed_at":             true,
	"finished_at":            true,
	"final_artifact_key":     true,
	"final_duration_seconds": true,
	"final_size_bytes":       true,
	"error_text":             true,
}

// PGStore implements Store on a Postgres render_jobs table.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) SelectCandidate(ctx context.Context) (*Job, error) {
	var j Job
	err := s.pool.QueryRow(ctx,
		`SELECT id, status, source_video_url, source_audio_url, target_minutes,
		        COALESCE(callback_url, ''), channel_id, created_at
		 FROM render_jobs
		 WHERE status=$1 AND final_artifact_key IS NULL
		 ORDER BY id ASC
		 LIMIT 1`,
		StatusWaiting,
	).Scan(&j.ID, &j.Status, &j.SourceVideoURL, &j.SourceAudioURL, &j.TargetMinutes,
		&j.CallbackURL, &j.ChannelID, &j.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("selecting candidate job: %w", err)
	}
	return &j, nil
}

func (s *PGStore) ConditionalTransition(ctx context.Context, id int64, from, to string, fields Fields) (bool, error) {
	set, args, err := buildSet(to, fields)
	if err != nil {
		return false, err
	}

	n := len(args)
	query := fmt.Sprintf(
		`UPDATE render_jobs SET %s WHERE id=$%d AND status=$%d`,
		set, n+1, n+2,
	)
	args = append(args, id, from)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("conditional transition to %s: %w", to, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) UnconditionalTransition(ctx context.Context, id int64, to string, fields Fields) (bool, error) {
	set, args, err := buildSet(to, fields)
	if err != nil {
		return false, err
	}

	n := len(args)
	query := fmt.Sprintf(`UPDATE render_jobs SET %s WHERE id=$%d`, set, n+1)
	args = append(args, id)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition to %s: %w", to, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) SetProgress(ctx context.Context, id int64, pct int, label string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE render_jobs SET progress_pct=$2, progress_label=$3 WHERE id=$1`,
		id, pct, label,
	)
	return err
}

// buildSet renders the SET clause for a transition, whitelisting columns.
func buildSet(to string, fields Fields) (string, []any, error) {
	parts := []string{"status=$1"}
	args := []any{to}

	for col, v := range fields {
		if !transitionColumns[col] {
			return "", nil, fmt.Errorf("column not allowed in transition: %s", col)
		}
		args = append(args, v)
		parts = append(parts, fmt.Sprintf("%s=$%d", col, len(args)))
	}

	return strings.Join(parts, ", "), args, nil
}
