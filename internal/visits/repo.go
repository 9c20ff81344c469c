package visits

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/visit-scheduler/internal/db"
)

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

const visitColumns = `id,email,label,start_time,timezone,room_id,agent_id,external_key,duration_minutes,wants_video_link,status,event_id,invite_link,when_text,fail_reason,created_at,updated_at`

func (r *Repo) Create(ctx context.Context, v Visit) (string, error) {
	if v.ID == "" {
		v.ID = NewID()
	}
	if v.DurationMinutes == 0 {
		v.DurationMinutes = DefaultDurationMinutes
	}
	if err := v.Validate(); err != nil {
		return "", err
	}
	var id string
	err := r.db.QueryRow(ctx, `
INSERT INTO visits(id,email,label,start_time,timezone,room_id,agent_id,external_key,duration_minutes,wants_video_link,status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,'pending')
RETURNING id`,
		v.ID, v.Email, v.Label, v.StartTime, v.Timezone, v.RoomID, v.AgentID, v.ExternalKey, v.DurationMinutes, v.WantsVideoLink,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("visits: create: %w", err)
	}
	return id, nil
}

// ClaimBatch atomically moves up to limit pending visits to processing,
// oldest first, and returns the claimed rows. Rows locked by a concurrent
// claimer are skipped, not waited on, so two claimers never receive the
// same visit and never block each other. The select-and-transition runs
// as one statement, so a crash mid-claim leaves nothing half-claimed.
func (r *Repo) ClaimBatch(ctx context.Context, limit int) ([]Visit, error) {
	rows, err := r.db.Query(ctx, `
WITH claimable AS (
	SELECT id FROM visits
	WHERE status='pending'
	ORDER BY created_at
	FOR UPDATE SKIP LOCKED
	LIMIT $1
)
UPDATE visits v
SET status='processing', updated_at=now()
FROM claimable c
WHERE v.id = c.id
RETURNING `+prefixed("v.", visitColumns), limit)
	if err != nil {
		return nil, fmt.Errorf("visits: claim batch: %w", err)
	}
	defer rows.Close()

	var out []Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("visits: scan claimed: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("visits: iterate claimed: %w", err)
	}
	// UPDATE ... RETURNING does not promise the CTE's ordering.
	sortByCreatedAt(out)
	return out, nil
}

// MarkScheduled transitions a processing visit to scheduled with its
// booking results. Calling it again for an already-scheduled visit is a
// no-op success.
func (r *Repo) MarkScheduled(ctx context.Context, id, eventID, inviteLink, whenText string) error {
	n, err := r.db.ExecAffected(ctx, `
UPDATE visits
SET status='scheduled', event_id=$2, invite_link=$3, when_text=$4, fail_reason=NULL, updated_at=now()
WHERE id=$1 AND status IN ('processing','scheduled')`, id, eventID, inviteLink, whenText)
	if err != nil {
		return fmt.Errorf("visits: mark scheduled: %w", err)
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

// MarkFailed transitions a processing visit to failed, recording why.
func (r *Repo) MarkFailed(ctx context.Context, id, reason string) error {
	n, err := r.db.ExecAffected(ctx, `
UPDATE visits
SET status='failed', fail_reason=$2, updated_at=now()
WHERE id=$1 AND status='processing'`, id, reason)
	if err != nil {
		return fmt.Errorf("visits: mark failed: %w", err)
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (Visit, error) {
	row := r.db.QueryRow(ctx, `SELECT `+visitColumns+` FROM visits WHERE id=$1`, id)
	v, err := scanVisit(row)
	if err != nil {
		return Visit{}, db.WrapNotFound(err)
	}
	return v, nil
}

// List returns visits newest first, optionally filtered by status.
func (r *Repo) List(ctx context.Context, status string, limit int) ([]Visit, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + visitColumns + ` FROM visits`
	args := []any{}
	if status != "" {
		q += ` WHERE status=$1`
		args = append(args, status)
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("visits: list: %w", err)
	}
	defer rows.Close()

	var out []Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("visits: scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanVisit(row db.Row) (Visit, error) {
	var v Visit
	var start *time.Time
	err := row.Scan(
		&v.ID, &v.Email, &v.Label, &start, &v.Timezone, &v.RoomID, &v.AgentID, &v.ExternalKey,
		&v.DurationMinutes, &v.WantsVideoLink, &v.Status,
		&v.EventID, &v.InviteLink, &v.WhenText, &v.FailReason,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return Visit{}, err
	}
	v.StartTime = start
	return v, nil
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, c := range parts {
		parts[i] = prefix + c
	}
	return strings.Join(parts, ",")
}
