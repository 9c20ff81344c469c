package visits

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Visit lifecycle states. A pending visit is claimed into processing by
// exactly one worker; scheduled and failed are terminal for that claim.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusScheduled  = "scheduled"
	StatusFailed     = "failed"
)

const (
	DefaultDurationMinutes = 45
	MinDurationMinutes     = 15
	MaxDurationMinutes     = 240
)

// Visit is one request to book an appointment. Label is a free-text time
// expression ("Wednesday afternoon"); StartTime, when set, wins over it.
type Visit struct {
	ID              string
	Email           string
	Label           string
	StartTime       *time.Time
	Timezone        string
	RoomID          string
	AgentID         string
	ExternalKey     string
	DurationMinutes int
	WantsVideoLink  bool

	Status     string
	EventID    *string
	InviteLink *string
	WhenText   *string
	FailReason *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (v Visit) Validate() error {
	if v.Email == "" || !strings.Contains(v.Email, "@") {
		return fmt.Errorf("visits: email required")
	}
	if v.Label == "" && v.StartTime == nil {
		return fmt.Errorf("visits: one of label or start_time required")
	}
	if v.DurationMinutes < MinDurationMinutes || v.DurationMinutes > MaxDurationMinutes {
		return fmt.Errorf("visits: duration_minutes must be %d-%d", MinDurationMinutes, MaxDurationMinutes)
	}
	if v.Timezone != "" {
		if _, err := time.LoadLocation(v.Timezone); err != nil {
			return fmt.Errorf("visits: invalid timezone %q: %w", v.Timezone, err)
		}
	}
	return nil
}

// IdempotencyKey returns the supplied ExternalKey, or derives one from
// the room and the resolved start so the same intent maps to the same
// booking across attempts.
func (v Visit) IdempotencyKey(start time.Time) string {
	if v.ExternalKey != "" {
		return v.ExternalKey
	}
	return v.RoomID + "|" + start.Format(time.RFC3339)
}

// NewID allocates a visit id.
func NewID() string { return uuid.NewString() }

func sortByCreatedAt(vs []Visit) {
	sort.Slice(vs, func(i, j int) bool {
		if vs[i].CreatedAt.Equal(vs[j].CreatedAt) {
			return vs[i].ID < vs[j].ID
		}
		return vs[i].CreatedAt.Before(vs[j].CreatedAt)
	})
}
