package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Request is one appointment-creation intent sent to the scheduling
// service. IdempotencyKey makes the intent at-most-once: a retry with the
// same key yields a duplicate failure, never a second event.
type Request struct {
	Email           string
	Timezone        string
	Start           time.Time
	DurationMinutes int
	IdempotencyKey  string
	WantsVideoLink  bool
	RoomID          string
	AgentID         string
}

// Booking is a confirmed appointment. WhenText is the service's
// human-readable rendering of the booked instant in the requested
// timezone ("Wednesday at 3:00 PM").
type Booking struct {
	EventID    string
	InviteLink string
	WhenText   string
}

type Kind string

const (
	// KindInput covers malformed or ambiguous requests; never retried.
	KindInput Kind = "input"
	// KindConflict means the window overlaps an existing booking.
	KindConflict Kind = "time_conflict"
	// KindDuplicate means the idempotency key was already fulfilled.
	KindDuplicate Kind = "duplicate"
	// KindInfra covers transport and upstream failures.
	KindInfra Kind = "infrastructure"
)

// Error is the tagged failure side of a booking attempt, one kind per
// class so callers can branch exhaustively.
type Error struct {
	Kind      Kind
	Message   string
	Conflicts []string
}

func (e *Error) Error() string {
	if len(e.Conflicts) > 0 {
		return fmt.Sprintf("scheduling: %s: %s (conflicts: %s)", e.Kind, e.Message, strings.Join(e.Conflicts, "; "))
	}
	return fmt.Sprintf("scheduling: %s: %s", e.Kind, e.Message)
}

// KindOf classifies any error from a Client call; non-*Error values are
// infrastructure failures.
func KindOf(err error) Kind {
	if se, ok := err.(*Error); ok {
		return se.Kind
	}
	return KindInfra
}

// Client is the boundary to the external appointment service. One call
// is one network round trip; retry policy belongs to the caller.
type Client interface {
	CreateAppointment(ctx context.Context, req Request) (Booking, error)
	Ping(ctx context.Context) error
}
