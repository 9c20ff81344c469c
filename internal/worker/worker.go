package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/visit-scheduler/internal/scheduling"
	"github.com/example/visit-scheduler/internal/timeparse"
	"github.com/example/visit-scheduler/internal/visits"
)

// Store is the slice of the visit repository the worker needs. Claiming
// is the only cross-worker coordination point; everything after a claim
// touches data owned by exactly one worker.
type Store interface {
	ClaimBatch(ctx context.Context, limit int) ([]visits.Visit, error)
	MarkScheduled(ctx context.Context, id, eventID, inviteLink, whenText string) error
	MarkFailed(ctx context.Context, id, reason string) error
}

const (
	DefaultInterval    = 10 * time.Second
	DefaultBatchSize   = 8
	DefaultConcurrency = 4
)

// Worker polls for pending visits, resolves each one's requested time,
// and books it via the scheduling service. Multiple workers may run
// against the same store; the claim query keeps them from overlapping.
type Worker struct {
	Store    Store
	Client   scheduling.Client
	Interval time.Duration

	BatchSize       int
	Concurrency     int
	DefaultTimezone string

	// Now is a test hook; nil means time.Now.
	Now func() time.Time
}

// Run drives the polling loop until ctx is canceled, then waits for
// in-flight visits so none is left stuck in processing by a graceful
// shutdown. A bad cycle is logged, never fatal.
func (w *Worker) Run(ctx context.Context) error {
	if w.Interval <= 0 {
		w.Interval = DefaultInterval
	}
	if w.BatchSize <= 0 {
		w.BatchSize = DefaultBatchSize
	}
	if w.Concurrency <= 0 {
		w.Concurrency = DefaultConcurrency
	}

	g := new(errgroup.Group)
	g.SetLimit(w.Concurrency)

	t := time.NewTicker(w.Interval)
	defer t.Stop()

	// kick immediately
	w.tick(ctx, g)

	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			return ctx.Err()
		case <-t.C:
			w.tick(ctx, g)
		}
	}
}

func (w *Worker) tick(ctx context.Context, g *errgroup.Group) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("worker: cycle panic recovered: %v", r)
		}
	}()

	claimed, err := w.Store.ClaimBatch(ctx, w.BatchSize)
	if err != nil {
		log.Printf("worker: claim failed: %v", err)
		return
	}

	for _, v := range claimed {
		v := v
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("worker: visit %s: panic recovered: %v", v.ID, r)
				}
			}()
			// Detach from loop cancellation so a shutdown mid-visit still
			// lets the status update land.
			w.process(context.WithoutCancel(ctx), v)
			return nil
		})
	}
}

// process books one claimed visit and records the terminal outcome.
// Failures here are per-visit: they never abort the rest of the batch.
func (w *Worker) process(ctx context.Context, v visits.Visit) {
	start, err := w.resolveStart(v)
	if err != nil {
		w.fail(ctx, v.ID, err.Error())
		return
	}

	duration := v.DurationMinutes
	if duration == 0 {
		duration = visits.DefaultDurationMinutes
	}

	booking, err := w.Client.CreateAppointment(ctx, scheduling.Request{
		Email:           v.Email,
		Timezone:        w.timezoneFor(v),
		Start:           start,
		DurationMinutes: duration,
		IdempotencyKey:  v.IdempotencyKey(start),
		WantsVideoLink:  v.WantsVideoLink,
		RoomID:          v.RoomID,
		AgentID:         v.AgentID,
	})
	if err != nil {
		// Conflicts and duplicates are not auto-resolved here: picking a
		// different slot is a decision for whoever resubmits the visit.
		w.fail(ctx, v.ID, err.Error())
		return
	}

	if err := w.Store.MarkScheduled(ctx, v.ID, booking.EventID, booking.InviteLink, booking.WhenText); err != nil {
		log.Printf("worker: visit %s: mark scheduled: %v", v.ID, err)
	}
}

// resolveStart produces the concrete instant to book. An explicit
// StartTime always wins and passes through as given, even in the past;
// otherwise the label is resolved against the visit's timezone. A label
// with no recognizable weekday is a terminal input error.
func (w *Worker) resolveStart(v visits.Visit) (time.Time, error) {
	if v.StartTime != nil {
		return *v.StartTime, nil
	}

	res := timeparse.Resolve(v.Label)
	if !res.HasWeekday {
		return time.Time{}, fmt.Errorf("unresolvable label %q", v.Label)
	}
	clock := timeparse.DefaultClock
	if res.Clock != nil {
		clock = *res.Clock
	}

	tz := w.timezoneFor(v)
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timezone %q", tz)
	}
	return timeparse.NextOccurrence(res.Weekday, clock, w.now().In(loc)), nil
}

func (w *Worker) fail(ctx context.Context, id, reason string) {
	if err := w.Store.MarkFailed(ctx, id, reason); err != nil {
		log.Printf("worker: visit %s: mark failed: %v", id, err)
	}
}

func (w *Worker) timezoneFor(v visits.Visit) string {
	if v.Timezone != "" {
		return v.Timezone
	}
	return w.DefaultTimezone
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}
