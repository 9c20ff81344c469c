package visits

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/example/visit-scheduler/internal/db"
	"github.com/example/visit-scheduler/internal/migrate"
	"github.com/example/visit-scheduler/internal/pgtest"
)

func setupRepo(t *testing.T) *Repo {
	t.Helper()
	ctx := context.Background()

	dsn, terminate, err := pgtest.Start(ctx)
	if err != nil {
		t.Skipf("postgres unavailable (set VISITS_TEST_PG_DSN or start docker): %v", err)
	}
	t.Cleanup(terminate)

	d, err := db.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(d.Close)

	require.NoError(t, migrate.Up(ctx, d))
	require.NoError(t, d.Exec(ctx, `TRUNCATE visits`))
	return NewRepo(d)
}

func pendingVisit(email string) Visit {
	return Visit{Email: email, Label: "Wednesday afternoon", RoomID: "room-1"}
}

func TestClaimBatchOrderAndTransition(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := repo.Create(ctx, pendingVisit(fmt.Sprintf("u%d@x.com", i)))
		require.NoError(t, err)
		ids = append(ids, id)
		time.Sleep(10 * time.Millisecond) // distinct created_at for ordering
	}

	claimed, err := repo.ClaimBatch(ctx, 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, ids[0], claimed[0].ID, "oldest first")
	assert.Equal(t, ids[1], claimed[1].ID)
	for _, v := range claimed {
		assert.Equal(t, StatusProcessing, v.Status)
	}

	rest, err := repo.ClaimBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1, "processing rows are not reclaimable")
	assert.Equal(t, ids[2], rest[0].ID)

	empty, err := repo.ClaimBatch(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// Two claimers racing over the same pending rows must partition them:
// every row claimed exactly once, no row in both result sets.
func TestClaimBatchConcurrent(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	const n = 40
	for i := 0; i < n; i++ {
		_, err := repo.Create(ctx, pendingVisit(fmt.Sprintf("u%d@x.com", i)))
		require.NoError(t, err)
	}

	const claimers = 4
	results := make([][]Visit, claimers)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < claimers; i++ {
		i := i
		g.Go(func() error {
			for {
				batch, err := repo.ClaimBatch(gctx, 5)
				if err != nil {
					return err
				}
				if len(batch) == 0 {
					return nil
				}
				results[i] = append(results[i], batch...)
			}
		})
	}
	require.NoError(t, g.Wait())

	seen := map[string]int{}
	for _, rs := range results {
		for _, v := range rs {
			seen[v.ID]++
		}
	}
	assert.Len(t, seen, n, "every pending row claimed")
	for id, count := range seen {
		assert.Equal(t, 1, count, "visit %s claimed more than once", id)
	}
}

func TestMarkScheduled(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, pendingVisit("a@x.com"))
	require.NoError(t, err)
	_, err = repo.ClaimBatch(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, repo.MarkScheduled(ctx, id, "evt-1", "https://cal.example/evt-1", "Wednesday at 3:00 PM"))

	v, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, v.Status)
	require.NotNil(t, v.EventID)
	assert.Equal(t, "evt-1", *v.EventID)
	require.NotNil(t, v.WhenText)
	assert.Equal(t, "Wednesday at 3:00 PM", *v.WhenText)

	// Idempotent on an already-scheduled visit.
	require.NoError(t, repo.MarkScheduled(ctx, id, "evt-1", "https://cal.example/evt-1", "Wednesday at 3:00 PM"))

	// A scheduled visit is never reclaimed.
	claimed, err := repo.ClaimBatch(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestMarkFailed(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, pendingVisit("a@x.com"))
	require.NoError(t, err)
	_, err = repo.ClaimBatch(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, repo.MarkFailed(ctx, id, `unresolvable label "whenever"`))

	v, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, v.Status)
	require.NotNil(t, v.FailReason)
	assert.Contains(t, *v.FailReason, "unresolvable")

	// failed is terminal for this claim: no backward transition.
	err = repo.MarkFailed(ctx, id, "again")
	assert.ErrorIs(t, err, db.ErrNotFound)
	err = repo.MarkScheduled(ctx, id, "evt", "", "")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestMarkTransitionsRequireProcessing(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, pendingVisit("a@x.com"))
	require.NoError(t, err)

	// Still pending: neither terminal transition applies.
	assert.ErrorIs(t, repo.MarkScheduled(ctx, id, "evt", "", ""), db.ErrNotFound)
	assert.ErrorIs(t, repo.MarkFailed(ctx, id, "nope"), db.ErrNotFound)
}

func TestCreateValidates(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, Visit{Email: "not-an-email", Label: "Friday"})
	assert.Error(t, err)

	_, err = repo.Create(ctx, Visit{Email: "a@x.com"})
	assert.Error(t, err, "one of label or start_time required")

	_, err = repo.Create(ctx, Visit{Email: "a@x.com", Label: "Friday", DurationMinutes: 5})
	assert.Error(t, err, "duration below minimum")

	start := time.Date(2025, 6, 4, 15, 0, 0, 0, time.UTC)
	id, err := repo.Create(ctx, Visit{Email: "a@x.com", StartTime: &start, Timezone: "America/New_York"})
	require.NoError(t, err)

	v, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, v.Status)
	assert.Equal(t, DefaultDurationMinutes, v.DurationMinutes)
	require.NotNil(t, v.StartTime)
	assert.True(t, start.Equal(*v.StartTime))
}

func TestList(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	id1, err := repo.Create(ctx, pendingVisit("a@x.com"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, pendingVisit("b@x.com"))
	require.NoError(t, err)

	all, err := repo.List(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = repo.ClaimBatch(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(ctx, id1, "boom"))

	failed, err := repo.List(ctx, StatusFailed, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, id1, failed[0].ID)
}
