package checker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/terminwatch/terminwatch/internal/models"
)

type fakeSchedRepo struct {
	mu sync.Mutex

	due      []*models.Tracker
	claimErr error

	expired   int64
	claimed   int
	lastLimit int
	lastLease time.Duration
}

func (r *fakeSchedRepo) ClaimDueTrackers(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Tracker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimErr != nil {
		return nil, r.claimErr
	}
	r.claimed++
	r.lastLimit = limit
	r.lastLease = lease
	out := r.due
	r.due = nil
	return out, nil
}

func (r *fakeSchedRepo) ExpireDepleted(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.expired, nil
}

type fakeChecker struct {
	mu      sync.Mutex
	checked []uint64
	failIDs map[uint64]bool
	errIDs  map[uint64]bool
}

func (c *fakeChecker) CheckTracker(ctx context.Context, tr *models.Tracker) (*models.CheckResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checked = append(c.checked, tr.ID)
	if c.errIDs[tr.ID] {
		return nil, errors.New("boom")
	}
	if c.failIDs[tr.ID] {
		return &models.CheckResult{TrackerID: tr.ID, Success: false}, nil
	}
	return &models.CheckResult{TrackerID: tr.ID, Success: true}, nil
}

func dueTrackers(ids ...uint64) []*models.Tracker {
	out := make([]*models.Tracker, 0, len(ids))
	for _, id := range ids {
		out = append(out, &models.Tracker{ID: id, Status: models.TrackerStatusActive, DaysRemaining: 10})
	}
	return out
}

func TestRunPass_OneBadTrackerNeverAbortsSiblings(t *testing.T) {
	repo := &fakeSchedRepo{due: dueTrackers(1, 2, 3)}
	chk := &fakeChecker{errIDs: map[uint64]bool{2: true}}
	s := NewScheduler(repo, chk)

	stats := s.RunPass(context.Background(), time.Now().UTC())
	require.Equal(t, PassStats{Checked: 3, Succeeded: 2, Failed: 1}, stats)
	require.Len(t, chk.checked, 3)
}

func TestRunPass_FailedResultCountsAsFailed(t *testing.T) {
	repo := &fakeSchedRepo{due: dueTrackers(1, 2)}
	chk := &fakeChecker{failIDs: map[uint64]bool{1: true}}
	s := NewScheduler(repo, chk)

	stats := s.RunPass(context.Background(), time.Now().UTC())
	require.Equal(t, PassStats{Checked: 2, Succeeded: 1, Failed: 1}, stats)
}

func TestRunPass_ClaimErrorReturnsZeroStats(t *testing.T) {
	repo := &fakeSchedRepo{claimErr: errors.New("db down")}
	s := NewScheduler(repo, &fakeChecker{})

	stats := s.RunPass(context.Background(), time.Now().UTC())
	require.Equal(t, PassStats{}, stats)

	st := s.Stats()
	require.Equal(t, "db down", st.LastError)
}

func TestRunPass_UsesConfiguredBatchAndLease(t *testing.T) {
	repo := &fakeSchedRepo{}
	s := NewScheduler(repo, &fakeChecker{}).
		WithSettings(time.Second, 25, 2, 90*time.Second)

	s.RunPass(context.Background(), time.Now().UTC())
	require.Equal(t, 25, repo.lastLimit)
	require.Equal(t, 90*time.Second, repo.lastLease)
}

func TestScheduler_StatsCounters(t *testing.T) {
	repo := &fakeSchedRepo{due: dueTrackers(1, 2)}
	chk := &fakeChecker{errIDs: map[uint64]bool{2: true}}
	s := NewScheduler(repo, chk)

	s.RunPass(context.Background(), time.Now().UTC())

	st := s.Stats()
	require.Equal(t, int64(2), st.TotalClaimed)
	require.Equal(t, int64(2), st.TotalProcessed)
	require.Equal(t, int64(1), st.TotalErrors)
	require.Zero(t, st.InFlight)
	require.NotNil(t, st.LastPassAt)
}

func TestScheduler_TriggerIsNonBlocking(t *testing.T) {
	s := NewScheduler(&fakeSchedRepo{}, &fakeChecker{})

	// Повторный триггер без потребителя не должен блокировать.
	s.Trigger()
	s.Trigger()

	st := s.Stats()
	require.NotNil(t, st.LastTriggerAt)
}

func TestScheduler_RunStopsOnContextCancel(t *testing.T) {
	s := NewScheduler(&fakeSchedRepo{}, &fakeChecker{}).
		WithSettings(10*time.Millisecond, 10, 2, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	s.Trigger()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
