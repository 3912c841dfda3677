package checker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/terminwatch/terminwatch/internal/models"
)

// SchedulerRepository is the due-tracker selection side of the store.
type SchedulerRepository interface {
	ClaimDueTrackers(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Tracker, error)
	ExpireDepleted(ctx context.Context, now time.Time) (int64, error)
}

// TrackerChecker is what the scheduler dispatches to; *Checker in production.
type TrackerChecker interface {
	CheckTracker(ctx context.Context, tr *models.Tracker) (*models.CheckResult, error)
}

// PassStats is the outcome of one scheduling pass.
type PassStats struct {
	Checked   int `json:"checked"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Scheduler periodically claims due trackers and fans them out to the
// checker with bounded concurrency. A single tracker failing never aborts
// its siblings.
type Scheduler struct {
	repo    SchedulerRepository
	checker TrackerChecker

	pollInterval time.Duration
	batchSize    int
	concurrency  int
	lease        time.Duration

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastPassUnixNano    atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalClaimed        atomic.Int64
	totalProcessed      atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func NewScheduler(repo SchedulerRepository, checker TrackerChecker) *Scheduler {
	return &Scheduler{
		repo:              repo,
		checker:           checker,
		pollInterval:      30 * time.Second,
		batchSize:         100,
		concurrency:       10,
		lease:             120 * time.Second,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (s *Scheduler) WithSettings(pollInterval time.Duration, batchSize, concurrency int, lease time.Duration) *Scheduler {
	if pollInterval > 0 {
		s.pollInterval = pollInterval
	}
	if batchSize > 0 {
		s.batchSize = batchSize
	}
	if concurrency > 0 {
		s.concurrency = concurrency
	}
	if lease > 0 {
		s.lease = lease
	}
	return s
}

// Trigger forces an immediate pass (best-effort, non-blocking).
func (s *Scheduler) Trigger() {
	s.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastPassAt     *time.Time `json:"lastPassAt,omitempty"`
	LastTriggerAt  *time.Time `json:"lastTriggerAt,omitempty"`
	TotalClaimed   int64      `json:"totalClaimed"`
	TotalProcessed int64      `json:"totalProcessed"`
	TotalErrors    int64      `json:"totalErrors"`
	InFlight       int64      `json:"inFlight"`
	LastError      string     `json:"lastError,omitempty"`
}

func (s *Scheduler) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, s.startedAtUnixNano).UTC(),
		TotalClaimed:   s.totalClaimed.Load(),
		TotalProcessed: s.totalProcessed.Load(),
		TotalErrors:    s.totalErrors.Load(),
		InFlight:       s.inFlight.Load(),
	}
	if n := s.lastPassUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastPassAt = &t
	}
	if n := s.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	s.lastErrorMu.Lock()
	st.LastError = s.lastError
	s.lastErrorMu.Unlock()
	return st
}

func (s *Scheduler) Run(ctx context.Context) error {
	t := time.NewTicker(s.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.RunPass(ctx, time.Now().UTC())
		case <-s.triggerCh:
			s.RunPass(ctx, time.Now().UTC())
		}
	}
}

// RunPass executes one scheduling pass: expire depleted balances, claim the
// due batch, fan out. Also the entry point for the external cron trigger.
func (s *Scheduler) RunPass(ctx context.Context, now time.Time) PassStats {
	s.lastPassUnixNano.Store(now.UnixNano())

	if n, err := s.repo.ExpireDepleted(ctx, now); err != nil {
		slog.Error("expire depleted trackers", "error", err.Error())
		s.noteError(err)
	} else if n > 0 {
		slog.Info("expired depleted trackers", "count", n)
	}

	items, err := s.repo.ClaimDueTrackers(ctx, now, s.batchSize, s.lease)
	if err != nil {
		slog.Error("claim due trackers", "error", err.Error())
		s.noteError(err)
		return PassStats{}
	}
	s.totalClaimed.Add(int64(len(items)))

	var succeeded, failed atomic.Int64
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for _, tr := range items {
		sem <- struct{}{}
		wg.Add(1)
		trCopy := tr
		s.inFlight.Add(1)
		go func() {
			defer func() {
				s.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			res, err := s.checker.CheckTracker(ctx, trCopy)
			switch {
			case err != nil:
				failed.Add(1)
				s.totalErrors.Add(1)
				s.noteError(err)
				slog.Error("check tracker", "tracker_id", trCopy.ID, "error", err.Error())
			case res != nil && !res.Success:
				failed.Add(1)
			default:
				succeeded.Add(1)
			}
			s.totalProcessed.Add(1)
		}()
	}
	wg.Wait()

	return PassStats{
		Checked:   len(items),
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
	}
}

func (s *Scheduler) noteError(err error) {
	s.lastErrorMu.Lock()
	s.lastError = err.Error()
	s.lastErrorMu.Unlock()
}
