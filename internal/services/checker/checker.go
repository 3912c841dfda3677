package checker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/terminwatch/terminwatch/internal/models"
	"github.com/terminwatch/terminwatch/internal/parse"
	"github.com/terminwatch/terminwatch/internal/scrape"
)

// Conditions that fail fast before any check runs. No result row is written
// for these.
var (
	ErrTrackerNotFound = errors.New("tracker not found")
	ErrTrackerInactive = errors.New("tracker is not active")
	ErrTrackerExpired  = errors.New("tracker expired, no days remaining")
)

type Repository interface {
	GetTrackerByID(ctx context.Context, id uint64) (*models.Tracker, error)
	InsertCheckResult(ctx context.Context, r *models.CheckResult) error
	RecordCheckSuccess(ctx context.Context, id uint64, checkedAt time.Time, slotsFound int) error
	RecordCheckFailure(ctx context.Context, id uint64, checkedAt time.Time, message string) (int32, error)
	AddNotificationsSent(ctx context.Context, id uint64, n int) error
	UpdateTrackerStatus(ctx context.Context, id uint64, status string) error
	UpdateTrackerNextCheck(ctx context.Context, id uint64, when time.Time) error
	InsertNotification(ctx context.Context, n *models.Notification) error
}

// LocationSource is the read side of the location registry.
type LocationSource interface {
	GetByCode(ctx context.Context, code string) (*models.LocationConfig, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// Checker is the per-tracker unit of work: fetch, parse, filter, persist,
// transition state, enqueue notifications, reschedule.
type Checker struct {
	repo      Repository
	locations LocationSource
	fetcher   scrape.Fetcher
	browser   scrape.Fetcher
	producer  Producer
	rl        RateLimiter

	topic          string
	errorThreshold int32
}

func New(repo Repository, locations LocationSource, fetcher, browser scrape.Fetcher) *Checker {
	return &Checker{
		repo:           repo,
		locations:      locations,
		fetcher:        fetcher,
		browser:        browser,
		errorThreshold: DefaultErrorThreshold,
	}
}

// WithProducer enables slot.found events for the external delivery service.
func (c *Checker) WithProducer(p Producer, topic string) *Checker {
	c.producer = p
	c.topic = topic
	return c
}

func (c *Checker) WithRateLimiter(rl RateLimiter) *Checker {
	c.rl = rl
	return c
}

func (c *Checker) WithErrorThreshold(n int) *Checker {
	if n > 0 {
		c.errorThreshold = int32(n)
	}
	return c
}

// CheckTrackerByID loads and checks one tracker synchronously. Ownership of
// the id must have been verified by the caller.
func (c *Checker) CheckTrackerByID(ctx context.Context, id uint64) (*models.CheckResult, error) {
	tr, err := c.repo.GetTrackerByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(ErrTrackerNotFound, "tracker %d: %v", id, err)
	}
	return c.CheckTracker(ctx, tr)
}

// CheckTracker runs one check. Every fetch/parse failure is absorbed into a
// failed CheckResult; only fail-fast conditions and persistence failures come
// back as errors. next_check_at always advances, so a tracker can never get
// stuck on one bad check.
func (c *Checker) CheckTracker(ctx context.Context, tr *models.Tracker) (*models.CheckResult, error) {
	if tr.Status != models.TrackerStatusActive {
		return nil, errors.Wrapf(ErrTrackerInactive, "tracker %d status %s", tr.ID, tr.Status)
	}

	if tr.DaysRemaining <= 0 {
		if err := c.repo.UpdateTrackerStatus(ctx, tr.ID, models.TrackerStatusExpired); err != nil {
			return nil, errors.Wrap(err, "expire tracker")
		}
		slog.Info("tracker expired, check skipped", "tracker_id", tr.ID)
		return nil, errors.Wrapf(ErrTrackerExpired, "tracker %d", tr.ID)
	}

	started := time.Now().UTC()
	res := c.runCheck(ctx, tr)
	res.TrackerID = tr.ID
	res.CheckedAt = started
	res.CheckDurationMS = time.Since(started).Milliseconds()

	next := nextCheckAt(time.Now().UTC(), tr.CheckIntervalMinutes)

	// Persistence failures break the audit trail; they are the one class that
	// must reach the operator instead of becoming data.
	if err := c.repo.InsertCheckResult(ctx, res); err != nil {
		slog.Error("persist check result", "tracker_id", tr.ID, "error", err.Error())
		_ = c.repo.UpdateTrackerNextCheck(ctx, tr.ID, next)
		return nil, errors.Wrap(err, "insert check result")
	}

	if res.Success {
		if err := c.applySuccess(ctx, tr, res, started); err != nil {
			return nil, err
		}
	} else {
		if err := c.applyFailure(ctx, tr, res, started); err != nil {
			return nil, err
		}
	}

	if err := c.repo.UpdateTrackerNextCheck(ctx, tr.ID, next); err != nil {
		slog.Error("reschedule tracker", "tracker_id", tr.ID, "error", err.Error())
		return nil, errors.Wrap(err, "update next check")
	}

	return res, nil
}

// runCheck is the fetch→parse stage. It never returns an error: any failure,
// including a panicking parser, becomes a failed result.
func (c *Checker) runCheck(ctx context.Context, tr *models.Tracker) (res *models.CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("check panicked", "tracker_id", tr.ID, "panic", fmt.Sprint(r))
			res = failedResult(models.CheckErrorParsing, fmt.Sprintf("check panicked: %v", r), nil)
		}
	}()

	loc, err := c.locations.GetByCode(ctx, tr.LocationCode)
	if err != nil {
		return failedResult(models.CheckErrorParsing, "location config lookup: "+err.Error(), nil)
	}
	if loc == nil {
		return failedResult(models.CheckErrorParsing, "location config not found: "+tr.LocationCode, nil)
	}

	system, err := parse.ParseBookingSystem(loc.BookingSystem)
	if err != nil {
		return failedResult(models.CheckErrorParsing, err.Error(), nil)
	}

	c.throttle(ctx, loc)

	fetcher := c.fetcher
	if loc.RequiresBrowser {
		fetcher = c.browser
	}

	page, err := fetcher.Fetch(ctx, tr.TargetURL)
	if err != nil {
		if f, ok := scrape.AsFailure(err); ok {
			return failedResult(f.Kind, f.Message, f.HTTPStatus)
		}
		return failedResult(models.CheckErrorNetwork, err.Error(), nil)
	}

	slots := parse.StrategyFor(system).Parse(page.Body, parse.PageContext{
		VisaType:     tr.VisaType,
		LocationName: loc.Name,
		TargetURL:    tr.TargetURL,
	})

	status := page.HTTPStatus
	return &models.CheckResult{
		Success:         true,
		SlotsFound:      len(slots) > 0,
		Slots:           slots,
		TotalSlotsCount: len(slots),
		HTTPStatus:      &status,
	}
}

// throttle applies the per-location outbound budget. Exceeding it only slows
// us down; the check still runs.
func (c *Checker) throttle(ctx context.Context, loc *models.LocationConfig) {
	if c.rl == nil || loc.RateLimitPerHour <= 0 {
		return
	}
	key := fmt.Sprintf("rl:location:%s:%s", loc.Code, time.Now().UTC().Format("2006010215"))
	allowed, n, err := c.rl.Allow(ctx, key, int64(loc.RateLimitPerHour), 70*time.Minute)
	if err != nil {
		slog.Warn("rate limiter unavailable", "location", loc.Code, "error", err.Error())
		return
	}
	if !allowed {
		slog.Warn("location rate limit exceeded", "location", loc.Code, "count", n)
		time.Sleep(500 * time.Millisecond)
	}
}

func (c *Checker) applySuccess(ctx context.Context, tr *models.Tracker, res *models.CheckResult, checkedAt time.Time) error {
	if err := c.repo.RecordCheckSuccess(ctx, tr.ID, checkedAt, res.TotalSlotsCount); err != nil {
		slog.Error("record check success", "tracker_id", tr.ID, "error", err.Error())
		return errors.Wrap(err, "record check success")
	}

	if res.SlotsFound {
		matched := FilterSlots(tr, res.Slots)
		if len(matched) > 0 {
			if err := c.enqueueNotifications(ctx, tr, matched, checkedAt); err != nil {
				slog.Error("enqueue notifications", "tracker_id", tr.ID, "error", err.Error())
				return err
			}
		} else {
			slog.Info("slots found but none match preferences", "tracker_id", tr.ID, "slots", res.TotalSlotsCount)
		}
	}
	return nil
}

func (c *Checker) applyFailure(ctx context.Context, tr *models.Tracker, res *models.CheckResult, checkedAt time.Time) error {
	msg := ""
	if res.ErrorMessage != nil {
		msg = *res.ErrorMessage
	}

	streak, err := c.repo.RecordCheckFailure(ctx, tr.ID, checkedAt, msg)
	if err != nil {
		slog.Error("record check failure", "tracker_id", tr.ID, "error", err.Error())
		return errors.Wrap(err, "record check failure")
	}

	if statusAfterFailure(streak, c.errorThreshold) == models.TrackerStatusError {
		if err := c.repo.UpdateTrackerStatus(ctx, tr.ID, models.TrackerStatusError); err != nil {
			return errors.Wrap(err, "update tracker status")
		}
		slog.Warn("tracker auto-paused after consecutive errors",
			"tracker_id", tr.ID, "consecutive_errors", streak)
	}
	return nil
}

func failedResult(errorType, message string, httpStatus *int) *models.CheckResult {
	return &models.CheckResult{
		Success:      false,
		SlotsFound:   false,
		HTTPStatus:   httpStatus,
		ErrorType:    &errorType,
		ErrorMessage: &message,
	}
}
