package trackers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/terminwatch/terminwatch/internal/broker/messages"
	"github.com/terminwatch/terminwatch/internal/cache"
	"github.com/terminwatch/terminwatch/internal/models"
	"github.com/terminwatch/terminwatch/internal/storage/pgwatch"
)

var (
	ErrNotFound        = errors.New("tracker not found")
	ErrForbidden       = errors.New("tracker belongs to another user")
	ErrTrackerExpired  = errors.New("tracker is expired")
	ErrLimitExceeded   = errors.New("tracker limit reached for plan")
	ErrInvalidInterval = errors.New("check interval is not allowed")
)

type Repository interface {
	CreateTracker(ctx context.Context, in models.TrackerCreateInput) (*models.Tracker, error)
	GetTrackerByID(ctx context.Context, id uint64) (*models.Tracker, error)
	CountUserTrackers(ctx context.Context, userID string) (int, error)
	UpdateTrackerStatus(ctx context.Context, id uint64, status string) error
	RefreshTracker(ctx context.Context, id uint64) error
	ListCheckResults(ctx context.Context, trackerID uint64, limit, offset int) ([]*models.CheckResult, error)
}

type LocationSource interface {
	GetByCode(ctx context.Context, code string) (*models.LocationConfig, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Service owns the tracker lifecycle: create, pause/resume, history reads.
// Воркер трогает трекеры только через своё claim/record API, не через сервис.
type Service struct {
	repo      Repository
	locations LocationSource
	cache     cache.BytesCache
	ttl       time.Duration

	producer Producer
	topic    string

	limits models.PlanLimits
}

func New(repo Repository, locations LocationSource, limits models.PlanLimits) *Service {
	if limits.MaxTrackers <= 0 {
		limits.MaxTrackers = 3
	}
	if limits.MinCheckIntervalMinutes <= 0 {
		limits.MinCheckIntervalMinutes = 5
	}
	return &Service{repo: repo, locations: locations, limits: limits}
}

func (s *Service) WithCache(c cache.BytesCache, ttl time.Duration) *Service {
	s.cache = c
	s.ttl = ttl
	return s
}

func (s *Service) WithProducer(p Producer, topic string) *Service {
	s.producer = p
	s.topic = topic
	return s
}

func (s *Service) Create(ctx context.Context, in models.TrackerCreateInput) (*models.Tracker, error) {
	if in.UserID == "" {
		return nil, errors.New("userId is required")
	}
	if in.LocationCode == "" {
		return nil, errors.New("locationCode is required")
	}
	if in.VisaType == "" {
		return nil, errors.New("visaType is required")
	}
	if in.DaysPurchased <= 0 {
		return nil, errors.New("daysPurchased must be positive")
	}
	if !models.ValidCheckInterval(in.CheckIntervalMinutes) {
		return nil, ErrInvalidInterval
	}
	if in.CheckIntervalMinutes < s.limits.MinCheckIntervalMinutes {
		return nil, errors.Wrapf(ErrInvalidInterval, "plan minimum is %d minutes", s.limits.MinCheckIntervalMinutes)
	}
	if in.PreferredDateFrom != nil && in.PreferredDateTo != nil && *in.PreferredDateFrom > *in.PreferredDateTo {
		return nil, errors.New("preferredDateFrom is after preferredDateTo")
	}

	loc, err := s.locations.GetByCode(ctx, in.LocationCode)
	if err != nil {
		return nil, err
	}
	if loc == nil || !loc.IsActive {
		return nil, errors.Errorf("unknown or inactive location: %s", in.LocationCode)
	}
	if in.TargetURL == "" {
		in.TargetURL = loc.BaseURL
	}

	n, err := s.repo.CountUserTrackers(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if n >= s.limits.MaxTrackers {
		return nil, ErrLimitExceeded
	}

	tr, err := s.repo.CreateTracker(ctx, in)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, messages.TrackerEventCreated, tr.ID)
	s.cacheSet(ctx, tr)
	return tr, nil
}

func (s *Service) GetByID(ctx context.Context, id uint64, userID string) (*models.Tracker, error) {
	tr, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID != "" && tr.UserID != userID {
		return nil, ErrForbidden
	}
	return tr, nil
}

// Toggle flips active<->paused. Resume puts the tracker back in line
// immediately instead of waiting out the old interval.
func (s *Service) Toggle(ctx context.Context, id uint64, userID string) (*models.Tracker, error) {
	tr, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID != "" && tr.UserID != userID {
		return nil, ErrForbidden
	}

	switch tr.Status {
	case models.TrackerStatusActive:
		if err := s.repo.UpdateTrackerStatus(ctx, id, models.TrackerStatusPaused); err != nil {
			return nil, err
		}
		tr.Status = models.TrackerStatusPaused
	case models.TrackerStatusPaused, models.TrackerStatusError:
		if tr.DaysRemaining <= 0 {
			return nil, ErrTrackerExpired
		}
		if err := s.repo.UpdateTrackerStatus(ctx, id, models.TrackerStatusActive); err != nil {
			return nil, err
		}
		if err := s.repo.RefreshTracker(ctx, id); err != nil {
			return nil, err
		}
		tr.Status = models.TrackerStatusActive
		tr.NextCheckAt = time.Now().UTC()
		s.publishEvent(ctx, messages.TrackerEventResumed, id)
	case models.TrackerStatusExpired:
		return nil, ErrTrackerExpired
	default:
		return nil, errors.Errorf("unexpected tracker status: %s", tr.Status)
	}

	s.cacheSet(ctx, tr)
	return tr, nil
}

func (s *Service) ListResults(ctx context.Context, id uint64, userID string, limit, offset int) ([]*models.CheckResult, error) {
	tr, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID != "" && tr.UserID != userID {
		return nil, ErrForbidden
	}
	return s.repo.ListCheckResults(ctx, id, limit, offset)
}

func (s *Service) load(ctx context.Context, id uint64) (*models.Tracker, error) {
	if id == 0 {
		return nil, ErrNotFound
	}

	if s.cache != nil && s.ttl > 0 {
		b, ok, err := s.cache.Get(ctx, trackerKey(id))
		if err == nil && ok {
			var tr models.Tracker
			if json.Unmarshal(b, &tr) == nil {
				return &tr, nil
			}
		}
	}

	tr, err := s.repo.GetTrackerByID(ctx, id)
	if errors.Is(err, pgwatch.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, tr)
	return tr, nil
}

func (s *Service) cacheSet(ctx context.Context, tr *models.Tracker) {
	if s.cache == nil || s.ttl <= 0 || tr == nil {
		return
	}
	b, _ := json.Marshal(tr)
	_ = s.cache.Set(ctx, trackerKey(tr.ID), b, s.ttl)
}

func (s *Service) publishEvent(ctx context.Context, eventType string, id uint64) {
	if s.producer == nil || s.topic == "" {
		return
	}
	ev := messages.TrackerEvent{
		Type:       eventType,
		TrackerID:  id,
		OccurredAt: time.Now().UTC(),
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.producer.Publish(ctx, s.topic, []byte(strconv.FormatUint(id, 10)), b); err != nil {
		// Событие только ускоряет первый чек, терять его не страшно.
		slog.Warn("publish tracker event failed", "tracker_id", id, "type", eventType, "error", err.Error())
	}
}

func trackerKey(id uint64) string {
	return fmt.Sprintf("tracker:%d:current", id)
}
