package trackers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/terminwatch/terminwatch/internal/broker/messages"
	"github.com/terminwatch/terminwatch/internal/models"
	"github.com/terminwatch/terminwatch/internal/storage/pgwatch"
)

type fakeRepo struct {
	byID      map[uint64]*models.Tracker
	nextID    uint64
	userCount int

	statusUpdates map[uint64]string
	refreshed     []uint64
	results       []*models.CheckResult
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		byID:          map[uint64]*models.Tracker{},
		statusUpdates: map[uint64]string{},
	}
}

func (r *fakeRepo) CreateTracker(ctx context.Context, in models.TrackerCreateInput) (*models.Tracker, error) {
	r.nextID++
	tr := &models.Tracker{
		ID:                   r.nextID,
		UserID:               in.UserID,
		Name:                 in.Name,
		Status:               models.TrackerStatusActive,
		LocationCode:         in.LocationCode,
		VisaType:             in.VisaType,
		TargetURL:            in.TargetURL,
		CheckIntervalMinutes: in.CheckIntervalMinutes,
		DaysPurchased:        in.DaysPurchased,
		DaysRemaining:        in.DaysPurchased,
		NextCheckAt:          time.Now().UTC(),
	}
	r.byID[tr.ID] = tr
	return tr, nil
}

func (r *fakeRepo) GetTrackerByID(ctx context.Context, id uint64) (*models.Tracker, error) {
	tr, ok := r.byID[id]
	if !ok {
		return nil, pgwatch.ErrNotFound
	}
	cp := *tr
	return &cp, nil
}

func (r *fakeRepo) CountUserTrackers(ctx context.Context, userID string) (int, error) {
	return r.userCount, nil
}

func (r *fakeRepo) UpdateTrackerStatus(ctx context.Context, id uint64, status string) error {
	r.statusUpdates[id] = status
	if tr, ok := r.byID[id]; ok {
		tr.Status = status
	}
	return nil
}

func (r *fakeRepo) RefreshTracker(ctx context.Context, id uint64) error {
	r.refreshed = append(r.refreshed, id)
	return nil
}

func (r *fakeRepo) ListCheckResults(ctx context.Context, trackerID uint64, limit, offset int) ([]*models.CheckResult, error) {
	return r.results, nil
}

type fakeLocations struct {
	byCode map[string]*models.LocationConfig
}

func (l *fakeLocations) GetByCode(ctx context.Context, code string) (*models.LocationConfig, error) {
	return l.byCode[code], nil
}

type capturingProducer struct {
	topics []string
	keys   [][]byte
	values [][]byte
}

func (p *capturingProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	p.topics = append(p.topics, topic)
	p.keys = append(p.keys, key)
	p.values = append(p.values, value)
	return nil
}

func activeLocations() *fakeLocations {
	return &fakeLocations{byCode: map[string]*models.LocationConfig{
		"berlin-de": {
			Code:          "berlin-de",
			BookingSystem: "termin-online",
			BaseURL:       "https://service2.diplo.de/rktermin",
			IsActive:      true,
		},
	}}
}

func validInput() models.TrackerCreateInput {
	return models.TrackerCreateInput{
		UserID:               "user-1",
		Name:                 "Berlin Schengen",
		LocationCode:         "berlin-de",
		VisaType:             "schengen",
		CheckIntervalMinutes: 15,
		DaysPurchased:        30,
	}
}

func TestService_Create_OK(t *testing.T) {
	repo := newFakeRepo()
	prod := &capturingProducer{}
	svc := New(repo, activeLocations(), models.PlanLimits{MaxTrackers: 3, MinCheckIntervalMinutes: 5}).
		WithProducer(prod, "tracker.events")

	tr, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	require.Equal(t, models.TrackerStatusActive, tr.Status)
	require.Equal(t, "https://service2.diplo.de/rktermin", tr.TargetURL) // из конфига локации

	require.Len(t, prod.topics, 1)
	require.Equal(t, "tracker.events", prod.topics[0])
	var ev messages.TrackerEvent
	require.NoError(t, json.Unmarshal(prod.values[0], &ev))
	require.Equal(t, messages.TrackerEventCreated, ev.Type)
	require.Equal(t, tr.ID, ev.TrackerID)
}

func TestService_Create_RejectsBadInterval(t *testing.T) {
	svc := New(newFakeRepo(), activeLocations(), models.PlanLimits{MaxTrackers: 3, MinCheckIntervalMinutes: 5})

	in := validInput()
	in.CheckIntervalMinutes = 7
	_, err := svc.Create(context.Background(), in)
	require.ErrorIs(t, err, ErrInvalidInterval)

	// Интервал валидный сам по себе, но ниже минимума тарифа.
	in.CheckIntervalMinutes = 1
	_, err = svc.Create(context.Background(), in)
	require.ErrorIs(t, err, ErrInvalidInterval)
}

func TestService_Create_RejectsOverLimit(t *testing.T) {
	repo := newFakeRepo()
	repo.userCount = 3
	svc := New(repo, activeLocations(), models.PlanLimits{MaxTrackers: 3, MinCheckIntervalMinutes: 5})

	_, err := svc.Create(context.Background(), validInput())
	require.ErrorIs(t, err, ErrLimitExceeded)
}

func TestService_Create_RejectsUnknownLocation(t *testing.T) {
	svc := New(newFakeRepo(), activeLocations(), models.PlanLimits{})

	in := validInput()
	in.LocationCode = "atlantis-xx"
	_, err := svc.Create(context.Background(), in)
	require.Error(t, err)
}

func TestService_Create_RejectsInvertedDateRange(t *testing.T) {
	svc := New(newFakeRepo(), activeLocations(), models.PlanLimits{})

	from, to := "2026-10-15", "2026-10-01"
	in := validInput()
	in.PreferredDateFrom = &from
	in.PreferredDateTo = &to
	_, err := svc.Create(context.Background(), in)
	require.Error(t, err)
}

func TestService_Toggle_PauseAndResume(t *testing.T) {
	repo := newFakeRepo()
	prod := &capturingProducer{}
	svc := New(repo, activeLocations(), models.PlanLimits{}).
		WithProducer(prod, "tracker.events")

	tr, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	paused, err := svc.Toggle(context.Background(), tr.ID, "user-1")
	require.NoError(t, err)
	require.Equal(t, models.TrackerStatusPaused, paused.Status)
	require.Empty(t, repo.refreshed)

	resumed, err := svc.Toggle(context.Background(), tr.ID, "user-1")
	require.NoError(t, err)
	require.Equal(t, models.TrackerStatusActive, resumed.Status)
	require.Equal(t, []uint64{tr.ID}, repo.refreshed) // чек сразу, не через старый интервал

	var ev messages.TrackerEvent
	require.NoError(t, json.Unmarshal(prod.values[len(prod.values)-1], &ev))
	require.Equal(t, messages.TrackerEventResumed, ev.Type)
}

func TestService_Toggle_ResumeRejectedWhenDepleted(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, activeLocations(), models.PlanLimits{})

	tr, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	repo.byID[tr.ID].Status = models.TrackerStatusPaused
	repo.byID[tr.ID].DaysRemaining = 0

	_, err = svc.Toggle(context.Background(), tr.ID, "user-1")
	require.ErrorIs(t, err, ErrTrackerExpired)
}

func TestService_Toggle_ExpiredNeverResumes(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, activeLocations(), models.PlanLimits{})

	tr, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	repo.byID[tr.ID].Status = models.TrackerStatusExpired

	_, err = svc.Toggle(context.Background(), tr.ID, "user-1")
	require.ErrorIs(t, err, ErrTrackerExpired)
}

func TestService_Toggle_ErrorStatusResumes(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, activeLocations(), models.PlanLimits{})

	tr, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	repo.byID[tr.ID].Status = models.TrackerStatusError

	resumed, err := svc.Toggle(context.Background(), tr.ID, "user-1")
	require.NoError(t, err)
	require.Equal(t, models.TrackerStatusActive, resumed.Status)
}

func TestService_OwnershipEnforced(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, activeLocations(), models.PlanLimits{})

	tr, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	_, err = svc.GetByID(context.Background(), tr.ID, "someone-else")
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Toggle(context.Background(), tr.ID, "someone-else")
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.ListResults(context.Background(), tr.ID, "someone-else", 10, 0)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestService_GetByID_NotFound(t *testing.T) {
	svc := New(newFakeRepo(), activeLocations(), models.PlanLimits{})

	_, err := svc.GetByID(context.Background(), 999, "user-1")
	require.ErrorIs(t, err, ErrNotFound)
}
