package locations

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/terminwatch/terminwatch/internal/cache"
	"github.com/terminwatch/terminwatch/internal/models"
	"github.com/terminwatch/terminwatch/internal/parse"
)

type Repository interface {
	GetLocationConfig(ctx context.Context, code string) (*models.LocationConfig, error)
	ListActiveLocations(ctx context.Context) ([]*models.LocationConfig, error)
	UpsertLocationConfig(ctx context.Context, loc *models.LocationConfig) error
}

// Registry раздаёт конфиги посольств; чтение идёт через кэш,
// потому что один и тот же конфиг нужен каждому чеку этой локации.
type Registry struct {
	repo  Repository
	cache cache.BytesCache
	ttl   time.Duration
}

func New(repo Repository, c cache.BytesCache, ttl time.Duration) *Registry {
	return &Registry{repo: repo, cache: c, ttl: ttl}
}

// GetByCode returns nil for an unknown code, matching the storage layer.
func (r *Registry) GetByCode(ctx context.Context, code string) (*models.LocationConfig, error) {
	if code == "" {
		return nil, errors.New("location code is required")
	}

	if r.cache != nil && r.ttl > 0 {
		b, ok, err := r.cache.Get(ctx, locationKey(code))
		if err == nil && ok {
			var loc models.LocationConfig
			if json.Unmarshal(b, &loc) == nil {
				return &loc, nil
			}
		}
	}

	loc, err := r.repo.GetLocationConfig(ctx, code)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, nil
	}

	if r.cache != nil && r.ttl > 0 {
		b, _ := json.Marshal(loc)
		_ = r.cache.Set(ctx, locationKey(code), b, r.ttl)
	}
	return loc, nil
}

func (r *Registry) List(ctx context.Context) ([]*models.LocationConfig, error) {
	return r.repo.ListActiveLocations(ctx)
}

// Upsert пишет конфиг и сбрасывает кэш, чтобы воркеры не чекали по старому URL.
func (r *Registry) Upsert(ctx context.Context, loc *models.LocationConfig) error {
	if loc == nil || loc.Code == "" {
		return errors.New("location code is required")
	}
	if _, err := parse.ParseBookingSystem(loc.BookingSystem); err != nil {
		return err
	}
	if err := r.repo.UpsertLocationConfig(ctx, loc); err != nil {
		return err
	}
	if r.cache != nil && r.ttl > 0 {
		b, _ := json.Marshal(loc)
		_ = r.cache.Set(ctx, locationKey(loc.Code), b, r.ttl)
	}
	return nil
}

func locationKey(code string) string {
	return fmt.Sprintf("location:%s:config", code)
}
