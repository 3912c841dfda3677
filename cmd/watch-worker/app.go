package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/terminwatch/terminwatch/config"
	"github.com/terminwatch/terminwatch/internal/broker/kafka"
	"github.com/terminwatch/terminwatch/internal/broker/messages"
	"github.com/terminwatch/terminwatch/internal/cache"
	"github.com/terminwatch/terminwatch/internal/cache/rediscache"
	"github.com/terminwatch/terminwatch/internal/models"
	"github.com/terminwatch/terminwatch/internal/scrape"
	"github.com/terminwatch/terminwatch/internal/scrape/browserfetch"
	"github.com/terminwatch/terminwatch/internal/scrape/fake"
	"github.com/terminwatch/terminwatch/internal/scrape/httpfetch"
	"github.com/terminwatch/terminwatch/internal/services/checker"
	"github.com/terminwatch/terminwatch/internal/services/locations"
	"github.com/terminwatch/terminwatch/internal/services/trackers"
	"github.com/terminwatch/terminwatch/internal/storage/pgwatch"
)

// watchStorage is everything the worker needs from the store; *pgwatch.Storage
// implements it.
type watchStorage interface {
	checker.Repository
	checker.SchedulerRepository
	trackers.Repository
	locations.Repository
}

type eventConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
	Close() error
}

type workerFactories struct {
	newStorage     func(cfg *config.Config) (st watchStorage, closeFn func(), err error)
	newProducer    func(cfg *config.Config) checker.Producer
	newConsumer    func(cfg *config.Config) eventConsumer
	newRateLimiter func(cfg *config.Config) checker.RateLimiter
	newCache       func(cfg *config.Config) cache.BytesCache
	newFetcher     func(cfg *config.Config) (main, browser scrape.Fetcher)
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (watchStorage, func(), error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := pgwatch.New(connString)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) checker.Producer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newConsumer: func(cfg *config.Config) eventConsumer {
			if cfg.TerminWatch.KafkaConsumerGroup == "" {
				return nil
			}
			topic := cfg.Kafka.TrackerEventsTopicName
			if topic == "" {
				topic = "tracker.events"
			}
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewConsumer(brokers, topic, cfg.TerminWatch.KafkaConsumerGroup)
		},
		newRateLimiter: func(cfg *config.Config) checker.RateLimiter {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
		newCache: func(cfg *config.Config) cache.BytesCache {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.New(redisAddr)
		},
		newFetcher: func(cfg *config.Config) (scrape.Fetcher, scrape.Fetcher) {
			// Для демо без реальных посольств используем fake-страницы.
			if cfg.TerminWatch.FetcherMode == "fake" {
				return fake.New(), browserfetch.New()
			}
			timeout := time.Duration(cfg.TerminWatch.FetchTimeoutSeconds) * time.Second
			if timeout <= 0 {
				timeout = 15 * time.Second
			}
			return httpfetch.New(timeout, cfg.TerminWatch.FetchUserAgent), browserfetch.New()
		},
	}
}

func RunWatchWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	slotTopic := cfg.Kafka.SlotFoundTopicName
	if slotTopic == "" {
		slotTopic = "slot.found"
	}
	eventsTopic := cfg.Kafka.TrackerEventsTopicName
	if eventsTopic == "" {
		eventsTopic = "tracker.events"
	}

	pollInterval := time.Duration(cfg.TerminWatch.WorkerPollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	batchSize := cfg.TerminWatch.WorkerBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	concurrency := cfg.TerminWatch.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	lease := time.Duration(cfg.TerminWatch.WorkerLeaseSeconds) * time.Second
	if lease <= 0 {
		lease = 120 * time.Second
	}
	cacheTTL := time.Duration(cfg.TerminWatch.CacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	st, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	producer := f.newProducer(cfg)
	rl := f.newRateLimiter(cfg)
	var bc cache.BytesCache
	if f.newCache != nil {
		bc = f.newCache(cfg)
	}
	fetcher, browser := f.newFetcher(cfg)

	registry := locations.New(st, bc, cacheTTL)

	chk := checker.New(st, registry, fetcher, browser).
		WithProducer(producer, slotTopic).
		WithRateLimiter(rl).
		WithErrorThreshold(cfg.TerminWatch.ErrorThreshold)

	sched := checker.NewScheduler(st, chk).
		WithSettings(pollInterval, batchSize, concurrency, lease)

	limits := models.PlanLimits{
		MaxTrackers:             cfg.TerminWatch.MaxTrackersPerUser,
		MinCheckIntervalMinutes: cfg.TerminWatch.MinCheckIntervalMinutes,
	}
	trackersSvc := trackers.New(st, registry, limits).
		WithCache(bc, cacheTTL).
		WithProducer(producer, eventsTopic)

	if f.newConsumer != nil {
		if consumer := f.newConsumer(cfg); consumer != nil {
			go runEventConsumer(ctx, consumer, sched)
		}
	}

	if cfg.TerminWatch.HTTPAddr != "" {
		swaggerPath := os.Getenv("swaggerPath")
		if swaggerPath == "" {
			swaggerPath = "docs/swagger.json"
		}
		go func() {
			err := runWorkerHTTPServer(ctx, workerHTTPOpts{
				httpAddr:    cfg.TerminWatch.HTTPAddr,
				swaggerPath: swaggerPath,
				scheduler:   sched,
				checker:     chk,
				trackers:    trackersSvc,
				locations:   registry,
				cronSecret:  cfg.TerminWatch.CronSecret,
				cfg:         cfg,
			})
			if err != nil && ctx.Err() == nil {
				slog.Error("worker http server", "error", err.Error())
			}
		}()
	}

	return sched.Run(ctx)
}

// runEventConsumer слушает tracker.events и дёргает внеплановый проход,
// чтобы новый или возобновлённый трекер чекался сразу.
func runEventConsumer(ctx context.Context, consumer eventConsumer, sched *checker.Scheduler) {
	defer func() { _ = consumer.Close() }()

	err := consumer.Consume(ctx, func(key, value []byte) error {
		var ev messages.TrackerEvent
		if err := json.Unmarshal(value, &ev); err != nil {
			slog.Warn("skip malformed tracker event", "error", err.Error())
			return nil
		}
		switch ev.Type {
		case messages.TrackerEventCreated, messages.TrackerEventResumed:
			sched.Trigger()
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		slog.Error("tracker events consumer stopped", "error", err.Error())
	}
}
