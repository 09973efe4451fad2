package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/flightdesk/config"
	"github.com/Domenick1991/flightdesk/internal/cache"
	"github.com/Domenick1991/flightdesk/internal/kafka"
	"github.com/Domenick1991/flightdesk/internal/normalize"
	"github.com/Domenick1991/flightdesk/internal/repository"
	"github.com/Domenick1991/flightdesk/internal/service/booking"
	"github.com/Domenick1991/flightdesk/internal/service/search"
	"github.com/Domenick1991/flightdesk/internal/service/webhook"
	"github.com/Domenick1991/flightdesk/internal/supplier"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Deps holds the infrastructure shared by the app and the worker.
type Deps struct {
	Bookings  repository.BookingRepository
	Locker    booking.Locker
	Snapshots search.SnapshotStore
	Dedupe    webhook.Deduper
	Producer  booking.Producer
	Supplier  *supplier.Client
	Enabled   func() bool

	closers []func()
}

// NewDeps connects the configured backends. Postgres, Redis and Kafka are each
// optional: without them the in-process implementations are used.
func NewDeps(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Deps, error) {
	d := &Deps{Enabled: cfg.IntegrationEnabled()}

	switch cfg.Database.Driver {
	case "memory":
		log.Warn("using in-memory booking store")
		d.Bookings = repository.NewMemoryBookingRepository()
	default:
		pool, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		d.closers = append(d.closers, pool.Close)
		d.Bookings = repository.NewBookingRepository(pool)
	}

	lockWait := time.Duration(cfg.Booking.LockWaitMillis) * time.Millisecond
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Search.SnapshotTTLMinutes)*time.Minute, lockWait)
		if err := redisCache.Ping(ctx); err != nil {
			d.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		d.closers = append(d.closers, func() { _ = redisCache.Close() })
		d.Locker, d.Snapshots, d.Dedupe = redisCache, redisCache, redisCache
	} else {
		log.Warn("redis not configured, locks and search snapshots are process-local")
		d.Locker = cache.NewLocalLocker(lockWait)
		d.Snapshots = cache.NewMemorySnapshots()
		d.Dedupe = cache.NewMemoryDedupe()
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
		if err := producer.CheckConnection(ctx); err != nil {
			log.Warn("kafka unreachable, notifications will be retried by the writer", zap.Error(err))
		}
		d.closers = append(d.closers, func() { _ = producer.Close() })
		d.Producer = producer
	} else {
		log.Warn("kafka brokers not configured, notifications are disabled")
	}

	d.Supplier = supplier.NewClient(cfg.Supplier.BaseURL, cfg.Supplier.Token, log,
		supplier.WithTimeouts(supplier.TimeoutsFromConfig(cfg.Supplier)),
		supplier.WithRateLimit(time.Duration(cfg.Supplier.RateLimitMillis)*time.Millisecond),
	)
	return d, nil
}

func (d *Deps) BookingService(cfg *config.Config, log *zap.Logger) *booking.BookingService {
	return booking.NewBookingService(d.Bookings, d.Supplier, d.Locker, d.Producer, log,
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		booking.WithIntegrationToggle(d.Enabled),
		booking.WithHoldTTL(time.Duration(cfg.Booking.HoldTTLMinutes)*time.Minute),
		booking.WithLockTTL(time.Duration(cfg.Booking.LockTTLSeconds)*time.Second),
		booking.WithMaxIssueAttempts(cfg.Booking.MaxIssueAttempts),
	)
}

func (d *Deps) SearchService(cfg *config.Config, log *zap.Logger) *search.Service {
	normalizer := normalize.New(cfg.Normalize.ChildRatio, cfg.Normalize.InfantRatio)
	agg := search.NewAggregator(d.Supplier, normalizer, search.PolicyFromConfig(cfg.Search), log)
	return search.NewService(agg, d.Snapshots, d.Enabled, log)
}

// Close releases backends in reverse order of acquisition.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}
