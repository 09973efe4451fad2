package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Domenick1991/flightdesk/config"
	"github.com/Domenick1991/flightdesk/internal/domain"
	"github.com/Domenick1991/flightdesk/internal/service/booking"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Candidates lists paid bookings whose ticket has not been issued yet.
type Candidates interface {
	ListIssuanceCandidates(ctx context.Context, limit int) ([]domain.Booking, error)
}

type Issuer interface {
	RetryIssuance(ctx context.Context, id string, trigger booking.Trigger) (*domain.Booking, error)
}

type Options struct {
	Interval    time.Duration
	Batch       int
	Parallelism int
}

func OptionsFromConfig(cfg config.WorkerConfig) Options {
	return Options{
		Interval:    time.Duration(cfg.MonitorIntervalSeconds) * time.Second,
		Batch:       cfg.MonitorBatch,
		Parallelism: cfg.MonitorParallelism,
	}
}

// Stats summarizes one sweep.
type Stats struct {
	Checked int
	Issued  int
	Failed  int
	Errors  int
}

// Monitor periodically retries issuance for paid bookings that did not get a ticket.
type Monitor struct {
	candidates Candidates
	issuer     Issuer
	opts       Options
	log        *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool
}

func New(candidates Candidates, issuer Issuer, opts Options, log *zap.Logger) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.Batch <= 0 {
		opts.Batch = 10
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	return &Monitor{
		candidates: candidates,
		issuer:     issuer,
		opts:       opts,
		log:        log.With(zap.String("service", "issuance_monitor")),
	}
}

var ErrAlreadyRunning = errors.New("monitor already running")

// Start launches the sweep loop. The first sweep runs immediately.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running.Store(true)

	go m.loop(loopCtx, m.done)
	m.log.Info("issuance monitor started", zap.Duration("interval", m.opts.Interval), zap.Int("batch", m.opts.Batch))
	return nil
}

// Stop cancels the loop and waits for the in-flight sweep, bounded by ctx.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		m.log.Info("issuance monitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) Running() bool {
	return m.running.Load()
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer m.running.Store(false)

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		if _, err := m.Sweep(ctx); err != nil && ctx.Err() == nil {
			m.log.Error("issuance sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep runs one pass over the current candidates.
func (m *Monitor) Sweep(ctx context.Context) (Stats, error) {
	candidates, err := m.candidates.ListIssuanceCandidates(ctx, m.opts.Batch)
	if err != nil {
		return Stats{}, err
	}
	if len(candidates) == 0 {
		return Stats{}, nil
	}

	var (
		mu    sync.Mutex
		stats = Stats{Checked: len(candidates)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Parallelism)

	for _, c := range candidates {
		id := c.ID
		g.Go(func() error {
			b, err := m.issuer.RetryIssuance(gctx, id, booking.TriggerMonitor)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case b != nil && b.SupplierStatus == domain.SupplierStatusIssued:
				stats.Issued++
			case b != nil && b.SupplierStatus == domain.SupplierStatusFailed:
				stats.Failed++
			}
			if err != nil {
				stats.Errors++
				m.log.Warn("issuance retry failed", zap.String("booking_id", id), zap.Error(err))
			}
			// One booking's failure never stops the rest of the batch.
			return nil
		})
	}
	_ = g.Wait()

	m.log.Info("issuance sweep finished",
		zap.Int("checked", stats.Checked),
		zap.Int("issued", stats.Issued),
		zap.Int("failed", stats.Failed),
		zap.Int("errors", stats.Errors),
	)
	return stats, nil
}
