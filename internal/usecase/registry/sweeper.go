package registry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/contextwizard/wizardd/internal/domain"
	"github.com/contextwizard/wizardd/internal/store"
)

// DefaultSweepInterval is how often the sweeper polls for lapsed
// annotations. It should be materially smaller than the decision TTL so an
// expired record is detected at most one interval late.
const DefaultSweepInterval = 60 * time.Second

// DefaultSweepItemTimeout bounds the store and platform calls made for a
// single expired record.
const DefaultSweepItemTimeout = 30 * time.Second

// Sweeper periodically discovers annotations whose decision window has
// lapsed and retires them through the registry's expire path.
type Sweeper struct {
	store    store.PendingStore
	registry *Registry
	log      *zap.Logger

	interval    time.Duration
	itemTimeout time.Duration
	now         func() time.Time
}

// SweeperOption customizes a Sweeper.
type SweeperOption func(*Sweeper)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithItemTimeout bounds the work done per expired record.
func WithItemTimeout(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.itemTimeout = d
		}
	}
}

// WithSweepClock injects the time source, so tests advance virtual time
// instead of waiting on a real timer.
func WithSweepClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.now = now }
}

// NewSweeper creates a sweeper over the given store and registry.
func NewSweeper(st store.PendingStore, reg *Registry, log *zap.Logger, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		store:       st,
		registry:    reg,
		log:         log,
		interval:    DefaultSweepInterval,
		itemTimeout: DefaultSweepItemTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run polls on a fixed interval until the context is cancelled. A tick that
// fails is logged and retried on the next tick; the loop itself never stops
// on error.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("expiry sweeper started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.log.Error("sweep tick failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce runs a single sweep: list everything expired as of now, then
// retire each record. A record that a human resolves between the listing
// and our delete is a benign race handled inside the registry.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	now := s.now()

	expired, err := s.store.ListExpired(ctx, now)
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return nil
	}

	s.log.Info("sweeping expired annotations",
		zap.Int("count", len(expired)),
		zap.Time("as_of", now))

	for _, rec := range expired {
		s.retireOne(ctx, rec)
	}
	return nil
}

// retireOne expires a single record under its own timeout so one stuck
// platform call cannot stall the whole sweep.
func (s *Sweeper) retireOne(ctx context.Context, rec domain.PendingAnnotation) {
	itemCtx, cancel := context.WithTimeout(ctx, s.itemTimeout)
	defer cancel()

	if err := s.registry.Expire(itemCtx, rec); err != nil {
		s.log.Warn("failed to retire expired annotation, will retry next sweep",
			zap.String("code", rec.Code),
			zap.Error(err))
	}
}
