package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/parkwise/reservation-api/internal/clock"
	"github.com/parkwise/reservation-api/internal/domain"
	"github.com/parkwise/reservation-api/internal/events"
)

// DefaultRetentionGrace is how long a finished reservation is kept before it may be swept.
const DefaultRetentionGrace = 24 * time.Hour

type RetentionRepository interface {
	DeleteReservationsEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper removes reservations whose window ended more than the grace period ago.
// It runs only when called; it owns no goroutines.
type Sweeper struct {
	repo      RetentionRepository
	clock     clock.Clock
	grace     time.Duration
	publisher events.Publisher
	logger    *slog.Logger
}

type SweeperOption func(*Sweeper)

// WithRetentionGrace overrides DefaultRetentionGrace.
func WithRetentionGrace(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.grace = d
		}
	}
}

func WithSweeperPublisher(p events.Publisher) SweeperOption {
	return func(s *Sweeper) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithSweeperLogger(l *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewSweeper(repo RetentionRepository, clk clock.Clock, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		repo:      repo,
		clock:     clk,
		grace:     DefaultRetentionGrace,
		publisher: events.NopPublisher{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Grace returns the configured retention grace period.
func (s *Sweeper) Grace() time.Duration {
	return s.grace
}

// Sweep deletes every reservation with end_time < now - grace and returns how many were removed.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time, grace time.Duration) (int64, error) {
	if grace < 0 {
		return 0, domain.NewValidationError("grace", "must not be negative")
	}
	cutoff := now.UTC().Add(-grace)

	removed, err := s.repo.DeleteReservationsEndedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		serviceLogger(ctx, s.logger, "Sweeper", "Sweep").
			InfoContext(ctx, "expired reservations swept", "removed", removed, "cutoff", cutoff)
		if err := s.publisher.Publish(ctx, events.ReservationsSwept(removed, now)); err != nil {
			s.logger.WarnContext(ctx, "publish event failed", "event_type", string(events.TypeReservationsSwept), "error", err)
		}
	}
	return removed, nil
}

// SweepNow sweeps with the clock's current time and the configured grace.
func (s *Sweeper) SweepNow(ctx context.Context) (int64, error) {
	return s.Sweep(ctx, s.clock.Now(), s.grace)
}

// SweepBestEffort runs SweepNow and only logs a failure; a missed sweep never blocks the caller.
func (s *Sweeper) SweepBestEffort(ctx context.Context) {
	if _, err := s.SweepNow(ctx); err != nil {
		serviceLogger(ctx, s.logger, "Sweeper", "SweepBestEffort").
			WarnContext(ctx, "retention sweep skipped", "error", err, "error_kind", string(domain.KindOf(err)))
	}
}
