package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/parkwise/reservation-api/internal/clock"
	"github.com/parkwise/reservation-api/internal/domain"
	"github.com/parkwise/reservation-api/internal/events"
)

// ReservationRepository is the store surface needed for admission.
// GetSpotForUpdate must serialize concurrent callers for the same spot until the surrounding
// transaction ends.
type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetSpotForUpdate(ctx context.Context, spotID string) (domain.Spot, error)
	FindOverlapping(ctx context.Context, spotID string, window domain.Window) (*domain.Reservation, error)
	CreateReservation(ctx context.Context, r domain.Reservation) (domain.Reservation, error)
	DeleteReservation(ctx context.Context, id string) (domain.Reservation, error)
	ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]domain.Reservation, error)
}

type ReservationService struct {
	repo      ReservationRepository
	clock     clock.Clock
	publisher events.Publisher
	logger    *slog.Logger
}

type ReservationServiceOption func(*ReservationService)

// WithReservationPublisher publishes admitted and cancelled reservations after commit.
func WithReservationPublisher(p events.Publisher) ReservationServiceOption {
	return func(s *ReservationService) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithReservationLogger overrides the default logger.
func WithReservationLogger(l *slog.Logger) ReservationServiceOption {
	return func(s *ReservationService) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewReservationService(repo ReservationRepository, clk clock.Clock, opts ...ReservationServiceOption) *ReservationService {
	svc := &ReservationService{
		repo:      repo,
		clock:     clk,
		publisher: events.NopPublisher{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type AdmitInput struct {
	SpotID     string    `field:"spot_id" validate:"required"`
	HolderName string    `field:"name" validate:"required,max=64"`
	Household  string    `field:"household" validate:"required,max=64"`
	Phone      string    `field:"phone" validate:"required,max=32"`
	StartTime  time.Time `field:"start_time"`
	EndTime    time.Time `field:"end_time"`
}

// Admit validates in and atomically persists it unless it overlaps an existing reservation
// for the same spot.
func (s *ReservationService) Admit(ctx context.Context, in AdmitInput) (res domain.Reservation, err error) {
	logger := serviceLogger(ctx, s.logger, "ReservationService", "Admit", "spot_id", in.SpotID)
	defer func() {
		if err == nil {
			logger = logger.With("reservation_id", res.ID)
		}
		logOutcome(ctx, logger, err, "reservation admitted")
	}()

	// Stores keep microseconds; validate the window as it will be persisted.
	in.StartTime = in.StartTime.Truncate(time.Microsecond)
	in.EndTime = in.EndTime.Truncate(time.Microsecond)
	if err = validateAdmission(in); err != nil {
		return domain.Reservation{}, err
	}

	window := domain.Window{Start: in.StartTime.UTC(), End: in.EndTime.UTC()}
	now := s.clock.Now()

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		spot, err := s.repo.GetSpotForUpdate(txCtx, in.SpotID)
		if err != nil {
			return err
		}
		if !spot.Active {
			return domain.ErrSpotInactive
		}

		existing, err := s.repo.FindOverlapping(txCtx, spot.ID, window)
		if err != nil {
			return err
		}
		if existing != nil {
			return &domain.OverlapError{Conflict: existing}
		}

		created, err := s.repo.CreateReservation(txCtx, domain.Reservation{
			SpotID:     spot.ID,
			HolderName: in.HolderName,
			Household:  in.Household,
			Phone:      in.Phone,
			StartTime:  window.Start,
			EndTime:    window.End,
			CreatedAt:  now,
		})
		if err != nil {
			// The store guard caught an overlap the lock should have prevented.
			if errors.Is(err, domain.ErrOverlap) {
				var overlapErr *domain.OverlapError
				if errors.As(err, &overlapErr) {
					return overlapErr
				}
				return &domain.OverlapError{}
			}
			return err
		}
		res = created
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	s.publish(ctx, logger, events.ReservationAdmitted(res, now))
	return res, nil
}

func validateAdmission(in AdmitInput) error {
	if err := validateInput(in); err != nil {
		return err
	}
	if in.StartTime.IsZero() {
		return domain.NewValidationError("start_time", "is required")
	}
	if in.EndTime.IsZero() {
		return domain.NewValidationError("end_time", "is required")
	}
	if !in.EndTime.After(in.StartTime) {
		return domain.ErrInvalidWindow
	}
	return nil
}

// Cancel deletes a reservation. Callers must have checked the principal is an administrator.
func (s *ReservationService) Cancel(ctx context.Context, reservationID string) (err error) {
	logger := serviceLogger(ctx, s.logger, "ReservationService", "Cancel", "reservation_id", reservationID)
	defer func() { logOutcome(ctx, logger, err, "reservation cancelled") }()

	if reservationID == "" {
		return domain.ErrReservationNotFound
	}

	var removed domain.Reservation
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		removed, err = s.repo.DeleteReservation(txCtx, reservationID)
		return err
	})
	if err != nil {
		return err
	}

	s.publish(ctx, logger, events.ReservationCancelled(removed, s.clock.Now()))
	return nil
}

type ListReservationsInput struct {
	SpotID string
}

// List returns reservations ordered by start time, optionally for a single spot.
func (s *ReservationService) List(ctx context.Context, in ListReservationsInput) ([]domain.Reservation, error) {
	items, err := s.repo.ListReservations(ctx, domain.ReservationFilter{SpotID: in.SpotID})
	if err != nil {
		serviceLogger(ctx, s.logger, "ReservationService", "List", "spot_id", in.SpotID).
			ErrorContext(ctx, "list reservations failed", "error", err, "error_kind", string(domain.KindOf(err)))
		return nil, err
	}
	return items, nil
}

func (s *ReservationService) publish(ctx context.Context, logger *slog.Logger, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.WarnContext(ctx, "publish event failed", "event_type", string(event.Type), "error", err)
	}
}
