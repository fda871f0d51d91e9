package app

import (
	"context"
	"log/slog"

	"github.com/parkwise/reservation-api/internal/clock"
	"github.com/parkwise/reservation-api/internal/domain"
)

// SpotRepository persists spots. The UNIQUE constraint on number is authoritative; CreateSpot and
// UpdateSpot return domain.ErrSpotNumberTaken when it fires.
type SpotRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateSpot(ctx context.Context, spot domain.Spot) (domain.Spot, error)
	GetSpotForUpdate(ctx context.Context, id string) (domain.Spot, error)
	UpdateSpot(ctx context.Context, spot domain.Spot) (domain.Spot, error)
	DeleteSpot(ctx context.Context, id string) error
	ListSpots(ctx context.Context, includeInactive bool) ([]domain.Spot, error)
	SpotNumberExists(ctx context.Context, number, excludeID string) (bool, error)
}

type SpotService struct {
	repo   SpotRepository
	clock  clock.Clock
	logger *slog.Logger
}

type SpotServiceOption func(*SpotService)

func WithSpotLogger(l *slog.Logger) SpotServiceOption {
	return func(s *SpotService) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewSpotService(repo SpotRepository, clk clock.Clock, opts ...SpotServiceOption) *SpotService {
	svc := &SpotService{
		repo:   repo,
		clock:  clk,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// ListSpots returns spots ordered by number. Inactive spots are included only on request.
func (s *SpotService) ListSpots(ctx context.Context, includeInactive bool) ([]domain.Spot, error) {
	return s.repo.ListSpots(ctx, includeInactive)
}

type CreateSpotInput struct {
	Number string `field:"spot_number" validate:"required,max=32"`
	// Active defaults to true when nil.
	Active *bool
}

func (s *SpotService) CreateSpot(ctx context.Context, in CreateSpotInput) (spot domain.Spot, err error) {
	logger := serviceLogger(ctx, s.logger, "SpotService", "CreateSpot", "spot_number", in.Number)
	defer func() {
		if err == nil {
			logger = logger.With("spot_id", spot.ID)
		}
		logOutcome(ctx, logger, err, "spot created")
	}()

	if err = validateInput(in); err != nil {
		return domain.Spot{}, err
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}

	// Fast fail only; a concurrent creator is still caught by the constraint.
	taken, err := s.repo.SpotNumberExists(ctx, in.Number, "")
	if err != nil {
		return domain.Spot{}, err
	}
	if taken {
		return domain.Spot{}, domain.ErrSpotNumberTaken
	}

	return s.repo.CreateSpot(ctx, domain.Spot{
		Number:    in.Number,
		Active:    active,
		CreatedAt: s.clock.Now(),
	})
}

type UpdateSpotInput struct {
	ID     string
	Number *string
	Active *bool
}

// UpdateSpot changes the number and/or active flag of an existing spot.
// Deactivation does not touch reservations that were already admitted.
func (s *SpotService) UpdateSpot(ctx context.Context, in UpdateSpotInput) (spot domain.Spot, err error) {
	logger := serviceLogger(ctx, s.logger, "SpotService", "UpdateSpot", "spot_id", in.ID)
	defer func() { logOutcome(ctx, logger, err, "spot updated") }()

	if in.ID == "" {
		return domain.Spot{}, domain.ErrSpotNotFound
	}
	if in.Number != nil {
		if err = validateSpotNumber(*in.Number); err != nil {
			return domain.Spot{}, err
		}
	}

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		current, err := s.repo.GetSpotForUpdate(txCtx, in.ID)
		if err != nil {
			return err
		}

		updated := current
		if in.Number != nil && *in.Number != current.Number {
			taken, err := s.repo.SpotNumberExists(txCtx, *in.Number, current.ID)
			if err != nil {
				return err
			}
			if taken {
				return domain.ErrSpotNumberTaken
			}
			updated.Number = *in.Number
		}
		if in.Active != nil {
			updated.Active = *in.Active
		}
		if updated == current {
			spot = current
			return nil
		}

		spot, err = s.repo.UpdateSpot(txCtx, updated)
		return err
	})
	if err != nil {
		return domain.Spot{}, err
	}
	return spot, nil
}

// DeleteSpot removes a spot together with its reservations.
func (s *SpotService) DeleteSpot(ctx context.Context, id string) (err error) {
	logger := serviceLogger(ctx, s.logger, "SpotService", "DeleteSpot", "spot_id", id)
	defer func() { logOutcome(ctx, logger, err, "spot deleted") }()

	if id == "" {
		return domain.ErrSpotNotFound
	}
	return s.repo.DeleteSpot(ctx, id)
}

func validateSpotNumber(number string) error {
	return validateInput(struct {
		Number string `field:"spot_number" validate:"required,max=32"`
	}{Number: number})
}
