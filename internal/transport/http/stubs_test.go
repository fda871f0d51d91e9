package http

import (
	"context"
	"sync"

	"github.com/parkwise/reservation-api/internal/app"
	"github.com/parkwise/reservation-api/internal/domain"
)

type stubSpotService struct {
	spots []domain.Spot
	spot  domain.Spot
	err   error

	gotIncludeInactive bool
	gotCreate          app.CreateSpotInput
	gotUpdate          app.UpdateSpotInput
	gotDeleteID        string
}

func (s *stubSpotService) ListSpots(_ context.Context, includeInactive bool) ([]domain.Spot, error) {
	s.gotIncludeInactive = includeInactive
	return s.spots, s.err
}

func (s *stubSpotService) CreateSpot(_ context.Context, in app.CreateSpotInput) (domain.Spot, error) {
	s.gotCreate = in
	return s.spot, s.err
}

func (s *stubSpotService) UpdateSpot(_ context.Context, in app.UpdateSpotInput) (domain.Spot, error) {
	s.gotUpdate = in
	return s.spot, s.err
}

func (s *stubSpotService) DeleteSpot(_ context.Context, id string) error {
	s.gotDeleteID = id
	return s.err
}

type stubReservationService struct {
	reservations []domain.Reservation
	reservation  domain.Reservation
	err          error

	gotAdmit    app.AdmitInput
	gotList     app.ListReservationsInput
	gotCancelID string
	admitCalls  int
}

func (s *stubReservationService) Admit(_ context.Context, in app.AdmitInput) (domain.Reservation, error) {
	s.admitCalls++
	s.gotAdmit = in
	return s.reservation, s.err
}

func (s *stubReservationService) Cancel(_ context.Context, id string) error {
	s.gotCancelID = id
	return s.err
}

func (s *stubReservationService) List(_ context.Context, in app.ListReservationsInput) ([]domain.Reservation, error) {
	s.gotList = in
	return s.reservations, s.err
}

type stubSweeper struct {
	mu       sync.Mutex
	presweep int
	deleted  int64
	err      error
}

func (s *stubSweeper) SweepBestEffort(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presweep++
}

func (s *stubSweeper) SweepNow(context.Context) (int64, error) {
	return s.deleted, s.err
}

func (s *stubSweeper) presweeps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presweep
}

// stubAuth accepts "admin-token" and "user-token".
type stubAuth struct {
	token    app.Token
	loginErr error
	authErr  error

	gotUsername string
	gotPassword string
}

func (s *stubAuth) Login(_ context.Context, username, password string) (app.Token, error) {
	s.gotUsername = username
	s.gotPassword = password
	return s.token, s.loginErr
}

func (s *stubAuth) Authenticate(_ context.Context, token string) (domain.Principal, error) {
	if s.authErr != nil {
		return domain.Principal{}, s.authErr
	}
	switch token {
	case "admin-token":
		return domain.Principal{UserID: "u-admin", Username: "admin", IsAdmin: true}, nil
	case "user-token":
		return domain.Principal{UserID: "u-user", Username: "user"}, nil
	}
	return domain.Principal{}, domain.ErrUnauthorized
}
