package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/parkwise/reservation-api/internal/domain"
	"github.com/parkwise/reservation-api/internal/events"
)

// fakeStore is an in-memory stand-in for the relational store. WithTx serializes whole
// transactions and restores the previous state when fn fails.
type fakeStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	spots        map[string]domain.Spot
	reservations map[string]domain.Reservation
	users        map[string]domain.User
	seq          int

	// skipOverlapCheck makes FindOverlapping report nothing so the insert guard is exercised.
	skipOverlapCheck bool
	createErr        error
	listErr          error
	sweepErr         error
	sweepCutoffs     []time.Time
}

func newFakeStore(spots ...domain.Spot) *fakeStore {
	s := &fakeStore{
		spots:        map[string]domain.Spot{},
		reservations: map[string]domain.Reservation{},
		users:        map[string]domain.User{},
	}
	for _, spot := range spots {
		s.spots[spot.ID] = spot
	}
	return s
}

func (s *fakeStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	spots := cloneMap(s.spots)
	reservations := cloneMap(s.reservations)
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.spots = spots
		s.reservations = reservations
		s.mu.Unlock()
		return err
	}
	return nil
}

func cloneMap[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *fakeStore) GetSpotForUpdate(_ context.Context, id string) (domain.Spot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	spot, ok := s.spots[id]
	if !ok {
		return domain.Spot{}, domain.ErrSpotNotFound
	}
	return spot, nil
}

func (s *fakeStore) FindOverlapping(_ context.Context, spotID string, window domain.Window) (*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.skipOverlapCheck {
		return nil, nil
	}
	return s.firstOverlapLocked(spotID, window), nil
}

func (s *fakeStore) firstOverlapLocked(spotID string, window domain.Window) *domain.Reservation {
	var found *domain.Reservation
	for _, r := range s.reservations {
		if r.SpotID != spotID || !window.Overlaps(r.Window()) {
			continue
		}
		if found == nil || r.StartTime.Before(found.StartTime) {
			match := r
			found = &match
		}
	}
	return found
}

func (s *fakeStore) CreateReservation(_ context.Context, r domain.Reservation) (domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return domain.Reservation{}, s.createErr
	}
	if _, ok := s.spots[r.SpotID]; !ok {
		return domain.Reservation{}, domain.ErrSpotNotFound
	}
	if conflict := s.firstOverlapLocked(r.SpotID, r.Window()); conflict != nil {
		return domain.Reservation{}, &domain.OverlapError{Conflict: conflict}
	}
	r.ID = s.nextID("res")
	s.reservations[r.ID] = r
	return r, nil
}

func (s *fakeStore) DeleteReservation(_ context.Context, id string) (domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	delete(s.reservations, id)
	return r, nil
}

func (s *fakeStore) ListReservations(_ context.Context, filter domain.ReservationFilter) ([]domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	items := make([]domain.Reservation, 0, len(s.reservations))
	for _, r := range s.reservations {
		if filter.SpotID != "" && r.SpotID != filter.SpotID {
			continue
		}
		items = append(items, r)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].StartTime.Equal(items[j].StartTime) {
			return items[i].ID < items[j].ID
		}
		return items[i].StartTime.Before(items[j].StartTime)
	})
	return items, nil
}

func (s *fakeStore) DeleteReservationsEndedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepCutoffs = append(s.sweepCutoffs, cutoff)
	if s.sweepErr != nil {
		return 0, s.sweepErr
	}
	var removed int64
	for id, r := range s.reservations {
		if r.EndTime.Before(cutoff) {
			delete(s.reservations, id)
			removed++
		}
	}
	return removed, nil
}

func (s *fakeStore) CreateSpot(_ context.Context, spot domain.Spot) (domain.Spot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.numberTakenLocked(spot.Number, "") {
		return domain.Spot{}, domain.ErrSpotNumberTaken
	}
	spot.ID = s.nextID("spot")
	s.spots[spot.ID] = spot
	return spot, nil
}

func (s *fakeStore) UpdateSpot(_ context.Context, spot domain.Spot) (domain.Spot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.spots[spot.ID]; !ok {
		return domain.Spot{}, domain.ErrSpotNotFound
	}
	if s.numberTakenLocked(spot.Number, spot.ID) {
		return domain.Spot{}, domain.ErrSpotNumberTaken
	}
	s.spots[spot.ID] = spot
	return spot, nil
}

func (s *fakeStore) DeleteSpot(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.spots[id]; !ok {
		return domain.ErrSpotNotFound
	}
	delete(s.spots, id)
	for rid, r := range s.reservations {
		if r.SpotID == id {
			delete(s.reservations, rid)
		}
	}
	return nil
}

func (s *fakeStore) ListSpots(_ context.Context, includeInactive bool) ([]domain.Spot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]domain.Spot, 0, len(s.spots))
	for _, spot := range s.spots {
		if !includeInactive && !spot.Active {
			continue
		}
		items = append(items, spot)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Number < items[j].Number })
	return items, nil
}

func (s *fakeStore) SpotNumberExists(_ context.Context, number, excludeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numberTakenLocked(number, excludeID), nil
}

func (s *fakeStore) numberTakenLocked(number, excludeID string) bool {
	for _, spot := range s.spots {
		if spot.Number == number && spot.ID != excludeID {
			return true
		}
	}
	return false
}

func (s *fakeStore) CreateUserIfAbsent(_ context.Context, user domain.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == user.Username {
			return false, nil
		}
	}
	user.ID = s.nextID("user")
	s.users[user.ID] = user
	return true, nil
}

func (s *fakeStore) GetUserByUsername(_ context.Context, username string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (s *fakeStore) GetUser(_ context.Context, id string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *fakeStore) setUserActive(username string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range s.users {
		if u.Username == username {
			u.IsActive = active
			s.users[id] = u
		}
	}
}

func (s *fakeStore) reservationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reservations)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) published() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

var errStoreDown = errors.New("connection refused")
