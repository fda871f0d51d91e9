package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkwise/reservation-api/internal/app"
	"github.com/parkwise/reservation-api/internal/clock"
	"github.com/parkwise/reservation-api/internal/domain"
	"github.com/parkwise/reservation-api/internal/logging"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parking.db")
	db, err := Open(context.Background(), path, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func mustCreateSpot(t *testing.T, repo *SpotRepository, number string, active bool) domain.Spot {
	t.Helper()
	spot, err := repo.CreateSpot(context.Background(), domain.Spot{Number: number, Active: active, CreatedAt: time.Now()})
	require.NoError(t, err)
	return spot
}

func reservationOn(spotID string, start, end time.Time) domain.Reservation {
	return domain.Reservation{
		SpotID:     spotID,
		HolderName: "Test Holder",
		Household:  "1A",
		Phone:      "555-0000",
		StartTime:  start,
		EndTime:    end,
		CreatedAt:  time.Now(),
	}
}

var base = time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)

func hour(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }

func TestOpen_MigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(context.Background(), db))

	var fk int
	require.NoError(t, db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestDSN(t *testing.T) {
	dsn := DSN("/tmp/p.db", 0)
	assert.Contains(t, dsn, "file:/tmp/p.db?")
	assert.Contains(t, dsn, "_txlock=immediate")
	assert.Contains(t, dsn, "busy_timeout%2810000%29")
}

func TestSpotRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("unique number is case sensitive", func(t *testing.T) {
		repo := NewSpotRepository(openTestDB(t))

		spot := mustCreateSpot(t, repo, "A-01", true)
		assert.NotEmpty(t, spot.ID)

		_, err := repo.CreateSpot(ctx, domain.Spot{Number: "A-01", Active: true, CreatedAt: time.Now()})
		require.ErrorIs(t, err, domain.ErrSpotNumberTaken)

		mustCreateSpot(t, repo, "a-01", true)
	})

	t.Run("list orders by bytes and filters inactive", func(t *testing.T) {
		repo := NewSpotRepository(openTestDB(t))
		for _, n := range []string{"b-01", "B-01", "A-02", "A-01"} {
			mustCreateSpot(t, repo, n, n != "A-02")
		}

		active, err := repo.ListSpots(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"A-01", "B-01", "b-01"}, spotNumbers(active))

		all, err := repo.ListSpots(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"A-01", "A-02", "B-01", "b-01"}, spotNumbers(all))
	})

	t.Run("update, exists and delete", func(t *testing.T) {
		repo := NewSpotRepository(openTestDB(t))
		a := mustCreateSpot(t, repo, "A-01", true)
		b := mustCreateSpot(t, repo, "A-02", true)

		exists, err := repo.SpotNumberExists(ctx, "A-01", a.ID)
		require.NoError(t, err)
		assert.False(t, exists)
		exists, err = repo.SpotNumberExists(ctx, "A-01", b.ID)
		require.NoError(t, err)
		assert.True(t, exists)

		updated, err := repo.UpdateSpot(ctx, domain.Spot{ID: a.ID, Number: "C-01", Active: false})
		require.NoError(t, err)
		assert.Equal(t, "C-01", updated.Number)
		assert.False(t, updated.Active)
		assert.Equal(t, a.CreatedAt, updated.CreatedAt)

		_, err = repo.UpdateSpot(ctx, domain.Spot{ID: a.ID, Number: "A-02", Active: true})
		require.ErrorIs(t, err, domain.ErrSpotNumberTaken)

		_, err = repo.UpdateSpot(ctx, domain.Spot{ID: "missing", Number: "Z"})
		require.ErrorIs(t, err, domain.ErrSpotNotFound)

		require.NoError(t, repo.DeleteSpot(ctx, a.ID))
		require.ErrorIs(t, repo.DeleteSpot(ctx, a.ID), domain.ErrSpotNotFound)
		_, err = repo.GetSpotForUpdate(ctx, a.ID)
		require.ErrorIs(t, err, domain.ErrSpotNotFound)
	})
}

type failingResult struct{ err error }

func (r failingResult) LastInsertId() (int64, error) { return 0, r.err }
func (r failingResult) RowsAffected() (int64, error) { return 0, r.err }

func TestSpotAffected(t *testing.T) {
	require.NoError(t, spotAffected(driverResult(1), "update spot"))
	require.ErrorIs(t, spotAffected(driverResult(0), "update spot"), domain.ErrSpotNotFound)

	err := spotAffected(failingResult{err: errors.New("rows affected unsupported")}, "update spot")
	require.ErrorContains(t, err, "update spot: rows affected unsupported")
	assert.NotErrorIs(t, err, domain.ErrSpotNotFound)
}

type driverResult int64

func (r driverResult) LastInsertId() (int64, error) { return 0, nil }
func (r driverResult) RowsAffected() (int64, error) { return int64(r), nil }

func TestReservationRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("overlap query and trigger use half-open windows", func(t *testing.T) {
		db := openTestDB(t)
		spots, repo := NewSpotRepository(db), NewReservationRepository(db)
		spot := mustCreateSpot(t, spots, "A-01", true)

		first, err := repo.CreateReservation(ctx, reservationOn(spot.ID, hour(10), hour(11)))
		require.NoError(t, err)

		touching, err := repo.FindOverlapping(ctx, spot.ID, domain.Window{Start: hour(11), End: hour(12)})
		require.NoError(t, err)
		assert.Nil(t, touching)
		_, err = repo.CreateReservation(ctx, reservationOn(spot.ID, hour(11), hour(12)))
		require.NoError(t, err)

		inside, err := repo.FindOverlapping(ctx, spot.ID, domain.Window{Start: hour(10).Add(30 * time.Minute), End: hour(10).Add(45 * time.Minute)})
		require.NoError(t, err)
		require.NotNil(t, inside)
		assert.Equal(t, first.ID, inside.ID)
		assert.Equal(t, hour(10), inside.StartTime)

		_, err = repo.CreateReservation(ctx, reservationOn(spot.ID, hour(10).Add(30*time.Minute), hour(10).Add(45*time.Minute)))
		var overlapErr *domain.OverlapError
		require.ErrorAs(t, err, &overlapErr)
	})

	t.Run("unknown spot violates the foreign key", func(t *testing.T) {
		repo := NewReservationRepository(openTestDB(t))

		_, err := repo.CreateReservation(ctx, reservationOn("missing", hour(1), hour(2)))
		require.ErrorIs(t, err, domain.ErrSpotNotFound)
	})

	t.Run("list, delete and sweep", func(t *testing.T) {
		db := openTestDB(t)
		spots, repo := NewSpotRepository(db), NewReservationRepository(db)
		a := mustCreateSpot(t, spots, "A-01", true)
		b := mustCreateSpot(t, spots, "A-02", true)

		late, err := repo.CreateReservation(ctx, reservationOn(a.ID, hour(14), hour(15)))
		require.NoError(t, err)
		_, err = repo.CreateReservation(ctx, reservationOn(b.ID, hour(9), hour(10)))
		require.NoError(t, err)
		_, err = repo.CreateReservation(ctx, reservationOn(a.ID, hour(8), hour(9)))
		require.NoError(t, err)

		all, err := repo.ListReservations(ctx, domain.ReservationFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, hour(8), all[0].StartTime)
		assert.Equal(t, hour(14), all[2].StartTime)

		onlyA, err := repo.ListReservations(ctx, domain.ReservationFilter{SpotID: a.ID})
		require.NoError(t, err)
		assert.Len(t, onlyA, 2)

		removed, err := repo.DeleteReservation(ctx, late.ID)
		require.NoError(t, err)
		assert.Equal(t, late, removed)
		_, err = repo.DeleteReservation(ctx, late.ID)
		require.ErrorIs(t, err, domain.ErrReservationNotFound)

		swept, err := repo.DeleteReservationsEndedBefore(ctx, hour(10))
		require.NoError(t, err)
		assert.EqualValues(t, 1, swept)

		remaining, err := repo.ListReservations(ctx, domain.ReservationFilter{})
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, b.ID, remaining[0].SpotID)
	})

	t.Run("deleting a spot cascades", func(t *testing.T) {
		db := openTestDB(t)
		spots, repo := NewSpotRepository(db), NewReservationRepository(db)
		spot := mustCreateSpot(t, spots, "A-01", true)
		_, err := repo.CreateReservation(ctx, reservationOn(spot.ID, hour(1), hour(2)))
		require.NoError(t, err)

		require.NoError(t, spots.DeleteSpot(ctx, spot.ID))
		items, err := repo.ListReservations(ctx, domain.ReservationFilter{})
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}

func TestAdmissionSweeperAndRetention(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	spots, repo := NewSpotRepository(db), NewReservationRepository(db)
	spot := mustCreateSpot(t, spots, "A-01", true)

	now := hour(72)
	clk := clock.NewManual(now)
	svc := app.NewReservationService(repo, clk, app.WithReservationLogger(logging.Discard()))
	sweeper := app.NewSweeper(repo, clk, app.WithSweeperLogger(logging.Discard()))

	admit := func(start, end time.Time) error {
		_, err := svc.Admit(ctx, app.AdmitInput{
			SpotID: spot.ID, HolderName: "Ana", Household: "4B", Phone: "555",
			StartTime: start, EndTime: end,
		})
		return err
	}
	require.NoError(t, admit(now.Add(-26*time.Hour), now.Add(-25*time.Hour)))
	require.NoError(t, admit(now.Add(-24*time.Hour), now.Add(-23*time.Hour)))

	removed, err := sweeper.Sweep(ctx, now, 24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	items, err := svc.List(ctx, app.ListReservationsInput{SpotID: spot.ID})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, now.Add(-23*time.Hour), items[0].EndTime)
}

func TestAdmissionRejectsSubMicrosecondWindow(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	spots, repo := NewSpotRepository(db), NewReservationRepository(db)
	spot := mustCreateSpot(t, spots, "A-01", true)

	clk := clock.NewManual(hour(0))
	svc := app.NewReservationService(repo, clk, app.WithReservationLogger(logging.Discard()))

	start := hour(9).Add(100 * time.Nanosecond)
	_, err := svc.Admit(ctx, app.AdmitInput{
		SpotID: spot.ID, HolderName: "Ana", Household: "4B", Phone: "555",
		StartTime: start, EndTime: start.Add(500 * time.Nanosecond),
	})
	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "end_time", validationErr.Field)

	items, err := svc.List(ctx, app.ListReservationsInput{SpotID: spot.ID})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestConcurrentAdmissionsAdmitExactlyOne(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	spots, repo := NewSpotRepository(db), NewReservationRepository(db)
	spot := mustCreateSpot(t, spots, "A-01", true)
	svc := app.NewReservationService(repo, clock.NewSystem(), app.WithReservationLogger(logging.Discard()))

	const attempts = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		overlaps  int
		others    []error
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := svc.Admit(ctx, app.AdmitInput{
				SpotID:     spot.ID,
				HolderName: fmt.Sprintf("Racer %d", i),
				Household:  "2C",
				Phone:      "555-0199",
				StartTime:  hour(9),
				EndTime:    hour(17),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrOverlap):
				overlaps++
			default:
				others = append(others, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	require.Empty(t, others)
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, overlaps)

	items, err := repo.ListReservations(ctx, domain.ReservationFilter{SpotID: spot.ID})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(openTestDB(t))

	user := domain.User{Username: "admin", PasswordHash: "hash", IsAdmin: true, IsActive: true, CreatedAt: time.Now()}
	created, err := repo.CreateUserIfAbsent(ctx, user)
	require.NoError(t, err)
	assert.True(t, created)

	user.PasswordHash = "other"
	created, err = repo.CreateUserIfAbsent(ctx, user)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := repo.GetUserByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.True(t, got.IsAdmin)
	assert.True(t, got.IsActive)

	byID, err := repo.GetUser(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, got, byID)

	_, err = repo.GetUser(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestStoreErrorClassifiesBusy(t *testing.T) {
	err := storeError("op", errors.New("database is locked (5) (SQLITE_BUSY)"))
	assert.True(t, domain.Retryable(err))

	err = storeError("op", context.DeadlineExceeded)
	assert.True(t, domain.Retryable(err))

	err = storeError("op", errors.New("no such table: spots"))
	assert.False(t, domain.Retryable(err))
}

func spotNumbers(spots []domain.Spot) []string {
	out := make([]string, len(spots))
	for i, s := range spots {
		out[i] = s.Number
	}
	return out
}
