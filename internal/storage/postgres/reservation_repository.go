package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parkwise/reservation-api/internal/domain"
)

const reservationColumns = `id, spot_id, holder_name, household, phone, start_time, end_time, created_at`

type ReservationRepository struct {
	conn
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{conn: conn{pool: pool}}
}

func (r *ReservationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// GetSpotForUpdate serializes admissions for one spot: a second caller blocks here until the
// first transaction commits or rolls back.
func (r *ReservationRepository) GetSpotForUpdate(ctx context.Context, spotID string) (domain.Spot, error) {
	return getSpotForUpdate(ctx, r.conn, spotID)
}

// FindOverlapping returns the earliest reservation on spotID whose window intersects window, or nil.
func (r *ReservationRepository) FindOverlapping(ctx context.Context, spotID string, window domain.Window) (*domain.Reservation, error) {
	const query = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE spot_id = $1 AND start_time < $3 AND end_time > $2
ORDER BY start_time ASC
LIMIT 1`

	res, err := scanReservation(r.queryRow(ctx, query, spotID, window.Start, window.End))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if isInvalidUUID(err) {
			return nil, domain.ErrSpotNotFound
		}
		return nil, storeError("find overlapping reservation", err)
	}
	return &res, nil
}

func (r *ReservationRepository) CreateReservation(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	const stmt = `
INSERT INTO reservations (spot_id, holder_name, household, phone, start_time, end_time, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + reservationColumns

	created, err := scanReservation(r.queryRow(ctx, stmt,
		res.SpotID,
		res.HolderName,
		res.Household,
		res.Phone,
		res.StartTime,
		res.EndTime,
		res.CreatedAt,
	))
	if err != nil {
		switch {
		case isExclusionViolation(err):
			return domain.Reservation{}, &domain.OverlapError{}
		case isForeignKeyViolation(err), isInvalidUUID(err):
			return domain.Reservation{}, domain.ErrSpotNotFound
		}
		return domain.Reservation{}, storeError("create reservation", err)
	}
	return created, nil
}

// DeleteReservation removes the reservation and returns the deleted row.
func (r *ReservationRepository) DeleteReservation(ctx context.Context, id string) (domain.Reservation, error) {
	const stmt = `DELETE FROM reservations WHERE id = $1 RETURNING ` + reservationColumns

	removed, err := scanReservation(r.queryRow(ctx, stmt, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, storeError("delete reservation", err)
	}
	return removed, nil
}

func (r *ReservationRepository) ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]domain.Reservation, error) {
	const query = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE $1 = '' OR spot_id::text = $1
ORDER BY start_time ASC, id ASC`

	rows, err := r.query(ctx, query, filter.SpotID)
	if err != nil {
		return nil, storeError("list reservations", err)
	}
	defer rows.Close()

	items := []domain.Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, storeError("scan reservation", err)
		}
		items = append(items, res)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("iterate reservations", err)
	}
	return items, nil
}

// DeleteReservationsEndedBefore removes every reservation with end_time < cutoff.
func (r *ReservationRepository) DeleteReservationsEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.exec(ctx, `DELETE FROM reservations WHERE end_time < $1`, cutoff)
	if err != nil {
		return 0, storeError("sweep reservations", err)
	}
	return tag.RowsAffected(), nil
}

func scanReservation(row pgx.Row) (domain.Reservation, error) {
	var res domain.Reservation
	err := row.Scan(
		&res.ID,
		&res.SpotID,
		&res.HolderName,
		&res.Household,
		&res.Phone,
		&res.StartTime,
		&res.EndTime,
		&res.CreatedAt,
	)
	if err != nil {
		return domain.Reservation{}, err
	}
	res.StartTime = res.StartTime.UTC()
	res.EndTime = res.EndTime.UTC()
	res.CreatedAt = res.CreatedAt.UTC()
	return res, nil
}
