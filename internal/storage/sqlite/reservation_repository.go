package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/parkwise/reservation-api/internal/domain"
)

const reservationColumns = `id, spot_id, holder_name, household, phone, start_time, end_time, created_at`

type ReservationRepository struct {
	conn
}

func NewReservationRepository(db *sql.DB) *ReservationRepository {
	return &ReservationRepository{conn: conn{db: db}}
}

func (r *ReservationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.db, fn)
}

func (r *ReservationRepository) GetSpotForUpdate(ctx context.Context, spotID string) (domain.Spot, error) {
	return getSpot(ctx, r.conn, spotID)
}

func (r *ReservationRepository) FindOverlapping(ctx context.Context, spotID string, window domain.Window) (*domain.Reservation, error) {
	const query = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE spot_id = ? AND start_time < ? AND end_time > ?
ORDER BY start_time ASC
LIMIT 1`

	res, err := scanReservation(r.queryRow(ctx, query, spotID, toMicros(window.End), toMicros(window.Start)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storeError("find overlapping reservation", err)
	}
	return &res, nil
}

func (r *ReservationRepository) CreateReservation(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	const stmt = `
INSERT INTO reservations (id, spot_id, holder_name, household, phone, start_time, end_time, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	res.ID = uuid.NewString()
	res.StartTime = storedTime(res.StartTime)
	res.EndTime = storedTime(res.EndTime)
	res.CreatedAt = storedTime(res.CreatedAt)

	_, err := r.exec(ctx, stmt,
		res.ID,
		res.SpotID,
		res.HolderName,
		res.Household,
		res.Phone,
		toMicros(res.StartTime),
		toMicros(res.EndTime),
		toMicros(res.CreatedAt),
	)
	if err != nil {
		switch {
		case isOverlapViolation(err):
			return domain.Reservation{}, &domain.OverlapError{}
		case isForeignKeyViolation(err):
			return domain.Reservation{}, domain.ErrSpotNotFound
		}
		return domain.Reservation{}, storeError("create reservation", err)
	}
	return res, nil
}

func (r *ReservationRepository) DeleteReservation(ctx context.Context, id string) (domain.Reservation, error) {
	removed, err := scanReservation(r.queryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, storeError("get reservation", err)
	}
	if _, err := r.exec(ctx, `DELETE FROM reservations WHERE id = ?`, id); err != nil {
		return domain.Reservation{}, storeError("delete reservation", err)
	}
	return removed, nil
}

func (r *ReservationRepository) ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]domain.Reservation, error) {
	const query = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE ? = '' OR spot_id = ?
ORDER BY start_time ASC, id ASC`

	rows, err := r.query(ctx, query, filter.SpotID, filter.SpotID)
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

func (r *ReservationRepository) DeleteReservationsEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.exec(ctx, `DELETE FROM reservations WHERE end_time < ?`, toMicros(cutoff))
	if err != nil {
		return 0, storeError("sweep reservations", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeError("sweep reservations", err)
	}
	return n, nil
}

func scanReservation(row scanner) (domain.Reservation, error) {
	var (
		res                        domain.Reservation
		start, end, createdAtMicro int64
	)
	err := row.Scan(
		&res.ID,
		&res.SpotID,
		&res.HolderName,
		&res.Household,
		&res.Phone,
		&start,
		&end,
		&createdAtMicro,
	)
	if err != nil {
		return domain.Reservation{}, err
	}
	res.StartTime = fromMicros(start)
	res.EndTime = fromMicros(end)
	res.CreatedAt = fromMicros(createdAtMicro)
	return res, nil
}
