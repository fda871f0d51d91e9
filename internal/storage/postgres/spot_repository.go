package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parkwise/reservation-api/internal/domain"
)

const spotColumns = `id, number, active, created_at`

type SpotRepository struct {
	conn
}

func NewSpotRepository(pool *pgxpool.Pool) *SpotRepository {
	return &SpotRepository{conn: conn{pool: pool}}
}

func (r *SpotRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *SpotRepository) CreateSpot(ctx context.Context, spot domain.Spot) (domain.Spot, error) {
	const stmt = `
INSERT INTO spots (number, active, created_at)
VALUES ($1, $2, $3)
RETURNING ` + spotColumns

	created, err := scanSpot(r.queryRow(ctx, stmt, spot.Number, spot.Active, spot.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Spot{}, domain.ErrSpotNumberTaken
		}
		return domain.Spot{}, storeError("create spot", err)
	}
	return created, nil
}

// GetSpotForUpdate row-locks the spot until the surrounding transaction ends.
func (r *SpotRepository) GetSpotForUpdate(ctx context.Context, id string) (domain.Spot, error) {
	return getSpotForUpdate(ctx, r.conn, id)
}

func (r *SpotRepository) UpdateSpot(ctx context.Context, spot domain.Spot) (domain.Spot, error) {
	const stmt = `
UPDATE spots SET number = $2, active = $3
WHERE id = $1
RETURNING ` + spotColumns

	updated, err := scanSpot(r.queryRow(ctx, stmt, spot.ID, spot.Number, spot.Active))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return domain.Spot{}, domain.ErrSpotNotFound
		}
		if isUniqueViolation(err) {
			return domain.Spot{}, domain.ErrSpotNumberTaken
		}
		return domain.Spot{}, storeError("update spot", err)
	}
	return updated, nil
}

// DeleteSpot removes the spot; its reservations go with it through ON DELETE CASCADE.
func (r *SpotRepository) DeleteSpot(ctx context.Context, id string) error {
	tag, err := r.exec(ctx, `DELETE FROM spots WHERE id = $1`, id)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrSpotNotFound
		}
		return storeError("delete spot", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSpotNotFound
	}
	return nil
}

func (r *SpotRepository) ListSpots(ctx context.Context, includeInactive bool) ([]domain.Spot, error) {
	const query = `
SELECT ` + spotColumns + `
FROM spots
WHERE $1 OR active
ORDER BY number COLLATE "C" ASC`

	rows, err := r.query(ctx, query, includeInactive)
	if err != nil {
		return nil, storeError("list spots", err)
	}
	defer rows.Close()

	spots := []domain.Spot{}
	for rows.Next() {
		spot, err := scanSpot(rows)
		if err != nil {
			return nil, storeError("scan spot", err)
		}
		spots = append(spots, spot)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("iterate spots", err)
	}
	return spots, nil
}

// SpotNumberExists reports whether a spot other than excludeID already uses number.
func (r *SpotRepository) SpotNumberExists(ctx context.Context, number, excludeID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM spots WHERE number = $1 AND id::text <> $2)`

	var exists bool
	if err := r.queryRow(ctx, query, number, excludeID).Scan(&exists); err != nil {
		return false, storeError("check spot number", err)
	}
	return exists, nil
}

func getSpotForUpdate(ctx context.Context, c conn, id string) (domain.Spot, error) {
	const query = `SELECT ` + spotColumns + ` FROM spots WHERE id = $1 FOR UPDATE`

	spot, err := scanSpot(c.queryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return domain.Spot{}, domain.ErrSpotNotFound
		}
		return domain.Spot{}, storeError("get spot", err)
	}
	return spot, nil
}

func scanSpot(row pgx.Row) (domain.Spot, error) {
	var s domain.Spot
	if err := row.Scan(&s.ID, &s.Number, &s.Active, &s.CreatedAt); err != nil {
		return domain.Spot{}, err
	}
	s.CreatedAt = s.CreatedAt.UTC()
	return s, nil
}
