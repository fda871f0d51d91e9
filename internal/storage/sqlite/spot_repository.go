package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/parkwise/reservation-api/internal/domain"
)

const spotColumns = `id, number, active, created_at`

type SpotRepository struct {
	conn
}

func NewSpotRepository(db *sql.DB) *SpotRepository {
	return &SpotRepository{conn: conn{db: db}}
}

func (r *SpotRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.db, fn)
}

func (r *SpotRepository) CreateSpot(ctx context.Context, spot domain.Spot) (domain.Spot, error) {
	const stmt = `INSERT INTO spots (id, number, active, created_at) VALUES (?, ?, ?, ?)`

	spot.ID = uuid.NewString()
	spot.CreatedAt = storedTime(spot.CreatedAt)
	if _, err := r.exec(ctx, stmt, spot.ID, spot.Number, spot.Active, toMicros(spot.CreatedAt)); err != nil {
		if isUniqueViolation(err) {
			return domain.Spot{}, domain.ErrSpotNumberTaken
		}
		return domain.Spot{}, storeError("create spot", err)
	}
	return spot, nil
}

// GetSpotForUpdate reads the spot inside the caller's write transaction, which already holds the
// database write lock.
func (r *SpotRepository) GetSpotForUpdate(ctx context.Context, id string) (domain.Spot, error) {
	return getSpot(ctx, r.conn, id)
}

func (r *SpotRepository) UpdateSpot(ctx context.Context, spot domain.Spot) (domain.Spot, error) {
	const stmt = `UPDATE spots SET number = ?, active = ? WHERE id = ?`

	res, err := r.exec(ctx, stmt, spot.Number, spot.Active, spot.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Spot{}, domain.ErrSpotNumberTaken
		}
		return domain.Spot{}, storeError("update spot", err)
	}
	if err := spotAffected(res, "update spot"); err != nil {
		return domain.Spot{}, err
	}
	return getSpot(ctx, r.conn, spot.ID)
}

func (r *SpotRepository) DeleteSpot(ctx context.Context, id string) error {
	res, err := r.exec(ctx, `DELETE FROM spots WHERE id = ?`, id)
	if err != nil {
		return storeError("delete spot", err)
	}
	return spotAffected(res, "delete spot")
}

// spotAffected reports ErrSpotNotFound when a spot statement touched no row.
func spotAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeError(op, err)
	}
	if n == 0 {
		return domain.ErrSpotNotFound
	}
	return nil
}

// ListSpots orders by number under SQLite's default BINARY collation.
func (r *SpotRepository) ListSpots(ctx context.Context, includeInactive bool) ([]domain.Spot, error) {
	const query = `SELECT ` + spotColumns + ` FROM spots WHERE ? OR active ORDER BY number ASC`

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

func (r *SpotRepository) SpotNumberExists(ctx context.Context, number, excludeID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM spots WHERE number = ? AND id <> ?)`

	var exists bool
	if err := r.queryRow(ctx, query, number, excludeID).Scan(&exists); err != nil {
		return false, storeError("check spot number", err)
	}
	return exists, nil
}

func getSpot(ctx context.Context, c conn, id string) (domain.Spot, error) {
	spot, err := scanSpot(c.queryRow(ctx, `SELECT `+spotColumns+` FROM spots WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Spot{}, domain.ErrSpotNotFound
		}
		return domain.Spot{}, storeError("get spot", err)
	}
	return spot, nil
}

func scanSpot(row scanner) (domain.Spot, error) {
	var (
		s         domain.Spot
		createdAt int64
	)
	if err := row.Scan(&s.ID, &s.Number, &s.Active, &createdAt); err != nil {
		return domain.Spot{}, err
	}
	s.CreatedAt = fromMicros(createdAt)
	return s, nil
}
