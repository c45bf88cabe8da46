package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/manphil/backoffice/libs/db"
	"github.com/manphil/backoffice/services/reservation-service/internal/availability"
	"github.com/manphil/backoffice/services/reservation-service/internal/model"
)

const reservationColumns = `id::text, property_id::text, start_time, end_time, status, reservation_type,
	guest_name, guest_email, notes, created_by, COALESCE(import_batch_id::text, ''),
	cancelled_at, COALESCE(cancellation_reason, ''), created_at, updated_at`

type ReservationRepository struct {
	pool *db.Pool
}

func NewReservationRepository(pool *db.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

func (r *ReservationRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// ListReservations serves availability checks straight from the pool.
func (r *ReservationRepository) ListReservations(ctx context.Context, f availability.Filter) ([]availability.Reservation, error) {
	return listReservations(ctx, r.pool, f)
}

// Snapshot binds the availability query to q, typically an open transaction holding
// the property lock, so the engine sees exactly what the writer is about to change.
func (r *ReservationRepository) Snapshot(q db.Querier) availability.Store {
	return querierStore{q: q}
}

type querierStore struct {
	q db.Querier
}

func (s querierStore) ListReservations(ctx context.Context, f availability.Filter) ([]availability.Reservation, error) {
	return listReservations(ctx, s.q, f)
}

func availabilityQuery(f availability.Filter) (string, []any) {
	var w where
	w.add("property_id = ?", f.PropertyID)
	w.add("start_time < ?", f.Window.End)
	w.add("end_time > ?", f.Window.Start)
	if f.ExcludeReservationID != "" {
		w.add("id <> ?", f.ExcludeReservationID)
	}
	if len(f.ExcludeStatuses) > 0 {
		statuses := make([]string, 0, len(f.ExcludeStatuses))
		for _, s := range f.ExcludeStatuses {
			statuses = append(statuses, string(s))
		}
		w.add("status <> ALL(?)", statuses)
	}
	return `
		SELECT id::text, property_id::text, start_time, end_time, status, reservation_type, guest_name
		FROM reservations` + w.sql() + `
		ORDER BY start_time ASC, id ASC`, w.args
}

func listReservations(ctx context.Context, q db.Querier, f availability.Filter) ([]availability.Reservation, error) {
	sql, args := availabilityQuery(f)
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Reservation
	for rows.Next() {
		var res availability.Reservation
		var status string
		if err := rows.Scan(&res.ID, &res.PropertyID, &res.Range.Start, &res.Range.End, &status, &res.Type, &res.GuestName); err != nil {
			return nil, err
		}
		res.Status = availability.Status(status)
		out = append(out, res)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// LockProperty serializes writers for one property until tx ends.
func (r *ReservationRepository) LockProperty(ctx context.Context, tx pgx.Tx, propertyID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, propertyID)
	return err
}

func (r *ReservationRepository) PropertyExists(ctx context.Context, q db.Querier, propertyID string) (bool, error) {
	var ok bool
	err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM properties WHERE id = $1)`, propertyID).Scan(&ok)
	return ok, err
}

func (r *ReservationRepository) CreateProperty(ctx context.Context, name string) (model.Property, error) {
	p := model.Property{Name: name}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO properties (name)
		VALUES ($1)
		RETURNING id::text, created_at
	`, name).Scan(&p.ID, &p.CreatedAt)
	return p, err
}

func (r *ReservationRepository) Create(ctx context.Context, q db.Querier, res *model.Reservation) error {
	return q.QueryRow(ctx, `
		INSERT INTO reservations
			(property_id, start_time, end_time, status, reservation_type, guest_name, guest_email, notes, created_by, import_batch_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, '')::uuid)
		RETURNING id::text, created_at, updated_at
	`, res.PropertyID, res.Start, res.End, string(res.Status), res.Type, res.GuestName, res.GuestEmail,
		res.Notes, res.CreatedBy, res.ImportBatchID).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
}

func (r *ReservationRepository) Get(ctx context.Context, id string) (model.Reservation, error) {
	return getReservation(ctx, r.pool, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id)
}

func (r *ReservationRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Reservation, error) {
	return getReservation(ctx, tx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1 FOR UPDATE`, id)
}

func getReservation(ctx context.Context, q db.Querier, sql, id string) (model.Reservation, error) {
	res, err := scanReservation(q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Reservation{}, ErrNotFound
	}
	return res, err
}

func (r *ReservationRepository) UpdateRange(ctx context.Context, tx pgx.Tx, id string, rng availability.DateRange) (time.Time, error) {
	var updatedAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE reservations
		SET start_time = $2,
			end_time = $3,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, id, rng.Start, rng.End).Scan(&updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	return updatedAt, err
}

func (r *ReservationRepository) Cancel(ctx context.Context, tx pgx.Tx, id, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE reservations
		SET status = 'cancelled',
			cancelled_at = now(),
			cancellation_reason = NULLIF($2, ''),
			updated_at = now()
		WHERE id = $1
		RETURNING cancelled_at
	`, id, reason).Scan(&cancelledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	return cancelledAt, err
}

type ListFilter struct {
	PropertyID string
	From       time.Time
	To         time.Time
	Status     availability.Status
	Limit      int
}

func listQuery(f ListFilter) (string, []any) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	var w where
	if f.PropertyID != "" {
		w.add("property_id = ?", f.PropertyID)
	}
	if !f.To.IsZero() {
		w.add("start_time < ?", f.To)
	}
	if !f.From.IsZero() {
		w.add("end_time > ?", f.From)
	}
	if f.Status != "" {
		w.add("status = ?", string(f.Status))
	}
	sql := `SELECT ` + reservationColumns + ` FROM reservations` + w.sql() + ` ORDER BY start_time ASC, id ASC`
	sql += w.limit(f.Limit)
	return sql, w.args
}

func (r *ReservationRepository) List(ctx context.Context, f ListFilter) ([]model.Reservation, error) {
	sql, args := listQuery(f)
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func scanReservation(row pgx.Row) (model.Reservation, error) {
	var res model.Reservation
	var status string
	var cancelledAt *time.Time
	err := row.Scan(
		&res.ID,
		&res.PropertyID,
		&res.Start,
		&res.End,
		&status,
		&res.Type,
		&res.GuestName,
		&res.GuestEmail,
		&res.Notes,
		&res.CreatedBy,
		&res.ImportBatchID,
		&cancelledAt,
		&res.CancelReason,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		return model.Reservation{}, err
	}
	res.Status = availability.Status(status)
	res.CancelledAt = cancelledAt
	return res, nil
}
