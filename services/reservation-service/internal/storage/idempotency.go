package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

type IdempotencyRecord struct {
	PropertyID      string
	IdempotencyKey  string
	ReservationID   string
	StatusCode      int
	ResponsePayload []byte
}

// Done reports whether an earlier request with the same key already produced a response.
func (r IdempotencyRecord) Done() bool {
	return r.StatusCode > 0
}

// LockIdempotencyKey claims (propertyID, key) for the duration of tx. exists is true
// when the row was already present before this call.
func (r *ReservationRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, propertyID, key string) (IdempotencyRecord, bool, error) {
	rec, err := selectIdempotencyForUpdate(ctx, tx, propertyID, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO reservation_idempotency_keys (property_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (property_id, idempotency_key) DO NOTHING
	`, propertyID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = selectIdempotencyForUpdate(ctx, tx, propertyID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (r *ReservationRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, propertyID, key, reservationID string, statusCode int, response []byte) error {
	_, err := tx.Exec(ctx, `
		UPDATE reservation_idempotency_keys
		SET reservation_id = NULLIF($3, '')::uuid,
			status_code = $4,
			response_payload = $5,
			updated_at = now()
		WHERE property_id = $1 AND idempotency_key = $2
	`, propertyID, key, reservationID, statusCode, response)
	return err
}

func selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, propertyID, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := tx.QueryRow(ctx, `
		SELECT property_id::text,
			idempotency_key,
			COALESCE(reservation_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM reservation_idempotency_keys
		WHERE property_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, propertyID, key).Scan(
		&rec.PropertyID,
		&rec.IdempotencyKey,
		&rec.ReservationID,
		&rec.StatusCode,
		&responseText,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}
