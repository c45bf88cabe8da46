package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/manphil/backoffice/libs/db"
)

const (
	ActionReservationCreated     = "reservation.created"
	ActionReservationRescheduled = "reservation.rescheduled"
	ActionReservationCancelled   = "reservation.cancelled"
	ActionReservationImport      = "reservation.import"
)

type Entry struct {
	EventType string
	ActorID   string
	EntityID  string
	Metadata  map[string]any
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record writes e through q so it commits or rolls back with the change it describes.
func (r *Repository) Record(ctx context.Context, q db.Querier, e Entry) error {
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	raw, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO audit_events (event_type, actor_id, entity_id, metadata)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4)
	`, e.EventType, e.ActorID, e.EntityID, raw)
	return err
}

type AuditEvent struct {
	ID        int64           `json:"id"`
	EventType string          `json:"event_type"`
	ActorID   string          `json:"actor_id,omitempty"`
	EntityID  string          `json:"entity_id,omitempty"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt string          `json:"created_at"`
}

func (r *Repository) ListRecent(ctx context.Context, limit int) ([]AuditEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_type, COALESCE(actor_id, ''), COALESCE(entity_id, ''), metadata, created_at
		FROM audit_events
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var createdAt time.Time
		if err := rows.Scan(&e.ID, &e.EventType, &e.ActorID, &e.EntityID, &e.Metadata, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		events = append(events, e)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}
