package reservations

import (
	"encoding/json"
	"time"

	"github.com/manphil/backoffice/services/reservation-service/internal/model"
	"github.com/manphil/backoffice/services/reservation-service/internal/outbox"
)

// CreatedEvent builds the outbox event announcing a new reservation.
func CreatedEvent(m model.Reservation) (outbox.Event, error) {
	payload, err := json.Marshal(map[string]any{
		"reservation_id":  m.ID,
		"property_id":     m.PropertyID,
		"status":          m.Status,
		"type":            m.Type,
		"guest_name":      m.GuestName,
		"start_time":      m.Start.UTC().Format(time.RFC3339),
		"end_time":        m.End.UTC().Format(time.RFC3339),
		"created_by":      m.CreatedBy,
		"import_batch_id": m.ImportBatchID,
	})
	if err != nil {
		return outbox.Event{}, err
	}
	return outbox.Event{
		AggregateType: outbox.AggregateReservation,
		AggregateID:   m.ID,
		EventType:     outbox.ReservationCreated,
		Payload:       payload,
	}, nil
}

func rescheduledEvent(before, after model.Reservation, actor string) (outbox.Event, error) {
	payload, err := json.Marshal(map[string]any{
		"reservation_id":      after.ID,
		"property_id":         after.PropertyID,
		"previous_start_time": before.Start.UTC().Format(time.RFC3339),
		"previous_end_time":   before.End.UTC().Format(time.RFC3339),
		"start_time":          after.Start.UTC().Format(time.RFC3339),
		"end_time":            after.End.UTC().Format(time.RFC3339),
		"actor_id":            actor,
	})
	if err != nil {
		return outbox.Event{}, err
	}
	return outbox.Event{
		AggregateType: outbox.AggregateReservation,
		AggregateID:   after.ID,
		EventType:     outbox.ReservationRescheduled,
		Payload:       payload,
	}, nil
}

func cancelledEvent(m model.Reservation, actor string) (outbox.Event, error) {
	cancelledAt := ""
	if m.CancelledAt != nil {
		cancelledAt = m.CancelledAt.UTC().Format(time.RFC3339)
	}
	payload, err := json.Marshal(map[string]any{
		"reservation_id": m.ID,
		"property_id":    m.PropertyID,
		"start_time":     m.Start.UTC().Format(time.RFC3339),
		"end_time":       m.End.UTC().Format(time.RFC3339),
		"cancelled_at":   cancelledAt,
		"reason":         m.CancelReason,
		"actor_id":       actor,
	})
	if err != nil {
		return outbox.Event{}, err
	}
	return outbox.Event{
		AggregateType: outbox.AggregateReservation,
		AggregateID:   m.ID,
		EventType:     outbox.ReservationCancelled,
		Payload:       payload,
	}, nil
}
