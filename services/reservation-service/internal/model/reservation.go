package model

import (
	"time"

	"github.com/manphil/backoffice/services/reservation-service/internal/availability"
)

const DefaultReservationType = "guest"

type Reservation struct {
	ID            string
	PropertyID    string
	Start         time.Time
	End           time.Time
	Status        availability.Status
	Type          string
	GuestName     string
	GuestEmail    string
	Notes         string
	CreatedBy     string
	ImportBatchID string
	CancelledAt   *time.Time
	CancelReason  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (r Reservation) Range() availability.DateRange {
	return availability.DateRange{Start: r.Start, End: r.End}
}

// View projects the record onto what the availability engine needs.
func (r Reservation) View() availability.Reservation {
	return availability.Reservation{
		ID:         r.ID,
		PropertyID: r.PropertyID,
		Range:      r.Range(),
		Status:     r.Status,
		Type:       r.Type,
		GuestName:  r.GuestName,
	}
}

type Property struct {
	ID        string
	Name      string
	CreatedAt time.Time
}
