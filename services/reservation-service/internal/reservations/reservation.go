package reservations

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/manphil/backoffice/services/reservation-service/internal/availability"
	"github.com/manphil/backoffice/services/reservation-service/internal/model"
)

var (
	ErrInvalidInput    = errors.New("invalid reservation")
	ErrUnavailable     = errors.New("requested range is unavailable")
	ErrUnknownProperty = errors.New("unknown property")
	ErrCancelled       = errors.New("reservation is cancelled")
)

// ConflictError carries the reservations that block a write. It matches ErrUnavailable.
type ConflictError struct {
	Conflicts []availability.ConflictSummary
}

func (e *ConflictError) Error() string {
	if len(e.Conflicts) == 0 {
		return ErrUnavailable.Error()
	}
	ids := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		ids = append(ids, c.ID)
	}
	return fmt.Sprintf("%s: conflicts with %s", ErrUnavailable, strings.Join(ids, ", "))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrUnavailable
}

type NewReservation struct {
	PropertyID string
	Range      availability.DateRange
	Status     availability.Status
	Type       string
	GuestName  string
	GuestEmail string
	Notes      string
	CreatedBy  string
}

// Normalize trims input, applies defaults and validates it.
func (n NewReservation) Normalize() (NewReservation, error) {
	n.PropertyID = strings.TrimSpace(n.PropertyID)
	if err := ValidateID(n.PropertyID, "property_id"); err != nil {
		return NewReservation{}, err
	}
	if err := n.Range.Validate(); err != nil {
		return NewReservation{}, err
	}
	if n.Status == "" {
		n.Status = availability.StatusTentative
	}
	if !n.Status.Valid() || n.Status == availability.StatusCancelled {
		return NewReservation{}, fmt.Errorf("%w: status must be tentative or confirmed", ErrInvalidInput)
	}
	n.Type = strings.ToLower(strings.TrimSpace(n.Type))
	if n.Type == "" {
		n.Type = model.DefaultReservationType
	}
	n.GuestName = strings.TrimSpace(n.GuestName)
	n.GuestEmail = strings.TrimSpace(n.GuestEmail)
	if n.GuestEmail != "" && !strings.Contains(n.GuestEmail, "@") {
		return NewReservation{}, fmt.Errorf("%w: guest_email is not an email address", ErrInvalidInput)
	}
	n.Notes = strings.TrimSpace(n.Notes)
	return n, nil
}

func (n NewReservation) Model() model.Reservation {
	return model.Reservation{
		PropertyID: n.PropertyID,
		Start:      n.Range.Start.UTC(),
		End:        n.Range.End.UTC(),
		Status:     n.Status,
		Type:       n.Type,
		GuestName:  n.GuestName,
		GuestEmail: n.GuestEmail,
		Notes:      n.Notes,
		CreatedBy:  n.CreatedBy,
	}
}

func ValidateID(id, field string) error {
	if id == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s must be a uuid", ErrInvalidInput, field)
	}
	return nil
}

// View is the JSON shape of a reservation in API responses and event payloads.
type View struct {
	ID            string     `json:"id"`
	PropertyID    string     `json:"property_id"`
	Start         time.Time  `json:"start"`
	End           time.Time  `json:"end"`
	Status        string     `json:"status"`
	Type          string     `json:"type"`
	GuestName     string     `json:"guest_name,omitempty"`
	GuestEmail    string     `json:"guest_email,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	CreatedBy     string     `json:"created_by,omitempty"`
	ImportBatchID string     `json:"import_batch_id,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	CancelReason  string     `json:"cancel_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func ViewOf(m model.Reservation) View {
	v := View{
		ID:            m.ID,
		PropertyID:    m.PropertyID,
		Start:         m.Start.UTC(),
		End:           m.End.UTC(),
		Status:        string(m.Status),
		Type:          m.Type,
		GuestName:     m.GuestName,
		GuestEmail:    m.GuestEmail,
		Notes:         m.Notes,
		CreatedBy:     m.CreatedBy,
		ImportBatchID: m.ImportBatchID,
		CancelReason:  m.CancelReason,
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
	if m.CancelledAt != nil {
		at := m.CancelledAt.UTC()
		v.CancelledAt = &at
	}
	return v
}
