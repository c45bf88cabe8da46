package availability

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusTentative Status = "tentative"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTentative, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus accepts "pending" as an alias for tentative.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if s == "pending" {
		return StatusTentative, nil
	}
	if !s.Valid() {
		return "", fmt.Errorf("unknown reservation status %q", raw)
	}
	return s, nil
}

// Reservation is the read-only view of a booking the engine computes over.
type Reservation struct {
	ID         string
	PropertyID string
	Range      DateRange
	Status     Status
	Type       string
	GuestName  string
}

// Label is the guest name, falling back to the reservation type.
func (r Reservation) Label() string {
	if name := strings.TrimSpace(r.GuestName); name != "" {
		return name
	}
	if r.Type != "" {
		return r.Type
	}
	return "reservation " + r.ID
}

// blocks reports whether r takes part in conflict computations at all.
func (r Reservation) blocks(excludeID string) bool {
	if r.Status == StatusCancelled {
		return false
	}
	if excludeID != "" && r.ID == excludeID {
		return false
	}
	// Malformed stored ranges are a precondition failure; skip rather than misclassify.
	return r.Range.End.After(r.Range.Start)
}
