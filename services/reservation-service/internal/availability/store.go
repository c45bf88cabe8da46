package availability

import "context"

// Filter selects the reservations of one property whose range intersects Window.
type Filter struct {
	PropertyID           string
	Window               DateRange
	ExcludeReservationID string
	ExcludeStatuses      []Status
}

func activeFilter(propertyID string, window DateRange, excludeID string) Filter {
	return Filter{
		PropertyID:           propertyID,
		Window:               window,
		ExcludeReservationID: excludeID,
		ExcludeStatuses:      []Status{StatusCancelled},
	}
}

// Store returns reservations matching a Filter, ordered by start ascending.
type Store interface {
	ListReservations(ctx context.Context, f Filter) ([]Reservation, error)
}

// Match applies the filter to a single reservation in memory.
func (f Filter) Match(r Reservation) bool {
	if r.PropertyID != f.PropertyID {
		return false
	}
	if f.ExcludeReservationID != "" && r.ID == f.ExcludeReservationID {
		return false
	}
	for _, s := range f.ExcludeStatuses {
		if r.Status == s {
			return false
		}
	}
	return r.Range.Overlaps(f.Window)
}
