package availability

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidRange = errors.New("invalid date range")

// DateRange is a half-open interval [Start, End).
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidRange)
	}
	if !r.End.After(r.Start) {
		return fmt.Errorf("%w: end %s is not after start %s", ErrInvalidRange,
			r.End.Format(time.RFC3339), r.Start.Format(time.RFC3339))
	}
	return nil
}

func (r DateRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Overlaps reports whether the ranges share any instant. Touching ranges do not overlap.
func (r DateRange) Overlaps(o DateRange) bool {
	return o.Start.Before(r.End) && o.End.After(r.Start)
}

// Widen returns the range extended by pad on both sides.
func (r DateRange) Widen(pad time.Duration) DateRange {
	return DateRange{Start: r.Start.Add(-pad), End: r.End.Add(pad)}
}
