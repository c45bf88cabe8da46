package availability

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SearchPadding widens the advanced-analysis fetch window on each side.
const SearchPadding = 7 * 24 * time.Hour

var (
	ErrMissingProperty    = errors.New("property id is required")
	ErrInvalidGracePeriod = errors.New("grace period must not be negative")
)

type Query struct {
	PropertyID           string
	Range                DateRange
	ExcludeReservationID string
}

func (q Query) validate() error {
	if q.PropertyID == "" {
		return ErrMissingProperty
	}
	return q.Range.Validate()
}

// ConflictSummary is the minimal projection of a conflicting reservation.
type ConflictSummary struct {
	ID        string    `json:"id"`
	Type      string    `json:"type,omitempty"`
	GuestName string    `json:"guest_name,omitempty"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

func summarize(r Reservation) ConflictSummary {
	return ConflictSummary{
		ID:        r.ID,
		Type:      r.Type,
		GuestName: r.GuestName,
		Start:     r.Range.Start,
		End:       r.Range.End,
	}
}

type Result struct {
	Available bool              `json:"available"`
	Conflicts []ConflictSummary `json:"conflicts,omitempty"`
}

// Evaluate runs the basic check over an already fetched snapshot.
// Cancelled candidates and excludeID never conflict.
func Evaluate(requested DateRange, candidates []Reservation, excludeID string) Result {
	var conflicts []ConflictSummary
	for _, c := range candidates {
		if !c.blocks(excludeID) {
			continue
		}
		if c.Range.Overlaps(requested) {
			conflicts = append(conflicts, summarize(c))
		}
	}
	return Result{Available: len(conflicts) == 0, Conflicts: conflicts}
}

// Checker answers availability questions against a Store. Its verdict is advisory:
// writers must re-check under a lock or rely on the storage exclusion constraint.
type Checker struct {
	store Store
}

func NewChecker(store Store) *Checker {
	return &Checker{store: store}
}

func (c *Checker) Check(ctx context.Context, q Query) (Result, error) {
	if err := q.validate(); err != nil {
		return Result{}, err
	}
	candidates, err := c.store.ListReservations(ctx, activeFilter(q.PropertyID, q.Range, q.ExcludeReservationID))
	if err != nil {
		return Result{}, fmt.Errorf("list reservations: %w", err)
	}
	return Evaluate(q.Range, candidates, q.ExcludeReservationID), nil
}

func (c *Checker) CheckAdvanced(ctx context.Context, q AdvancedQuery) (AdvancedResult, error) {
	if err := q.validate(); err != nil {
		return AdvancedResult{}, err
	}
	if q.GracePeriod < 0 {
		return AdvancedResult{}, ErrInvalidGracePeriod
	}
	window := q.Range.Widen(SearchPadding)
	candidates, err := c.store.ListReservations(ctx, activeFilter(q.PropertyID, window, q.ExcludeReservationID))
	if err != nil {
		return AdvancedResult{}, fmt.Errorf("list reservations: %w", err)
	}
	return Analyze(q.Range, window, candidates, q.GracePeriod, q.SuggestAlternatives, q.ExcludeReservationID), nil
}
