package imports

import (
	"fmt"
	"strings"
	"time"

	"github.com/manphil/backoffice/services/reservation-service/internal/availability"
)

// Batch validates import candidates against the persisted snapshot plus every candidate
// admitted earlier in the same batch, so two rows can never land on overlapping ranges.
type Batch struct {
	persisted map[string][]availability.Reservation
	admitted  map[string][]availability.Reservation
}

func NewBatch() *Batch {
	return &Batch{
		persisted: map[string][]availability.Reservation{},
		admitted:  map[string][]availability.Reservation{},
	}
}

// AddPersisted seeds the snapshot of already stored reservations for one property.
func (b *Batch) AddPersisted(propertyID string, rs []availability.Reservation) {
	b.persisted[propertyID] = append(b.persisted[propertyID], rs...)
}

// Admit checks c and, when it is available, records it as admitted.
func (b *Batch) Admit(c availability.Reservation) availability.Result {
	candidates := make([]availability.Reservation, 0, len(b.persisted[c.PropertyID])+len(b.admitted[c.PropertyID]))
	candidates = append(candidates, b.persisted[c.PropertyID]...)
	candidates = append(candidates, b.admitted[c.PropertyID]...)

	res := availability.Evaluate(c.Range, candidates, "")
	if res.Available && c.Status != availability.StatusCancelled {
		b.admitted[c.PropertyID] = append(b.admitted[c.PropertyID], c)
	}
	return res
}

// Revoke drops an admitted candidate whose insert later failed.
func (b *Batch) Revoke(propertyID, id string) {
	list := b.admitted[propertyID]
	for i := range list {
		if list[i].ID == id {
			b.admitted[propertyID] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

const rowRefPrefix = "row:"

func rowRef(row int) string {
	return fmt.Sprintf("%s%d", rowRefPrefix, row)
}

// conflictMessage names what a rejected row collides with. Batch-local candidates are
// referred to by row number since they have no stored id yet.
func conflictMessage(conflicts []availability.ConflictSummary) string {
	parts := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		span := c.Start.UTC().Format(time.RFC3339) + " to " + c.End.UTC().Format(time.RFC3339)
		if strings.HasPrefix(c.ID, rowRefPrefix) {
			parts = append(parts, fmt.Sprintf("row %s of this import (%s)", strings.TrimPrefix(c.ID, rowRefPrefix), span))
			continue
		}
		parts = append(parts, fmt.Sprintf("reservation %s (%s)", c.ID, span))
	}
	return "overlaps " + strings.Join(parts, ", ")
}
