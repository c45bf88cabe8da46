package imports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/manphil/backoffice/services/reservation-service/internal/audit"
	"github.com/manphil/backoffice/services/reservation-service/internal/availability"
	"github.com/manphil/backoffice/services/reservation-service/internal/model"
	"github.com/manphil/backoffice/services/reservation-service/internal/outbox"
	"github.com/manphil/backoffice/services/reservation-service/internal/reservations"
	"github.com/manphil/backoffice/services/reservation-service/internal/storage"
)

const MaxRows = 1000

var (
	ErrEmptyBatch    = errors.New("import contains no rows")
	ErrBatchTooLarge = fmt.Errorf("import exceeds %d rows", MaxRows)
)

type Row struct {
	PropertyID string    `json:"property_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Status     string    `json:"status,omitempty"`
	Type       string    `json:"type,omitempty"`
	GuestName  string    `json:"guest_name,omitempty"`
	GuestEmail string    `json:"guest_email,omitempty"`
	Notes      string    `json:"notes,omitempty"`
}

type Summary struct {
	BatchID  string     `json:"batch_id"`
	Total    int        `json:"total"`
	Imported int        `json:"imported"`
	Failed   int        `json:"failed"`
	Errors   []RowError `json:"errors,omitempty"`
}

func (s *Summary) fail(row int, msg string) {
	s.Failed++
	s.Errors = append(s.Errors, RowError{Row: row, Message: msg})
}

type Importer struct {
	repo   *storage.ReservationRepository
	outbox *outbox.Repository
	audit  *audit.Repository
	logger *slog.Logger
}

func NewImporter(repo *storage.ReservationRepository, outboxRepo *outbox.Repository, auditRepo *audit.Repository, logger *slog.Logger) *Importer {
	return &Importer{repo: repo, outbox: outboxRepo, audit: auditRepo, logger: logger}
}

type candidate struct {
	row   int
	input reservations.NewReservation
}

// parseRows validates every row on its own. Rows are numbered from 1.
func parseRows(rows []Row, actor string, summary *Summary) []candidate {
	var out []candidate
	for i, r := range rows {
		rowNum := i + 1
		var status availability.Status
		if strings.TrimSpace(r.Status) != "" {
			s, err := availability.ParseStatus(r.Status)
			if err != nil {
				summary.fail(rowNum, err.Error())
				continue
			}
			status = s
		}
		in, err := reservations.NewReservation{
			PropertyID: r.PropertyID,
			Range:      availability.DateRange{Start: r.Start, End: r.End},
			Status:     status,
			Type:       r.Type,
			GuestName:  r.GuestName,
			GuestEmail: r.GuestEmail,
			Notes:      r.Notes,
			CreatedBy:  actor,
		}.Normalize()
		if err != nil {
			summary.fail(rowNum, err.Error())
			continue
		}
		out = append(out, candidate{row: rowNum, input: in})
	}
	return out
}

// Run validates and inserts rows in one transaction. Properties are locked in id order.
// A row rejected by validation, by the batch check or by a constraint on insert becomes
// a RowError; any other failure aborts the whole import.
func (im *Importer) Run(ctx context.Context, rows []Row, actor string) (Summary, error) {
	if len(rows) == 0 {
		return Summary{}, ErrEmptyBatch
	}
	if len(rows) > MaxRows {
		return Summary{}, ErrBatchTooLarge
	}

	summary := Summary{BatchID: uuid.NewString(), Total: len(rows)}
	candidates := parseRows(rows, actor, &summary)

	tx, err := im.repo.Begin(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := NewBatch()
	known, err := im.prepare(ctx, tx, batch, candidates)
	if err != nil {
		return Summary{}, err
	}

	for _, c := range candidates {
		if !known[c.input.PropertyID] {
			summary.fail(c.row, reservations.ErrUnknownProperty.Error())
			continue
		}
		view := c.input.Model().View()
		view.ID = rowRef(c.row)
		check := batch.Admit(view)
		if !check.Available {
			summary.fail(c.row, conflictMessage(check.Conflicts))
			continue
		}

		res := c.input.Model()
		res.ImportBatchID = summary.BatchID
		ok, msg, err := im.insert(ctx, tx, &res)
		if err != nil {
			return Summary{}, fmt.Errorf("row %d: %w", c.row, err)
		}
		if !ok {
			batch.Revoke(view.PropertyID, view.ID)
			summary.fail(c.row, msg)
			continue
		}
		summary.Imported++
	}
	// Validation errors were recorded before insert errors; report them in row order.
	sort.SliceStable(summary.Errors, func(i, j int) bool { return summary.Errors[i].Row < summary.Errors[j].Row })

	if err := im.recordSummary(ctx, tx, summary, actor); err != nil {
		return Summary{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Summary{}, fmt.Errorf("commit: %w", err)
	}
	im.logger.Info("reservation import finished",
		"batch_id", summary.BatchID, "total", summary.Total, "imported", summary.Imported, "failed", summary.Failed)
	return summary, nil
}

// prepare locks each property once and loads its persisted reservations over the span
// covered by the batch.
func (im *Importer) prepare(ctx context.Context, tx pgx.Tx, batch *Batch, candidates []candidate) (map[string]bool, error) {
	spans := map[string]availability.DateRange{}
	for _, c := range candidates {
		r := c.input.Range
		span, ok := spans[c.input.PropertyID]
		if !ok {
			spans[c.input.PropertyID] = r
			continue
		}
		if r.Start.Before(span.Start) {
			span.Start = r.Start
		}
		if r.End.After(span.End) {
			span.End = r.End
		}
		spans[c.input.PropertyID] = span
	}

	ids := make([]string, 0, len(spans))
	for id := range spans {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	known := map[string]bool{}
	for _, id := range ids {
		exists, err := im.repo.PropertyExists(ctx, tx, id)
		if err != nil {
			return nil, fmt.Errorf("check property %s: %w", id, err)
		}
		if !exists {
			continue
		}
		known[id] = true
		if err := im.repo.LockProperty(ctx, tx, id); err != nil {
			return nil, fmt.Errorf("lock property %s: %w", id, err)
		}
		existing, err := im.repo.Snapshot(tx).ListReservations(ctx, availability.Filter{
			PropertyID:      id,
			Window:          spans[id],
			ExcludeStatuses: []availability.Status{availability.StatusCancelled},
		})
		if err != nil {
			return nil, fmt.Errorf("load reservations for %s: %w", id, err)
		}
		batch.AddPersisted(id, existing)
	}
	return known, nil
}

// insert writes one reservation and its created event under a savepoint so a constraint
// violation rejects only this row.
func (im *Importer) insert(ctx context.Context, tx pgx.Tx, res *model.Reservation) (bool, string, error) {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return false, "", err
	}
	defer func() { _ = sp.Rollback(ctx) }()

	if err := im.repo.Create(ctx, sp, res); err != nil {
		switch {
		case storage.IsConflict(err):
			return false, reservations.ErrUnavailable.Error(), nil
		case storage.IsUnknownProperty(err):
			return false, reservations.ErrUnknownProperty.Error(), nil
		case storage.IsInvalidRange(err):
			return false, availability.ErrInvalidRange.Error(), nil
		}
		return false, "", err
	}
	evt, err := reservations.CreatedEvent(*res)
	if err != nil {
		return false, "", err
	}
	if err := im.outbox.Insert(ctx, sp, evt); err != nil {
		return false, "", err
	}
	return true, "", sp.Commit(ctx)
}

func (im *Importer) recordSummary(ctx context.Context, tx pgx.Tx, s Summary, actor string) error {
	metadata := map[string]any{
		"batch_id": s.BatchID,
		"total":    s.Total,
		"imported": s.Imported,
		"failed":   s.Failed,
		"errors":   s.Errors,
	}
	if err := im.audit.Record(ctx, tx, audit.Entry{
		EventType: audit.ActionReservationImport,
		ActorID:   actor,
		EntityID:  s.BatchID,
		Metadata:  metadata,
	}); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	evt, err := summaryEvent(s, actor)
	if err != nil {
		return fmt.Errorf("build event: %w", err)
	}
	if err := im.outbox.Insert(ctx, tx, evt); err != nil {
		return fmt.Errorf("write outbox event: %w", err)
	}
	return nil
}
