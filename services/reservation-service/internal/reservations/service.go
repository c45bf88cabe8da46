package reservations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/manphil/backoffice/services/reservation-service/internal/audit"
	"github.com/manphil/backoffice/services/reservation-service/internal/availability"
	"github.com/manphil/backoffice/services/reservation-service/internal/model"
	"github.com/manphil/backoffice/services/reservation-service/internal/outbox"
	"github.com/manphil/backoffice/services/reservation-service/internal/storage"
)

// Service performs reservation writes. Every write runs in one transaction that holds the
// property's advisory lock, re-checks availability against the locked snapshot, and writes
// the outbox event and audit record alongside the change.
type Service struct {
	repo   *storage.ReservationRepository
	outbox *outbox.Repository
	audit  *audit.Repository
	logger *slog.Logger
}

func NewService(repo *storage.ReservationRepository, outboxRepo *outbox.Repository, auditRepo *audit.Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, outbox: outboxRepo, audit: auditRepo, logger: logger}
}

type CreateResult struct {
	Reservation model.Reservation
	// Replayed is set when the idempotency key had already produced this reservation.
	Replayed bool
}

func (s *Service) Create(ctx context.Context, in NewReservation, idempotencyKey string) (CreateResult, error) {
	in, err := in.Normalize()
	if err != nil {
		return CreateResult{}, err
	}
	idempotencyKey = strings.TrimSpace(idempotencyKey)

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return CreateResult{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if idempotencyKey != "" {
		rec, exists, err := s.repo.LockIdempotencyKey(ctx, tx, in.PropertyID, idempotencyKey)
		if err != nil {
			return CreateResult{}, fmt.Errorf("lock idempotency key: %w", err)
		}
		if exists && rec.Done() {
			return s.replay(ctx, tx, rec)
		}
	}

	if err := s.repo.LockProperty(ctx, tx, in.PropertyID); err != nil {
		return CreateResult{}, fmt.Errorf("lock property: %w", err)
	}
	check, err := availability.NewChecker(s.repo.Snapshot(tx)).Check(ctx, availability.Query{
		PropertyID: in.PropertyID,
		Range:      in.Range,
	})
	if err != nil {
		return CreateResult{}, err
	}
	if !check.Available {
		conflictErr := &ConflictError{Conflicts: check.Conflicts}
		if idempotencyKey != "" {
			if err := s.finalizeConflict(ctx, tx, in.PropertyID, idempotencyKey, conflictErr); err != nil {
				return CreateResult{}, err
			}
		}
		return CreateResult{}, conflictErr
	}

	res := in.Model()
	if err := s.repo.Create(ctx, tx, &res); err != nil {
		return CreateResult{}, classifyWriteError(err)
	}

	evt, err := CreatedEvent(res)
	if err != nil {
		return CreateResult{}, fmt.Errorf("build event: %w", err)
	}
	if err := s.outbox.Insert(ctx, tx, evt); err != nil {
		return CreateResult{}, fmt.Errorf("write outbox event: %w", err)
	}
	if err := s.audit.Record(ctx, tx, audit.Entry{
		EventType: audit.ActionReservationCreated,
		ActorID:   in.CreatedBy,
		EntityID:  res.ID,
		Metadata: map[string]any{
			"property_id": res.PropertyID,
			"start_time":  res.Start,
			"end_time":    res.End,
			"status":      res.Status,
		},
	}); err != nil {
		return CreateResult{}, fmt.Errorf("write audit record: %w", err)
	}

	if idempotencyKey != "" {
		body, err := json.Marshal(ViewOf(res))
		if err != nil {
			return CreateResult{}, err
		}
		if err := s.repo.FinalizeIdempotency(ctx, tx, in.PropertyID, idempotencyKey, res.ID, http.StatusCreated, body); err != nil {
			return CreateResult{}, fmt.Errorf("finalize idempotency key: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return CreateResult{}, classifyWriteError(err)
	}
	s.logger.Info("reservation created", "reservation_id", res.ID, "property_id", res.PropertyID)
	return CreateResult{Reservation: res}, nil
}

func (s *Service) replay(ctx context.Context, tx pgx.Tx, rec storage.IdempotencyRecord) (CreateResult, error) {
	if rec.StatusCode == http.StatusConflict {
		var conflicts []availability.ConflictSummary
		if len(rec.ResponsePayload) > 0 {
			if err := json.Unmarshal(rec.ResponsePayload, &conflicts); err != nil {
				return CreateResult{}, fmt.Errorf("decode stored conflicts: %w", err)
			}
		}
		return CreateResult{}, &ConflictError{Conflicts: conflicts}
	}
	res, err := s.repo.GetForUpdate(ctx, tx, rec.ReservationID)
	if err != nil {
		return CreateResult{}, fmt.Errorf("load replayed reservation: %w", err)
	}
	return CreateResult{Reservation: res, Replayed: true}, tx.Commit(ctx)
}

// finalizeConflict records the rejection against the key and commits, so a retry with the
// same key gets the same answer even if the range frees up later.
func (s *Service) finalizeConflict(ctx context.Context, tx pgx.Tx, propertyID, key string, conflictErr *ConflictError) error {
	body, err := json.Marshal(conflictErr.Conflicts)
	if err != nil {
		return err
	}
	if err := s.repo.FinalizeIdempotency(ctx, tx, propertyID, key, "", http.StatusConflict, body); err != nil {
		return fmt.Errorf("finalize idempotency key: %w", err)
	}
	return tx.Commit(ctx)
}

type RescheduleRequest struct {
	ReservationID string
	Range         availability.DateRange
	Actor         string
}

// Reschedule moves a reservation to a new range. The reservation's own current range is
// excluded from the check so it never conflicts with itself.
func (s *Service) Reschedule(ctx context.Context, req RescheduleRequest) (model.Reservation, error) {
	req.ReservationID = strings.TrimSpace(req.ReservationID)
	if err := ValidateID(req.ReservationID, "reservation_id"); err != nil {
		return model.Reservation{}, err
	}
	if err := req.Range.Validate(); err != nil {
		return model.Reservation{}, err
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := s.repo.GetForUpdate(ctx, tx, req.ReservationID)
	if err != nil {
		return model.Reservation{}, err
	}
	if current.Status == availability.StatusCancelled {
		return model.Reservation{}, ErrCancelled
	}
	if err := s.repo.LockProperty(ctx, tx, current.PropertyID); err != nil {
		return model.Reservation{}, fmt.Errorf("lock property: %w", err)
	}

	check, err := availability.NewChecker(s.repo.Snapshot(tx)).Check(ctx, availability.Query{
		PropertyID:           current.PropertyID,
		Range:                req.Range,
		ExcludeReservationID: current.ID,
	})
	if err != nil {
		return model.Reservation{}, err
	}
	if !check.Available {
		return model.Reservation{}, &ConflictError{Conflicts: check.Conflicts}
	}

	updated := current
	updated.Start = req.Range.Start.UTC()
	updated.End = req.Range.End.UTC()
	updated.UpdatedAt, err = s.repo.UpdateRange(ctx, tx, current.ID, updated.Range())
	if err != nil {
		return model.Reservation{}, classifyWriteError(err)
	}

	evt, err := rescheduledEvent(current, updated, req.Actor)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("build event: %w", err)
	}
	if err := s.outbox.Insert(ctx, tx, evt); err != nil {
		return model.Reservation{}, fmt.Errorf("write outbox event: %w", err)
	}
	if err := s.audit.Record(ctx, tx, audit.Entry{
		EventType: audit.ActionReservationRescheduled,
		ActorID:   req.Actor,
		EntityID:  updated.ID,
		Metadata: map[string]any{
			"property_id":         updated.PropertyID,
			"previous_start_time": current.Start,
			"previous_end_time":   current.End,
			"start_time":          updated.Start,
			"end_time":            updated.End,
		},
	}); err != nil {
		return model.Reservation{}, fmt.Errorf("write audit record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Reservation{}, classifyWriteError(err)
	}
	s.logger.Info("reservation rescheduled", "reservation_id", updated.ID, "property_id", updated.PropertyID)
	return updated, nil
}

// Cancel is idempotent: cancelling a cancelled reservation returns it unchanged.
func (s *Service) Cancel(ctx context.Context, id, reason, actor string) (model.Reservation, error) {
	id = strings.TrimSpace(id)
	if err := ValidateID(id, "reservation_id"); err != nil {
		return model.Reservation{}, err
	}
	reason = strings.TrimSpace(reason)

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := s.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if current.Status == availability.StatusCancelled {
		return current, nil
	}

	cancelledAt, err := s.repo.Cancel(ctx, tx, id, reason)
	if err != nil {
		return model.Reservation{}, err
	}
	cancelled := current
	cancelled.Status = availability.StatusCancelled
	cancelled.CancelledAt = &cancelledAt
	cancelled.CancelReason = reason
	cancelled.UpdatedAt = cancelledAt

	evt, err := cancelledEvent(cancelled, actor)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("build event: %w", err)
	}
	if err := s.outbox.Insert(ctx, tx, evt); err != nil {
		return model.Reservation{}, fmt.Errorf("write outbox event: %w", err)
	}
	if err := s.audit.Record(ctx, tx, audit.Entry{
		EventType: audit.ActionReservationCancelled,
		ActorID:   actor,
		EntityID:  cancelled.ID,
		Metadata: map[string]any{
			"property_id": cancelled.PropertyID,
			"reason":      reason,
		},
	}); err != nil {
		return model.Reservation{}, fmt.Errorf("write audit record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Reservation{}, err
	}
	s.logger.Info("reservation cancelled", "reservation_id", cancelled.ID, "property_id", cancelled.PropertyID)
	return cancelled, nil
}

// classifyWriteError maps constraint violations onto the service's sentinel errors.
func classifyWriteError(err error) error {
	switch {
	case storage.IsConflict(err):
		return &ConflictError{}
	case storage.IsUnknownProperty(err):
		return ErrUnknownProperty
	case storage.IsInvalidRange(err):
		return fmt.Errorf("%w: %v", availability.ErrInvalidRange, err)
	case errors.Is(err, storage.ErrNotFound):
		return err
	}
	return fmt.Errorf("write reservation: %w", err)
}
