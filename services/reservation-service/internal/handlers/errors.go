package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/manphil/backoffice/libs/httpx"
	"github.com/manphil/backoffice/services/reservation-service/internal/availability"
	"github.com/manphil/backoffice/services/reservation-service/internal/imports"
	"github.com/manphil/backoffice/services/reservation-service/internal/reservations"
	"github.com/manphil/backoffice/services/reservation-service/internal/storage"
)

type conflictResponse struct {
	Error     string                         `json:"error"`
	Conflicts []availability.ConflictSummary `json:"conflicts"`
}

// writeServiceError maps domain errors onto status codes. Anything unrecognised is a 500
// and is logged, the client only sees a generic message.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var conflictErr *reservations.ConflictError
	switch {
	case errors.As(err, &conflictErr):
		conflicts := conflictErr.Conflicts
		if conflicts == nil {
			conflicts = []availability.ConflictSummary{}
		}
		httpx.WriteJSON(w, http.StatusConflict, conflictResponse{Error: reservations.ErrUnavailable.Error(), Conflicts: conflicts})
	case errors.Is(err, availability.ErrInvalidRange),
		errors.Is(err, availability.ErrMissingProperty),
		errors.Is(err, availability.ErrInvalidGracePeriod),
		errors.Is(err, reservations.ErrInvalidInput),
		errors.Is(err, imports.ErrEmptyBatch),
		errors.Is(err, imports.ErrBatchTooLarge):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, reservations.ErrUnknownProperty):
		httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case storage.IsNotFound(err):
		httpx.WriteError(w, http.StatusNotFound, "reservation not found")
	case errors.Is(err, reservations.ErrCancelled):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	default:
		logger.Error("request failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

const dateLayout = "2006-01-02"

// parseTime accepts RFC 3339 timestamps or plain dates, which mean midnight UTC.
func parseTime(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", availability.ErrInvalidRange, field)
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %s must be RFC 3339 or YYYY-MM-DD", availability.ErrInvalidRange, field)
}

func parseRange(startRaw, endRaw string) (availability.DateRange, error) {
	start, err := parseTime("start", startRaw)
	if err != nil {
		return availability.DateRange{}, err
	}
	end, err := parseTime("end", endRaw)
	if err != nil {
		return availability.DateRange{}, err
	}
	return availability.NewDateRange(start, end)
}
