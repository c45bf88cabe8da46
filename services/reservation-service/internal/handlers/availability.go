package handlers

import (
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/manphil/backoffice/libs/httpx"
	"github.com/manphil/backoffice/services/reservation-service/internal/availability"
)

type AvailabilityHandler struct {
	checker      *availability.Checker
	defaultGrace time.Duration
	logger       *slog.Logger
}

func NewAvailabilityHandler(checker *availability.Checker, defaultGrace time.Duration, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{checker: checker, defaultGrace: defaultGrace, logger: logger}
}

// Check answers GET /api/v1/availability?property_id&start&end[&exclude_reservation_id].
func (h *AvailabilityHandler) Check(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	q := r.URL.Query()
	rng, err := parseRange(q.Get("start"), q.Get("end"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.checker.Check(r.Context(), availability.Query{
		PropertyID:           strings.TrimSpace(q.Get("property_id")),
		Range:                rng,
		ExcludeReservationID: strings.TrimSpace(q.Get("exclude_reservation_id")),
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

type analyzeRequest struct {
	PropertyID           string   `json:"property_id"`
	Start                string   `json:"start"`
	End                  string   `json:"end"`
	ExcludeReservationID string   `json:"exclude_reservation_id"`
	GracePeriodHours     *float64 `json:"grace_period_hours"`
	SuggestAlternatives  bool     `json:"suggest_alternatives"`
}

// Analyze answers POST /api/v1/availability/analyze.
func (h *AvailabilityHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req analyzeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	rng, err := parseRange(req.Start, req.End)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	grace := h.defaultGrace
	if req.GracePeriodHours != nil {
		hours := *req.GracePeriodHours
		if math.IsNaN(hours) || hours < 0 || hours > 24*365 {
			httpx.WriteError(w, http.StatusBadRequest, "grace_period_hours must be between 0 and 8760")
			return
		}
		grace = time.Duration(hours * float64(time.Hour))
	}

	res, err := h.checker.CheckAdvanced(r.Context(), availability.AdvancedQuery{
		Query: availability.Query{
			PropertyID:           strings.TrimSpace(req.PropertyID),
			Range:                rng,
			ExcludeReservationID: strings.TrimSpace(req.ExcludeReservationID),
		},
		GracePeriod:         grace,
		SuggestAlternatives: req.SuggestAlternatives,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}
