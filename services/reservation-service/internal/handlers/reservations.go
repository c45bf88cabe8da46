package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/manphil/backoffice/libs/auth"
	"github.com/manphil/backoffice/libs/httpx"
	"github.com/manphil/backoffice/services/reservation-service/internal/availability"
	"github.com/manphil/backoffice/services/reservation-service/internal/imports"
	"github.com/manphil/backoffice/services/reservation-service/internal/model"
	"github.com/manphil/backoffice/services/reservation-service/internal/reservations"
	"github.com/manphil/backoffice/services/reservation-service/internal/storage"
)

type ReservationWriter interface {
	Create(ctx context.Context, in reservations.NewReservation, idempotencyKey string) (reservations.CreateResult, error)
	Reschedule(ctx context.Context, req reservations.RescheduleRequest) (model.Reservation, error)
	Cancel(ctx context.Context, id, reason, actor string) (model.Reservation, error)
}

type ReservationLister interface {
	List(ctx context.Context, f storage.ListFilter) ([]model.Reservation, error)
}

type BatchImporter interface {
	Run(ctx context.Context, rows []imports.Row, actor string) (imports.Summary, error)
}

type ReservationHandler struct {
	writer   ReservationWriter
	lister   ReservationLister
	importer BatchImporter
	logger   *slog.Logger
}

func NewReservationHandler(writer ReservationWriter, lister ReservationLister, importer BatchImporter, logger *slog.Logger) *ReservationHandler {
	return &ReservationHandler{writer: writer, lister: lister, importer: importer, logger: logger}
}

type createReservationRequest struct {
	PropertyID string `json:"property_id"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Status     string `json:"status"`
	Type       string `json:"type"`
	GuestName  string `json:"guest_name"`
	GuestEmail string `json:"guest_email"`
	Notes      string `json:"notes"`
}

// Collection serves GET (list) and POST (create) on /api/v1/reservations.
func (h *ReservationHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.List(w, r)
	case http.MethodPost:
		h.Create(w, r)
	default:
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReservationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	rng, err := parseRange(req.Start, req.End)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var status availability.Status
	if strings.TrimSpace(req.Status) != "" {
		if status, err = availability.ParseStatus(req.Status); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	res, err := h.writer.Create(r.Context(), reservations.NewReservation{
		PropertyID: req.PropertyID,
		Range:      rng,
		Status:     status,
		Type:       req.Type,
		GuestName:  req.GuestName,
		GuestEmail: req.GuestEmail,
		Notes:      req.Notes,
		CreatedBy:  auth.Actor(r),
	}, r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if res.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	httpx.WriteJSON(w, http.StatusCreated, reservations.ViewOf(res.Reservation))
}

func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := storage.ListFilter{PropertyID: strings.TrimSpace(q.Get("property_id"))}
	if f.PropertyID != "" {
		if err := reservations.ValidateID(f.PropertyID, "property_id"); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if raw := q.Get("from"); raw != "" {
		t, err := parseTime("from", raw)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := parseTime("to", raw)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.To = t
	}
	if raw := q.Get("status"); raw != "" {
		s, err := availability.ParseStatus(raw)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Status = s
	}
	f.Limit = 50
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			f.Limit = n
		}
	}

	list, err := h.lister.List(r.Context(), f)
	if err != nil {
		h.logger.Error("list reservations failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list reservations")
		return
	}
	items := make([]reservations.View, 0, len(list))
	for _, m := range list {
		items = append(items, reservations.ViewOf(m))
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

type rescheduleRequest struct {
	ReservationID string `json:"reservation_id"`
	Start         string `json:"start"`
	End           string `json:"end"`
}

func (h *ReservationHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req rescheduleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	rng, err := parseRange(req.Start, req.End)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.writer.Reschedule(r.Context(), reservations.RescheduleRequest{
		ReservationID: req.ReservationID,
		Range:         rng,
		Actor:         auth.Actor(r),
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, reservations.ViewOf(res))
}

type cancelRequest struct {
	ReservationID string `json:"reservation_id"`
	Reason        string `json:"reason"`
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req cancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	res, err := h.writer.Cancel(r.Context(), req.ReservationID, req.Reason, auth.Actor(r))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, reservations.ViewOf(res))
}

type importRequest struct {
	Rows []imports.Row `json:"rows"`
}

func (h *ReservationHandler) Import(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req importRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	summary, err := h.importer.Run(r.Context(), req.Rows, auth.Actor(r))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, summary)
}
