package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/manphil/backoffice/libs/httpx"
	"github.com/manphil/backoffice/services/reservation-service/internal/audit"
)

type AuditLister interface {
	ListRecent(ctx context.Context, limit int) ([]audit.AuditEvent, error)
}

type AuditHandler struct {
	lister AuditLister
	logger *slog.Logger
}

func NewAuditHandler(lister AuditLister, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{lister: lister, logger: logger}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	events, err := h.lister.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("list audit events failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list audit events")
		return
	}
	if events == nil {
		events = []audit.AuditEvent{}
	}
	httpx.WriteJSON(w, http.StatusOK, events)
}
