package handlers

import (
	"net/http"

	"github.com/manphil/backoffice/libs/auth"
)

type Routes struct {
	Availability *AvailabilityHandler
	Reservations *ReservationHandler
	Audit        *AuditHandler
	JWTSecret    string
}

// Register mounts the API on mux. Every route requires a bearer token; writes are limited
// to admins and managers, imports and the audit trail to admins.
func Register(mux *http.ServeMux, rt Routes) {
	anyRole := []string{auth.RoleAdmin, auth.RoleManager, auth.RoleViewer}
	writers := []string{auth.RoleAdmin, auth.RoleManager}
	admins := []string{auth.RoleAdmin}

	guard := func(h http.HandlerFunc, roles []string) http.Handler {
		return auth.RequireAuth(auth.RequireRole(h, roles...), rt.JWTSecret)
	}

	mux.Handle("/api/v1/availability", guard(rt.Availability.Check, anyRole))
	mux.Handle("/api/v1/availability/analyze", guard(rt.Availability.Analyze, anyRole))
	mux.Handle("/api/v1/reservations", auth.RequireAuth(collectionGuard(rt.Reservations, anyRole, writers), rt.JWTSecret))
	mux.Handle("/api/v1/reservations/reschedule", guard(rt.Reservations.Reschedule, writers))
	mux.Handle("/api/v1/reservations/cancel", guard(rt.Reservations.Cancel, writers))
	mux.Handle("/api/v1/reservations/import", guard(rt.Reservations.Import, admins))
	mux.Handle("/api/v1/audit", guard(rt.Audit.List, admins))
}

// collectionGuard lets any role list but only writers create.
func collectionGuard(h *ReservationHandler, readers, writers []string) http.Handler {
	read := auth.RequireRole(http.HandlerFunc(h.Collection), readers...)
	write := auth.RequireRole(http.HandlerFunc(h.Collection), writers...)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			write.ServeHTTP(w, r)
			return
		}
		read.ServeHTTP(w, r)
	})
}
