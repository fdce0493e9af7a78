package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-appliance-care/internal/auth"
	"github.com/ariefcatur/go-appliance-care/internal/tracking"
	"github.com/go-chi/chi/v5"
)

type TrackingService interface {
	Update(ctx context.Context, id auth.Identity, in tracking.UpdateInput) (*tracking.Location, error)
	Last(ctx context.Context, id auth.Identity, bookingID string) (*tracking.Location, error)
}

type TrackingHandler struct {
	Tracking TrackingService
	Log      *slog.Logger
}

func (h *TrackingHandler) updateLocation(w http.ResponseWriter, r *http.Request) {
	var req tracking.UpdateInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	loc, err := h.Tracking.Update(r.Context(), identity(r), req)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, loc)
}

func (h *TrackingHandler) lastLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := h.Tracking.Last(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, loc)
}
