package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-appliance-care/internal/apperr"
	"github.com/ariefcatur/go-appliance-care/internal/auth"
	"github.com/ariefcatur/go-appliance-care/internal/bookings"
	"github.com/go-chi/chi/v5"
)

type BookingService interface {
	Create(ctx context.Context, id auth.Identity, in bookings.CreateInput) (*bookings.Booking, error)
	Get(ctx context.Context, id auth.Identity, bookingID string) (*bookings.Booking, error)
	List(ctx context.Context, id auth.Identity, status bookings.Status) ([]bookings.Booking, error)
	UpdateStatus(ctx context.Context, id auth.Identity, bookingID string, in bookings.StatusInput) (*bookings.Booking, error)
	Cancel(ctx context.Context, id auth.Identity, bookingID string) (*bookings.Booking, error)
	Rate(ctx context.Context, id auth.Identity, bookingID string, in bookings.RatingInput) (*bookings.Booking, error)
}

type BookingsHandler struct {
	Bookings BookingService
	Log      *slog.Logger
}

func (h *BookingsHandler) createBooking(w http.ResponseWriter, r *http.Request) {
	var req bookings.CreateInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	b, err := h.Bookings.Create(r.Context(), identity(r), req)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusCreated, b)
}

func (h *BookingsHandler) listBookings(w http.ResponseWriter, r *http.Request) {
	status := bookings.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, r, h.Log, apperr.Validation("unknown booking status "+string(status)))
		return
	}
	list, err := h.Bookings.List(r.Context(), identity(r), status)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	okList(w, list)
}

func (h *BookingsHandler) getBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.Bookings.Get(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, b)
}

func (h *BookingsHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req bookings.StatusInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	b, err := h.Bookings.UpdateStatus(r.Context(), identity(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, b)
}

func (h *BookingsHandler) cancelBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.Bookings.Cancel(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, b)
}

func (h *BookingsHandler) rateBooking(w http.ResponseWriter, r *http.Request) {
	var req bookings.RatingInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	b, err := h.Bookings.Rate(r.Context(), identity(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, b)
}
