package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-appliance-care/internal/apperr"
	"github.com/ariefcatur/go-appliance-care/internal/auth"
	"github.com/ariefcatur/go-appliance-care/internal/orders"
	"github.com/go-chi/chi/v5"
)

type OrderService interface {
	Place(ctx context.Context, id auth.Identity, in orders.PlaceInput) (*orders.Order, error)
	Get(ctx context.Context, id auth.Identity, orderID string) (*orders.Order, error)
	List(ctx context.Context, id auth.Identity, status orders.Status) ([]orders.Order, error)
	UpdateStatus(ctx context.Context, id auth.Identity, orderID string, in orders.StatusInput) (*orders.Order, error)
	Cancel(ctx context.Context, id auth.Identity, orderID string) (*orders.Order, error)
}

type OrdersHandler struct {
	Orders OrderService
	Log    *slog.Logger
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.PlaceInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	o, err := h.Orders.Place(r.Context(), identity(r), req)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusCreated, o)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	status := orders.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, r, h.Log, apperr.Validation("unknown order status "+string(status)))
		return
	}
	list, err := h.Orders.List(r.Context(), identity(r), status)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	okList(w, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.Get(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, o)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req orders.StatusInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	o, err := h.Orders.UpdateStatus(r.Context(), identity(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, o)
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.Cancel(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, o)
}
