package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-appliance-care/internal/auth"
	"github.com/ariefcatur/go-appliance-care/internal/payments"
	"github.com/go-chi/chi/v5"
)

type PaymentService interface {
	CreateOrder(ctx context.Context, id auth.Identity, kind payments.Kind, entityID string) (*payments.Checkout, error)
	Verify(ctx context.Context, id auth.Identity, in payments.VerifyInput) (*payments.Verified, error)
}

type PaymentsHandler struct {
	Payments PaymentService
	Log      *slog.Logger
}

func (h *PaymentsHandler) createOrder(kind payments.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := h.Payments.CreateOrder(r.Context(), identity(r), kind, chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		ok(w, http.StatusOK, c)
	}
}

func (h *PaymentsHandler) verify(w http.ResponseWriter, r *http.Request) {
	var req payments.VerifyInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	v, err := h.Payments.Verify(r.Context(), identity(r), req)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, v)
}
