package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ariefcatur/go-appliance-care/internal/auth"
	"github.com/ariefcatur/go-appliance-care/internal/payments"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	Log            *slog.Logger
	Tokens         *auth.Tokens
	Users          UserService
	Catalog        CatalogService
	Orders         OrderService
	Bookings       BookingService
	Payments       PaymentService
	Tracking       TrackingService
	Hub            Subscriber
	Idempotency    IdempotencyStore
	RequestTimeout time.Duration
	// CheckOrigin overrides the same-origin check on WebSocket upgrades.
	CheckOrigin func(r *http.Request) bool
}

func NewRouter(d Deps) *chi.Mux {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 15 * time.Second
	}
	log := d.Log

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(log), middleware.Recoverer, measure)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Method(http.MethodGet, "/ws", &WSHandler{
		Hub:      d.Hub,
		Tokens:   d.Tokens,
		Users:    d.Users,
		Bookings: d.Bookings,
		Orders:   d.Orders,
		Log:      log,
		Upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024, CheckOrigin: d.CheckOrigin},
	})

	uh := &UsersHandler{Users: d.Users, Log: log}
	ch := &CatalogHandler{Catalog: d.Catalog, Log: log}
	oh := &OrdersHandler{Orders: d.Orders, Log: log}
	bh := &BookingsHandler{Bookings: d.Bookings, Log: log}
	ph := &PaymentsHandler{Payments: d.Payments, Log: log}
	th := &TrackingHandler{Tracking: d.Tracking, Log: log}

	authed := requireAuth(d.Tokens, d.Users, log)
	adminOnly := requireRole(auth.RoleAdmin)
	once := idempotent(d.Idempotency, log)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(d.RequestTimeout))

		r.Post("/auth/register", uh.register)
		r.Post("/auth/login", uh.login)

		r.Get("/categories", ch.listCategories)
		r.Get("/categories/{id}", ch.getCategory)
		r.Get("/services", ch.listServices)
		r.Get("/services/{id}", ch.getService)
		r.Get("/spare-parts", ch.listParts)
		r.Get("/spare-parts/{id}", ch.getPart)

		r.Group(func(r chi.Router) {
			r.Use(authed)

			r.Get("/users/profile", uh.profile)
			r.Put("/users/profile", uh.updateProfile)
			r.Get("/users/addresses", uh.listAddresses)
			r.Post("/users/addresses", uh.addAddress)
			r.Put("/users/addresses/{addressId}", uh.updateAddress)
			r.Delete("/users/addresses/{addressId}", uh.deleteAddress)

			r.With(once).Post("/orders", oh.createOrder)
			r.Get("/orders", oh.listOrders)
			r.Get("/orders/{id}", oh.getOrder)
			r.Put("/orders/{id}/cancel", oh.cancelOrder)

			r.With(once).Post("/bookings", bh.createBooking)
			r.Get("/bookings", bh.listBookings)
			r.Get("/bookings/{id}", bh.getBooking)
			r.Put("/bookings/{id}/cancel", bh.cancelBooking)
			r.Post("/bookings/{id}/rating", bh.rateBooking)

			r.Post("/payments/booking/{id}/create-order", ph.createOrder(payments.KindBooking))
			r.Post("/payments/order/{id}/create-order", ph.createOrder(payments.KindOrder))
			r.Post("/payments/verify", ph.verify)

			r.With(requireRole(auth.RoleTechnician)).Post("/tracking/location", th.updateLocation)
			r.Get("/tracking/booking/{id}", th.lastLocation)

			r.Group(func(r chi.Router) {
				r.Use(adminOnly)

				r.Get("/users", uh.list)
				r.Put("/users/{id}/role", uh.updateRole)

				r.Post("/categories", ch.createCategory)
				r.Post("/services", ch.createService)
				r.Put("/services/{id}", ch.updateService)
				r.Delete("/services/{id}", ch.deleteService)
				r.Post("/spare-parts", ch.createPart)
				r.Put("/spare-parts/{id}", ch.updatePart)
				r.Delete("/spare-parts/{id}", ch.deletePart)

				r.Put("/orders/{id}/status", oh.updateStatus)
				r.Put("/bookings/{id}/status", bh.updateStatus)
			})
		})
	})
	return r
}
