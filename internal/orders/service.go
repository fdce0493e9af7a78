package orders

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ariefcatur/go-appliance-care/internal/apperr"
	"github.com/ariefcatur/go-appliance-care/internal/auth"
	"github.com/ariefcatur/go-appliance-care/internal/catalog"
	"github.com/ariefcatur/go-appliance-care/internal/metrics"
	"github.com/google/uuid"
)

const MaxLines = 50

var (
	ErrNotFound          = apperr.NotFound("order not found")
	ErrNotCancellable    = apperr.Conflict("order cannot be cancelled")
	ErrInvalidTransition = apperr.Conflict("invalid order status transition")
	ErrStatusChanged     = apperr.Conflict("order status was changed by another request")
	ErrAlreadyPaid       = apperr.Conflict("order is already paid")
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	GetForUpdate(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, error)
	// SetStatus moves an order from one status to another and fails with
	// ErrStatusChanged when the stored status is no longer from.
	SetStatus(ctx context.Context, id string, from, to Status, tr *Tracking) error
	SetPayment(ctx context.Context, id string, p Payment, status Status) error
}

type Stock interface {
	DecrementStock(ctx context.Context, partID string, qty int) (catalog.StockLine, error)
	RestoreStock(ctx context.Context, partID string, qty int) error
}

type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier is called after a change has been committed. Implementations
// must not block and must not fail the caller.
type Notifier interface {
	OrderPlaced(ctx context.Context, o *Order)
	OrderStatusChanged(ctx context.Context, o *Order)
}

type Service struct {
	repo   Repository
	stock  Stock
	tx     Transactor
	notify Notifier
	now    func() time.Time
}

func NewService(repo Repository, stock Stock, tx Transactor, notify Notifier) *Service {
	return &Service{repo: repo, stock: stock, tx: tx, notify: notify, now: time.Now}
}

type ItemInput struct {
	SparePartID string `json:"sparePart"`
	Quantity    int    `json:"quantity"`
}

type PlaceInput struct {
	Items           []ItemInput `json:"items"`
	ShippingAddress Address     `json:"shippingAddress"`
	PaymentMethod   string      `json:"paymentMethod"`
}

var paymentMethods = map[string]bool{"cod": true, "razorpay": true}

// lines validates the request and merges repeated parts into one line,
// keeping the order in which each part first appears.
func (in PlaceInput) lines() ([]ItemInput, error) {
	if len(in.Items) == 0 {
		return nil, apperr.Validation("order must contain at least one item")
	}
	out := make([]ItemInput, 0, len(in.Items))
	index := make(map[string]int, len(in.Items))
	for _, it := range in.Items {
		if it.SparePartID == "" {
			return nil, apperr.Validation("sparePart is required for every item")
		}
		if it.Quantity < 1 {
			return nil, apperr.Validation(fmt.Sprintf("quantity for %s must be at least 1", it.SparePartID))
		}
		if i, seen := index[it.SparePartID]; seen {
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.SparePartID] = len(out)
		out = append(out, it)
	}
	if len(out) > MaxLines {
		return nil, apperr.Validation(fmt.Sprintf("order may contain at most %d different parts", MaxLines))
	}
	return out, nil
}

// lockOrder returns the indexes of lines sorted by part id, so concurrent
// placements lock stock rows in the same order.
func lockOrder(lines []ItemInput) []int {
	idx := make([]int, len(lines))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return lines[idx[a]].SparePartID < lines[idx[b]].SparePartID })
	return idx
}

func (a Address) validate() error {
	if strings.TrimSpace(a.Street) == "" || strings.TrimSpace(a.City) == "" ||
		strings.TrimSpace(a.State) == "" || strings.TrimSpace(a.Pincode) == "" {
		return apperr.Validation("shippingAddress requires street, city, state and pincode")
	}
	return nil
}

// Place checks out the caller's items. Every stock decrement and the order
// insert share one transaction, so either all lines are taken or none.
func (s *Service) Place(ctx context.Context, id auth.Identity, in PlaceInput) (*Order, error) {
	o, err := s.place(ctx, id, in)
	if err != nil {
		metrics.OrdersRejected.WithLabelValues(apperr.KindOf(err).String()).Inc()
		return nil, err
	}
	metrics.OrdersPlaced.Inc()
	s.notify.OrderPlaced(ctx, o)
	return o, nil
}

func (s *Service) place(ctx context.Context, id auth.Identity, in PlaceInput) (*Order, error) {
	lines, err := in.lines()
	if err != nil {
		return nil, err
	}
	if err := in.ShippingAddress.validate(); err != nil {
		return nil, err
	}
	method := in.PaymentMethod
	if method == "" {
		method = "cod"
	}
	if !paymentMethods[method] {
		return nil, apperr.Validation("paymentMethod must be cod or razorpay")
	}

	now := s.now().UTC()
	o := &Order{
		ID:              uuid.NewString(),
		UserID:          id.UserID,
		ShippingAddress: in.ShippingAddress,
		Status:          StatusPending,
		Payment:         Payment{Method: method, Status: PaymentPending},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		items := make([]LineItem, len(lines))
		for _, i := range lockOrder(lines) {
			l := lines[i]
			taken, err := s.stock.DecrementStock(ctx, l.SparePartID, l.Quantity)
			if err != nil {
				return err
			}
			items[i] = LineItem{
				SparePartID: l.SparePartID,
				Name:        taken.Name,
				Quantity:    l.Quantity,
				UnitPrice:   taken.Price,
			}
		}
		o.Items = items
		o.Pricing = ComputePricing(items)
		return s.repo.Create(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Cancel restores every line's stock and marks the order cancelled. The
// order row stays locked for the whole transaction, so a concurrent second
// cancel sees the new status and fails with ErrNotCancellable.
func (s *Service) Cancel(ctx context.Context, id auth.Identity, orderID string) (*Order, error) {
	var out *Order
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !id.Owns(o.UserID) {
			return auth.ErrNotOwner
		}
		if !Cancellable(o.Status) {
			return fmt.Errorf("%w: order is %s", ErrNotCancellable, o.Status)
		}
		for _, it := range o.Items {
			if err := s.stock.RestoreStock(ctx, it.SparePartID, it.Quantity); err != nil {
				return err
			}
		}
		if err := s.repo.SetStatus(ctx, o.ID, o.Status, StatusCancelled, nil); err != nil {
			return err
		}
		o.Status = StatusCancelled
		o.UpdatedAt = s.now().UTC()
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify.OrderStatusChanged(ctx, out)
	return out, nil
}

type StatusInput struct {
	Status            Status     `json:"status"`
	Carrier           string     `json:"carrier"`
	TrackingNumber    string     `json:"trackingNumber"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery"`
}

// UpdateStatus is the admin fulfilment path. Moving to cancelled goes
// through Cancel so stock is restored.
func (s *Service) UpdateStatus(ctx context.Context, id auth.Identity, orderID string, in StatusInput) (*Order, error) {
	if err := id.RequireAdmin(); err != nil {
		return nil, err
	}
	if !in.Status.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("unknown order status %q", in.Status))
	}
	if in.Status == StatusCancelled {
		return s.Cancel(ctx, id, orderID)
	}

	var out *Order
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, in.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, in.Status)
		}
		tr := o.Tracking
		if in.Carrier != "" {
			tr.Carrier = in.Carrier
		}
		if in.TrackingNumber != "" {
			tr.TrackingNumber = in.TrackingNumber
		}
		if in.EstimatedDelivery != nil {
			tr.EstimatedDelivery = in.EstimatedDelivery
		}
		if err := s.repo.SetStatus(ctx, o.ID, o.Status, in.Status, &tr); err != nil {
			return err
		}
		o.Status = in.Status
		o.Tracking = tr
		o.UpdatedAt = s.now().UTC()
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify.OrderStatusChanged(ctx, out)
	return out, nil
}

// Get returns an order visible to the caller.
func (s *Service) Get(ctx context.Context, id auth.Identity, orderID string) (*Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !id.Owns(o.UserID) {
		return nil, auth.ErrNotOwner
	}
	return o, nil
}

// Find loads an order without an access check. Callers do their own.
func (s *Service) Find(ctx context.Context, orderID string) (*Order, error) {
	return s.repo.Get(ctx, orderID)
}

// List returns every order for admins and the caller's own otherwise,
// newest first.
func (s *Service) List(ctx context.Context, id auth.Identity, status Status) ([]Order, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("unknown order status %q", status))
	}
	f := ListFilter{Status: status}
	if !id.IsAdmin() {
		f.UserID = id.UserID
	}
	return s.repo.List(ctx, f)
}

// CapturePayment records a verified gateway payment and moves a pending
// order to processing. Capturing the same payment again is a no-op.
func (s *Service) CapturePayment(ctx context.Context, orderID, paymentID string) (*Order, error) {
	var out *Order
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Payment.Status == PaymentPaid {
			if o.Payment.TransactionID == paymentID {
				out = o
				return nil
			}
			return ErrAlreadyPaid
		}
		if o.Status == StatusCancelled || o.Status == StatusReturned {
			return fmt.Errorf("%w: order is %s", ErrInvalidTransition, o.Status)
		}
		next := o.Status
		if o.Status == StatusPending {
			next = StatusProcessing
		}
		pay := Payment{Method: "razorpay", Status: PaymentPaid, TransactionID: paymentID}
		if err := s.repo.SetPayment(ctx, o.ID, pay, next); err != nil {
			return err
		}
		o.Payment = pay
		o.Status = next
		o.UpdatedAt = s.now().UTC()
		out = o
		return nil
	})
	return out, err
}
