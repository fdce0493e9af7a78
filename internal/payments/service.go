package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-appliance-care/internal/apperr"
	"github.com/ariefcatur/go-appliance-care/internal/auth"
	"github.com/ariefcatur/go-appliance-care/internal/bookings"
	"github.com/ariefcatur/go-appliance-care/internal/metrics"
	"github.com/ariefcatur/go-appliance-care/internal/orders"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindBooking Kind = "booking"
	KindOrder   Kind = "order"
)

func (k Kind) Valid() bool { return k == KindBooking || k == KindOrder }

type IntentStatus string

const (
	IntentCreated IntentStatus = "created"
	IntentPaid    IntentStatus = "paid"
)

// Intent binds a gateway order id to the booking or order it pays for.
// Verification trusts this row, never the client's claim.
type Intent struct {
	GatewayOrderID string
	Kind           Kind
	EntityID       string
	UserID         string
	AmountMinor    int64
	Currency       string
	Receipt        string
	Status         IntentStatus
	PaymentID      string
	CreatedAt      time.Time
}

var (
	ErrInvalidSignature = apperr.Validation("invalid payment signature")
	ErrUnknownOrder     = apperr.NotFound("payment order not found")
	ErrBindingMismatch  = apperr.Validation("payment order does not belong to this item")
	ErrAlreadyPaid      = apperr.Conflict("item is already paid")
	ErrNotPayable       = apperr.Conflict("item can no longer be paid")
)

type Repository interface {
	CreateIntent(ctx context.Context, in *Intent) error
	GetIntentForUpdate(ctx context.Context, gatewayOrderID string) (*Intent, error)
	MarkPaid(ctx context.Context, gatewayOrderID, paymentID string) error
}

type Bookings interface {
	Find(ctx context.Context, id string) (*bookings.Booking, error)
	CapturePayment(ctx context.Context, id, paymentID string) (*bookings.Booking, error)
}

type Orders interface {
	Find(ctx context.Context, id string) (*orders.Order, error)
	CapturePayment(ctx context.Context, id, paymentID string) (*orders.Order, error)
}

type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Notifier interface {
	PaymentCaptured(ctx context.Context, c Capture)
}

// Capture describes a payment that has just been recorded.
type Capture struct {
	Kind      Kind
	EntityID  string
	UserID    string
	PaymentID string
	Amount    decimal.Decimal
	Status    string
}

type Service struct {
	repo     Repository
	gateway  Gateway
	bookings Bookings
	orders   Orders
	tx       Transactor
	notify   Notifier
	keyID    string
	secret   string
	currency string
}

type Keys struct {
	KeyID     string
	KeySecret string
	Currency  string
}

func NewService(repo Repository, gw Gateway, b Bookings, o Orders, tx Transactor, notify Notifier, keys Keys) *Service {
	return &Service{
		repo: repo, gateway: gw, bookings: b, orders: o, tx: tx, notify: notify,
		keyID: keys.KeyID, secret: keys.KeySecret, currency: keys.Currency,
	}
}

type Checkout struct {
	Order *GatewayOrder `json:"order"`
	KeyID string        `json:"keyId"`
}

type payable struct {
	userID string
	total  decimal.Decimal
	paid   bool
	closed bool
}

func (s *Service) load(ctx context.Context, kind Kind, id string) (payable, error) {
	switch kind {
	case KindBooking:
		b, err := s.bookings.Find(ctx, id)
		if err != nil {
			return payable{}, err
		}
		return payable{
			userID: b.UserID,
			total:  b.Price.Total,
			paid:   b.Payment.Status == bookings.PaymentPaid,
			closed: b.Status.Terminal(),
		}, nil
	case KindOrder:
		o, err := s.orders.Find(ctx, id)
		if err != nil {
			return payable{}, err
		}
		return payable{
			userID: o.UserID,
			total:  o.Pricing.Total,
			paid:   o.Payment.Status == orders.PaymentPaid,
			closed: o.Status == orders.StatusCancelled || o.Status == orders.StatusReturned,
		}, nil
	}
	return payable{}, apperr.Validation(fmt.Sprintf("unknown payment type %q", kind))
}

// CreateOrder opens a gateway checkout for the caller's booking or order
// and records which item the gateway order pays for.
func (s *Service) CreateOrder(ctx context.Context, id auth.Identity, kind Kind, entityID string) (*Checkout, error) {
	p, err := s.load(ctx, kind, entityID)
	if err != nil {
		return nil, err
	}
	if p.userID != id.UserID {
		return nil, auth.ErrNotOwner
	}
	if p.paid {
		return nil, ErrAlreadyPaid
	}
	if p.closed {
		return nil, ErrNotPayable
	}

	amount := p.total.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	receipt := Receipt(kind, entityID)
	gw, err := s.gateway.CreateOrder(ctx, GatewayOrderRequest{
		Amount:   amount,
		Currency: s.currency,
		Receipt:  receipt,
		Notes:    map[string]string{"type": string(kind), "itemId": entityID},
	})
	if err != nil {
		return nil, err
	}
	in := &Intent{
		GatewayOrderID: gw.ID,
		Kind:           kind,
		EntityID:       entityID,
		UserID:         p.userID,
		AmountMinor:    amount,
		Currency:       s.currency,
		Receipt:        receipt,
		Status:         IntentCreated,
	}
	if err := s.repo.CreateIntent(ctx, in); err != nil {
		return nil, err
	}
	return &Checkout{Order: gw, KeyID: s.keyID}, nil
}

// Receipt fits the gateway's 40 character receipt limit by dropping the
// dashes from the uuid.
func Receipt(kind Kind, entityID string) string {
	return string(kind) + "_" + strings.ReplaceAll(entityID, "-", "")
}

type VerifyInput struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
	Type      Kind   `json:"type"`
	ItemID    string `json:"itemId"`
}

type Verified struct {
	Type    Kind              `json:"type"`
	Booking *bookings.Booking `json:"booking,omitempty"`
	Order   *orders.Order     `json:"order,omitempty"`
}

// Verify checks the checkout signature and, only when it matches, marks
// the bound item paid.
func (s *Service) Verify(ctx context.Context, id auth.Identity, in VerifyInput) (*Verified, error) {
	if in.OrderID == "" || in.PaymentID == "" || in.Signature == "" {
		return nil, apperr.Validation("razorpay_order_id, razorpay_payment_id and razorpay_signature are required")
	}
	if !VerifySignature(s.secret, in.OrderID, in.PaymentID, in.Signature) {
		metrics.PaymentVerifications.WithLabelValues("invalid_signature").Inc()
		return nil, ErrInvalidSignature
	}

	var (
		out      *Verified
		captured *Capture
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		intent, err := s.repo.GetIntentForUpdate(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if (in.Type != "" && in.Type != intent.Kind) || (in.ItemID != "" && in.ItemID != intent.EntityID) {
			return ErrBindingMismatch
		}
		if !id.Owns(intent.UserID) {
			return auth.ErrNotOwner
		}
		fresh := intent.Status != IntentPaid
		if !fresh && intent.PaymentID != in.PaymentID {
			return ErrAlreadyPaid
		}

		out = &Verified{Type: intent.Kind}
		c := Capture{Kind: intent.Kind, EntityID: intent.EntityID, UserID: intent.UserID, PaymentID: in.PaymentID}
		switch intent.Kind {
		case KindBooking:
			b, err := s.bookings.CapturePayment(ctx, intent.EntityID, in.PaymentID)
			if err != nil {
				return err
			}
			out.Booking = b
			c.Amount, c.Status = b.Price.Total, string(b.Status)
		case KindOrder:
			o, err := s.orders.CapturePayment(ctx, intent.EntityID, in.PaymentID)
			if err != nil {
				return err
			}
			out.Order = o
			c.Amount, c.Status = o.Pricing.Total, string(o.Status)
		default:
			return fmt.Errorf("payment intent %s has unknown kind %q", intent.GatewayOrderID, intent.Kind)
		}
		if !fresh {
			return nil
		}
		if err := s.repo.MarkPaid(ctx, intent.GatewayOrderID, in.PaymentID); err != nil {
			return err
		}
		captured = &c
		return nil
	})
	if err != nil {
		metrics.PaymentVerifications.WithLabelValues("rejected").Inc()
		return nil, err
	}
	metrics.PaymentVerifications.WithLabelValues("verified").Inc()
	if captured != nil {
		s.notify.PaymentCaptured(ctx, *captured)
	}
	return out, nil
}
