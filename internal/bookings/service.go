package bookings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-appliance-care/internal/apperr"
	"github.com/ariefcatur/go-appliance-care/internal/auth"
	"github.com/ariefcatur/go-appliance-care/internal/catalog"
	"github.com/ariefcatur/go-appliance-care/internal/metrics"
	"github.com/ariefcatur/go-appliance-care/internal/users"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var TaxRate = decimal.RequireFromString("0.18")

var (
	ErrNotFound          = apperr.NotFound("booking not found")
	ErrNotCancellable    = apperr.Conflict("booking cannot be cancelled")
	ErrInvalidTransition = apperr.Conflict("invalid booking status transition")
	ErrStatusChanged     = apperr.Conflict("booking status was changed by another request")
	ErrNotCompleted      = apperr.Conflict("only completed bookings can be rated")
	ErrAlreadyRated      = apperr.Conflict("booking has already been rated")
	ErrAlreadyPaid       = apperr.Conflict("booking is already paid")
	ErrNotTechnician     = apperr.Validation("assigned user is not a technician")
)

type Repository interface {
	Create(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id string) (*Booking, error)
	GetForUpdate(ctx context.Context, id string) (*Booking, error)
	List(ctx context.Context, f ListFilter) ([]Booking, error)
	// SetStatus fails with ErrStatusChanged when the stored status is no
	// longer from.
	SetStatus(ctx context.Context, id string, from, to Status, technicianID *string) error
	SetPayment(ctx context.Context, id string, p Payment, status Status) error
	// SetRating fails with ErrAlreadyRated unless the booking is completed
	// and unrated.
	SetRating(ctx context.Context, id string, r Rating) error
}

type Catalog interface {
	GetService(ctx context.Context, id string) (*catalog.RepairService, error)
	GetCategory(ctx context.Context, id string) (*catalog.Category, error)
}

type Users interface {
	Get(ctx context.Context, id string) (*users.User, error)
}

type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Notifier interface {
	BookingCreated(ctx context.Context, b *Booking)
	BookingStatusChanged(ctx context.Context, b *Booking)
}

type Service struct {
	repo    Repository
	catalog Catalog
	users   Users
	tx      Transactor
	notify  Notifier
	now     func() time.Time
}

func NewService(repo Repository, cat Catalog, us Users, tx Transactor, notify Notifier) *Service {
	return &Service{repo: repo, catalog: cat, users: us, tx: tx, notify: notify, now: time.Now}
}

type CreateInput struct {
	ServiceID     string    `json:"service"`
	Appliance     Appliance `json:"appliance"`
	ScheduledDate string    `json:"scheduledDate"`
	TimeSlot      TimeSlot  `json:"timeSlot"`
	Address       Address   `json:"address"`
	Notes         string    `json:"notes"`
	PaymentMethod string    `json:"paymentMethod"`
}

var paymentMethods = map[string]bool{"cash": true, "razorpay": true}

func (in CreateInput) validate(today time.Time) (time.Time, error) {
	if in.ServiceID == "" {
		return time.Time{}, apperr.Validation("service is required")
	}
	if in.Appliance.CategoryID == "" {
		return time.Time{}, apperr.Validation("appliance.category is required")
	}
	if y := in.Appliance.PurchaseYear; y != nil && (*y < 1950 || *y > today.Year()) {
		return time.Time{}, apperr.Validation("appliance.purchaseYear is out of range")
	}
	date, err := parseDate(in.ScheduledDate)
	if err != nil {
		return time.Time{}, err
	}
	if date.Before(today) {
		return time.Time{}, apperr.Validation("scheduledDate cannot be in the past")
	}
	if err := in.TimeSlot.validate(); err != nil {
		return time.Time{}, err
	}
	a := in.Address
	if strings.TrimSpace(a.Street) == "" || strings.TrimSpace(a.City) == "" ||
		strings.TrimSpace(a.State) == "" || strings.TrimSpace(a.Pincode) == "" {
		return time.Time{}, apperr.Validation("address requires street, city, state and pincode")
	}
	return date, nil
}

// parseDate accepts a calendar date or an RFC 3339 timestamp and keeps the
// date part.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(DateLayout, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, apperr.Validation("scheduledDate must be a date (YYYY-MM-DD)")
}

func (ts TimeSlot) validate() error {
	start, err1 := time.Parse("15:04", ts.Start)
	end, err2 := time.Parse("15:04", ts.End)
	if err1 != nil || err2 != nil {
		return apperr.Validation("timeSlot start and end must be HH:MM")
	}
	if !start.Before(end) {
		return apperr.Validation("timeSlot start must be before end")
	}
	return nil
}

// ComputePrice prices a booking from the service's base price. Parts are
// billed separately once the technician has inspected the appliance.
func ComputePrice(base decimal.Decimal) Price {
	service := base.Round(2)
	parts := decimal.Zero
	tax := service.Add(parts).Mul(TaxRate).Round(2)
	return Price{Service: service, Parts: parts, Tax: tax, Total: service.Add(parts).Add(tax)}
}

func (s *Service) Create(ctx context.Context, id auth.Identity, in CreateInput) (*Booking, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	date, err := in.validate(today)
	if err != nil {
		return nil, err
	}
	method := in.PaymentMethod
	if method == "" {
		method = "cash"
	}
	if !paymentMethods[method] {
		return nil, apperr.Validation("paymentMethod must be cash or razorpay")
	}

	svc, err := s.catalog.GetService(ctx, in.ServiceID)
	if err != nil {
		return nil, err
	}
	if !svc.IsActive {
		return nil, fmt.Errorf("%w: service is no longer offered", catalog.ErrServiceNotFound)
	}
	if _, err := s.catalog.GetCategory(ctx, in.Appliance.CategoryID); err != nil {
		return nil, err
	}

	b := &Booking{
		ID:            uuid.NewString(),
		UserID:        id.UserID,
		ServiceID:     svc.ID,
		Appliance:     in.Appliance,
		ScheduledDate: date,
		TimeSlot:      in.TimeSlot,
		Address:       in.Address,
		Status:        StatusPending,
		Price:         ComputePrice(svc.Price.Base),
		Payment:       Payment{Method: method, Status: PaymentPending},
		Notes:         strings.TrimSpace(in.Notes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}
	metrics.BookingsCreated.Inc()
	s.notify.BookingCreated(ctx, b)
	return b, nil
}

// List returns every booking for admins, assigned bookings for
// technicians and the caller's own otherwise.
func (s *Service) List(ctx context.Context, id auth.Identity, status Status) ([]Booking, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("unknown booking status %q", status))
	}
	f := ListFilter{Status: status}
	switch {
	case id.IsAdmin():
	case id.IsTechnician():
		f.TechnicianID = id.UserID
	default:
		f.UserID = id.UserID
	}
	return s.repo.List(ctx, f)
}

func (s *Service) Get(ctx context.Context, id auth.Identity, bookingID string) (*Booking, error) {
	b, err := s.repo.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !b.VisibleTo(id) {
		return nil, auth.ErrNotOwner
	}
	return b, nil
}

// Find loads a booking without an access check.
func (s *Service) Find(ctx context.Context, bookingID string) (*Booking, error) {
	return s.repo.Get(ctx, bookingID)
}

type StatusInput struct {
	Status       Status `json:"status"`
	TechnicianID string `json:"technician"`
}

// UpdateStatus is admin-only. Moving to cancelled goes through Cancel.
func (s *Service) UpdateStatus(ctx context.Context, id auth.Identity, bookingID string, in StatusInput) (*Booking, error) {
	if err := id.RequireAdmin(); err != nil {
		return nil, err
	}
	if !in.Status.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("unknown booking status %q", in.Status))
	}
	if in.Status == StatusCancelled {
		return s.Cancel(ctx, id, bookingID)
	}
	var tech *string
	if in.TechnicianID != "" {
		u, err := s.users.Get(ctx, in.TechnicianID)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				return nil, fmt.Errorf("%w: %s", ErrNotTechnician, in.TechnicianID)
			}
			return nil, err
		}
		if u.Role != auth.RoleTechnician || !u.IsActive {
			return nil, fmt.Errorf("%w: %s", ErrNotTechnician, in.TechnicianID)
		}
		tech = &u.ID
	}

	var out *Booking
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if !CanTransition(b.Status, in.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, in.Status)
		}
		if tech == nil {
			tech = b.TechnicianID
		}
		if in.Status == StatusTechnicianAssigned && tech == nil {
			return apperr.Validation("technician is required to assign a booking")
		}
		if err := s.repo.SetStatus(ctx, b.ID, b.Status, in.Status, tech); err != nil {
			return err
		}
		b.Status = in.Status
		b.TechnicianID = tech
		b.UpdatedAt = s.now().UTC()
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify.BookingStatusChanged(ctx, out)
	return out, nil
}

// Cancel is allowed for the owner or an admin until the booking is
// completed or already cancelled.
func (s *Service) Cancel(ctx context.Context, id auth.Identity, bookingID string) (*Booking, error) {
	var out *Booking
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if !id.Owns(b.UserID) {
			return auth.ErrNotOwner
		}
		if b.Status.Terminal() {
			return fmt.Errorf("%w: booking is %s", ErrNotCancellable, b.Status)
		}
		if err := s.repo.SetStatus(ctx, b.ID, b.Status, StatusCancelled, b.TechnicianID); err != nil {
			return err
		}
		b.Status = StatusCancelled
		b.UpdatedAt = s.now().UTC()
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify.BookingStatusChanged(ctx, out)
	return out, nil
}

type RatingInput struct {
	Score  int    `json:"score"`
	Review string `json:"review"`
}

// Rate attaches the owner's rating to a completed booking. A booking is
// rated at most once; later attempts fail with ErrAlreadyRated.
func (s *Service) Rate(ctx context.Context, id auth.Identity, bookingID string, in RatingInput) (*Booking, error) {
	if in.Score < 1 || in.Score > 5 {
		return nil, apperr.Validation("score must be between 1 and 5")
	}
	review := strings.TrimSpace(in.Review)
	if len(review) > 1000 {
		return nil, apperr.Validation("review must be at most 1000 characters")
	}
	b, err := s.repo.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != id.UserID {
		return nil, auth.ErrNotOwner
	}
	if b.Status != StatusCompleted {
		return nil, ErrNotCompleted
	}
	if b.Rating != nil {
		return nil, ErrAlreadyRated
	}
	r := Rating{Score: in.Score, Review: review, Date: s.now().UTC()}
	if err := s.repo.SetRating(ctx, b.ID, r); err != nil {
		return nil, err
	}
	b.Rating = &r
	return b, nil
}

// CapturePayment records a verified gateway payment and confirms a pending
// booking. Capturing the same payment again is a no-op.
func (s *Service) CapturePayment(ctx context.Context, bookingID, paymentID string) (*Booking, error) {
	var out *Booking
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Payment.Status == PaymentPaid {
			if b.Payment.TransactionID == paymentID {
				out = b
				return nil
			}
			return ErrAlreadyPaid
		}
		if b.Status == StatusCancelled {
			return fmt.Errorf("%w: booking is %s", ErrInvalidTransition, b.Status)
		}
		next := b.Status
		if b.Status == StatusPending {
			next = StatusConfirmed
		}
		pay := Payment{Method: "razorpay", Status: PaymentPaid, TransactionID: paymentID}
		if err := s.repo.SetPayment(ctx, b.ID, pay, next); err != nil {
			return err
		}
		b.Payment = pay
		b.Status = next
		b.UpdatedAt = s.now().UTC()
		out = b
		return nil
	})
	return out, err
}
