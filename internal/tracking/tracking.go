package tracking

import (
	"context"
	"time"

	"github.com/ariefcatur/go-appliance-care/internal/apperr"
	"github.com/ariefcatur/go-appliance-care/internal/auth"
	"github.com/ariefcatur/go-appliance-care/internal/bookings"
)

var (
	ErrNoLocation   = apperr.NotFound("no location reported for this booking")
	ErrNotAssigned  = apperr.Forbidden("only the assigned technician can report location")
	ErrNotTrackable = apperr.Conflict("booking is not in a trackable state")
)

type Location struct {
	BookingID    string    `json:"bookingId"`
	TechnicianID string    `json:"technician"`
	Lat          float64   `json:"lat"`
	Lng          float64   `json:"lng"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Store interface {
	Save(ctx context.Context, loc Location) error
	Last(ctx context.Context, bookingID string) (*Location, error)
}

type Bookings interface {
	Find(ctx context.Context, id string) (*bookings.Booking, error)
}

type Notifier interface {
	LocationUpdated(ctx context.Context, loc Location)
}

type Service struct {
	store    Store
	bookings Bookings
	notify   Notifier
	now      func() time.Time
}

func NewService(store Store, b Bookings, notify Notifier) *Service {
	return &Service{store: store, bookings: b, notify: notify, now: time.Now}
}

type UpdateInput struct {
	BookingID string  `json:"bookingId"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
}

// Update records the assigned technician's position while the job is
// assigned or in progress.
func (s *Service) Update(ctx context.Context, id auth.Identity, in UpdateInput) (*Location, error) {
	if !id.IsTechnician() {
		return nil, ErrNotAssigned
	}
	if in.BookingID == "" {
		return nil, apperr.Validation("bookingId is required")
	}
	if in.Lat < -90 || in.Lat > 90 || in.Lng < -180 || in.Lng > 180 {
		return nil, apperr.Validation("lat must be within [-90, 90] and lng within [-180, 180]")
	}
	b, err := s.bookings.Find(ctx, in.BookingID)
	if err != nil {
		return nil, err
	}
	if !b.AssignedTo(id.UserID) {
		return nil, ErrNotAssigned
	}
	if b.Status != bookings.StatusTechnicianAssigned && b.Status != bookings.StatusInProgress {
		return nil, ErrNotTrackable
	}

	loc := Location{
		BookingID:    b.ID,
		TechnicianID: id.UserID,
		Lat:          in.Lat,
		Lng:          in.Lng,
		UpdatedAt:    s.now().UTC(),
	}
	if err := s.store.Save(ctx, loc); err != nil {
		return nil, err
	}
	s.notify.LocationUpdated(ctx, loc)
	return &loc, nil
}

// Last returns the most recent position for a booking the caller can see.
func (s *Service) Last(ctx context.Context, id auth.Identity, bookingID string) (*Location, error) {
	b, err := s.bookings.Find(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !b.VisibleTo(id) {
		return nil, auth.ErrNotOwner
	}
	return s.store.Last(ctx, b.ID)
}
