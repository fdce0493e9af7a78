package bookings

import (
	"time"

	"github.com/ariefcatur/go-appliance-care/internal/auth"
	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

type Appliance struct {
	CategoryID   string `json:"category"`
	Brand        string `json:"brand"`
	Model        string `json:"model"`
	PurchaseYear *int   `json:"purchaseYear,omitempty"`
}

type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

// Price is computed when the booking is created and never edited by clients.
type Price struct {
	Service decimal.Decimal `json:"service"`
	Parts   decimal.Decimal `json:"parts"`
	Tax     decimal.Decimal `json:"tax"`
	Total   decimal.Decimal `json:"total"`
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

type Payment struct {
	Method        string        `json:"method"`
	Status        PaymentStatus `json:"status"`
	TransactionID string        `json:"transactionId,omitempty"`
}

type Rating struct {
	Score  int       `json:"score"`
	Review string    `json:"review,omitempty"`
	Date   time.Time `json:"date"`
}

type Booking struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user"`
	ServiceID     string    `json:"service"`
	Appliance     Appliance `json:"appliance"`
	ScheduledDate time.Time `json:"scheduledDate"`
	TimeSlot      TimeSlot  `json:"timeSlot"`
	Address       Address   `json:"address"`
	Status        Status    `json:"status"`
	TechnicianID  *string   `json:"technician,omitempty"`
	Price         Price     `json:"price"`
	Payment       Payment   `json:"payment"`
	Notes         string    `json:"notes,omitempty"`
	Rating        *Rating   `json:"rating,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// AssignedTo reports whether userID is the booking's technician.
func (b *Booking) AssignedTo(userID string) bool {
	return b.TechnicianID != nil && userID != "" && *b.TechnicianID == userID
}

// VisibleTo reports whether the caller may read the booking: its owner,
// its assigned technician or an admin.
func (b *Booking) VisibleTo(id auth.Identity) bool {
	return id.Owns(b.UserID) || b.AssignedTo(id.UserID)
}

type ListFilter struct {
	UserID       string
	TechnicianID string
	Status       Status
}
