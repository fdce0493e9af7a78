package notify

import (
	"encoding/json"
	"time"
)

// Event types carried on the notifications topic.
const (
	EventBookingCreated       = "BookingCreated"
	EventBookingStatusChanged = "BookingStatusChanged"
	EventOrderPlaced          = "OrderPlaced"
	EventOrderStatusChanged   = "OrderStatusChanged"
	EventPaymentCaptured      = "PaymentCaptured"
)

// Real-time event names as seen by WebSocket clients.
const (
	RTBookingCreated  = "booking-created"
	RTStatusUpdate    = "status-update"
	RTOrderCreated    = "order-created"
	RTOrderStatus     = "order-status"
	RTPaymentCaptured = "payment-captured"
	RTLocationUpdate  = "location-update"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type BookingPayload struct {
	BookingID     string `json:"booking_id"`
	UserID        string `json:"user_id"`
	ServiceID     string `json:"service_id"`
	Status        string `json:"status"`
	ScheduledDate string `json:"scheduled_date"`
	SlotStart     string `json:"slot_start"`
	SlotEnd       string `json:"slot_end"`
	Total         string `json:"total"`
	TechnicianID  string `json:"technician_id,omitempty"`
}

type OrderPayload struct {
	OrderID        string `json:"order_id"`
	UserID         string `json:"user_id"`
	Status         string `json:"status"`
	Items          int    `json:"items"`
	Total          string `json:"total"`
	Carrier        string `json:"carrier,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

type PaymentPayload struct {
	Kind      string `json:"kind"`
	EntityID  string `json:"entity_id"`
	UserID    string `json:"user_id"`
	PaymentID string `json:"payment_id"`
	Amount    string `json:"amount"`
	Status    string `json:"status"`
}

// userOf extracts the recipient from any known payload.
func userOf(payload json.RawMessage) string {
	var p struct {
		UserID string `json:"user_id"`
	}
	_ = json.Unmarshal(payload, &p)
	return p.UserID
}
