package notify

import (
	"fmt"
	"strings"

	kafkax "github.com/ariefcatur/go-appliance-care/internal/kafka"
)

// Render builds the plain-text email for env. ok is false for event types
// that do not send mail.
func Render(env Envelope, name string) (subject, body string, ok bool, err error) {
	greeting := "Hello"
	if name != "" {
		greeting = "Hello " + name
	}
	var b strings.Builder

	switch env.EventType {
	case EventBookingCreated, EventBookingStatusChanged:
		p, err := kafkax.UnwrapPayload[BookingPayload](env.Payload)
		if err != nil {
			return "", "", false, err
		}
		if env.EventType == EventBookingCreated {
			subject = "Booking received"
			fmt.Fprintf(&b, "%s,\n\nWe have received your booking %s for %s between %s and %s.\n",
				greeting, p.BookingID, p.ScheduledDate, p.SlotStart, p.SlotEnd)
			fmt.Fprintf(&b, "Amount due: INR %s.\n", p.Total)
		} else {
			subject = "Booking " + humanize(p.Status)
			fmt.Fprintf(&b, "%s,\n\nYour booking %s is now %s.\n", greeting, p.BookingID, humanize(p.Status))
		}
	case EventOrderPlaced, EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[OrderPayload](env.Payload)
		if err != nil {
			return "", "", false, err
		}
		if env.EventType == EventOrderPlaced {
			subject = "Order confirmation"
			fmt.Fprintf(&b, "%s,\n\nThank you for your order %s (%d item(s), total INR %s).\n",
				greeting, p.OrderID, p.Items, p.Total)
		} else {
			subject = "Order " + humanize(p.Status)
			fmt.Fprintf(&b, "%s,\n\nYour order %s is now %s.\n", greeting, p.OrderID, humanize(p.Status))
			if p.TrackingNumber != "" {
				fmt.Fprintf(&b, "Tracking: %s %s\n", p.Carrier, p.TrackingNumber)
			}
		}
	case EventPaymentCaptured:
		p, err := kafkax.UnwrapPayload[PaymentPayload](env.Payload)
		if err != nil {
			return "", "", false, err
		}
		subject = "Payment received"
		fmt.Fprintf(&b, "%s,\n\nWe received INR %s for your %s %s (payment %s).\n",
			greeting, p.Amount, p.Kind, p.EntityID, p.PaymentID)
	default:
		return "", "", false, nil
	}
	b.WriteString("\nAppliance Care\n")
	return subject, b.String(), true, nil
}

func humanize(status string) string {
	return strings.ReplaceAll(status, "-", " ")
}
