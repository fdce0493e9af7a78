package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ariefcatur/go-appliance-care/internal/bookings"
	kafkax "github.com/ariefcatur/go-appliance-care/internal/kafka"
	"github.com/ariefcatur/go-appliance-care/internal/metrics"
	"github.com/ariefcatur/go-appliance-care/internal/orders"
	"github.com/ariefcatur/go-appliance-care/internal/payments"
	"github.com/ariefcatur/go-appliance-care/internal/realtime"
	"github.com/ariefcatur/go-appliance-care/internal/tracking"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// EventSink is the asynchronous email channel, normally the Kafka producer.
type EventSink interface {
	Publish(key, value []byte, headers ...kafka.Header) error
}

// Dispatcher turns committed domain changes into real-time events and
// email notifications. Every method returns immediately; delivery happens
// in the background and failures are only logged and counted.
type Dispatcher struct {
	rt       realtime.Publisher
	mail     EventSink
	producer string
	timeout  time.Duration
	log      *slog.Logger
	wg       sync.WaitGroup
}

func NewDispatcher(rt realtime.Publisher, mail EventSink, producer string, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		rt:       rt,
		mail:     mail,
		producer: producer,
		timeout:  5 * time.Second,
		log:      log.With("component", "notify"),
	}
}

// Wait blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() { d.wg.Wait() }

type email struct {
	eventType   string
	correlation string
	payload     any
}

func (d *Dispatcher) dispatch(ctx context.Context, events []realtime.Event, mail *email) {
	traceID := middleware.GetReqID(ctx)
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		for _, ev := range events {
			if err := d.rt.Publish(ctx, ev); err != nil {
				metrics.NotificationsDropped.WithLabelValues("realtime").Inc()
				d.log.Warn("realtime publish failed", "topic", ev.Topic, "event", ev.Name, "error", err)
			}
		}
		if mail == nil || d.mail == nil {
			return
		}
		if err := d.publishMail(traceID, mail); err != nil {
			metrics.NotificationsDropped.WithLabelValues("email").Inc()
			d.log.Warn("email event dropped", "event_type", mail.eventType, "correlation_id", mail.correlation, "error", err)
		}
	}()
}

func (d *Dispatcher) publishMail(traceID string, m *email) error {
	payload, err := json.Marshal(m.payload)
	if err != nil {
		return err
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     m.eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      d.producer,
		TraceID:       traceID,
		CorrelationID: m.correlation,
		Payload:       payload,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return d.mail.Publish([]byte(m.correlation), value, kafkax.EventHeaders(m.eventType, env.EventVersion)...)
}

func (d *Dispatcher) events(pairs ...topicEvent) []realtime.Event {
	out := make([]realtime.Event, 0, len(pairs))
	for _, p := range pairs {
		ev, err := realtime.NewEvent(p.topic, p.name, p.data)
		if err != nil {
			d.log.Warn("encode realtime event", "topic", p.topic, "event", p.name, "error", err)
			continue
		}
		out = append(out, ev)
	}
	return out
}

type topicEvent struct {
	topic string
	name  string
	data  any
}

func bookingPayload(b *bookings.Booking) BookingPayload {
	p := BookingPayload{
		BookingID:     b.ID,
		UserID:        b.UserID,
		ServiceID:     b.ServiceID,
		Status:        string(b.Status),
		ScheduledDate: b.ScheduledDate.Format(bookings.DateLayout),
		SlotStart:     b.TimeSlot.Start,
		SlotEnd:       b.TimeSlot.End,
		Total:         b.Price.Total.StringFixed(2),
	}
	if b.TechnicianID != nil {
		p.TechnicianID = *b.TechnicianID
	}
	return p
}

func orderPayload(o *orders.Order) OrderPayload {
	return OrderPayload{
		OrderID:        o.ID,
		UserID:         o.UserID,
		Status:         string(o.Status),
		Items:          len(o.Items),
		Total:          o.Pricing.Total.StringFixed(2),
		Carrier:        o.Tracking.Carrier,
		TrackingNumber: o.Tracking.TrackingNumber,
	}
}

func (d *Dispatcher) BookingCreated(ctx context.Context, b *bookings.Booking) {
	d.dispatch(ctx,
		d.events(topicEvent{realtime.TopicUser(b.UserID), RTBookingCreated, b}),
		&email{EventBookingCreated, b.ID, bookingPayload(b)})
}

func (d *Dispatcher) BookingStatusChanged(ctx context.Context, b *bookings.Booking) {
	data := map[string]any{"bookingId": b.ID, "status": b.Status, "technician": b.TechnicianID}
	d.dispatch(ctx,
		d.events(topicEvent{realtime.TopicBooking(b.ID), RTStatusUpdate, data}),
		&email{EventBookingStatusChanged, b.ID, bookingPayload(b)})
}

func (d *Dispatcher) OrderPlaced(ctx context.Context, o *orders.Order) {
	d.dispatch(ctx,
		d.events(topicEvent{realtime.TopicUser(o.UserID), RTOrderCreated, o}),
		&email{EventOrderPlaced, o.ID, orderPayload(o)})
}

func (d *Dispatcher) OrderStatusChanged(ctx context.Context, o *orders.Order) {
	data := map[string]any{"orderId": o.ID, "status": o.Status, "tracking": o.Tracking}
	d.dispatch(ctx,
		d.events(topicEvent{realtime.TopicOrder(o.ID), RTOrderStatus, data}),
		&email{EventOrderStatusChanged, o.ID, orderPayload(o)})
}

func (d *Dispatcher) PaymentCaptured(ctx context.Context, c payments.Capture) {
	topic := realtime.TopicOrder(c.EntityID)
	if c.Kind == payments.KindBooking {
		topic = realtime.TopicBooking(c.EntityID)
	}
	p := PaymentPayload{
		Kind:      string(c.Kind),
		EntityID:  c.EntityID,
		UserID:    c.UserID,
		PaymentID: c.PaymentID,
		Amount:    c.Amount.StringFixed(2),
		Status:    c.Status,
	}
	data := map[string]any{"type": c.Kind, "itemId": c.EntityID, "paymentId": c.PaymentID, "status": c.Status}
	d.dispatch(ctx,
		d.events(topicEvent{topic, RTPaymentCaptured, data}),
		&email{EventPaymentCaptured, c.EntityID, p})
}

func (d *Dispatcher) LocationUpdated(ctx context.Context, loc tracking.Location) {
	d.dispatch(ctx, d.events(topicEvent{realtime.TopicBooking(loc.BookingID), RTLocationUpdate, loc}), nil)
}
