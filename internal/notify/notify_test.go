package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-appliance-care/internal/bookings"
	kafkax "github.com/ariefcatur/go-appliance-care/internal/kafka"
	"github.com/ariefcatur/go-appliance-care/internal/orders"
	"github.com/ariefcatur/go-appliance-care/internal/payments"
	"github.com/ariefcatur/go-appliance-care/internal/realtime"
	"github.com/ariefcatur/go-appliance-care/internal/tracking"
	"github.com/ariefcatur/go-appliance-care/internal/users"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

type recordingSink struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (s *recordingSink) Publish(key, value []byte, headers ...kafka.Header) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, kafka.Message{Key: key, Value: value, Headers: headers})
	return nil
}

func sampleBooking() *bookings.Booking {
	return &bookings.Booking{
		ID: "b-1", UserID: "u-1", ServiceID: "s-1", Status: bookings.StatusPending,
		ScheduledDate: time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		TimeSlot:      bookings.TimeSlot{Start: "10:00", End: "12:00"},
		Price:         bookings.ComputePrice(decimal.RequireFromString("499")),
	}
}

func TestDispatcherBookingCreated(t *testing.T) {
	rt, sink := &recordingPublisher{}, &recordingSink{}
	d := NewDispatcher(rt, sink, "api", discardLogger())

	d.BookingCreated(context.Background(), sampleBooking())
	d.Wait()

	require.Len(t, rt.events, 1)
	assert.Equal(t, "user-u-1", rt.events[0].Topic)
	assert.Equal(t, RTBookingCreated, rt.events[0].Name)

	require.Len(t, sink.msgs, 1)
	m := sink.msgs[0]
	assert.Equal(t, "b-1", string(m.Key))
	assert.Equal(t, EventBookingCreated, kafkax.HeaderValue(m, kafkax.HeaderEventType))

	var env Envelope
	require.NoError(t, json.Unmarshal(m.Value, &env))
	assert.Equal(t, EventBookingCreated, env.EventType)
	assert.Equal(t, "api", env.Producer)
	assert.NotEmpty(t, env.EventID)
	p, err := kafkax.UnwrapPayload[BookingPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, "588.82", p.Total)
	assert.Equal(t, "2026-03-12", p.ScheduledDate)
}

func TestDispatcherTopics(t *testing.T) {
	rt, sink := &recordingPublisher{}, &recordingSink{}
	d := NewDispatcher(rt, sink, "api", discardLogger())
	ctx := context.Background()

	d.BookingStatusChanged(ctx, sampleBooking())
	d.OrderPlaced(ctx, &orders.Order{ID: "o-1", UserID: "u-1"})
	d.OrderStatusChanged(ctx, &orders.Order{ID: "o-1", UserID: "u-1", Status: orders.StatusShipped})
	d.PaymentCaptured(ctx, payments.Capture{Kind: payments.KindBooking, EntityID: "b-1", UserID: "u-1", Amount: decimal.NewFromInt(10)})
	d.PaymentCaptured(ctx, payments.Capture{Kind: payments.KindOrder, EntityID: "o-1", UserID: "u-1", Amount: decimal.NewFromInt(10)})
	d.LocationUpdated(ctx, tracking.Location{BookingID: "b-1", Lat: 1, Lng: 2})
	d.Wait()

	got := map[string]string{}
	for _, ev := range rt.events {
		got[ev.Name+"@"+ev.Topic] = ev.Topic
	}
	for _, want := range []string{
		"status-update@booking-b-1",
		"order-created@user-u-1",
		"order-status@order-o-1",
		"payment-captured@booking-b-1",
		"payment-captured@order-o-1",
		"location-update@booking-b-1",
	} {
		assert.Contains(t, got, want)
	}
	assert.Len(t, sink.msgs, 5, "location updates do not send email")
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	rt := &recordingPublisher{err: errors.New("redis down")}
	sink := &recordingSink{err: kafkax.ErrBufferFull}
	d := NewDispatcher(rt, sink, "api", discardLogger())

	assert.NotPanics(t, func() {
		d.OrderPlaced(context.Background(), &orders.Order{ID: "o-1", UserID: "u-1"})
		d.Wait()
	})
}

func TestDispatcherOutlivesRequestContext(t *testing.T) {
	rt, sink := &recordingPublisher{}, &recordingSink{}
	d := NewDispatcher(rt, sink, "api", discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	d.OrderPlaced(ctx, &orders.Order{ID: "o-1", UserID: "u-1"})
	cancel()
	d.Wait()

	assert.Len(t, rt.events, 1)
	assert.Len(t, sink.msgs, 1)
}

type memDeduper struct {
	mu      sync.Mutex
	claimed map[string]bool
}

func (d *memDeduper) Claim(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.claimed[id] {
		return false, nil
	}
	d.claimed[id] = true
	return true, nil
}

func (d *memDeduper) Release(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.claimed, id)
	return nil
}

type stubRecipients map[string]users.User

func (s stubRecipients) Get(_ context.Context, id string) (*users.User, error) {
	u, ok := s[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	return &u, nil
}

type recordingMailer struct {
	sent []Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func envelopeMessage(t *testing.T, eventID, eventType string, payload any) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	value, err := json.Marshal(Envelope{EventID: eventID, EventType: eventType, EventVersion: 1, Payload: raw})
	require.NoError(t, err)
	return kafka.Message{Value: value, Headers: kafkax.EventHeaders(eventType, 1)}
}

func newHandler(mailer *recordingMailer) (*MailHandler, *memDeduper) {
	dedup := &memDeduper{claimed: map[string]bool{}}
	us := stubRecipients{"u-1": {ID: "u-1", Name: "Asha", Email: "asha@example.com"}}
	return NewMailHandler(dedup, us, mailer, discardLogger()), dedup
}

func TestMailHandlerSendsOncePerEvent(t *testing.T) {
	mailer := &recordingMailer{}
	h, _ := newHandler(mailer)
	ctx := context.Background()
	m := envelopeMessage(t, "ev-1", EventOrderStatusChanged, OrderPayload{
		OrderID: "o-1", UserID: "u-1", Status: "shipped", Carrier: "BlueDart", TrackingNumber: "BD123",
	})

	require.NoError(t, h.Handle(ctx, m))
	require.NoError(t, h.Handle(ctx, m))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "asha@example.com", mailer.sent[0].To)
	assert.Equal(t, "Order shipped", mailer.sent[0].Subject)
	assert.Contains(t, mailer.sent[0].Body, "Hello Asha")
	assert.Contains(t, mailer.sent[0].Body, "BlueDart BD123")
}

func TestMailHandlerReleasesClaimOnFailure(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("smtp timeout")}
	h, dedup := newHandler(mailer)
	ctx := context.Background()
	m := envelopeMessage(t, "ev-2", EventBookingCreated, BookingPayload{BookingID: "b-1", UserID: "u-1"})

	require.Error(t, h.Handle(ctx, m))
	assert.False(t, dedup.claimed["ev-2"])

	mailer.err = nil
	require.NoError(t, h.Handle(ctx, m))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "Booking received", mailer.sent[0].Subject)
}

func TestMailHandlerSkips(t *testing.T) {
	mailer := &recordingMailer{}
	h, _ := newHandler(mailer)
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, kafka.Message{Value: []byte("{not json")}))
	require.NoError(t, h.Handle(ctx, envelopeMessage(t, "ev-3", "SomethingElse", map[string]string{"user_id": "u-1"})))
	require.NoError(t, h.Handle(ctx, envelopeMessage(t, "ev-4", EventOrderPlaced, OrderPayload{OrderID: "o", UserID: "ghost"})))
	require.NoError(t, h.Handle(ctx, envelopeMessage(t, "ev-5", EventOrderPlaced, OrderPayload{OrderID: "o"})))
	assert.Empty(t, mailer.sent)
}

func TestRender(t *testing.T) {
	raw, err := json.Marshal(PaymentPayload{Kind: "booking", EntityID: "b-1", UserID: "u-1", PaymentID: "pay_1", Amount: "588.82"})
	require.NoError(t, err)

	subject, body, ok, err := Render(Envelope{EventType: EventPaymentCaptured, Payload: raw}, "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Payment received", subject)
	assert.Contains(t, body, "Hello,")
	assert.Contains(t, body, "INR 588.82 for your booking b-1")

	_, _, _, err = Render(Envelope{EventType: EventOrderPlaced, Payload: json.RawMessage(`[]`)}, "x")
	assert.Error(t, err)

	subject, _, _, err = Render(Envelope{EventType: EventBookingStatusChanged,
		Payload: json.RawMessage(`{"booking_id":"b-1","status":"technician-assigned"}`)}, "x")
	require.NoError(t, err)
	assert.Equal(t, "Booking technician assigned", subject)
}
