package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ariefcatur/go-appliance-care/internal/apperr"
	"github.com/ariefcatur/go-appliance-care/internal/auth"
	"github.com/ariefcatur/go-appliance-care/internal/catalog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPart struct {
	name   string
	price  decimal.Decimal
	stock  int
	active bool
}

// memStore implements Repository, Stock and Transactor. Transactions run
// concurrently; each records the inverse of its writes and replays them on
// rollback. Stock checks and decrements happen under one lock, like the
// conditional UPDATE in catalog.Repo.
type memStore struct {
	mu     sync.Mutex
	parts  map[string]*memPart
	orders map[string]Order

	failCreate error
}

type memTx struct{ undo []func() }

type memTxKey struct{}

func newMemStore() *memStore {
	return &memStore{parts: map[string]*memPart{}, orders: map[string]Order{}}
}

func (m *memStore) addPart(id, name, price string, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parts[id] = &memPart{name: name, price: decimal.RequireFromString(price), stock: stock, active: true}
}

func (m *memStore) stockOf(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.parts[id].stock
}

func (m *memStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, nested := ctx.Value(memTxKey{}).(*memTx); nested {
		return fn(ctx)
	}
	tx := &memTx{}
	if err := fn(context.WithValue(ctx, memTxKey{}, tx)); err != nil {
		m.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		m.mu.Unlock()
		return err
	}
	return nil
}

// onRollback registers undo with the transaction in ctx. Callers hold m.mu,
// and undo runs with m.mu held.
func onRollback(ctx context.Context, undo func()) {
	if tx, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		tx.undo = append(tx.undo, undo)
	}
}

func (m *memStore) DecrementStock(ctx context.Context, partID string, qty int) (catalog.StockLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.parts[partID]
	if !ok || !p.active {
		return catalog.StockLine{}, fmt.Errorf("%w: %s", catalog.ErrPartNotFound, partID)
	}
	if p.stock < qty {
		return catalog.StockLine{}, fmt.Errorf("%w for %s", catalog.ErrInsufficientStock, p.name)
	}
	p.stock -= qty
	onRollback(ctx, func() { p.stock += qty })
	return catalog.StockLine{PartID: partID, Name: p.name, Price: p.price}, nil
}

func (m *memStore) RestoreStock(ctx context.Context, partID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.parts[partID]
	if !ok {
		return catalog.ErrPartNotFound
	}
	p.stock += qty
	onRollback(ctx, func() { p.stock -= qty })
	return nil
}

func (m *memStore) Create(ctx context.Context, o *Order) error {
	if m.failCreate != nil {
		return m.failCreate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = *o
	onRollback(ctx, func() { delete(m.orders, o.ID) })
	return nil
}

func (m *memStore) Get(ctx context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (m *memStore) GetForUpdate(ctx context.Context, id string) (*Order, error) {
	return m.Get(ctx, id)
}

func (m *memStore) List(ctx context.Context, f ListFilter) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Order{}
	for _, o := range m.orders {
		if (f.UserID == "" || o.UserID == f.UserID) && (f.Status == "" || o.Status == f.Status) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) SetStatus(ctx context.Context, id string, from, to Status, tr *Tracking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	if o.Status != from {
		return ErrStatusChanged
	}
	prev := o
	onRollback(ctx, func() { m.orders[id] = prev })
	o.Status = to
	if tr != nil {
		o.Tracking = *tr
	}
	m.orders[id] = o
	return nil
}

func (m *memStore) SetPayment(ctx context.Context, id string, p Payment, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	prev := o
	onRollback(ctx, func() { m.orders[id] = prev })
	o.Payment = p
	o.Status = status
	m.orders[id] = o
	return nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	placed  []string
	changed []Status
}

func (n *recordingNotifier) OrderPlaced(ctx context.Context, o *Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.placed = append(n.placed, o.ID)
}

func (n *recordingNotifier) OrderStatusChanged(ctx context.Context, o *Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, o.Status)
}

var (
	alice = auth.Identity{UserID: "alice", Role: auth.RoleUser}
	bob   = auth.Identity{UserID: "bob", Role: auth.RoleUser}
	admin = auth.Identity{UserID: "root", Role: auth.RoleAdmin}
	addr  = Address{Street: "1 MG Road", City: "Pune", State: "MH", Pincode: "411001"}
)

func newTestService() (*Service, *memStore, *recordingNotifier) {
	store := newMemStore()
	store.addPart("p-belt", "Drive belt", "400", 5)
	store.addPart("p-pump", "Drain pump", "900", 1)
	n := &recordingNotifier{}
	svc := NewService(store, store, store, n)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return svc, store, n
}

func placeInput(items ...ItemInput) PlaceInput {
	return PlaceInput{Items: items, ShippingAddress: addr}
}

func TestPlace(t *testing.T) {
	svc, store, n := newTestService()

	o, err := svc.Place(context.Background(), alice, placeInput(
		ItemInput{SparePartID: "p-belt", Quantity: 2},
		ItemInput{SparePartID: "p-pump", Quantity: 1},
	))
	require.NoError(t, err)

	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "alice", o.UserID)
	assert.Equal(t, "cod", o.Payment.Method)
	assert.Equal(t, PaymentPending, o.Payment.Status)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "Drive belt", o.Items[0].Name)
	assert.True(t, o.Items[0].UnitPrice.Equal(decimal.NewFromInt(400)))

	assert.Equal(t, "1700", o.Pricing.Subtotal.String())
	assert.True(t, o.Pricing.Shipping.IsZero())
	assert.Equal(t, "306", o.Pricing.Tax.String())
	assert.Equal(t, "2006", o.Pricing.Total.String())

	assert.Equal(t, 3, store.stockOf("p-belt"))
	assert.Equal(t, 0, store.stockOf("p-pump"))
	assert.Equal(t, []string{o.ID}, n.placed)
}

func TestPlaceCapturesPriceAtPurchase(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	o, err := svc.Place(ctx, alice, placeInput(ItemInput{SparePartID: "p-belt", Quantity: 1}))
	require.NoError(t, err)

	store.mu.Lock()
	store.parts["p-belt"].price = decimal.NewFromInt(999)
	store.mu.Unlock()

	got, err := svc.Get(ctx, alice, o.ID)
	require.NoError(t, err)
	assert.True(t, got.Items[0].UnitPrice.Equal(decimal.NewFromInt(400)))
}

func TestPlaceMergesDuplicateLines(t *testing.T) {
	svc, store, _ := newTestService()

	_, err := svc.Place(context.Background(), alice, placeInput(
		ItemInput{SparePartID: "p-belt", Quantity: 3},
		ItemInput{SparePartID: "p-belt", Quantity: 3},
	))
	require.ErrorIs(t, err, catalog.ErrInsufficientStock)
	assert.Equal(t, 5, store.stockOf("p-belt"))
}

func TestPlaceIsAllOrNothing(t *testing.T) {
	tests := []struct {
		name  string
		items []ItemInput
		want  error
	}{
		{"second line short", []ItemInput{{"p-belt", 2}, {"p-pump", 2}}, catalog.ErrInsufficientStock},
		{"unknown part after valid one", []ItemInput{{"p-belt", 2}, {"p-zzz", 1}}, catalog.ErrPartNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, n := newTestService()

			_, err := svc.Place(context.Background(), alice, placeInput(tt.items...))
			require.ErrorIs(t, err, tt.want)

			assert.Equal(t, 5, store.stockOf("p-belt"))
			assert.Equal(t, 1, store.stockOf("p-pump"))
			assert.Empty(t, store.orders)
			assert.Empty(t, n.placed)
		})
	}
}

func TestPlaceRollsBackWhenInsertFails(t *testing.T) {
	svc, store, _ := newTestService()
	store.failCreate = errors.New("connection reset")

	_, err := svc.Place(context.Background(), alice, placeInput(ItemInput{SparePartID: "p-belt", Quantity: 1}))
	require.Error(t, err)
	assert.Equal(t, 5, store.stockOf("p-belt"))
}

func TestPlaceValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name string
		in   PlaceInput
	}{
		{"no items", PlaceInput{ShippingAddress: addr}},
		{"zero quantity", placeInput(ItemInput{SparePartID: "p-belt", Quantity: 0})},
		{"missing part id", placeInput(ItemInput{Quantity: 1})},
		{"missing address", PlaceInput{Items: []ItemInput{{"p-belt", 1}}}},
		{"bad payment method", PlaceInput{Items: []ItemInput{{"p-belt", 1}}, ShippingAddress: addr, PaymentMethod: "barter"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Place(ctx, alice, tt.in)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

func TestConcurrentPlacementLastUnit(t *testing.T) {
	svc, store, _ := newTestService()
	const buyers = 8

	var (
		wg         sync.WaitGroup
		successes  atomic.Int32
		shortfalls atomic.Int32
		start      = make(chan struct{})
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(id auth.Identity) {
			defer wg.Done()
			<-start
			_, err := svc.Place(context.Background(), id, placeInput(
				ItemInput{SparePartID: "p-belt", Quantity: 1},
				ItemInput{SparePartID: "p-pump", Quantity: 1},
			))
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, catalog.ErrInsufficientStock):
				shortfalls.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(auth.Identity{UserID: fmt.Sprintf("buyer-%d", i), Role: auth.RoleUser})
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, successes.Load())
	assert.EqualValues(t, buyers-1, shortfalls.Load())
	assert.Equal(t, 0, store.stockOf("p-pump"))
	// losers took a belt before failing on the pump and must give it back
	assert.Equal(t, 4, store.stockOf("p-belt"))
	store.mu.Lock()
	assert.Len(t, store.orders, 1)
	store.mu.Unlock()
}

func TestPlaceKeepsRequestLineOrder(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	o, err := svc.Place(ctx, alice, placeInput(
		ItemInput{SparePartID: "p-pump", Quantity: 1},
		ItemInput{SparePartID: "p-belt", Quantity: 1},
		ItemInput{SparePartID: "p-belt", Quantity: 2},
	))
	require.NoError(t, err)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "p-pump", o.Items[0].SparePartID)
	assert.Equal(t, "p-belt", o.Items[1].SparePartID)
	assert.Equal(t, 3, o.Items[1].Quantity)

	got, err := svc.Get(ctx, alice, o.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"p-pump", "p-belt"}, []string{got.Items[0].SparePartID, got.Items[1].SparePartID})
}

func TestLockOrderSortsByPartID(t *testing.T) {
	lines := []ItemInput{{"p-pump", 1}, {"p-belt", 1}, {"p-filter", 1}}
	assert.Equal(t, []int{1, 2, 0}, lockOrder(lines))
}

func TestCancelRestoresStock(t *testing.T) {
	svc, store, n := newTestService()
	ctx := context.Background()

	o, err := svc.Place(ctx, alice, placeInput(
		ItemInput{SparePartID: "p-belt", Quantity: 4},
		ItemInput{SparePartID: "p-pump", Quantity: 1},
	))
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, alice, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, 5, store.stockOf("p-belt"))
	assert.Equal(t, 1, store.stockOf("p-pump"))

	_, err = svc.Cancel(ctx, alice, o.ID)
	require.ErrorIs(t, err, ErrNotCancellable)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, 5, store.stockOf("p-belt"), "stock must not be restored twice")
	assert.Equal(t, []Status{StatusCancelled}, n.changed)
}

func TestCancelAuthorization(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	o, err := svc.Place(ctx, alice, placeInput(ItemInput{SparePartID: "p-belt", Quantity: 1}))
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, bob, o.ID)
	assert.ErrorIs(t, err, auth.ErrNotOwner)

	_, err = svc.Cancel(ctx, admin, o.ID)
	assert.NoError(t, err)

	_, err = svc.Cancel(ctx, alice, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelRejectedAfterDelivery(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	o, err := svc.Place(ctx, alice, placeInput(ItemInput{SparePartID: "p-belt", Quantity: 2}))
	require.NoError(t, err)
	for _, st := range []Status{StatusProcessing, StatusShipped, StatusDelivered} {
		_, err := svc.UpdateStatus(ctx, admin, o.ID, StatusInput{Status: st})
		require.NoError(t, err)
	}

	_, err = svc.Cancel(ctx, alice, o.ID)
	assert.ErrorIs(t, err, ErrNotCancellable)
	assert.Equal(t, 3, store.stockOf("p-belt"))
}

func TestUpdateStatus(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	o, err := svc.Place(ctx, alice, placeInput(ItemInput{SparePartID: "p-belt", Quantity: 1}))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, alice, o.ID, StatusInput{Status: StatusProcessing})
	assert.ErrorIs(t, err, auth.ErrAdminOnly)

	_, err = svc.UpdateStatus(ctx, admin, o.ID, StatusInput{Status: "lost"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.UpdateStatus(ctx, admin, o.ID, StatusInput{Status: StatusDelivered})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	eta := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	_, err = svc.UpdateStatus(ctx, admin, o.ID, StatusInput{Status: StatusProcessing})
	require.NoError(t, err)
	shipped, err := svc.UpdateStatus(ctx, admin, o.ID, StatusInput{
		Status: StatusShipped, Carrier: "BlueDart", TrackingNumber: "BD123", EstimatedDelivery: &eta,
	})
	require.NoError(t, err)
	assert.Equal(t, "BlueDart", shipped.Tracking.Carrier)
	assert.Equal(t, &eta, shipped.Tracking.EstimatedDelivery)

	cancelled, err := svc.UpdateStatus(ctx, admin, o.ID, StatusInput{Status: StatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, 5, store.stockOf("p-belt"))
}

func TestGetAndList(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	o, err := svc.Place(ctx, alice, placeInput(ItemInput{SparePartID: "p-belt", Quantity: 1}))
	require.NoError(t, err)
	_, err = svc.Place(ctx, bob, placeInput(ItemInput{SparePartID: "p-belt", Quantity: 1}))
	require.NoError(t, err)

	_, err = svc.Get(ctx, bob, o.ID)
	assert.ErrorIs(t, err, auth.ErrNotOwner)

	mine, err := svc.List(ctx, alice, "")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	all, err := svc.List(ctx, admin, StatusPending)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.List(ctx, admin, "weird")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCapturePayment(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	o, err := svc.Place(ctx, alice, placeInput(ItemInput{SparePartID: "p-belt", Quantity: 1}))
	require.NoError(t, err)

	paid, err := svc.CapturePayment(ctx, o.ID, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, paid.Status)
	assert.Equal(t, Payment{Method: "razorpay", Status: PaymentPaid, TransactionID: "pay_1"}, paid.Payment)

	again, err := svc.CapturePayment(ctx, o.ID, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, again.Status)

	_, err = svc.CapturePayment(ctx, o.ID, "pay_2")
	assert.ErrorIs(t, err, ErrAlreadyPaid)
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusProcessing))
	assert.True(t, CanTransition(StatusDelivered, StatusReturned))
	assert.False(t, CanTransition(StatusPending, StatusDelivered))
	assert.False(t, CanTransition(StatusCancelled, StatusPending))

	for _, s := range []Status{StatusPending, StatusProcessing, StatusShipped} {
		assert.True(t, Cancellable(s), s)
	}
	for _, s := range []Status{StatusDelivered, StatusCancelled, StatusReturned} {
		assert.False(t, Cancellable(s), s)
	}
}
