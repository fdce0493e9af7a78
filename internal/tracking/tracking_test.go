package tracking

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-appliance-care/internal/apperr"
	"github.com/ariefcatur/go-appliance-care/internal/auth"
	"github.com/ariefcatur/go-appliance-care/internal/bookings"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu   sync.Mutex
	locs map[string]Location
}

func (m *memStore) Save(ctx context.Context, loc Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locs[loc.BookingID] = loc
	return nil
}

func (m *memStore) Last(ctx context.Context, bookingID string) (*Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loc, ok := m.locs[bookingID]
	if !ok {
		return nil, ErrNoLocation
	}
	return &loc, nil
}

type stubBookings map[string]bookings.Booking

func (s stubBookings) Find(ctx context.Context, id string) (*bookings.Booking, error) {
	b, ok := s[id]
	if !ok {
		return nil, bookings.ErrNotFound
	}
	return &b, nil
}

type recordingNotifier struct{ locs []Location }

func (n *recordingNotifier) LocationUpdated(_ context.Context, loc Location) {
	n.locs = append(n.locs, loc)
}

var (
	owner    = auth.Identity{UserID: "alice", Role: auth.RoleUser}
	stranger = auth.Identity{UserID: "bob", Role: auth.RoleUser}
	tech     = auth.Identity{UserID: "tech-1", Role: auth.RoleTechnician}
	other    = auth.Identity{UserID: "tech-2", Role: auth.RoleTechnician}
)

func newTestService() (*Service, *recordingNotifier) {
	techID := "tech-1"
	bs := stubBookings{
		"b-active":  {ID: "b-active", UserID: "alice", Status: bookings.StatusInProgress, TechnicianID: &techID},
		"b-done":    {ID: "b-done", UserID: "alice", Status: bookings.StatusCompleted, TechnicianID: &techID},
		"b-pending": {ID: "b-pending", UserID: "alice", Status: bookings.StatusPending},
	}
	n := &recordingNotifier{}
	s := NewService(&memStore{locs: map[string]Location{}}, bs, n)
	s.now = func() time.Time { return time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC) }
	return s, n
}

func TestUpdateAndRead(t *testing.T) {
	s, n := newTestService()
	ctx := context.Background()

	_, err := s.Last(ctx, owner, "b-active")
	require.ErrorIs(t, err, ErrNoLocation)

	loc, err := s.Update(ctx, tech, UpdateInput{BookingID: "b-active", Lat: 18.52, Lng: 73.85})
	require.NoError(t, err)
	assert.Equal(t, "tech-1", loc.TechnicianID)
	require.Len(t, n.locs, 1)

	for _, id := range []auth.Identity{owner, tech, {UserID: "root", Role: auth.RoleAdmin}} {
		got, err := s.Last(ctx, id, "b-active")
		require.NoError(t, err)
		assert.InDelta(t, 18.52, got.Lat, 1e-9)
	}
	_, err = s.Last(ctx, stranger, "b-active")
	require.ErrorIs(t, err, auth.ErrNotOwner)
}

func TestUpdateRules(t *testing.T) {
	s, n := newTestService()
	ctx := context.Background()

	tests := []struct {
		name string
		id   auth.Identity
		in   UpdateInput
		kind apperr.Kind
	}{
		{"customer cannot report", owner, UpdateInput{BookingID: "b-active"}, apperr.KindForbidden},
		{"other technician", other, UpdateInput{BookingID: "b-active"}, apperr.KindForbidden},
		{"unassigned booking", tech, UpdateInput{BookingID: "b-pending"}, apperr.KindForbidden},
		{"completed booking", tech, UpdateInput{BookingID: "b-done"}, apperr.KindConflict},
		{"unknown booking", tech, UpdateInput{BookingID: "b-none"}, apperr.KindNotFound},
		{"latitude out of range", tech, UpdateInput{BookingID: "b-active", Lat: 91}, apperr.KindValidation},
		{"missing booking id", tech, UpdateInput{}, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Update(ctx, tt.id, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
	assert.Empty(t, n.locs)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	store := NewRedisStore(rdb)
	bookingID := uuid.NewString()
	_, err := store.Last(ctx, bookingID)
	require.ErrorIs(t, err, ErrNoLocation)

	want := Location{BookingID: bookingID, TechnicianID: "tech-1", Lat: 12.97, Lng: 77.59,
		UpdatedAt: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Last(ctx, bookingID)
	require.NoError(t, err)
	assert.Equal(t, want.TechnicianID, got.TechnicianID)
	assert.InDelta(t, want.Lng, got.Lng, 1e-9)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt))

	ttl, err := rdb.TTL(ctx, "tracking:booking:"+bookingID).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)
}
