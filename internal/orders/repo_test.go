package orders

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ariefcatur/go-appliance-care/internal/auth"
	"github.com/ariefcatur/go-appliance-care/internal/catalog"
	"github.com/ariefcatur/go-appliance-care/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopNotifier struct{}

func (noopNotifier) OrderPlaced(context.Context, *Order)        {}
func (noopNotifier) OrderStatusChanged(context.Context, *Order) {}

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, dsn, 8)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.Migrate(ctx, pool))
	return pool
}

func seed(t *testing.T, pool *pgxpool.Pool, stock int) (userID, partID string) {
	t.Helper()
	ctx := context.Background()
	userID, catID, partID := uuid.NewString(), uuid.NewString(), uuid.NewString()

	_, err := pool.Exec(ctx, `INSERT INTO users(id, name, email, password_hash) VALUES ($1,'t',$2,'x')`,
		userID, userID+"@test.local")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO categories(id, name, slug) VALUES ($1,'Fridge',$2)`, catID, "fridge-"+catID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO spare_parts(id, name, part_number, category_id, price, stock)
		VALUES ($1,'Thermostat',$2,$3,750,$4)`, partID, "TH-"+partID, catID, stock)
	require.NoError(t, err)
	return userID, partID
}

func TestRepoConcurrentPlacement(t *testing.T) {
	pool := setupPostgres(t)
	userID, partID := seed(t, pool, 1)
	svc := NewService(&Repo{DB: pool}, &catalog.Repo{DB: pool}, postgres.NewTxManager(pool), noopNotifier{})
	id := auth.Identity{UserID: userID, Role: auth.RoleUser}

	var (
		wg         sync.WaitGroup
		successes  atomic.Int32
		shortfalls atomic.Int32
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Place(context.Background(), id, placeInput(ItemInput{SparePartID: partID, Quantity: 1}))
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, catalog.ErrInsufficientStock):
				shortfalls.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, successes.Load())
	assert.EqualValues(t, 1, shortfalls.Load())

	var stock int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT stock FROM spare_parts WHERE id=$1`, partID).Scan(&stock))
	assert.Equal(t, 0, stock)
}

func TestRepoPlaceThenCancelKeepsStock(t *testing.T) {
	pool := setupPostgres(t)
	userID, partID := seed(t, pool, 4)
	svc := NewService(&Repo{DB: pool}, &catalog.Repo{DB: pool}, postgres.NewTxManager(pool), noopNotifier{})
	id := auth.Identity{UserID: userID, Role: auth.RoleUser}
	ctx := context.Background()

	o, err := svc.Place(ctx, id, placeInput(ItemInput{SparePartID: partID, Quantity: 3}))
	require.NoError(t, err)

	got, err := svc.Get(ctx, id, o.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "750", got.Items[0].UnitPrice.String())
	assert.True(t, got.Pricing.Total.Equal(o.Pricing.Total))

	_, err = svc.Cancel(ctx, id, o.ID)
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, id, o.ID)
	require.ErrorIs(t, err, ErrNotCancellable)

	var stock int
	require.NoError(t, pool.QueryRow(ctx, `SELECT stock FROM spare_parts WHERE id=$1`, partID).Scan(&stock))
	assert.Equal(t, 4, stock)
}
