package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-appliance-care/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `id, user_id, status, ship_name, ship_street, ship_city, ship_state, ship_pincode,
	ship_phone, subtotal, shipping, tax, discount, total, payment_method, payment_status,
	payment_txn_id, carrier, tracking_number, estimated_delivery, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	a := &o.ShippingAddress
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &a.Name, &a.Street, &a.City, &a.State, &a.Pincode,
		&a.Phone, &o.Pricing.Subtotal, &o.Pricing.Shipping, &o.Pricing.Tax, &o.Pricing.Discount,
		&o.Pricing.Total, &o.Payment.Method, &o.Payment.Status, &o.Payment.TransactionID,
		&o.Tracking.Carrier, &o.Tracking.TrackingNumber, &o.Tracking.EstimatedDelivery,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) Create(ctx context.Context, o *Order) error {
	db := postgres.Conn(ctx, r.DB)
	a := o.ShippingAddress
	_, err := db.Exec(ctx, `INSERT INTO orders(`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
		o.ID, o.UserID, o.Status, a.Name, a.Street, a.City, a.State, a.Pincode, a.Phone,
		o.Pricing.Subtotal, o.Pricing.Shipping, o.Pricing.Tax, o.Pricing.Discount, o.Pricing.Total,
		o.Payment.Method, o.Payment.Status, o.Payment.TransactionID,
		o.Tracking.Carrier, o.Tracking.TrackingNumber, o.Tracking.EstimatedDelivery,
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for i, it := range o.Items {
		batch.Queue(`INSERT INTO order_items(order_id, position, spare_part_id, name, quantity, unit_price)
			VALUES ($1,$2,$3,$4,$5,$6)`, o.ID, i, it.SparePartID, it.Name, it.Quantity, it.UnitPrice)
	}
	br := db.SendBatch(ctx, batch)
	for range o.Items {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return br.Close()
}

func (r *Repo) Get(ctx context.Context, id string) (*Order, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate locks the order row until the surrounding transaction ends.
func (r *Repo) GetForUpdate(ctx context.Context, id string) (*Order, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *Repo) get(ctx context.Context, id, lock string) (*Order, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrNotFound
	}
	db := postgres.Conn(ctx, r.DB)
	o, err := scanOrder(db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`+lock, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	items, err := r.items(ctx, db, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (r *Repo) items(ctx context.Context, db postgres.DBTX, orderIDs []string) (map[string][]LineItem, error) {
	rows, err := db.Query(ctx, `SELECT order_id, spare_part_id, name, quantity, unit_price
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]LineItem, len(orderIDs))
	for rows.Next() {
		var (
			orderID string
			it      LineItem
		)
		if err := rows.Scan(&orderID, &it.SparePartID, &it.Name, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, rows.Err()
}

func (r *Repo) List(ctx context.Context, f ListFilter) ([]Order, error) {
	if f.UserID != "" && uuid.Validate(f.UserID) != nil {
		return []Order{}, nil
	}
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE ($1 = '' OR user_id::text = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC`, f.UserID, string(f.Status))
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	out := []Order{}
	ids := []string{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	items, err := r.items(ctx, r.DB, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func (r *Repo) SetStatus(ctx context.Context, id string, from, to Status, tr *Tracking) error {
	query := `UPDATE orders SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`
	args := []any{id, from, to}
	if tr != nil {
		query = `UPDATE orders SET status=$3, carrier=$4, tracking_number=$5, estimated_delivery=$6,
			updated_at=now() WHERE id=$1 AND status=$2`
		args = append(args, tr.Carrier, tr.TrackingNumber, tr.EstimatedDelivery)
	}
	ct, err := postgres.Conn(ctx, r.DB).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrStatusChanged
	}
	return nil
}

func (r *Repo) SetPayment(ctx context.Context, id string, p Payment, status Status) error {
	ct, err := postgres.Conn(ctx, r.DB).Exec(ctx, `UPDATE orders SET payment_method=$2, payment_status=$3,
		payment_txn_id=$4, status=$5, updated_at=now() WHERE id=$1`,
		id, p.Method, p.Status, p.TransactionID, status)
	if err != nil {
		return fmt.Errorf("update order payment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
