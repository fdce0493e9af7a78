package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-appliance-care/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) CreateIntent(ctx context.Context, in *Intent) error {
	err := postgres.Conn(ctx, r.DB).QueryRow(ctx, `INSERT INTO payment_intents(gateway_order_id, kind,
		entity_id, user_id, amount_minor, currency, receipt, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING created_at`,
		in.GatewayOrderID, in.Kind, in.EntityID, in.UserID, in.AmountMinor, in.Currency, in.Receipt,
		in.Status).Scan(&in.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment intent: %w", err)
	}
	return nil
}

// GetIntentForUpdate locks the intent so concurrent verifications of the
// same gateway order run one after the other.
func (r *Repo) GetIntentForUpdate(ctx context.Context, gatewayOrderID string) (*Intent, error) {
	var in Intent
	err := postgres.Conn(ctx, r.DB).QueryRow(ctx, `SELECT gateway_order_id, kind, entity_id, user_id,
		amount_minor, currency, receipt, status, payment_id, created_at
		FROM payment_intents WHERE gateway_order_id=$1 FOR UPDATE`, gatewayOrderID).
		Scan(&in.GatewayOrderID, &in.Kind, &in.EntityID, &in.UserID, &in.AmountMinor, &in.Currency,
			&in.Receipt, &in.Status, &in.PaymentID, &in.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUnknownOrder
	}
	if err != nil {
		return nil, fmt.Errorf("get payment intent: %w", err)
	}
	return &in, nil
}

func (r *Repo) MarkPaid(ctx context.Context, gatewayOrderID, paymentID string) error {
	ct, err := postgres.Conn(ctx, r.DB).Exec(ctx, `UPDATE payment_intents SET status='paid', payment_id=$2,
		updated_at=now() WHERE gateway_order_id=$1 AND status='created'`, gatewayOrderID, paymentID)
	if err != nil {
		return fmt.Errorf("mark intent paid: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrAlreadyPaid
	}
	return nil
}
