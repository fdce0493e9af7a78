package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-appliance-care/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DecrementStock takes qty units of a part in one conditional statement,
// so two concurrent callers can never both pass the stock check. It joins
// the transaction in ctx when there is one.
func (r *Repo) DecrementStock(ctx context.Context, partID string, qty int) (StockLine, error) {
	if uuid.Validate(partID) != nil {
		return StockLine{}, fmt.Errorf("%w: %s", ErrPartNotFound, partID)
	}
	db := postgres.Conn(ctx, r.DB)

	line := StockLine{PartID: partID}
	err := db.QueryRow(ctx, `
		UPDATE spare_parts SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND is_active AND stock >= $2
		RETURNING name, price`, partID, qty).Scan(&line.Name, &line.Price)
	if err == nil {
		return line, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return StockLine{}, fmt.Errorf("decrement stock: %w", err)
	}

	// Guard failed: tell unknown parts apart from short ones.
	var (
		name      string
		available int
		active    bool
	)
	err = db.QueryRow(ctx, `SELECT name, stock, is_active FROM spare_parts WHERE id=$1`, partID).
		Scan(&name, &available, &active)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && !active) {
		return StockLine{}, fmt.Errorf("%w: %s", ErrPartNotFound, partID)
	}
	if err != nil {
		return StockLine{}, fmt.Errorf("read stock: %w", err)
	}
	return StockLine{}, fmt.Errorf("%w for %s (requested %d, available %d)", ErrInsufficientStock, name, qty, available)
}

// RestoreStock returns qty units to a part. Inactive parts are restored too.
func (r *Repo) RestoreStock(ctx context.Context, partID string, qty int) error {
	ct, err := postgres.Conn(ctx, r.DB).Exec(ctx,
		`UPDATE spare_parts SET stock = stock + $2, updated_at = now() WHERE id = $1`, partID, qty)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrPartNotFound, partID)
	}
	return nil
}
