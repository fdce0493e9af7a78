package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-appliance-care/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const bookingColumns = `id, user_id, service_id, category_id, appliance_brand, appliance_model,
	purchase_year, scheduled_date, slot_start, slot_end, street, city, state, pincode, status,
	technician_id, price_service, price_parts, price_tax, price_total, payment_method,
	payment_status, payment_txn_id, notes, rating_score, rating_review, rating_date,
	created_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var (
		b          Booking
		score      *int
		review     *string
		ratedAt    *time.Time
		appliance  = &b.Appliance
		address    = &b.Address
		price      = &b.Price
		payment    = &b.Payment
		timeWindow = &b.TimeSlot
	)
	err := row.Scan(&b.ID, &b.UserID, &b.ServiceID, &appliance.CategoryID, &appliance.Brand,
		&appliance.Model, &appliance.PurchaseYear, &b.ScheduledDate, &timeWindow.Start, &timeWindow.End,
		&address.Street, &address.City, &address.State, &address.Pincode, &b.Status, &b.TechnicianID,
		&price.Service, &price.Parts, &price.Tax, &price.Total, &payment.Method, &payment.Status,
		&payment.TransactionID, &b.Notes, &score, &review, &ratedAt, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan booking: %w", err)
	}
	if score != nil {
		b.Rating = &Rating{Score: *score}
		if review != nil {
			b.Rating.Review = *review
		}
		if ratedAt != nil {
			b.Rating.Date = *ratedAt
		}
	}
	return &b, nil
}

func (r *Repo) Create(ctx context.Context, b *Booking) error {
	a, addr, p := b.Appliance, b.Address, b.Price
	_, err := postgres.Conn(ctx, r.DB).Exec(ctx, `INSERT INTO bookings(id, user_id, service_id,
		category_id, appliance_brand, appliance_model, purchase_year, scheduled_date, slot_start,
		slot_end, street, city, state, pincode, status, price_service, price_parts, price_tax,
		price_total, payment_method, payment_status, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`,
		b.ID, b.UserID, b.ServiceID, a.CategoryID, a.Brand, a.Model, a.PurchaseYear, b.ScheduledDate,
		b.TimeSlot.Start, b.TimeSlot.End, addr.Street, addr.City, addr.State, addr.Pincode, b.Status,
		p.Service, p.Parts, p.Tax, p.Total, b.Payment.Method, b.Payment.Status, b.Notes,
		b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (*Booking, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate locks the booking row until the surrounding transaction ends.
func (r *Repo) GetForUpdate(ctx context.Context, id string) (*Booking, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *Repo) get(ctx context.Context, id, lock string) (*Booking, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrNotFound
	}
	return scanBooking(postgres.Conn(ctx, r.DB).QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id=$1`+lock, id))
}

func (r *Repo) List(ctx context.Context, f ListFilter) ([]Booking, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE ($1 = '' OR user_id::text = $1)
		  AND ($2 = '' OR technician_id::text = $2)
		  AND ($3 = '' OR status = $3)
		ORDER BY created_at DESC`, f.UserID, f.TechnicianID, string(f.Status))
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	out := []Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (r *Repo) SetStatus(ctx context.Context, id string, from, to Status, technicianID *string) error {
	ct, err := postgres.Conn(ctx, r.DB).Exec(ctx, `UPDATE bookings SET status=$3, technician_id=$4,
		updated_at=now() WHERE id=$1 AND status=$2`, id, from, to, technicianID)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrStatusChanged
	}
	return nil
}

func (r *Repo) SetPayment(ctx context.Context, id string, p Payment, status Status) error {
	ct, err := postgres.Conn(ctx, r.DB).Exec(ctx, `UPDATE bookings SET payment_method=$2,
		payment_status=$3, payment_txn_id=$4, status=$5, updated_at=now() WHERE id=$1`,
		id, p.Method, p.Status, p.TransactionID, status)
	if err != nil {
		return fmt.Errorf("update booking payment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) SetRating(ctx context.Context, id string, rt Rating) error {
	ct, err := postgres.Conn(ctx, r.DB).Exec(ctx, `UPDATE bookings SET rating_score=$2,
		rating_review=$3, rating_date=$4, updated_at=now()
		WHERE id=$1 AND status='completed' AND rating_score IS NULL`, id, rt.Score, rt.Review, rt.Date)
	if err != nil {
		return fmt.Errorf("rate booking: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrAlreadyRated
	}
	return nil
}
