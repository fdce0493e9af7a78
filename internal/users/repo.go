package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-appliance-care/internal/auth"
	"github.com/ariefcatur/go-appliance-care/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const userColumns = `id, name, email, phone, role, is_active, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Role, &u.IsActive, &u.PasswordHash,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (r *Repo) Create(ctx context.Context, u *User) error {
	_, err := r.DB.Exec(ctx, `INSERT INTO users(`+userColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		u.ID, u.Name, u.Email, u.Phone, u.Role, u.IsActive, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	if postgres.IsUniqueViolation(err, "users_email_key") {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (*User, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrNotFound
	}
	return scanUser(r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

func (r *Repo) FindByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email))
}

func (r *Repo) List(ctx context.Context) ([]User, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateProfile(ctx context.Context, id, name, phone string) (*User, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrNotFound
	}
	return scanUser(r.DB.QueryRow(ctx, `UPDATE users SET name=$2, phone=$3, updated_at=now()
		WHERE id=$1 RETURNING `+userColumns, id, name, phone))
}

func (r *Repo) UpdateRole(ctx context.Context, id string, role auth.Role) (*User, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrNotFound
	}
	return scanUser(r.DB.QueryRow(ctx, `UPDATE users SET role=$2, updated_at=now()
		WHERE id=$1 RETURNING `+userColumns, id, role))
}

const addressColumns = `id, label, street, city, state, pincode, phone, is_default, created_at`

func (r *Repo) ListAddresses(ctx context.Context, userID string) ([]Address, error) {
	if uuid.Validate(userID) != nil {
		return []Address{}, nil
	}
	rows, err := postgres.Conn(ctx, r.DB).Query(ctx, `SELECT `+addressColumns+` FROM user_addresses
		WHERE user_id=$1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	out := []Address{}
	for rows.Next() {
		var a Address
		if err := rows.Scan(&a.ID, &a.Label, &a.Street, &a.City, &a.State, &a.Pincode, &a.Phone,
			&a.IsDefault, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repo) LockAddresses(ctx context.Context, userID string) ([]Address, error) {
	if uuid.Validate(userID) != nil {
		return nil, ErrNotFound
	}
	var id string
	err := postgres.Conn(ctx, r.DB).QueryRow(ctx, `SELECT id FROM users WHERE id=$1 FOR UPDATE`, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock user: %w", err)
	}
	return r.ListAddresses(ctx, userID)
}

func (r *Repo) CreateAddress(ctx context.Context, userID string, a Address) error {
	_, err := postgres.Conn(ctx, r.DB).Exec(ctx, `INSERT INTO user_addresses(user_id, `+addressColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,false,$9)`,
		userID, a.ID, a.Label, a.Street, a.City, a.State, a.Pincode, a.Phone, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert address: %w", err)
	}
	return nil
}

func (r *Repo) UpdateAddress(ctx context.Context, userID string, a Address) error {
	ct, err := postgres.Conn(ctx, r.DB).Exec(ctx, `UPDATE user_addresses SET label=$3, street=$4, city=$5,
		state=$6, pincode=$7, phone=$8 WHERE id=$1 AND user_id=$2`,
		a.ID, userID, a.Label, a.Street, a.City, a.State, a.Pincode, a.Phone)
	if err != nil {
		return fmt.Errorf("update address: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrAddressNotFound
	}
	return nil
}

func (r *Repo) DeleteAddress(ctx context.Context, userID, addressID string) error {
	ct, err := postgres.Conn(ctx, r.DB).Exec(ctx, `DELETE FROM user_addresses WHERE id=$1 AND user_id=$2`,
		addressID, userID)
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrAddressNotFound
	}
	return nil
}

// SetDefaultAddress clears the old default before setting the new one so
// user_addresses_default_idx never sees two defaults.
func (r *Repo) SetDefaultAddress(ctx context.Context, userID, addressID string) error {
	db := postgres.Conn(ctx, r.DB)
	if _, err := db.Exec(ctx, `UPDATE user_addresses SET is_default=false
		WHERE user_id=$1 AND is_default AND id<>$2`, userID, addressID); err != nil {
		return fmt.Errorf("clear default address: %w", err)
	}
	ct, err := db.Exec(ctx, `UPDATE user_addresses SET is_default=true WHERE id=$1 AND user_id=$2`,
		addressID, userID)
	if err != nil {
		return fmt.Errorf("set default address: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrAddressNotFound
	}
	return nil
}
