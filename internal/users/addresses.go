package users

import (
	"context"
	"strings"
	"time"

	"github.com/ariefcatur/go-appliance-care/internal/apperr"
	"github.com/ariefcatur/go-appliance-care/internal/auth"
	"github.com/google/uuid"
)

// Address is an entry in a user's address book. A user with any addresses
// has exactly one marked as default.
type Address struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Street    string    `json:"street"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Pincode   string    `json:"pincode"`
	Phone     string    `json:"phone"`
	IsDefault bool      `json:"isDefault"`
	CreatedAt time.Time `json:"createdAt"`
}

type AddressInput struct {
	Label     string `json:"label"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	Pincode   string `json:"pincode"`
	Phone     string `json:"phone"`
	IsDefault bool   `json:"isDefault"`
}

var ErrAddressNotFound = apperr.NotFound("address not found")

func (in AddressInput) apply(a *Address) error {
	a.Label = strings.TrimSpace(in.Label)
	a.Street = strings.TrimSpace(in.Street)
	a.City = strings.TrimSpace(in.City)
	a.State = strings.TrimSpace(in.State)
	a.Pincode = strings.TrimSpace(in.Pincode)
	a.Phone = strings.TrimSpace(in.Phone)
	if a.Street == "" || a.City == "" || a.State == "" || a.Pincode == "" {
		return apperr.Validation("address requires street, city, state and pincode")
	}
	return nil
}

func findAddress(list []Address, addressID string) (Address, bool) {
	for _, a := range list {
		if a.ID == addressID {
			return a, true
		}
	}
	return Address{}, false
}

func (s *Service) Addresses(ctx context.Context, id auth.Identity) ([]Address, error) {
	return s.repo.ListAddresses(ctx, id.UserID)
}

// AddAddress stores a new address and returns the caller's address book.
// The first address, or one flagged isDefault, becomes the default.
func (s *Service) AddAddress(ctx context.Context, id auth.Identity, in AddressInput) ([]Address, error) {
	a := Address{ID: uuid.NewString(), CreatedAt: s.now().UTC()}
	if err := in.apply(&a); err != nil {
		return nil, err
	}
	var out []Address
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.LockAddresses(ctx, id.UserID)
		if err != nil {
			return err
		}
		if err := s.repo.CreateAddress(ctx, id.UserID, a); err != nil {
			return err
		}
		if len(existing) == 0 || in.IsDefault {
			if err := s.repo.SetDefaultAddress(ctx, id.UserID, a.ID); err != nil {
				return err
			}
		}
		out, err = s.repo.ListAddresses(ctx, id.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateAddress replaces the fields of one address. isDefault=true moves
// the default to it; clearing the flag on the current default is ignored,
// since the default only moves when another address takes it.
func (s *Service) UpdateAddress(ctx context.Context, id auth.Identity, addressID string, in AddressInput) ([]Address, error) {
	var out []Address
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.LockAddresses(ctx, id.UserID)
		if err != nil {
			return err
		}
		a, found := findAddress(existing, addressID)
		if !found {
			return ErrAddressNotFound
		}
		if err := in.apply(&a); err != nil {
			return err
		}
		if err := s.repo.UpdateAddress(ctx, id.UserID, a); err != nil {
			return err
		}
		if in.IsDefault && !a.IsDefault {
			if err := s.repo.SetDefaultAddress(ctx, id.UserID, a.ID); err != nil {
				return err
			}
		}
		out, err = s.repo.ListAddresses(ctx, id.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteAddress removes one address. Removing the default hands it to the
// oldest remaining address.
func (s *Service) DeleteAddress(ctx context.Context, id auth.Identity, addressID string) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.LockAddresses(ctx, id.UserID)
		if err != nil {
			return err
		}
		a, found := findAddress(existing, addressID)
		if !found {
			return ErrAddressNotFound
		}
		if err := s.repo.DeleteAddress(ctx, id.UserID, a.ID); err != nil {
			return err
		}
		if !a.IsDefault {
			return nil
		}
		for _, next := range existing {
			if next.ID != a.ID {
				return s.repo.SetDefaultAddress(ctx, id.UserID, next.ID)
			}
		}
		return nil
	})
}
