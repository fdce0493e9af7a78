package auth

import (
	"context"

	"github.com/ariefcatur/go-appliance-care/internal/apperr"
)

type Role string

const (
	RoleUser       Role = "user"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleTechnician, RoleAdmin:
		return true
	}
	return false
}

var (
	ErrAdminOnly = apperr.Forbidden("admin access required")
	ErrNotOwner  = apperr.Forbidden("not authorized to access this resource")
)

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID string
	Role   Role
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

func (i Identity) IsTechnician() bool { return i.Role == RoleTechnician }

// Owns reports whether the caller may act on a resource owned by ownerID.
func (i Identity) Owns(ownerID string) bool {
	return i.IsAdmin() || (i.UserID != "" && i.UserID == ownerID)
}

func (i Identity) RequireAdmin() error {
	if !i.IsAdmin() {
		return ErrAdminOnly
	}
	return nil
}

type ctxKeyIdentity struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity{}).(Identity)
	return id, ok
}
