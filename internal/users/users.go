package users

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/ariefcatur/go-appliance-care/internal/apperr"
	"github.com/ariefcatur/go-appliance-care/internal/auth"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Role         auth.Role `json:"role"`
	IsActive     bool      `json:"isActive"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

var (
	ErrNotFound         = apperr.NotFound("user not found")
	ErrEmailTaken       = apperr.Conflict("email already registered")
	ErrInvalidCreds     = apperr.Unauthorized("invalid email or password")
	ErrInactive         = apperr.Unauthorized("account is deactivated")
	ErrPasswordTooShort = apperr.Validation("password must be at least 8 characters")
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
	UpdateProfile(ctx context.Context, id, name, phone string) (*User, error)
	UpdateRole(ctx context.Context, id string, role auth.Role) (*User, error)

	// ListAddresses returns a user's addresses, oldest first.
	ListAddresses(ctx context.Context, userID string) ([]Address, error)
	// LockAddresses is ListAddresses that also holds the user's row until
	// the surrounding transaction ends.
	LockAddresses(ctx context.Context, userID string) ([]Address, error)
	CreateAddress(ctx context.Context, userID string, a Address) error
	UpdateAddress(ctx context.Context, userID string, a Address) error
	DeleteAddress(ctx context.Context, userID, addressID string) error
	// SetDefaultAddress makes addressID the only default of userID.
	SetDefaultAddress(ctx context.Context, userID, addressID string) error
}

type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	repo   Repository
	tx     Transactor
	tokens *auth.Tokens
	now    func() time.Time
}

func NewService(repo Repository, tx Transactor, tokens *auth.Tokens) *Service {
	return &Service{repo: repo, tx: tx, tokens: tokens, now: time.Now}
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if len(in.Password) < 8 {
		return nil, ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u := &User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		Phone:        strings.TrimSpace(in.Phone),
		Role:         auth.RoleUser,
		IsActive:     true,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login checks credentials and returns a signed access token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return "", nil, ErrInvalidCreds
		}
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCreds
	}
	if !u.IsActive {
		return "", nil, ErrInactive
	}
	token, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// Identity resolves the current role of an authenticated user, so role
// changes and deactivation apply to tokens already issued.
func (s *Service) Identity(ctx context.Context, userID string) (auth.Identity, error) {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return auth.Identity{}, auth.ErrInvalidToken
		}
		return auth.Identity{}, err
	}
	if !u.IsActive {
		return auth.Identity{}, ErrInactive
	}
	return auth.Identity{UserID: u.ID, Role: u.Role}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.Get(ctx, id)
}

type ProfileInput struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (s *Service) UpdateProfile(ctx context.Context, id auth.Identity, in ProfileInput) (*User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	return s.repo.UpdateProfile(ctx, id.UserID, name, strings.TrimSpace(in.Phone))
}

func (s *Service) List(ctx context.Context, id auth.Identity) ([]User, error) {
	if err := id.RequireAdmin(); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

func (s *Service) UpdateRole(ctx context.Context, id auth.Identity, userID string, role auth.Role) (*User, error) {
	if err := id.RequireAdmin(); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, apperr.Validation("role must be one of user, technician, admin")
	}
	return s.repo.UpdateRole(ctx, userID, role)
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation("a valid email is required")
	}
	return email, nil
}
