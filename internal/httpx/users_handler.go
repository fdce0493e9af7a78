package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-appliance-care/internal/auth"
	"github.com/ariefcatur/go-appliance-care/internal/users"
	"github.com/go-chi/chi/v5"
)

type UserService interface {
	IdentityResolver
	Register(ctx context.Context, in users.RegisterInput) (*users.User, error)
	Login(ctx context.Context, email, password string) (string, *users.User, error)
	Get(ctx context.Context, id string) (*users.User, error)
	UpdateProfile(ctx context.Context, id auth.Identity, in users.ProfileInput) (*users.User, error)
	List(ctx context.Context, id auth.Identity) ([]users.User, error)
	UpdateRole(ctx context.Context, id auth.Identity, userID string, role auth.Role) (*users.User, error)
	Addresses(ctx context.Context, id auth.Identity) ([]users.Address, error)
	AddAddress(ctx context.Context, id auth.Identity, in users.AddressInput) ([]users.Address, error)
	UpdateAddress(ctx context.Context, id auth.Identity, addressID string, in users.AddressInput) ([]users.Address, error)
	DeleteAddress(ctx context.Context, id auth.Identity, addressID string) error
}

type UsersHandler struct {
	Users UserService
	Log   *slog.Logger
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResp struct {
	Token string      `json:"token"`
	User  *users.User `json:"user"`
}

type roleReq struct {
	Role auth.Role `json:"role"`
}

func (h *UsersHandler) register(w http.ResponseWriter, r *http.Request) {
	var req users.RegisterInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	u, err := h.Users.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusCreated, u)
}

func (h *UsersHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	token, u, err := h.Users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, loginResp{Token: token, User: u})
}

func (h *UsersHandler) profile(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Get(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, u)
}

func (h *UsersHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req users.ProfileInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	u, err := h.Users.UpdateProfile(r.Context(), identity(r), req)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, u)
}

func (h *UsersHandler) list(w http.ResponseWriter, r *http.Request) {
	us, err := h.Users.List(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	okList(w, us)
}

func (h *UsersHandler) updateRole(w http.ResponseWriter, r *http.Request) {
	var req roleReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	u, err := h.Users.UpdateRole(r.Context(), identity(r), chi.URLParam(r, "id"), req.Role)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, u)
}

func (h *UsersHandler) listAddresses(w http.ResponseWriter, r *http.Request) {
	list, err := h.Users.Addresses(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	okList(w, list)
}

func (h *UsersHandler) addAddress(w http.ResponseWriter, r *http.Request) {
	var req users.AddressInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	list, err := h.Users.AddAddress(r.Context(), identity(r), req)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusCreated, list)
}

func (h *UsersHandler) updateAddress(w http.ResponseWriter, r *http.Request) {
	var req users.AddressInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	list, err := h.Users.UpdateAddress(r.Context(), identity(r), chi.URLParam(r, "addressId"), req)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, list)
}

func (h *UsersHandler) deleteAddress(w http.ResponseWriter, r *http.Request) {
	if err := h.Users.DeleteAddress(r.Context(), identity(r), chi.URLParam(r, "addressId")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	okMessage(w, "Address removed successfully")
}
