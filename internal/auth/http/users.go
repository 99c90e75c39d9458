package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/warungtech/gatekit/internal/auth/domain"
	"github.com/warungtech/gatekit/internal/auth/service"
	"github.com/warungtech/gatekit/internal/auth/store"
	"github.com/warungtech/gatekit/pkg/httpx"
	"github.com/warungtech/gatekit/pkg/slogx"
)

type UserHandler struct {
	UserService *service.UserService
}

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// userResponse never carries the password hash.
type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
	}
}

func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.UserService.FindAll(r.Context())
	if err != nil {
		slogx.FromContext(r.Context()).Error("user listing failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]userResponse, len(users))
	for i, u := range users {
		out[i] = toUserResponse(u)
	}
	httpx.WriteMessage(w, http.StatusOK, "Retrieved all users", out)
}

func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	u, err := h.UserService.FindByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "user not found")
			return
		}
		slogx.FromContext(r.Context()).Error("user lookup failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	httpx.WriteMessage(w, http.StatusOK, "Retrieved user", toUserResponse(u))
}

func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.UserService.Create(ctx, req.Username, req.Email, req.Name, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrAlreadyExists):
			httpx.WriteError(w, http.StatusConflict, "username or email already taken")
		default:
			slogx.FromContext(ctx).Error("user creation failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	httpx.WriteMessage(w, http.StatusCreated, "User created", toUserResponse(u))
}
