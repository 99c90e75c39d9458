package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/warungtech/gatekit/internal/auth/service"
	"github.com/warungtech/gatekit/internal/auth/store"
	"github.com/warungtech/gatekit/pkg/httpx"
	"github.com/warungtech/gatekit/pkg/slogx"
)

type PermissionHandler struct {
	PermissionService *service.PermissionService
}

type createPermissionRequest struct {
	Name string `json:"name"`
}

type permissionResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (h *PermissionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	perms, err := h.PermissionService.FindAll(r.Context())
	if err != nil {
		slogx.FromContext(r.Context()).Error("permission listing failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]permissionResponse, len(perms))
	for i, p := range perms {
		out[i] = permissionResponse{ID: p.ID, Name: p.Name}
	}
	httpx.WriteMessage(w, http.StatusOK, "Retrieved all permissions", out)
}

func (h *PermissionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.PermissionService.Create(ctx, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrAlreadyExists):
			httpx.WriteError(w, http.StatusConflict, "permission already exists")
		default:
			slogx.FromContext(ctx).Error("permission creation failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	httpx.WriteMessage(w, http.StatusCreated, "Permission created", permissionResponse{
		ID:   created.ID,
		Name: created.Name,
	})
}
