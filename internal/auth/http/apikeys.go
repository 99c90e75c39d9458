package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/warungtech/gatekit/internal/auth/service"
	"github.com/warungtech/gatekit/pkg/httpx"
	"github.com/warungtech/gatekit/pkg/slogx"
)

type APIKeyHandler struct {
	APIKeyService *service.APIKeyService
}

type createAPIKeyRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

type apiKeyResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Key         string    `json:"key"`
	Secret      string    `json:"secret"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// HandleList returns every stored api key with resolved owner and
// permission names.
func (h *APIKeyHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	listings, err := h.APIKeyService.FindAll(r.Context())
	if err != nil {
		slogx.FromContext(r.Context()).Error("api key listing failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	httpx.WriteMessage(w, http.StatusOK, "Retrieved all api keys", listings)
}

// HandleCreate generates a fresh key/secret pair owned by the current
// session user. The secret is returned once here and again in listings;
// there is no rotation.
func (h *APIKeyHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, ok := httpx.ClaimsFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "no session")
		return
	}

	var req createAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record, err := h.APIKeyService.Create(ctx, req.Name, req.Permissions, claims.Subject)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		slogx.FromContext(ctx).Error("api key creation failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	httpx.WriteMessage(w, http.StatusCreated, "Api key created", apiKeyResponse{
		ID:          record.ID,
		Name:        record.Name,
		Key:         record.Key,
		Secret:      record.Secret,
		Permissions: record.Permissions,
		ExpiresAt:   record.ExpiresAt,
	})
}
