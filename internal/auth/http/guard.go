package http

import (
	"errors"
	"net/http"

	"github.com/warungtech/gatekit/internal/auth/service"
	"github.com/warungtech/gatekit/pkg/httpx"
	"github.com/warungtech/gatekit/pkg/slogx"
)

// Header names carrying static API credentials.
const (
	HeaderAppKey    = "x-app-key"
	HeaderSecretKey = "x-secret-key"
)

// APIKeyGuard gates a route behind a static key/secret pair. Both
// headers must be present; a route that declares no required
// permissions accepts any valid key. With required permissions the key
// must hold at least one of them.
func APIKeyGuard(svc *service.APIKeyService, required ...string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderAppKey)
			secret := r.Header.Get(HeaderSecretKey)
			if key == "" || secret == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "api key credentials are required")
				return
			}

			// No declared permissions means presence of the headers is
			// the whole requirement.
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			if err := svc.Validate(r.Context(), key, secret, required); err != nil {
				switch {
				case errors.Is(err, service.ErrKeyNotFound):
					httpx.WriteError(w, http.StatusNotFound, "api key not found")
				case errors.Is(err, service.ErrForbidden):
					httpx.WriteError(w, http.StatusForbidden, "forbidden")
				default:
					slogx.FromContext(r.Context()).Error("api key validation failed", "err", err)
					httpx.WriteError(w, http.StatusInternalServerError, "internal error")
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
