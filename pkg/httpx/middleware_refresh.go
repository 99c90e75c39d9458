package httpx

import (
	"context"
	"net/http"

	"github.com/warungtech/gatekit/pkg/jwtx"
	"github.com/warungtech/gatekit/pkg/slogx"
)

// RevalidateFunc re-checks that the identity a refresh token names still
// exists, returning the trimmed identity to mint the next token pair from.
type RevalidateFunc func(ctx context.Context, username string) (jwtx.Identity, error)

// RefreshMiddleware verifies the refresh token and attaches the
// re-validated identity to the request context.
//
// The expiry claim is deliberately not enforced at this stage: the token's
// validity rests on its signature, and the account lookup below is what
// invalidates outstanding refresh tokens for deleted accounts. There is no
// server-side revocation list.
func RefreshMiddleware(v *jwtx.Verifier, revalidate RevalidateFunc) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw := ExtractToken(r, RefreshTokenCookie)
			if raw == "" {
				writeBearerError(w, "missing refresh token")
				return
			}

			claims, err := v.VerifySignature(raw)
			if err != nil {
				log.Warn("refresh token rejected", "err", err)
				writeBearerError(w, "token verification failed")
				return
			}

			identity, err := revalidate(ctx, claims.Username)
			if err != nil {
				log.Warn("refresh identity no longer valid", "username", claims.Username, "err", err)
				writeBearerError(w, "unknown identity")
				return
			}

			ctx = context.WithValue(ctx, CtxKeyUserID, identity.Subject)
			ctx = context.WithValue(ctx, CtxKeyIdentity, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
