package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
)

// RevocationChecker reports whether a credential was revoked by logout.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// AuthnMiddleware admits only final (access) credentials that verify and are
// not revoked. Intermediate credentials are rejected so a password alone never
// unlocks regular endpoints. revoked may be nil.
func AuthnMiddleware(v jwtx.Verifier, revoked RevocationChecker) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := BearerToken(r)
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}

			claims, err := v.Verify(raw)
			if err != nil {
				writeBearerError(w, "token verification failed")
				log.Warn("jwt verify failed", "err", err)
				return
			}

			if !claims.IsAccess() {
				writeBearerError(w, "token verification failed")
				log.Warn("non-access credential presented", "kind", claims.Kind, "sub", claims.Subject)
				return
			}

			if revoked != nil {
				isRevoked, err := revoked.IsRevoked(ctx, raw)
				if err != nil {
					// Fail closed when the registry is unreachable.
					log.Error("revocation lookup failed", "err", err)
					writeBearerError(w, "token verification failed")
					return
				}
				if isRevoked {
					writeBearerError(w, "token verification failed")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(ContextWithAuth(ctx, raw, claims)))
		})
	}
}

// BearerToken extracts the credential from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	return raw, raw != ""
}

// ContextWithAuth injects the verified identity for downstream handlers.
func ContextWithAuth(ctx context.Context, raw string, c jwtx.Claims) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, c.Subject)
	ctx = context.WithValue(ctx, CtxKeyClaims, c)
	ctx = context.WithValue(ctx, CtxKeyToken, raw)
	return ctx
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteJSON(w, http.StatusUnauthorized, map[string]any{
		"success": false,
		"message": "Unauthorized",
	})
}
