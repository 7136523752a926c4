package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	h "eventstream/internal/delivery/http/helpers"
	"eventstream/internal/domain"
)

type contextKey string

const identityKey contextKey = "identity"

// Token extraction failures, worded for the client.
var (
	errMissingAuth   = errors.New("missing authorization header")
	errInvalidFormat = errors.New("invalid authorization format")
	errMissingToken  = errors.New("missing token")
)

// SetIdentity returns a context carrying the authenticated identity. Used by auth middleware.
func SetIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the authenticated identity from the context, if present.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey).(domain.Identity)
	return id, ok
}

// UserIDFromContext returns the authenticated user ID from the context, if present.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := IdentityFromContext(ctx)
	if !ok || id.UserID == "" {
		return "", false
	}
	return id.UserID, true
}

// TokenFromRequest reads the bearer token from the Authorization header. When allowQuery
// is set and no header is present, the token query parameter is used instead; browsers
// cannot set headers on a websocket handshake.
func TokenFromRequest(r *http.Request, allowQuery bool) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		if allowQuery {
			if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
				return token, nil
			}
		}
		return "", errMissingAuth
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", errInvalidFormat
	}
	token := strings.TrimSpace(auth[len(prefix):])
	if token == "" {
		return "", errMissingToken
	}
	return token, nil
}

// RequireAuth returns a wrapper that validates the Bearer token and sets the identity in the request context.
// If the token is missing or invalid, it responds with 401 and does not call next.
func RequireAuth(verifier domain.TokenVerifier, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token, err := TokenFromRequest(r, false)
			if err != nil {
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, err.Error())
				return
			}
			identity, err := verifier.Verify(token)
			if err != nil {
				logger.DebugContext(r.Context(), "token rejected", "path", r.URL.Path, "err", err)
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "invalid or expired token")
				return
			}
			r = r.WithContext(SetIdentity(r.Context(), *identity))
			next(w, r)
		}
	}
}

// RequireRole rejects authenticated callers without the given role with 403.
// It must run after RequireAuth.
func RequireRole(role domain.Role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
			return
		}
		if identity.Role != role {
			h.WriteJSONError(w, http.StatusForbidden, h.ErrCodeForbidden, "requires role "+string(role))
			return
		}
		next(w, r)
	}
}
