package middleware

import (
	"context"
	"net/http"

	"github.com/sweenec/Secrets/internal/session"
	"github.com/sweenec/Secrets/internal/store"
)

// unexported, collision-proof context keys
type userIDContextKeyType struct{}
type identityContextKeyType struct{}

var (
	userIDKey   = userIDContextKeyType{}
	identityKey = identityContextKeyType{}
)

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}

// IdentityFromContext extracts the resolved identity record from context.
func IdentityFromContext(ctx context.Context) (*store.Identity, bool) {
	ident, ok := ctx.Value(identityKey).(*store.Identity)
	return ident, ok
}

type AuthMiddleware struct {
	Sessions *session.Manager
}

func NewAuthMiddleware(sessions *session.Manager) *AuthMiddleware {
	return &AuthMiddleware{Sessions: sessions}
}

// resolve returns the live identity for the request's session cookie,
// or nil when the caller is anonymous.
func (a *AuthMiddleware) resolve(r *http.Request) (*store.Identity, error) {
	cookie, err := r.Cookie(session.CookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	return a.Sessions.Current(r.Context(), cookie.Value)
}

// RequireAuth gates API routes: anonymous callers get 401, never a
// partial execution of the protected handler.
func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, err := a.resolve(r)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if ident == nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, ident.ID)
		ctx = context.WithValue(ctx, identityKey, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireLogin gates browser routes: anonymous callers are redirected to
// the login entry point instead of receiving a bare 401.
func (a *AuthMiddleware) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, err := a.resolve(r)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if ident == nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, ident.ID)
		ctx = context.WithValue(ctx, identityKey, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
