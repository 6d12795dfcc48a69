package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const ownerContextKey contextKey = "desk_owner"

// OwnerCookieName identifies the browser that owns transfer slots and workflows.
const OwnerCookieName = "licensedesk_owner"

// ownerCookieMaxAge keeps a desk identity for a year.
const ownerCookieMaxAge = 365 * 24 * 60 * 60

// SecureCookies controls the Secure flag on cookies. Set to true in production.
var SecureCookies = false

// DeskOwner ensures every request carries a desk owner id.
// A missing or malformed cookie is replaced with a fresh UUID.
func DeskOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := ""
		if c, err := r.Cookie(OwnerCookieName); err == nil {
			if id, err := uuid.Parse(c.Value); err == nil {
				owner = id.String()
			}
		}
		if owner == "" {
			owner = uuid.NewString()
			SetOwnerCookie(w, owner)
		}
		next.ServeHTTP(w, r.WithContext(ContextWithOwner(r.Context(), owner)))
	})
}

// OwnerFromContext returns the desk owner set by DeskOwner.
func OwnerFromContext(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ownerContextKey).(string)
	return owner, ok && owner != ""
}

// ContextWithOwner returns a context carrying owner.
// Intended for DeskOwner and tests.
func ContextWithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerContextKey, owner)
}

// SetOwnerCookie sets the desk owner cookie on the response.
func SetOwnerCookie(w http.ResponseWriter, owner string) {
	http.SetCookie(w, &http.Cookie{
		Name:     OwnerCookieName,
		Value:    owner,
		HttpOnly: true,
		Secure:   SecureCookies,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   ownerCookieMaxAge,
	})
}
