package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/mvasconc/papertrade/internal/auth"
)

// sessionCookie is the cookie carrying the session token for browser
// clients. API clients use the Authorization header instead.
const sessionCookie = "token"

type contextKey string

const userIDKey contextKey = "user_id"

// requireAuth returns middleware that authenticates the request via a
// Bearer token or, failing that, the session cookie, and injects the
// user ID into the request context.
func requireAuth(tokens *auth.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				if c, err := r.Cookie(sessionCookie); err == nil {
					token = c.Value
				}
			}
			if token == "" {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}

			userID, err := tokens.Verify(token)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// userIDFrom returns the authenticated user ID set by requireAuth.
func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
