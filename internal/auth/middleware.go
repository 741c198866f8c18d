package auth

import (
	"context"
	"net/http"
	"strings"
)

// CookieName is the cookie carrying the session token.
const CookieName = "token"

type contextKey string

const userIDKey contextKey = "userID"

// RequireAuth reads the session token from the "token" cookie (or an
// Authorization: Bearer header), validates it and stores the user id in the
// request context. Requests without a valid token get 401.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
				return
			}

			ctx := WithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves the authenticated user's ID from the request context.
// Returns ("", false) if the request is anonymous.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return tokens.Validate(strings.TrimPrefix(h, "Bearer "))
	}

	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", err
	}

	return tokens.Validate(cookie.Value)
}
