package middleware

import (
	"context"
	"net/http"

	"github.com/chemviz/equipment-api/internal/auth"
)

type contextKey string

const userCaptureKey contextKey = "user_capture"

func withUserCapture(ctx context.Context, c *userCapture) context.Context {
	return context.WithValue(ctx, userCaptureKey, c)
}

// CaptureUser records the authenticated user for the request log line.
// Mount it after the auth middleware.
func CaptureUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, ok := r.Context().Value(userCaptureKey).(*userCapture); ok {
			if user, ok := auth.FromContext(r.Context()); ok {
				c.user = user
			}
		}
		next.ServeHTTP(w, r)
	})
}
