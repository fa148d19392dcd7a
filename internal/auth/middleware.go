package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/chemviz/equipment-api/internal/domain"
	"go.uber.org/zap"
)

// UserLookup loads the account behind a session
type UserLookup interface {
	GetByID(ctx context.Context, id uint) (*domain.User, error)
}

// Middleware authenticates requests carrying a bearer token
type Middleware struct {
	tokens   *TokenManager
	sessions SessionStore
	users    UserLookup
	logger   *zap.Logger
	now      func() time.Time
}

// NewMiddleware creates a new authentication middleware
func NewMiddleware(tokens *TokenManager, sessions SessionStore, users UserLookup, logger *zap.Logger) *Middleware {
	return &Middleware{
		tokens:   tokens,
		sessions: sessions,
		users:    users,
		logger:   logger,
		now:      time.Now,
	}
}

// Authenticate rejects requests without a valid token and live session with 401.
// Both "Bearer <token>" and "Token <token>" schemes are accepted.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := extractToken(r.Header.Get("Authorization"))
		if !ok {
			writeUnauthorized(w, "Authentication credentials were not provided.")
			return
		}

		userCtx, err := m.resolve(r.Context(), raw)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			if errors.Is(err, ErrTokenExpired) {
				writeUnauthorized(w, "Token has expired.")
				return
			}
			writeUnauthorized(w, "Invalid token.")
			return
		}

		m.logger.Debug("request authenticated",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Uint("user_id", userCtx.UserID),
		)

		next.ServeHTTP(w, r.WithContext(WithUserContext(r.Context(), userCtx)))
	})
}

func (m *Middleware) resolve(ctx context.Context, raw string) (*UserContext, error) {
	claims, err := m.tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	session, err := m.sessions.Get(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrInvalidToken
	}
	if session.IsExpired(m.now()) {
		return nil, ErrTokenExpired
	}

	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, errors.New("account is disabled")
	}

	return &UserContext{
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		SessionID: session.ID,
	}, nil
}

func extractToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") && !strings.EqualFold(parts[0], "Token") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(domain.ErrorResponse{
		Error:   "Unauthorized",
		Details: details,
	})
}
