package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/chemviz/equipment-api/internal/domain"
	"github.com/chemviz/equipment-api/internal/repository"
	"github.com/chemviz/equipment-api/internal/testutil"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret-with-enough-entropy"

// ============================================================================
// Passwords
// ============================================================================

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)

	assert.NotEqual(t, "hunter22", hash)
	assert.True(t, CheckPassword(hash, "hunter22"))
	assert.False(t, CheckPassword(hash, "hunter23"))
	assert.False(t, CheckPassword("not-a-hash", "hunter22"))
}

// ============================================================================
// Tokens
// ============================================================================

func TestTokenManager_IssueAndParse(t *testing.T) {
	tm, err := NewTokenManager(testSecret, time.Hour)
	require.NoError(t, err)

	signed, issued, err := tm.Issue(42, "alice")
	require.NoError(t, err)

	claims, err := tm.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, claims.ID)
	assert.Equal(t, "alice", claims.Username)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
}

func TestTokenManager_RejectsEmptySecret(t *testing.T) {
	_, err := NewTokenManager("", time.Hour)
	assert.Error(t, err)
}

func TestTokenManager_Expired(t *testing.T) {
	tm, err := NewTokenManager(testSecret, time.Hour)
	require.NoError(t, err)
	signed, _, err := tm.Issue(1, "alice")
	require.NoError(t, err)

	tm.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = tm.Parse(signed)

	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	issuer, _ := NewTokenManager(testSecret, time.Hour)
	other, _ := NewTokenManager("another-secret", time.Hour)
	signed, _, err := issuer.Issue(1, "alice")
	require.NoError(t, err)

	_, err = other.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_RejectsNoneAlgorithm(t *testing.T) {
	tm, _ := NewTokenManager(testSecret, time.Hour)
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        "x",
		Subject:   "1",
		Issuer:    tokenIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = tm.Parse(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

// ============================================================================
// Session stores
// ============================================================================

func exerciseSessionStore(t *testing.T, store SessionStore) {
	ctx := context.Background()
	session := &domain.AuthSession{ID: "sess-1", UserID: 7, ExpiresAt: time.Now().Add(time.Hour).UTC()}

	require.NoError(t, store.Create(ctx, session))

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, uint(7), got.UserID)
	assert.WithinDuration(t, session.ExpiresAt, got.ExpiresAt, time.Second)

	require.NoError(t, store.Delete(ctx, "sess-1"))
	_, err = store.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDBSessionStore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := NewDBSessionStore(repository.NewSessionRepository(db))

	exerciseSessionStore(t, store)

	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &domain.AuthSession{ID: "old", UserID: 1, ExpiresAt: time.Now().Add(-time.Minute)}))
	n, err := store.PurgeExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisSessionStore(client)

	exerciseSessionStore(t, store)

	// Keys expire with the session
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &domain.AuthSession{ID: "short", UserID: 1, ExpiresAt: time.Now().Add(time.Minute)}))
	mr.FastForward(2 * time.Minute)
	_, err := store.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	err = store.Create(ctx, &domain.AuthSession{ID: "past", UserID: 1, ExpiresAt: time.Now().Add(-time.Minute)})
	assert.Error(t, err)
}

// ============================================================================
// Middleware
// ============================================================================

type fakeUsers map[uint]*domain.User

func (f fakeUsers) GetByID(ctx context.Context, id uint) (*domain.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, ErrSessionNotFound
}

type middlewareFixture struct {
	mw       *Middleware
	tokens   *TokenManager
	sessions SessionStore
	users    fakeUsers
}

func newMiddlewareFixture(t *testing.T) *middlewareFixture {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tokens, err := NewTokenManager(testSecret, time.Hour)
	require.NoError(t, err)
	sessions := NewRedisSessionStore(client)
	users := fakeUsers{
		1: {ID: 1, Username: "alice", Email: "alice@example.com", IsActive: true},
		2: {ID: 2, Username: "mallory", Email: "m@example.com", IsActive: false},
	}
	return &middlewareFixture{
		mw:       NewMiddleware(tokens, sessions, users, zap.NewNop()),
		tokens:   tokens,
		sessions: sessions,
		users:    users,
	}
}

func (f *middlewareFixture) login(t *testing.T, userID uint) string {
	signed, claims, err := f.tokens.Issue(userID, f.users[userID].Username)
	require.NoError(t, err)
	require.NoError(t, f.sessions.Create(context.Background(), &domain.AuthSession{
		ID:        claims.ID,
		UserID:    userID,
		ExpiresAt: claims.ExpiresAt.Time,
	}))
	return signed
}

func (f *middlewareFixture) serve(authHeader string) (*httptest.ResponseRecorder, *UserContext) {
	var seen *UserContext
	h := f.mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr, seen
}

func TestMiddleware_AcceptsBearerAndTokenSchemes(t *testing.T) {
	f := newMiddlewareFixture(t)
	token := f.login(t, 1)

	for _, scheme := range []string{"Bearer", "Token", "bearer"} {
		rr, user := f.serve(scheme + " " + token)
		assert.Equal(t, http.StatusOK, rr.Code, scheme)
		require.NotNil(t, user)
		assert.Equal(t, uint(1), user.UserID)
		assert.Equal(t, "alice", user.Username)
		assert.NotEmpty(t, user.SessionID)
	}
}

func TestMiddleware_MissingHeader(t *testing.T) {
	f := newMiddlewareFixture(t)

	rr, user := f.serve("")

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Nil(t, user)
	var body domain.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Unauthorized", body.Error)
	assert.Equal(t, "Authentication credentials were not provided.", body.Details)
}

func TestMiddleware_RejectsUnknownScheme(t *testing.T) {
	f := newMiddlewareFixture(t)
	token := f.login(t, 1)

	rr, _ := f.serve("Basic " + token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMiddleware_RejectsLoggedOutSession(t *testing.T) {
	f := newMiddlewareFixture(t)
	token := f.login(t, 1)
	claims, err := f.tokens.Parse(token)
	require.NoError(t, err)

	require.NoError(t, f.sessions.Delete(context.Background(), claims.ID))

	rr, _ := f.serve("Bearer " + token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMiddleware_RejectsDisabledAccount(t *testing.T) {
	f := newMiddlewareFixture(t)
	token := f.login(t, 2)

	rr, _ := f.serve("Bearer " + token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMiddleware_RejectsGarbage(t *testing.T) {
	f := newMiddlewareFixture(t)

	rr, _ := f.serve("Bearer not.a.jwt")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
