package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chemviz/equipment-api/internal/domain"
	"github.com/chemviz/equipment-api/internal/repository"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrSessionNotFound is returned when a token's session does not exist
var ErrSessionNotFound = errors.New("session not found")

// SessionStore keeps the server-side half of issued tokens
type SessionStore interface {
	Create(ctx context.Context, session *domain.AuthSession) error
	Get(ctx context.Context, id string) (*domain.AuthSession, error)
	Delete(ctx context.Context, id string) error
	// PurgeExpired removes sessions expired at now and returns how many were removed
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// DBSessionStore stores sessions in the auth_sessions table
type DBSessionStore struct {
	repo *repository.SessionRepository
}

func NewDBSessionStore(repo *repository.SessionRepository) *DBSessionStore {
	return &DBSessionStore{repo: repo}
}

func (s *DBSessionStore) Create(ctx context.Context, session *domain.AuthSession) error {
	return s.repo.Create(ctx, session)
}

func (s *DBSessionStore) Get(ctx context.Context, id string) (*domain.AuthSession, error) {
	session, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	return session, err
}

func (s *DBSessionStore) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *DBSessionStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.repo.DeleteExpired(ctx, now)
}

const redisSessionPrefix = "equipment:session:"

// RedisSessionStore stores sessions as JSON values that expire with the token
type RedisSessionStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisSessionStore(client redis.UniversalClient) *RedisSessionStore {
	return &RedisSessionStore{client: client, now: time.Now}
}

func (s *RedisSessionStore) Create(ctx context.Context, session *domain.AuthSession) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", session.ID)
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.now().UTC()
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, redisSessionPrefix+session.ID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*domain.AuthSession, error) {
	payload, err := s.client.Get(ctx, redisSessionPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session domain.AuthSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, redisSessionPrefix+id).Err()
}

// PurgeExpired is a no-op; redis expires session keys itself
func (s *RedisSessionStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}
