package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chemviz/equipment-api/internal/auth"
	"github.com/chemviz/equipment-api/internal/domain"
	"github.com/chemviz/equipment-api/internal/logger"
	"github.com/chemviz/equipment-api/internal/mapper"
	"github.com/chemviz/equipment-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuthService registers accounts and manages token sessions
type AuthService struct {
	userRepo *repository.UserRepository
	sessions auth.SessionStore
	tokens   *auth.TokenManager
	logger   *zap.Logger
}

func NewAuthService(
	userRepo *repository.UserRepository,
	sessions auth.SessionStore,
	tokens *auth.TokenManager,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		sessions: sessions,
		tokens:   tokens,
		logger:   logger,
	}
}

// Register creates an account and signs it in
func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.AuthResponse, error) {
	username := strings.TrimSpace(req.Username)

	exists, err := s.userRepo.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, mapper.FormatError("username", "check", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: username %q already exists", ErrConflict, username)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: username %q already exists", ErrConflict, username)
		}
		return nil, mapper.FormatError("user", "create", err)
	}

	token, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	logger.WithUser(s.logger, user.ID, user.Username).Info("user registered")

	return &domain.AuthResponse{
		Message: "User registered successfully",
		Token:   token,
		User:    mapper.ToUserDTO(user),
	}, nil
}

// Login verifies credentials and issues a new token
func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			auth.DummyCompare(req.Password)
			return nil, ErrUnauthorized
		}
		return nil, mapper.FormatError("user", "load", err)
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.logger.Info("login failed", zap.String("username", user.Username))
		return nil, ErrUnauthorized
	}
	if !user.IsActive {
		return nil, ErrForbidden
	}

	token, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	logger.WithUser(s.logger, user.ID, user.Username).Info("user logged in")

	return &domain.AuthResponse{
		Message: "Login successful",
		Token:   token,
		User:    mapper.ToUserDTO(user),
	}, nil
}

// Logout revokes the session behind the caller's token
func (s *AuthService) Logout(ctx context.Context) error {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return ErrUnauthorized
	}
	if err := s.sessions.Delete(ctx, userCtx.SessionID); err != nil {
		return mapper.FormatError("session", "delete", err)
	}
	logger.WithUser(s.logger, userCtx.UserID, userCtx.Username).Info("user logged out")
	return nil
}

// CurrentUser returns the authenticated account
func (s *AuthService) CurrentUser(ctx context.Context) (*domain.UserDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}
	user, err := s.userRepo.GetByID(ctx, userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, mapper.FormatError("user", "load", err)
	}
	dto := mapper.ToUserDTO(user)
	return &dto, nil
}

// PurgeExpiredSessions removes sessions past their expiry
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.PurgeExpired(ctx, time.Now().UTC())
}

func (s *AuthService) startSession(ctx context.Context, user *domain.User) (string, error) {
	token, claims, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return "", err
	}
	session := &domain.AuthSession{
		ID:        claims.ID,
		UserID:    user.ID,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
		CreatedAt: claims.IssuedAt.Time.UTC(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", mapper.FormatError("session", "create", err)
	}
	return token, nil
}
