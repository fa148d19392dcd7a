package handler

import (
	"errors"
	"net/http"

	"github.com/chemviz/equipment-api/internal/domain"
	"github.com/chemviz/equipment-api/internal/service"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *service.AuthService
	logger      *zap.Logger
	debug       bool
}

func NewAuthHandler(authService *service.AuthService, logger *zap.Logger, debug bool) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
		debug:       debug,
	}
}

// Register godoc
// @Summary Register a new account
// @Description Creates an account and returns a bearer token for it
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body domain.RegisterRequest true "Account data"
// @Success 201 {object} domain.AuthResponse
// @Failure 400 {object} domain.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, "Registration failed", err)
		return
	}

	resp, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrConflict) {
			respondWithError(w, http.StatusBadRequest, "Registration failed",
				map[string][]string{"username": {"Username already exists"}})
			return
		}
		respondInternalError(w, h.logger, h.debug, "Registration failed", "Unable to create account", err)
		return
	}

	respondJSON(w, http.StatusCreated, resp)
}

// Login godoc
// @Summary Log in
// @Description Verifies credentials and returns a bearer token
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body domain.LoginRequest true "Credentials"
// @Success 200 {object} domain.AuthResponse
// @Failure 400 {object} domain.ErrorResponse
// @Failure 401 {object} domain.ErrorResponse
// @Failure 403 {object} domain.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, "Login failed", err)
		return
	}

	resp, err := h.authService.Login(r.Context(), &req)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, resp)
	case errors.Is(err, service.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, "Invalid credentials", "Username or password is incorrect")
	case errors.Is(err, service.ErrForbidden):
		respondWithError(w, http.StatusForbidden, "Account is disabled", "This account has been deactivated")
	default:
		respondInternalError(w, h.logger, h.debug, "Login failed", "Unable to log in", err)
	}
}

// Logout godoc
// @Summary Log out
// @Description Revokes the token used for this request
// @Tags Auth
// @Produce json
// @Success 200 {object} domain.MessageResponse
// @Failure 401 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(r.Context()); err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Authentication credentials were not provided")
			return
		}
		respondInternalError(w, h.logger, h.debug, "Logout failed", "Unable to log out", err)
		return
	}
	respondJSON(w, http.StatusOK, domain.MessageResponse{Message: "Logged out successfully"})
}

// User godoc
// @Summary Get current user
// @Tags Auth
// @Produce json
// @Success 200 {object} domain.UserDTO
// @Failure 401 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /auth/user [get]
func (h *AuthHandler) User(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.CurrentUser(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Authentication credentials were not provided")
			return
		}
		respondInternalError(w, h.logger, h.debug, "Failed to load user", "Unable to load the current user", err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}
