package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"evregistry/backend/libs/identity"
	"evregistry/backend/services/station-registry/internal/http/middleware"
	"evregistry/backend/services/station-registry/internal/metrics"
	"evregistry/backend/services/station-registry/internal/models"
	"evregistry/backend/services/station-registry/internal/service"
)

type userResponse struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func toAuthResponse(res *service.AuthResult) authResponse {
	return authResponse{Token: res.Token, User: toUserResponse(res.User)}
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// AuthHandlers serves /api/auth.
type AuthHandlers struct {
	auth    *service.AuthService
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewAuthHandlers builds AuthHandlers.
func NewAuthHandlers(auth *service.AuthService, m *metrics.Metrics, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{auth: auth, metrics: m, logger: logger}
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid JSON body")
		return
	}

	res, err := h.auth.Signup(r.Context(), service.SignupInput{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		h.metrics.AuthOutcome("signup", outcome(err))
		respondError(w, r, h.logger, err)
		return
	}
	h.metrics.AuthOutcome("signup", "ok")
	writeJSON(w, http.StatusCreated, toAuthResponse(res))
}

// Login handles POST /api/auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid JSON body")
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.metrics.AuthOutcome("login", outcome(err))
		respondError(w, r, h.logger, err)
		return
	}
	h.metrics.AuthOutcome("login", "ok")
	writeJSON(w, http.StatusOK, toAuthResponse(res))
}

// Me handles GET /api/auth/me and echoes the verified principal.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "No token, authorization denied")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		User identity.Principal `json:"user"`
	}{User: p})
}

func outcome(err error) string {
	switch {
	case errors.Is(err, service.ErrValidation):
		return "validation_failed"
	case errors.Is(err, service.ErrEmailInUse):
		return "duplicate_identity"
	case errors.Is(err, service.ErrInvalidCredentials):
		return "invalid_login"
	default:
		return "error"
	}
}
