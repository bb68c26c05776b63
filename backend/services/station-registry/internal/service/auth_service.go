package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"evregistry/backend/libs/identity"
	"evregistry/backend/libs/telemetry"
	"evregistry/backend/services/station-registry/internal/models"
	"evregistry/backend/services/station-registry/internal/password"
	"evregistry/backend/services/station-registry/internal/repository"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserRepository defines storage contract used by the service.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateRole(ctx context.Context, userID, role string) error
}

// SignupInput is the registration form.
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// AuthResult is a freshly issued token and the user it was issued for.
type AuthResult struct {
	Token string
	User  *models.User
}

// AuthService contains registration/login logic.
type AuthService struct {
	repo       UserRepository
	hasher     password.Hasher
	tokenizer  *TokenService
	adminEmail string
	logger     *zap.Logger
}

// NewAuthService builds AuthService. Signups with adminEmail get the admin role.
func NewAuthService(repo UserRepository, hasher password.Hasher, tokenizer *TokenService, adminEmail string, logger *zap.Logger) *AuthService {
	return &AuthService{
		repo:       repo,
		hasher:     hasher,
		tokenizer:  tokenizer,
		adminEmail: repository.NormalizeEmail(adminEmail),
		logger:     logger,
	}
}

// Signup registers a new user and issues its first token.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (res *AuthResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "auth.signup")
	defer func() { telemetry.EndSpan(span, err) }()

	name := strings.TrimSpace(in.Name)
	email := repository.NormalizeEmail(in.Email)
	switch {
	case name == "":
		return nil, invalidField("name", "name is required")
	case email == "":
		return nil, invalidField("email", "email is required")
	case in.Password == "":
		return nil, invalidField("password", "password is required")
	case !emailPattern.MatchString(email):
		return nil, invalidField("email", "please provide a valid email")
	}
	if err := password.Validate(in.Password); err != nil {
		if errors.Is(err, password.ErrTooLong) {
			return nil, invalidField("password", "password must be at most 72 bytes long")
		}
		return nil, invalidField("password", "password must be at least 6 characters long")
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailInUse
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	role := identity.RoleUser
	if email == s.adminEmail {
		role = identity.RoleAdmin
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role.String(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, ErrEmailInUse
		}
		return nil, err
	}

	token, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user signed up", zap.String("user_id", user.ID), zap.String("email", user.Email), zap.String("role", user.Role))
	return &AuthResult{Token: token, User: user}, nil
}

// Login authenticates a user and produces a JWT. A stored user without a role is
// backfilled to user before the token is issued.
func (s *AuthService) Login(ctx context.Context, email, pass string) (res *AuthResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "auth.login")
	defer func() { telemetry.EndSpan(span, err) }()

	email = repository.NormalizeEmail(email)
	if email == "" || pass == "" {
		return nil, invalidField("email", "email and password are required")
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.hasher.Compare(user.PasswordHash, pass); err != nil {
		if !errors.Is(err, password.ErrMismatch) {
			s.logger.Warn("stored password hash unreadable", zap.String("user_id", user.ID), zap.Error(err))
		}
		return nil, ErrInvalidCredentials
	}

	if strings.TrimSpace(user.Role) == "" {
		if err := s.repo.UpdateRole(ctx, user.ID, identity.RoleUser.String()); err != nil {
			return nil, fmt.Errorf("auth: backfill role: %w", err)
		}
		user.Role = identity.RoleUser.String()
		s.logger.Info("backfilled missing role", zap.String("user_id", user.ID))
	}

	token, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) issue(user *models.User) (string, error) {
	role := identity.ResolveRole(identity.Claims{Role: user.Role})
	return s.tokenizer.Issue(identity.Principal{
		Subject: user.ID,
		Name:    user.Name,
		Email:   user.Email,
		Role:    role,
	})
}
