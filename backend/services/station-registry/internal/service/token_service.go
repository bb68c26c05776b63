package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"evregistry/backend/libs/identity"
)

var (
	// ErrInvalidToken is the umbrella for every verification failure.
	ErrInvalidToken = errors.New("token: invalid")
	// ErrMalformedToken is returned for input that is not a JWT.
	ErrMalformedToken = errors.New("token: malformed")
	// ErrInvalidSignature is returned when the signature or algorithm does not check out.
	ErrInvalidSignature = errors.New("token: invalid signature")
	// ErrExpired is returned once exp has passed.
	ErrExpired = errors.New("token: expired")
)

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret    []byte
	expiresIn time.Duration
	now       func() time.Time
}

// NewTokenService returns configured token service.
func NewTokenService(secret string, expiresIn time.Duration) *TokenService {
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}
	return &TokenService{secret: []byte(secret), expiresIn: expiresIn, now: time.Now}
}

// Issue signs a token for p. iat is now and exp is now plus the configured lifetime.
func (t *TokenService) Issue(p identity.Principal) (string, error) {
	if strings.TrimSpace(p.Subject) == "" {
		return "", errors.New("token: subject is required")
	}
	if !p.Role.Valid() {
		p.Role = identity.RoleUser
	}

	now := t.now().UTC().Truncate(time.Second)
	claims := identity.Claims{
		Name:  p.Name,
		Email: p.Email,
		Role:  p.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiresIn)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify checks signature and expiry and returns the embedded claims unchanged.
// Errors match ErrInvalidToken plus one of ErrMalformedToken, ErrInvalidSignature, ErrExpired.
func (t *TokenService) Verify(tokenString string) (*identity.Claims, error) {
	claims := &identity.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("token: unexpected signing method")
		}
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, classify(err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrInvalidSignature)
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrInvalidToken, ErrExpired)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrInvalidToken, ErrMalformedToken)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrInvalidToken, ErrInvalidSignature)
	default:
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
}
