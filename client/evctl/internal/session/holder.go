// Package session holds the client-side login state. Tokens are decoded locally
// without verification; the result only drives what the CLI offers, the server
// still decides every request.
package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"evregistry/backend/libs/identity"
)

// ErrNoSession is returned when no usable token is stored.
var ErrNoSession = errors.New("not logged in")

// Session is a decoded, unexpired token.
type Session struct {
	Token     string
	Principal identity.Principal
	ExpiresAt time.Time
}

// IsAdmin reports whether the token carries the admin role.
func (s Session) IsAdmin() bool {
	return s.Principal.Role == identity.RoleAdmin
}

// Holder owns the stored token.
type Holder struct {
	store Store
	now   func() time.Time
}

// NewHolder builds a holder over store.
func NewHolder(store Store) *Holder {
	return &Holder{store: store, now: time.Now}
}

// Decode parses token without checking its signature.
func Decode(token string) (*identity.Claims, error) {
	claims := &identity.Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Save stores a freshly issued token.
func (h *Holder) Save(token string) error {
	return h.store.Save(token)
}

// Current returns the stored session. A token that does not decode or has expired
// is deleted and reported as ErrNoSession.
func (h *Holder) Current() (*Session, error) {
	token, err := h.store.Load()
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrNoSession
	}

	claims, err := Decode(token)
	if err != nil || claims.ExpiresAt == nil || !h.now().Before(claims.ExpiresAt.Time) {
		if clearErr := h.store.Clear(); clearErr != nil {
			return nil, clearErr
		}
		return nil, ErrNoSession
	}

	return &Session{
		Token:     token,
		Principal: identity.PrincipalFrom(*claims),
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Clear forgets the token. Logging out never contacts the server.
func (h *Holder) Clear() error {
	return h.store.Clear()
}
