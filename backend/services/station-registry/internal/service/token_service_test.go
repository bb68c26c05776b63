package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"evregistry/backend/libs/identity"
)

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestIssueAndVerify(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	issuedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = fixedClock(issuedAt)

	p := identity.Principal{Subject: "u-1", Name: "A", Email: "a@x.com", Role: identity.RoleAdmin}
	token, err := svc.Issue(p)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got := identity.PrincipalFrom(*claims); got != p {
		t.Fatalf("principal mismatch: got %+v want %+v", got, p)
	}
	if !claims.ExpiresAt.Time.After(claims.IssuedAt.Time) {
		t.Fatal("exp must be after iat")
	}
	if d := claims.ExpiresAt.Sub(claims.IssuedAt.Time); d != time.Hour {
		t.Fatalf("expected 1h lifetime, got %s", d)
	}
}

func TestIssueDefaultsRole(t *testing.T) {
	svc := NewTokenService("secret", 0)
	token, err := svc.Issue(identity.Principal{Subject: "u-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Role != "user" {
		t.Fatalf("expected role user, got %q", claims.Role)
	}
}

func TestIssueRequiresSubject(t *testing.T) {
	if _, err := NewTokenService("secret", time.Hour).Issue(identity.Principal{}); err == nil {
		t.Fatal("expected error for empty subject")
	}
}

func TestVerifyAfterExpiry(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	issuedAt := time.Now()
	svc.now = fixedClock(issuedAt)
	token, err := svc.Issue(identity.Principal{Subject: "u-1", Role: identity.RoleUser})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	svc.now = fixedClock(issuedAt.Add(time.Hour + time.Second))
	_, err = svc.Verify(token)
	if !errors.Is(err, ErrExpired) || !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	token, err := NewTokenService("other", time.Hour).Issue(identity.Principal{Subject: "u-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, err = NewTokenService("secret", time.Hour).Verify(token)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	claims := identity.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, err = NewTokenService("secret", time.Hour).Verify(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	for _, raw := range []string{"", "abc", "a.b.c", strings.Repeat("x", 20)} {
		_, err := svc.Verify(raw)
		if !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%q: expected ErrInvalidToken, got %v", raw, err)
		}
	}
	if _, err := svc.Verify("abc"); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}
}

func TestVerifyRequiresExpiry(t *testing.T) {
	claims := identity.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1"}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewTokenService("secret", time.Hour).Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
