package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newAuth(t *testing.T, now time.Time) *Authenticator {
	t.Helper()

	a, err := New("test-secret")
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	a.now = func() time.Time { return now }

	return a
}

func TestSignVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	a := newAuth(t, now)

	token, err := a.Sign(42, RoleModerator, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	p, err := a.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if p.UserID != 42 || p.Role != RoleModerator {
		t.Fatalf("unexpected principal %+v", p)
	}

	if !p.Has(RoleUser, RoleModerator) || p.Has(RoleSystem) {
		t.Fatal("role check mismatch")
	}
}

func TestVerify_Rejects(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	a := newAuth(t, now)

	expired, err := newAuth(t, now.Add(-2*time.Hour)).Sign(1, RoleUser, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	other, err := New("other-secret")
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	other.now = a.now

	foreign, err := other.Sign(1, RoleUser, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "expired", token: expired},
		{name: "wrong_secret", token: foreign},
		{name: "non_numeric_subject", token: badSubject},
		{name: "unknown_role", token: badRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := a.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("want ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestNew_EmptySecret(t *testing.T) {
	t.Parallel()

	_, err := New("")
	if err == nil {
		t.Fatal("want error for empty secret")
	}
}

func TestContext(t *testing.T) {
	t.Parallel()

	_, ok := FromContext(context.Background())
	if ok {
		t.Fatal("empty context has a principal")
	}

	ctx := WithPrincipal(context.Background(), Principal{UserID: 7, Role: RoleUser})

	p, ok := FromContext(ctx)
	if !ok || p.UserID != 7 {
		t.Fatalf("unexpected principal %+v", p)
	}
}
