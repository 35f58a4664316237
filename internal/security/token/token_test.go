package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/fastygo/taskboard/domain"
)

func newManager(t *testing.T, now func() time.Time) *Manager {
	t.Helper()
	m, err := NewManager(Config{Secret: "test-secret", Issuer: "taskboard-test", Now: now})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	m := newManager(t, nil)

	for _, userID := range []string{"user-1", "0190c5a4-8d6c-7c1e-bd0e-1a2b3c4d5e6f", "65f1c2e4a1b2c3d4e5f60718"} {
		issued, err := m.Issue(userID)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		got, err := m.Verify(issued.Token)
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if got != userID {
			t.Fatalf("expected %q, got %q", userID, got)
		}
	}
}

func TestIssueExpiresAfterOneHour(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newManager(t, func() time.Time { return fixed })

	issued, err := m.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if want := fixed.Add(time.Hour); !issued.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, issued.ExpiresAt)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	past := newManager(t, func() time.Time { return time.Now().Add(-2 * time.Hour) })
	issued, err := past.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = newManager(t, nil).Verify(issued.Token)
	if !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestVerifyExpiredAccordingToClock(t *testing.T) {
	issuer := newManager(t, nil)
	issued, err := issuer.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	later := newManager(t, func() time.Time { return time.Now().Add(time.Hour + time.Minute) })
	if _, err := later.Verify(issued.Token); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	m := newManager(t, nil)
	issued, err := m.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other, err := NewManager(Config{Secret: "another-secret"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	parts := strings.Split(issued.Token, ".")
	forged := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"user_id": "user-1",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	noUser := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	noUserToken, err := noUser.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	cases := map[string]struct {
		verifier *Manager
		token    string
	}{
		"wrong secret":    {verifier: other, token: issued.Token},
		"forged sig":      {verifier: m, token: forged},
		"malformed":       {verifier: m, token: "not-a-token"},
		"empty":           {verifier: m, token: "  "},
		"alg none":        {verifier: m, token: unsigned},
		"missing user id": {verifier: m, token: noUserToken},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tc.verifier.Verify(tc.token)
			if !errors.Is(err, domain.ErrTokenInvalid) {
				t.Fatalf("expected invalid token error, got %v", err)
			}
		})
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager(Config{Secret: " "}); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestIssueRequiresUser(t *testing.T) {
	if _, err := newManager(t, nil).Issue(""); err == nil {
		t.Fatal("expected error for empty user id")
	}
}
