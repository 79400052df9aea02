package remote

import (
	"errors"
	"testing"
	"time"
)

func TestAuthenticatorRoundTrip(t *testing.T) {
	auth, err := NewAuthenticator("secret")
	if err != nil {
		t.Fatalf("NewAuthenticator returned error: %v", err)
	}
	token, err := auth.IssueToken("user-1", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken returned error: %v", err)
	}
	subject, err := auth.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if subject != "user-1" {
		t.Fatalf("subject = %q, want user-1", subject)
	}
}

func TestAuthenticatorRejects(t *testing.T) {
	auth, _ := NewAuthenticator("secret")
	other, _ := NewAuthenticator("other-secret")
	foreign, err := other.IssueToken("user-1", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken returned error: %v", err)
	}

	past, _ := NewAuthenticator("secret")
	past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := past.IssueToken("user-1", time.Minute)
	if err != nil {
		t.Fatalf("IssueToken returned error: %v", err)
	}

	for name, token := range map[string]string{"foreign": foreign, "expired": expired, "garbage": "abc.def.ghi"} {
		if _, err := auth.Verify(token); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got %v", name, err)
		}
	}

	if _, err := NewAuthenticator(" "); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := auth.IssueToken("", time.Hour); err == nil {
		t.Fatal("expected error for empty subject")
	}
}
