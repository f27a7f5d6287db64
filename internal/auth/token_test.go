package auth

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)

	token, err := issuer.Issue("s1", "p1")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.SessionID != "s1" || claims.ParticipantID != "p1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestParseRejectsForeignSecret(t *testing.T) {
	token, err := NewIssuer("secret", 0).Issue("s1", "p1")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if _, err := NewIssuer("other", 0).Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := NewIssuer("secret", 0).Parse("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	issuer := NewIssuer("secret", time.Minute)
	base := time.Unix(1_700_000_000, 0)
	issuer.now = func() time.Time { return base }

	token, err := issuer.Issue("s1", "p1")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	issuer.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := issuer.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}
