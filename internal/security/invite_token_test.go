package security

import (
	"errors"
	"testing"
	"time"
)

func newTestProvider() *InviteTokenProvider {
	return NewInviteTokenProvider([]byte("test-secret"), "tenant-core")
}

func TestInviteToken_IssueAndParse(t *testing.T) {
	p := newTestProvider()
	token, err := p.Issue("inv-1", "team-1", "bob@x.com", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := p.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.ID != "inv-1" {
		t.Errorf("jti = %q, want inv-1", claims.ID)
	}
	if claims.TeamID != "team-1" {
		t.Errorf("team_id = %q, want team-1", claims.TeamID)
	}
	if claims.Email != "bob@x.com" {
		t.Errorf("email = %q, want bob@x.com", claims.Email)
	}
}

func TestInviteToken_Expired(t *testing.T) {
	p := newTestProvider()
	token, err := p.Issue("inv-1", "team-1", "bob@x.com", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := p.Parse(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Parse(expired) error = %v, want ErrTokenExpired", err)
	}
}

func TestInviteToken_WrongSecret(t *testing.T) {
	p := newTestProvider()
	token, _ := p.Issue("inv-1", "team-1", "bob@x.com", time.Now().Add(time.Hour))

	other := NewInviteTokenProvider([]byte("other-secret"), "tenant-core")
	if _, err := other.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Parse with wrong secret error = %v, want ErrInvalidToken", err)
	}
}

func TestInviteToken_WrongIssuer(t *testing.T) {
	issuerA := NewInviteTokenProvider([]byte("s"), "a")
	issuerB := NewInviteTokenProvider([]byte("s"), "b")
	token, _ := issuerA.Issue("inv-1", "team-1", "bob@x.com", time.Now().Add(time.Hour))
	if _, err := issuerB.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Parse with wrong issuer error = %v, want ErrInvalidToken", err)
	}
}

func TestInviteToken_Garbage(t *testing.T) {
	p := newTestProvider()
	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, err := p.Parse(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalidToken", token, err)
		}
	}
}

func TestHashToken(t *testing.T) {
	h := HashToken("some-token")
	if len(h) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(h))
	}
	if HashToken("some-token") != h {
		t.Error("HashToken must be deterministic")
	}
	if HashToken("other-token") == h {
		t.Error("different tokens must not collide trivially")
	}
}

func TestTokenHashEqual(t *testing.T) {
	h := HashToken("some-token")
	if !TokenHashEqual("some-token", h) {
		t.Error("TokenHashEqual should match the original token")
	}
	if TokenHashEqual("other-token", h) {
		t.Error("TokenHashEqual should reject a different token")
	}
}
