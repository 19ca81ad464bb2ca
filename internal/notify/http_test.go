package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tenant-control-plane/core/internal/role"
)

func TestHTTPSender_SendInvitation(t *testing.T) {
	var got map[string]interface{}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL, "api-key")
	expiry := time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC)
	if err := s.SendInvitation(context.Background(), "bob@x.com", "tok", expiry); err != nil {
		t.Fatalf("SendInvitation: %v", err)
	}

	if auth != "api-key" {
		t.Errorf("Authorization = %q, want api-key", auth)
	}
	if got["type"] != "invitation" || got["email"] != "bob@x.com" {
		t.Errorf("payload = %v", got)
	}
	if got["expires_at"] != "2026-09-05T00:00:00Z" {
		t.Errorf("expires_at = %v", got["expires_at"])
	}
}

func TestHTTPSender_SendRoleChanged(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL, "")
	if err := s.SendRoleChanged(context.Background(), "user-1", "team-1", role.Admin); err != nil {
		t.Fatalf("SendRoleChanged: %v", err)
	}
	if got["type"] != "role_changed" || got["role"] != "admin" {
		t.Errorf("payload = %v", got)
	}
}

func TestHTTPSender_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL, "")
	if err := s.SendInvitation(context.Background(), "bob@x.com", "tok", time.Now()); err == nil {
		t.Error("SendInvitation should fail on non-2xx status")
	}
}

func TestHTTPSender_Unconfigured(t *testing.T) {
	s := NewHTTPSender("", "")
	if err := s.SendInvitation(context.Background(), "bob@x.com", "tok", time.Now()); err == nil {
		t.Error("SendInvitation should fail when no URL is configured")
	}
}

func TestNoopSender(t *testing.T) {
	var s Sender = Noop{}
	if err := s.SendInvitation(context.Background(), "a@b.c", "t", time.Now()); err != nil {
		t.Errorf("Noop SendInvitation: %v", err)
	}
	if err := s.SendRoleChanged(context.Background(), "u", "t", role.Viewer); err != nil {
		t.Errorf("Noop SendRoleChanged: %v", err)
	}
}
