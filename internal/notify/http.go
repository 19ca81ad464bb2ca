package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tenant-control-plane/core/internal/role"
)

const defaultTimeout = 15 * time.Second

// HTTPSender posts notification payloads to the configured sender endpoint
// as JSON. The endpoint owns templating and actual email delivery.
type HTTPSender struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewHTTPSender returns a sender that posts to baseURL with the given API key.
func NewHTTPSender(baseURL, apiKey string) *HTTPSender {
	return &HTTPSender{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// SendInvitation posts an invitation notification. Does not log the token.
func (s *HTTPSender) SendInvitation(ctx context.Context, email, token string, expiresAt time.Time) error {
	return s.post(ctx, map[string]interface{}{
		"type":       "invitation",
		"email":      email,
		"token":      token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
}

// SendRoleChanged posts a role-change notification.
func (s *HTTPSender) SendRoleChanged(ctx context.Context, userID, teamID string, newRole role.Role) error {
	return s.post(ctx, map[string]interface{}{
		"type":    "role_changed",
		"user_id": userID,
		"team_id": teamID,
		"role":    string(newRole),
	})
}

func (s *HTTPSender) post(ctx context.Context, body map[string]interface{}) error {
	if s.BaseURL == "" {
		return fmt.Errorf("notify: sender URL not configured")
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", s.APIKey)
	}
	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("notify: sender returned %d: %s", resp.StatusCode, snippet)
	}
	return nil
}
