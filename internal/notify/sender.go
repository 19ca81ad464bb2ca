// Package notify delivers invitation and role-change notifications to the
// external sender. Delivery is fire-and-forget: failures are logged, never retried.
package notify

import (
	"context"
	"log"
	"time"

	"tenant-control-plane/core/internal/role"
)

// sendTimeout is the max time allowed for a single async send.
const sendTimeout = 5 * time.Second

// Sender delivers notifications for membership lifecycle events.
type Sender interface {
	// SendInvitation notifies email of a pending invitation carrying token,
	// valid until expiresAt.
	SendInvitation(ctx context.Context, email, token string, expiresAt time.Time) error
	// SendRoleChanged notifies the user that their role in team changed.
	SendRoleChanged(ctx context.Context, userID, teamID string, newRole role.Role) error
}

// Noop discards all notifications. Used when no sender endpoint is configured.
type Noop struct{}

func (Noop) SendInvitation(context.Context, string, string, time.Time) error { return nil }
func (Noop) SendRoleChanged(context.Context, string, string, role.Role) error {
	return nil
}

// SendInvitationAsync runs SendInvitation in a goroutine with a short timeout so
// the caller is not blocked. Errors are logged; there is no retry here, the
// sender owns redelivery.
//
// The goroutine uses context.Background() so request cancellation does not
// abort an in-flight send.
func SendInvitationAsync(sender Sender, email, token string, expiresAt time.Time) {
	if sender == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := sender.SendInvitation(ctx, email, token, expiresAt); err != nil {
			log.Printf("notify: invitation send failed for %s: %v", email, err)
		}
	}()
}

// SendRoleChangedAsync runs SendRoleChanged in a goroutine with a short timeout.
// Same delivery semantics as SendInvitationAsync.
func SendRoleChangedAsync(sender Sender, userID, teamID string, newRole role.Role) {
	if sender == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := sender.SendRoleChanged(ctx, userID, teamID, newRole); err != nil {
			log.Printf("notify: role-change send failed for %s: %v", userID, err)
		}
	}()
}
