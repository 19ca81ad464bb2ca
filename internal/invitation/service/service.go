package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"tenant-control-plane/core/internal/activity"
	activitydomain "tenant-control-plane/core/internal/activity/domain"
	"tenant-control-plane/core/internal/invitation/domain"
	membershipdomain "tenant-control-plane/core/internal/membership/domain"
	"tenant-control-plane/core/internal/notify"
	"tenant-control-plane/core/internal/role"
	"tenant-control-plane/core/internal/security"
	teamdomain "tenant-control-plane/core/internal/team/domain"
)

// ErrTeamNotFound is returned when issuing against an unknown team.
var ErrTeamNotFound = errors.New("team not found")

// Store is the invitation persistence needed by the service.
type Store interface {
	GetByID(ctx context.Context, id string) (*domain.Invitation, error)
	GetPendingByTeamAndEmail(ctx context.Context, teamID, email string, now time.Time) (*domain.Invitation, error)
	Create(ctx context.Context, i *domain.Invitation) error
	Consume(ctx context.Context, id, userID string, now time.Time) (bool, error)
	Release(ctx context.Context, id string) error
}

// MembershipCreator creates the membership granted by a redeemed invitation.
type MembershipCreator interface {
	AddMember(ctx context.Context, teamID, userID string, r role.Role) (*membershipdomain.Membership, error)
}

// TeamGetter resolves the target team when issuing.
type TeamGetter interface {
	GetTeamByID(ctx context.Context, id string) (*teamdomain.Team, error)
}

// Service issues and redeems time-boxed, single-use invitations.
type Service struct {
	store    Store
	members  MembershipCreator
	teams    TeamGetter
	roles    *role.Registry
	tokens   *security.InviteTokenProvider
	recorder activity.Recorder
	notifier notify.Sender
	nowF     func() time.Time
}

// NewService returns an invitation service with the given dependencies.
func NewService(
	store Store,
	members MembershipCreator,
	teams TeamGetter,
	roles *role.Registry,
	tokens *security.InviteTokenProvider,
	recorder activity.Recorder,
	notifier notify.Sender,
) *Service {
	return &Service{
		store:    store,
		members:  members,
		teams:    teams,
		roles:    roles,
		tokens:   tokens,
		recorder: recorder,
		notifier: notifier,
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

// Issue creates an invitation for email to join the team with the proposed
// role, expiring after ttl. Returns the invitation and the raw token; the
// token is not recoverable later (only its hash is stored). Fails with
// domain.ErrDuplicateInvitation when an unexpired invitation for the same
// (team, email) is pending.
func (s *Service) Issue(ctx context.Context, teamID, invitedBy, email string, r role.Role, ttl time.Duration) (*domain.Invitation, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, "", errors.New("email is required")
	}
	if !s.roles.Known(r) {
		return nil, "", fmt.Errorf("%w: %q", role.ErrInvalidRole, r)
	}
	if ttl <= 0 {
		// a zero or negative ttl would mint an invitation born expired
		return nil, "", fmt.Errorf("invalid ttl %s: must be positive", ttl)
	}
	team, err := s.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		return nil, "", err
	}
	if team == nil {
		return nil, "", ErrTeamNotFound
	}

	now := s.nowF()
	pending, err := s.store.GetPendingByTeamAndEmail(ctx, teamID, email, now)
	if err != nil {
		return nil, "", err
	}
	if pending != nil {
		return nil, "", domain.ErrDuplicateInvitation
	}

	inv := &domain.Invitation{
		ID:        uuid.New().String(),
		OrgID:     team.OrgID,
		TeamID:    teamID,
		Email:     email,
		Role:      r,
		InvitedBy: invitedBy,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	token, err := s.tokens.Issue(inv.ID, teamID, email, inv.ExpiresAt)
	if err != nil {
		return nil, "", err
	}
	inv.TokenHash = security.HashToken(token)
	if err := s.store.Create(ctx, inv); err != nil {
		return nil, "", err
	}

	notify.SendInvitationAsync(s.notifier, email, token, inv.ExpiresAt)
	s.recorder.Record(ctx, team.OrgID, invitedBy, activitydomain.ActionInvitationIssued,
		fmt.Sprintf("team=%s email=%s role=%s", teamID, email, r))
	return inv, token, nil
}

// Redeem consumes the token and creates the membership it grants. Exactly one
// concurrent redeemer wins; the rest fail with domain.ErrAlreadyRedeemed.
// Expired tokens fail with domain.ErrInvitationExpired regardless of their
// other contents; unknown or unverifiable tokens with domain.ErrInvitationNotFound.
func (s *Service) Redeem(ctx context.Context, token, userID string) (*membershipdomain.Membership, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, domain.ErrInvitationExpired
		}
		return nil, domain.ErrInvitationNotFound
	}

	inv, err := s.store.GetByID(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if inv == nil || !security.TokenHashEqual(token, inv.TokenHash) {
		return nil, domain.ErrInvitationNotFound
	}
	if inv.Redeemed() {
		return nil, domain.ErrAlreadyRedeemed
	}
	now := s.nowF()
	if inv.Expired(now) {
		return nil, domain.ErrInvitationExpired
	}

	won, err := s.store.Consume(ctx, inv.ID, userID, now)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, domain.ErrAlreadyRedeemed
	}

	m, err := s.members.AddMember(ctx, inv.TeamID, userID, inv.Role)
	if err != nil {
		// the token was consumed but no membership was created; release it so
		// the invitee can retry
		if rerr := s.store.Release(ctx, inv.ID); rerr != nil {
			log.Printf("invitation: release %s after failed redemption: %v", inv.ID, rerr)
		}
		return nil, err
	}

	s.recorder.Record(ctx, inv.OrgID, userID, activitydomain.ActionInvitationRedeemed,
		fmt.Sprintf("team=%s email=%s role=%s", inv.TeamID, inv.Email, inv.Role))
	return m, nil
}
