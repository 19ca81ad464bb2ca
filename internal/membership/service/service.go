package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tenant-control-plane/core/internal/activity"
	activitydomain "tenant-control-plane/core/internal/activity/domain"
	"tenant-control-plane/core/internal/membership/domain"
	"tenant-control-plane/core/internal/notify"
	"tenant-control-plane/core/internal/role"
	teamdomain "tenant-control-plane/core/internal/team/domain"
)

// ErrTeamNotFound is returned when the target team does not exist.
var ErrTeamNotFound = errors.New("team not found")

// Store is the membership persistence needed by the service.
type Store interface {
	GetByTeamAndUser(ctx context.Context, teamID, userID string) (*domain.Membership, error)
	ListByTeam(ctx context.Context, teamID string) ([]*domain.Membership, error)
	Create(ctx context.Context, m *domain.Membership) error
	RemoveMember(ctx context.Context, teamID, userID string) error
	UpdateRole(ctx context.Context, teamID, userID string, newRole role.Role) (*domain.Membership, error)
}

// TeamGetter resolves a team for tenant scoping. Used to reject operations on
// unknown teams and to stamp memberships with the owning org.
type TeamGetter interface {
	GetTeamByID(ctx context.Context, id string) (*teamdomain.Team, error)
}

// Service implements membership operations: add, remove, role change, listing.
type Service struct {
	store    Store
	teams    TeamGetter
	roles    *role.Registry
	recorder activity.Recorder
	notifier notify.Sender
	nowF     func() time.Time
}

// NewService returns a membership service with the given dependencies.
func NewService(store Store, teams TeamGetter, roles *role.Registry, recorder activity.Recorder, notifier notify.Sender) *Service {
	return &Service{
		store:    store,
		teams:    teams,
		roles:    roles,
		recorder: recorder,
		notifier: notifier,
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

// AddMember adds the user to the team with the given role.
// Fails with domain.ErrDuplicateMembership when the (team, user) pair already
// exists and role.ErrInvalidRole for roles missing from the registry.
func (s *Service) AddMember(ctx context.Context, teamID, userID string, r role.Role) (*domain.Membership, error) {
	if !s.roles.Known(r) {
		return nil, fmt.Errorf("%w: %q", role.ErrInvalidRole, r)
	}
	team, err := s.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, ErrTeamNotFound
	}
	m := &domain.Membership{
		ID:        uuid.New().String(),
		TeamID:    teamID,
		OrgID:     team.OrgID,
		UserID:    userID,
		Role:      r,
		CreatedAt: s.nowF(),
	}
	if err := s.store.Create(ctx, m); err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, team.OrgID, userID, activitydomain.ActionMemberAdded,
		fmt.Sprintf("team=%s role=%s", teamID, r))
	return m, nil
}

// RemoveMember removes the user from the team. Fails with
// domain.ErrLastOwnerViolation when the user is the team's sole owner and
// domain.ErrNotAMember when no membership exists.
func (s *Service) RemoveMember(ctx context.Context, teamID, userID string) error {
	team, err := s.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		return err
	}
	if team == nil {
		return ErrTeamNotFound
	}
	if err := s.store.RemoveMember(ctx, teamID, userID); err != nil {
		return err
	}
	s.recorder.Record(ctx, team.OrgID, userID, activitydomain.ActionMemberRemoved,
		fmt.Sprintf("team=%s", teamID))
	return nil
}

// ChangeRole updates the member's role. The last-owner guard applies when
// demoting the only owner. A successful change notifies the member.
func (s *Service) ChangeRole(ctx context.Context, teamID, userID string, newRole role.Role) (*domain.Membership, error) {
	if !s.roles.Known(newRole) {
		return nil, fmt.Errorf("%w: %q", role.ErrInvalidRole, newRole)
	}
	team, err := s.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, ErrTeamNotFound
	}
	m, err := s.store.UpdateRole(ctx, teamID, userID, newRole)
	if err != nil {
		return nil, err
	}
	notify.SendRoleChangedAsync(s.notifier, userID, teamID, newRole)
	s.recorder.Record(ctx, team.OrgID, userID, activitydomain.ActionRoleChanged,
		fmt.Sprintf("team=%s role=%s", teamID, newRole))
	return m, nil
}

// MembersOf returns the team's memberships in insertion order.
func (s *Service) MembersOf(ctx context.Context, teamID string) ([]*domain.Membership, error) {
	return s.store.ListByTeam(ctx, teamID)
}

// RoleOf returns the user's role in the team, or domain.ErrNotAMember.
func (s *Service) RoleOf(ctx context.Context, teamID, userID string) (role.Role, error) {
	m, err := s.store.GetByTeamAndUser(ctx, teamID, userID)
	if err != nil {
		return "", err
	}
	if m == nil {
		return "", domain.ErrNotAMember
	}
	return m.Role, nil
}
