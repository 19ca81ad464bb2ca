package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tenant-control-plane/core/internal/activity"
	activitydomain "tenant-control-plane/core/internal/activity/domain"
	membershipdomain "tenant-control-plane/core/internal/membership/domain"
	"tenant-control-plane/core/internal/organization/domain"
	orgrepo "tenant-control-plane/core/internal/organization/repository"
	"tenant-control-plane/core/internal/role"
	subscriptiondomain "tenant-control-plane/core/internal/subscription/domain"
	teamdomain "tenant-control-plane/core/internal/team/domain"
	teamrepo "tenant-control-plane/core/internal/team/repository"
)

// ErrOrgNotFound is returned when the organization does not exist.
var ErrOrgNotFound = errors.New("organization not found")

// MemberAdder creates a membership; implemented by the membership service.
type MemberAdder interface {
	AddMember(ctx context.Context, teamID, userID string, r role.Role) (*membershipdomain.Membership, error)
}

// TrialStarter opens a trialing subscription for a new org; implemented by
// the subscription service.
type TrialStarter interface {
	StartTrial(ctx context.Context, orgID string) (*subscriptiondomain.Subscription, error)
}

// Service implements organization lifecycle operations.
type Service struct {
	store    orgrepo.Repository
	teams    teamrepo.Repository
	members  MemberAdder
	subs     TrialStarter
	recorder activity.Recorder
	nowF     func() time.Time
}

// NewService returns an organization service with the given dependencies.
func NewService(store orgrepo.Repository, teams teamrepo.Repository, members MemberAdder, subs TrialStarter, recorder activity.Recorder) *Service {
	return &Service{
		store:    store,
		teams:    teams,
		members:  members,
		subs:     subs,
		recorder: recorder,
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrganization creates the org together with its root team, the
// founder's owner membership, and a trialing subscription. On any failure the
// org is deleted again so the pieces never exist partially; the store cascade
// removes whatever was already attached.
func (s *Service) CreateOrganization(ctx context.Context, name, ownerUserID string, settings map[string]string) (*domain.Org, error) {
	now := s.nowF()
	org := &domain.Org{
		ID:          uuid.New().String(),
		Name:        name,
		OwnerUserID: ownerUserID,
		Status:      domain.OrgStatusActive,
		Settings:    settings,
		CreatedAt:   now,
	}
	if err := org.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.CreateOrganization(ctx, org); err != nil {
		return nil, err
	}

	root := &teamdomain.Team{
		ID:        uuid.New().String(),
		OrgID:     org.ID,
		Name:      name,
		IsRoot:    true,
		CreatedAt: now,
	}
	if err := s.teams.CreateTeam(ctx, root); err != nil {
		return nil, s.undoCreate(ctx, org.ID, fmt.Errorf("create root team: %w", err))
	}
	if _, err := s.members.AddMember(ctx, root.ID, ownerUserID, role.Owner); err != nil {
		return nil, s.undoCreate(ctx, org.ID, fmt.Errorf("add owner membership: %w", err))
	}
	if _, err := s.subs.StartTrial(ctx, org.ID); err != nil {
		return nil, s.undoCreate(ctx, org.ID, fmt.Errorf("start trial: %w", err))
	}

	s.recorder.Record(ctx, org.ID, ownerUserID, activitydomain.ActionOrgCreated,
		fmt.Sprintf("name=%s root_team=%s", name, root.ID))
	return org, nil
}

func (s *Service) undoCreate(ctx context.Context, orgID string, cause error) error {
	if err := s.store.DeleteOrganization(ctx, orgID); err != nil {
		return fmt.Errorf("%w (cleanup failed: %v)", cause, err)
	}
	return cause
}

// GetOrganization returns the org, or ErrOrgNotFound.
func (s *Service) GetOrganization(ctx context.Context, id string) (*domain.Org, error) {
	org, err := s.store.GetOrganizationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, ErrOrgNotFound
	}
	return org, nil
}

// RootTeam returns the org's root team.
func (s *Service) RootTeam(ctx context.Context, orgID string) (*teamdomain.Team, error) {
	t, err := s.teams.GetRootTeamByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("org %s has no root team", orgID)
	}
	return t, nil
}

// UpdateSettings replaces the org's settings map.
func (s *Service) UpdateSettings(ctx context.Context, id string, settings map[string]string) (*domain.Org, error) {
	org, err := s.GetOrganization(ctx, id)
	if err != nil {
		return nil, err
	}
	org.Settings = settings
	if err := s.store.UpdateOrganization(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// DeleteOrganization removes the org. Teams, memberships, invitations, and
// subscriptions cascade at the store.
func (s *Service) DeleteOrganization(ctx context.Context, id, actorUserID string) error {
	org, err := s.GetOrganization(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteOrganization(ctx, org.ID); err != nil {
		return err
	}
	s.recorder.Record(ctx, org.ID, actorUserID, activitydomain.ActionOrgDeleted,
		fmt.Sprintf("name=%s", org.Name))
	return nil
}
