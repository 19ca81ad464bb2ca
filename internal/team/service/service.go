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
	orgdomain "tenant-control-plane/core/internal/organization/domain"
	"tenant-control-plane/core/internal/role"
	"tenant-control-plane/core/internal/team/domain"
	teamrepo "tenant-control-plane/core/internal/team/repository"
)

// ErrTeamNotFound is returned when the team does not exist.
var ErrTeamNotFound = errors.New("team not found")

// ErrOrgNotFound is returned when creating a team under an unknown organization.
var ErrOrgNotFound = errors.New("organization not found")

// MemberAdder creates a membership; implemented by the membership service.
type MemberAdder interface {
	AddMember(ctx context.Context, teamID, userID string, r role.Role) (*membershipdomain.Membership, error)
}

// OrgGetter resolves the owning organization when creating a team.
type OrgGetter interface {
	GetOrganizationByID(ctx context.Context, id string) (*orgdomain.Org, error)
}

// Service implements team operations within an organization.
type Service struct {
	store    teamrepo.Repository
	orgs     OrgGetter
	members  MemberAdder
	recorder activity.Recorder
	nowF     func() time.Time
}

// NewService returns a team service with the given dependencies.
func NewService(store teamrepo.Repository, orgs OrgGetter, members MemberAdder, recorder activity.Recorder) *Service {
	return &Service{
		store:    store,
		orgs:     orgs,
		members:  members,
		recorder: recorder,
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateTeam creates a team in the org and adds the creator as its owner, so
// the team never exists without one.
func (s *Service) CreateTeam(ctx context.Context, orgID, name, creatorUserID string) (*domain.Team, error) {
	org, err := s.orgs.GetOrganizationByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, ErrOrgNotFound
	}
	t := &domain.Team{
		ID:        uuid.New().String(),
		OrgID:     orgID,
		Name:      name,
		CreatedAt: s.nowF(),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.CreateTeam(ctx, t); err != nil {
		return nil, err
	}
	if _, err := s.members.AddMember(ctx, t.ID, creatorUserID, role.Owner); err != nil {
		// roll back the team so it never exists without an owner
		if derr := s.store.DeleteTeam(ctx, t.ID); derr != nil {
			return nil, fmt.Errorf("add owner: %w (cleanup failed: %v)", err, derr)
		}
		return nil, fmt.Errorf("add owner: %w", err)
	}
	s.recorder.Record(ctx, orgID, creatorUserID, activitydomain.ActionTeamCreated,
		fmt.Sprintf("team=%s name=%s", t.ID, name))
	return t, nil
}

// GetTeam returns the team, or ErrTeamNotFound.
func (s *Service) GetTeam(ctx context.Context, id string) (*domain.Team, error) {
	t, err := s.store.GetTeamByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTeamNotFound
	}
	return t, nil
}

// ListTeams returns the org's teams.
func (s *Service) ListTeams(ctx context.Context, orgID string) ([]*domain.Team, error) {
	return s.store.ListTeamsByOrg(ctx, orgID)
}

// RenameTeam updates the team's name.
func (s *Service) RenameTeam(ctx context.Context, id, name string) (*domain.Team, error) {
	t, err := s.GetTeam(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Name = name
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.UpdateTeam(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteTeam deletes the team and, via the store, its memberships. The org's
// root team cannot be deleted directly; it goes away with the org.
func (s *Service) DeleteTeam(ctx context.Context, id, actorUserID string) error {
	t, err := s.GetTeam(ctx, id)
	if err != nil {
		return err
	}
	if t.IsRoot {
		return domain.ErrRootTeamImmutable
	}
	if err := s.store.DeleteTeam(ctx, id); err != nil {
		return err
	}
	s.recorder.Record(ctx, t.OrgID, actorUserID, activitydomain.ActionTeamDeleted,
		fmt.Sprintf("team=%s name=%s", t.ID, t.Name))
	return nil
}
