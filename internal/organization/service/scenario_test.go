package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tenant-control-plane/core/internal/activity"
	"tenant-control-plane/core/internal/authz"
	billingdomain "tenant-control-plane/core/internal/billing/domain"
	invitationdomain "tenant-control-plane/core/internal/invitation/domain"
	invitationservice "tenant-control-plane/core/internal/invitation/service"
	membershipdomain "tenant-control-plane/core/internal/membership/domain"
	membershipservice "tenant-control-plane/core/internal/membership/service"
	"tenant-control-plane/core/internal/notify"
	"tenant-control-plane/core/internal/role"
	"tenant-control-plane/core/internal/security"
	subscriptiondomain "tenant-control-plane/core/internal/subscription/domain"
	subscriptionservice "tenant-control-plane/core/internal/subscription/service"
)

// guardedMembershipStore enforces the last-owner invariant under a single
// mutex, matching the row-lock behavior of the SQL store.
type guardedMembershipStore struct {
	mu      sync.Mutex
	records []*membershipdomain.Membership
}

func (g *guardedMembershipStore) GetByTeamAndUser(_ context.Context, teamID, userID string) (*membershipdomain.Membership, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range g.records {
		if m.TeamID == teamID && m.UserID == userID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (g *guardedMembershipStore) ListByTeam(_ context.Context, teamID string) ([]*membershipdomain.Membership, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []*membershipdomain.Membership
	for _, m := range g.records {
		if m.TeamID == teamID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (g *guardedMembershipStore) ListByOrgAndUser(_ context.Context, orgID, userID string) ([]*membershipdomain.Membership, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []*membershipdomain.Membership
	for _, m := range g.records {
		if m.OrgID == orgID && m.UserID == userID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (g *guardedMembershipStore) Create(_ context.Context, m *membershipdomain.Membership) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, existing := range g.records {
		if existing.TeamID == m.TeamID && existing.UserID == m.UserID {
			return membershipdomain.ErrDuplicateMembership
		}
	}
	cp := *m
	g.records = append(g.records, &cp)
	return nil
}

func (g *guardedMembershipStore) RemoveMember(_ context.Context, teamID, userID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx := -1
	owners := 0
	for i, m := range g.records {
		if m.TeamID != teamID {
			continue
		}
		if m.Role == role.Owner {
			owners++
		}
		if m.UserID == userID {
			idx = i
		}
	}
	if idx == -1 {
		return membershipdomain.ErrNotAMember
	}
	if g.records[idx].Role == role.Owner && owners == 1 {
		return membershipdomain.ErrLastOwnerViolation
	}
	g.records = append(g.records[:idx], g.records[idx+1:]...)
	return nil
}

func (g *guardedMembershipStore) UpdateRole(_ context.Context, teamID, userID string, newRole role.Role) (*membershipdomain.Membership, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var target *membershipdomain.Membership
	owners := 0
	for _, m := range g.records {
		if m.TeamID != teamID {
			continue
		}
		if m.Role == role.Owner {
			owners++
		}
		if m.UserID == userID {
			target = m
		}
	}
	if target == nil {
		return nil, membershipdomain.ErrNotAMember
	}
	if target.Role == role.Owner && newRole != role.Owner && owners == 1 {
		return nil, membershipdomain.ErrLastOwnerViolation
	}
	target.Role = newRole
	cp := *target
	return &cp, nil
}

type memInvitationStore struct {
	mu          sync.Mutex
	invitations map[string]*invitationdomain.Invitation
}

func newMemInvitationStore() *memInvitationStore {
	return &memInvitationStore{invitations: make(map[string]*invitationdomain.Invitation)}
}

func (m *memInvitationStore) GetByID(_ context.Context, id string) (*invitationdomain.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[id]
	if !ok {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (m *memInvitationStore) GetPendingByTeamAndEmail(_ context.Context, teamID, email string, now time.Time) (*invitationdomain.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invitations {
		if inv.TeamID == teamID && inv.Email == email && !inv.Redeemed() && !inv.Expired(now) {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memInvitationStore) Create(_ context.Context, inv *invitationdomain.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *inv
	m.invitations[inv.ID] = &cp
	return nil
}

func (m *memInvitationStore) Consume(_ context.Context, id, userID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[id]
	if !ok || inv.Redeemed() {
		return false, nil
	}
	t := now
	inv.RedeemedAt = &t
	inv.RedeemedBy = userID
	return true, nil
}

func (m *memInvitationStore) Release(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv, ok := m.invitations[id]; ok {
		inv.RedeemedAt = nil
		inv.RedeemedBy = ""
	}
	return nil
}

type memSubscriptionStore struct {
	mu     sync.Mutex
	subs   map[string]*subscriptiondomain.Subscription
	events map[string]string
}

func newMemSubscriptionStore() *memSubscriptionStore {
	return &memSubscriptionStore{
		subs:   make(map[string]*subscriptiondomain.Subscription),
		events: make(map[string]string),
	}
}

func (m *memSubscriptionStore) GetLiveByOrg(_ context.Context, orgID string) (*subscriptiondomain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.OrgID == orgID && s.Status != subscriptiondomain.StatusCancelled {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memSubscriptionStore) Create(_ context.Context, s *subscriptiondomain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.subs[s.ID] = &cp
	return nil
}

func (m *memSubscriptionStore) Update(_ context.Context, s *subscriptiondomain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[s.ID]; !ok {
		return errors.New("subscription not found")
	}
	cp := *s
	m.subs[s.ID] = &cp
	return nil
}

func (m *memSubscriptionStore) ListLapsed(_ context.Context, now time.Time) ([]*subscriptiondomain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*subscriptiondomain.Subscription
	for _, s := range m.subs {
		switch s.Status {
		case subscriptiondomain.StatusTrialing:
			if s.TrialEndsAt.Before(now) {
				cp := *s
				out = append(out, &cp)
			}
		case subscriptiondomain.StatusGrace:
			if s.GraceEndsAt != nil && s.GraceEndsAt.Before(now) {
				cp := *s
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (m *memSubscriptionStore) ApplyEvent(_ context.Context, eventID, orgID string, _ []byte, _ time.Time,
	apply func(sub *subscriptiondomain.Subscription) (bool, string)) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[eventID]; ok {
		return false, nil
	}
	var sub *subscriptiondomain.Subscription
	for _, s := range m.subs {
		if s.OrgID == orgID && s.Status != subscriptiondomain.StatusCancelled {
			cp := *s
			sub = &cp
			break
		}
	}
	update, reason := apply(sub)
	if reason != "" {
		m.events[eventID] = "review"
		return true, nil
	}
	m.events[eventID] = "processed"
	if update {
		m.subs[sub.ID] = sub
	}
	return true, nil
}

type stack struct {
	orgs          *Service
	teams         *memTeamStore
	members       *membershipservice.Service
	memberStore   *guardedMembershipStore
	invitations   *invitationservice.Service
	subscriptions *subscriptionservice.Service
	subStore      *memSubscriptionStore
	gate          *authz.Gate
}

// newStack wires the full in-memory service graph the way the worker does.
func newStack(t *testing.T) *stack {
	t.Helper()
	registry, err := role.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	orgStore := newMemOrgStore()
	teamStore := newMemTeamStore()
	memberStore := &guardedMembershipStore{}
	invStore := newMemInvitationStore()
	subStore := newMemSubscriptionStore()

	members := membershipservice.NewService(memberStore, teamStore, registry, activity.Noop{}, notify.Noop{})
	subs := subscriptionservice.NewService(subStore, activity.Noop{}, 3, 14*24*time.Hour, 14*24*time.Hour)
	tokens := security.NewInviteTokenProvider([]byte("scenario-secret"), "tenant-control-plane")
	invitations := invitationservice.NewService(invStore, members, teamStore, registry, tokens, activity.Noop{}, notify.Noop{})
	orgs := NewService(orgStore, teamStore, members, subs, activity.Noop{})

	eval, err := authz.NewOPAEvaluator()
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	gate := authz.NewGate(memberStore, subs, registry, eval)

	return &stack{
		orgs:          orgs,
		teams:         teamStore,
		members:       members,
		memberStore:   memberStore,
		invitations:   invitations,
		subscriptions: subs,
		subStore:      subStore,
		gate:          gate,
	}
}

// Founding an org, inviting a member, redeeming, and then trying to remove
// the founder, end to end across the real services.
func TestOrgLifecycleWithInvitation(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	org, err := s.orgs.CreateOrganization(ctx, "Acme", "u-1", nil)
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	if st, _ := s.subscriptions.Status(ctx, org.ID); st != subscriptiondomain.StatusTrialing {
		t.Fatalf("new org should be trialing, got %s", st)
	}
	root, err := s.orgs.RootTeam(ctx, org.ID)
	if err != nil {
		t.Fatalf("RootTeam: %v", err)
	}

	_, token, err := s.invitations.Issue(ctx, root.ID, "u-1", "bob@x.com", role.Member, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := s.invitations.Redeem(ctx, token, "u-2"); err != nil {
		t.Fatalf("Redeem: %v", err)
	}

	members, err := s.members.MembersOf(ctx, root.ID)
	if err != nil {
		t.Fatalf("MembersOf: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if members[0].UserID != "u-1" || members[0].Role != role.Owner {
		t.Fatalf("first member should be the founding owner, got %+v", members[0])
	}
	if members[1].UserID != "u-2" || members[1].Role != role.Member {
		t.Fatalf("second member should be the invitee, got %+v", members[1])
	}

	if err := s.members.RemoveMember(ctx, root.ID, "u-1"); !errors.Is(err, membershipdomain.ErrLastOwnerViolation) {
		t.Fatalf("expected ErrLastOwnerViolation, got %v", err)
	}
}

// Failed charges walk the subscription through past_due into grace and, once
// the window lapses, to cancelled; the gate then blocks billing-gated actions.
func TestBillingFailureLocksOutWrites(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	org, err := s.orgs.CreateOrganization(ctx, "Acme", "u-1", nil)
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}

	apply := func(id string, typ billingdomain.EventType) {
		t.Helper()
		if err := s.subscriptions.ApplyBillingEvent(ctx, &billingdomain.Event{ID: id, Type: typ, OrgRef: org.ID}); err != nil {
			t.Fatalf("apply %s: %v", id, err)
		}
	}

	apply("e-pay", billingdomain.EventPaymentCaptured)
	apply("e-f1", billingdomain.EventChargeFailed)
	if st, _ := s.subscriptions.Status(ctx, org.ID); st != subscriptiondomain.StatusPastDue {
		t.Fatalf("expected past_due, got %s", st)
	}
	apply("e-f2", billingdomain.EventChargeFailed)
	apply("e-f3", billingdomain.EventChargeFailed)
	if st, _ := s.subscriptions.Status(ctx, org.ID); st != subscriptiondomain.StatusGrace {
		t.Fatalf("expected grace after 3 failures, got %s", st)
	}

	// Access is preserved during grace.
	if !s.gate.Can(ctx, "u-1", org.ID, role.PermContentWrite) {
		t.Fatal("grace must preserve billing-gated access")
	}

	// Force the grace window into the past and sweep.
	s.subStore.mu.Lock()
	for _, sub := range s.subStore.subs {
		if sub.OrgID == org.ID && sub.GraceEndsAt != nil {
			past := time.Now().Add(-time.Hour)
			sub.GraceEndsAt = &past
		}
	}
	s.subStore.mu.Unlock()
	if _, err := s.subscriptions.ExpireOverdue(ctx); err != nil {
		t.Fatalf("ExpireOverdue: %v", err)
	}
	if st, _ := s.subscriptions.Status(ctx, org.ID); st != subscriptiondomain.StatusCancelled {
		t.Fatalf("expected cancelled after grace lapse, got %s", st)
	}

	if s.gate.Can(ctx, "u-1", org.ID, role.PermContentWrite) {
		t.Fatal("billing-gated action must be denied after cancellation")
	}
	if !s.gate.Can(ctx, "u-1", org.ID, role.PermContentRead) {
		t.Fatal("reads survive cancellation")
	}
	if s.gate.Can(ctx, "u-3", org.ID, role.PermContentRead) {
		t.Fatal("strangers are denied everything")
	}
}
