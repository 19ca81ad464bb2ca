// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev org (dev-org-001) already exists.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"tenant-control-plane/core/internal/activity"
	activityrepo "tenant-control-plane/core/internal/activity/repository"
	billingdomain "tenant-control-plane/core/internal/billing/domain"
	"tenant-control-plane/core/internal/config"
	"tenant-control-plane/core/internal/db"
	invitationdomain "tenant-control-plane/core/internal/invitation/domain"
	invitationrepo "tenant-control-plane/core/internal/invitation/repository"
	membershipdomain "tenant-control-plane/core/internal/membership/domain"
	membershiprepo "tenant-control-plane/core/internal/membership/repository"
	orgdomain "tenant-control-plane/core/internal/organization/domain"
	orgrepo "tenant-control-plane/core/internal/organization/repository"
	"tenant-control-plane/core/internal/role"
	"tenant-control-plane/core/internal/security"
	subscriptiondomain "tenant-control-plane/core/internal/subscription/domain"
	subscriptionrepo "tenant-control-plane/core/internal/subscription/repository"
	subscriptionservice "tenant-control-plane/core/internal/subscription/service"
	teamdomain "tenant-control-plane/core/internal/team/domain"
	teamrepo "tenant-control-plane/core/internal/team/repository"
)

const (
	devOrgID          = "dev-org-001"
	devRootTeamID     = "dev-team-root"
	devPlatformTeamID = "dev-team-platform"
	devOwnerID        = "dev-user-001"
	devMemberID       = "dev-user-002"
	devInvitationID   = "dev-invitation-001"
	devSubscriptionID = "dev-subscription-001"
	inviteEmail       = "invitee@example.com"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	orgs := orgrepo.NewPostgresRepository(conn)
	teams := teamrepo.NewPostgresRepository(conn)
	members := membershiprepo.NewPostgresRepository(conn)
	invitations := invitationrepo.NewPostgresRepository(conn)
	subscriptions := subscriptionrepo.NewPostgresRepository(conn)

	existing, err := orgs.GetOrganizationByID(ctx, devOrgID)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev-org-001 exists). Skipping.")
		os.Exit(0)
	}

	now := time.Now().UTC()

	if err := orgs.CreateOrganization(ctx, &orgdomain.Org{
		ID:          devOrgID,
		Name:        "Acme Dev",
		OwnerUserID: devOwnerID,
		Status:      orgdomain.OrgStatusActive,
		CreatedAt:   now,
	}); err != nil {
		log.Fatalf("create org: %v", err)
	}

	if err := teams.CreateTeam(ctx, &teamdomain.Team{
		ID:        devRootTeamID,
		OrgID:     devOrgID,
		Name:      "Acme Dev",
		IsRoot:    true,
		CreatedAt: now,
	}); err != nil {
		log.Fatalf("create root team: %v", err)
	}

	if err := teams.CreateTeam(ctx, &teamdomain.Team{
		ID:        devPlatformTeamID,
		OrgID:     devOrgID,
		Name:      "Platform",
		CreatedAt: now,
	}); err != nil {
		log.Fatalf("create platform team: %v", err)
	}

	for _, m := range []*membershipdomain.Membership{
		{ID: "dev-membership-001", TeamID: devRootTeamID, OrgID: devOrgID, UserID: devOwnerID, Role: role.Owner, CreatedAt: now},
		{ID: "dev-membership-002", TeamID: devRootTeamID, OrgID: devOrgID, UserID: devMemberID, Role: role.Member, CreatedAt: now},
		{ID: "dev-membership-003", TeamID: devPlatformTeamID, OrgID: devOrgID, UserID: devOwnerID, Role: role.Owner, CreatedAt: now},
	} {
		if err := members.Create(ctx, m); err != nil {
			log.Fatalf("create membership %s: %v", m.ID, err)
		}
	}

	secret := cfg.InviteSigningSecret
	if secret == "" {
		secret = "dev-invite-secret"
	}
	tokens := security.NewInviteTokenProvider([]byte(secret), cfg.InviteIssuer)
	expiresAt := now.Add(cfg.InviteTTL())
	token, err := tokens.Issue(devInvitationID, devRootTeamID, inviteEmail, expiresAt)
	if err != nil {
		log.Fatalf("issue invitation token: %v", err)
	}
	if err := invitations.Create(ctx, &invitationdomain.Invitation{
		ID:        devInvitationID,
		OrgID:     devOrgID,
		TeamID:    devRootTeamID,
		Email:     inviteEmail,
		Role:      role.Member,
		InvitedBy: devOwnerID,
		TokenHash: security.HashToken(token),
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}); err != nil {
		log.Fatalf("create invitation: %v", err)
	}

	if err := subscriptions.Create(ctx, &subscriptiondomain.Subscription{
		ID:          devSubscriptionID,
		OrgID:       devOrgID,
		Status:      subscriptiondomain.StatusTrialing,
		TrialEndsAt: now.Add(cfg.TrialPeriod()),
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		log.Fatalf("create subscription: %v", err)
	}

	// Activate the dev subscription via the same path the worker uses.
	subs := subscriptionservice.NewService(subscriptions, activity.NewLogger(activityrepo.NewPostgresRepository(conn)),
		cfg.MaxChargeRetries, cfg.TrialPeriod(), cfg.GraceWindow())
	if err := subs.ApplyBillingEvent(ctx, &billingdomain.Event{
		ID:     "dev-event-001",
		Type:   billingdomain.EventPaymentCaptured,
		OrgRef: devOrgID,
	}); err != nil {
		log.Fatalf("apply seed billing event: %v", err)
	}

	log.Println("Seed applied.")
	log.Printf("  org:        %s (Acme Dev)", devOrgID)
	log.Printf("  teams:      %s (root), %s", devRootTeamID, devPlatformTeamID)
	log.Printf("  owner:      %s", devOwnerID)
	log.Printf("  member:     %s", devMemberID)
	log.Printf("  invitation: %s -> %s", devInvitationID, inviteEmail)
	log.Printf("  invite token: %s", token)
}
