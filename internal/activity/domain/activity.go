package domain

import "time"

// ActivityRecord is one append-only audit trail entry. Records are never
// mutated or deleted once written.
type ActivityRecord struct {
	ID        string
	OrgID     string
	UserID    string
	Action    string
	Detail    string
	CreatedAt time.Time
}

// Well-known activity actions recorded by the services.
const (
	ActionOrgCreated          = "org.created"
	ActionOrgDeleted          = "org.deleted"
	ActionTeamCreated         = "team.created"
	ActionTeamDeleted         = "team.deleted"
	ActionMemberAdded         = "member.added"
	ActionMemberRemoved       = "member.removed"
	ActionRoleChanged         = "member.role_changed"
	ActionInvitationIssued    = "invitation.issued"
	ActionInvitationRedeemed  = "invitation.redeemed"
	ActionSubscriptionChanged = "subscription.changed"
)
