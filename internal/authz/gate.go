package authz

import (
	"context"
	"log"

	membershipdomain "tenant-control-plane/core/internal/membership/domain"
	"tenant-control-plane/core/internal/role"
	subscriptiondomain "tenant-control-plane/core/internal/subscription/domain"
)

// MembershipSource resolves the memberships a user holds across an org.
type MembershipSource interface {
	ListByOrgAndUser(ctx context.Context, orgID, userID string) ([]*membershipdomain.Membership, error)
}

// SubscriptionSource reports an org's current subscription status.
type SubscriptionSource interface {
	Status(ctx context.Context, orgID string) (subscriptiondomain.Status, error)
}

// Gate answers every access question in the system. It is fail-closed: any
// lookup or evaluation error denies.
type Gate struct {
	members MembershipSource
	subs    SubscriptionSource
	roles   *role.Registry
	eval    Evaluator
}

// NewGate wires the gate from its sources and the policy evaluator.
func NewGate(members MembershipSource, subs SubscriptionSource, roles *role.Registry, eval Evaluator) *Gate {
	return &Gate{members: members, subs: subs, roles: roles, eval: eval}
}

// Can reports whether the user may perform action within the org. The user's
// effective role is the highest-ranked role across all of their memberships
// in the org's teams; users with no membership are denied.
func (g *Gate) Can(ctx context.Context, userID, orgID, action string) bool {
	memberships, err := g.members.ListByOrgAndUser(ctx, orgID, userID)
	if err != nil {
		log.Printf("authz: membership lookup failed for user %s org %s: %v", userID, orgID, err)
		return false
	}
	if len(memberships) == 0 {
		return false
	}

	effective := memberships[0].Role
	for _, m := range memberships[1:] {
		if g.roles.Outranks(m.Role, effective) {
			effective = m.Role
		}
	}

	perms, err := g.roles.PermissionsFor(effective)
	if err != nil {
		log.Printf("authz: unknown role %q for user %s org %s", effective, userID, orgID)
		return false
	}

	status, err := g.subs.Status(ctx, orgID)
	if err != nil {
		log.Printf("authz: subscription lookup failed for org %s: %v", orgID, err)
		return false
	}

	allowed, err := g.eval.Allow(ctx, Input{
		Action:             action,
		Role:               string(effective),
		Permissions:        perms,
		SubscriptionStatus: string(status),
		BillingGated:       g.roles.BillingGated(action),
	})
	if err != nil {
		log.Printf("authz: policy evaluation failed for user %s org %s action %s: %v", userID, orgID, action, err)
		return false
	}
	return allowed
}
