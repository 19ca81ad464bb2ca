// Package authz is the single authorization choke point. Every permission
// check goes through Gate.Can; no other component grants access.
package authz

import "context"

// Input is the fact set one access decision is evaluated against.
type Input struct {
	// Action is the permission token being requested, e.g. "content.write".
	Action string
	// Role is the subject's resolved role in the org; empty when the subject
	// holds no membership.
	Role string
	// Permissions are the tokens granted to Role by the registry.
	Permissions []string
	// SubscriptionStatus is the org's current subscription state.
	SubscriptionStatus string
	// BillingGated marks actions that require a live subscription.
	BillingGated bool
}

// Evaluator decides whether one access request is allowed. Implementations
// must be side-effect free; callers treat any error as a denial.
type Evaluator interface {
	Allow(ctx context.Context, in Input) (bool, error)
}
