package authz

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const policyQuery = "data.tenant.access.allow"

// Default Rego policy: the subject's role must grant the action, and
// billing-gated actions additionally require a non-cancelled subscription.
const defaultRegoPolicy = `package tenant.access

default allow = false

allow if {
	has_permission
	not billing_blocked
}

has_permission if {
	some p in input.permissions
	p == input.action
}

billing_blocked if {
	input.billing_gated
	input.subscription_status == "cancelled"
}
`

// OPAEvaluator evaluates access decisions with the in-process OPA Rego
// engine. The policy module is compiled once at construction.
type OPAEvaluator struct {
	compiler *ast.Compiler
}

// NewOPAEvaluator compiles the given Rego modules; with none given it uses
// the default access policy.
func NewOPAEvaluator(modules ...string) (*OPAEvaluator, error) {
	if len(modules) == 0 {
		modules = []string{defaultRegoPolicy}
	}
	named := make(map[string]string, len(modules))
	for i, m := range modules {
		named[fmt.Sprintf("policy_%d.rego", i)] = m
	}
	compiler, err := ast.CompileModules(named)
	if err != nil {
		return nil, fmt.Errorf("compile access policy: %w", err)
	}
	return &OPAEvaluator{compiler: compiler}, nil
}

// HealthCheck verifies the compiled policy evaluates against a minimal input.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.Allow(ctx, Input{
		Action:             "content.read",
		Role:               "viewer",
		Permissions:        []string{"content.read"},
		SubscriptionStatus: "active",
	})
	return err
}

// Allow evaluates the access query for the given input.
func (e *OPAEvaluator) Allow(ctx context.Context, in Input) (bool, error) {
	perms := in.Permissions
	if perms == nil {
		perms = []string{}
	}
	input := map[string]interface{}{
		"action":              in.Action,
		"role":                in.Role,
		"permissions":         perms,
		"subscription_status": in.SubscriptionStatus,
		"billing_gated":       in.BillingGated,
	}
	q := rego.New(
		rego.Query(policyQuery),
		rego.Compiler(e.compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return false, fmt.Errorf("eval access policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("access policy query returned no result")
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("access policy returned non-boolean %T", rs[0].Expressions[0].Value)
	}
	return allowed, nil
}
