// Package role defines the closed set of roles and their permission sets.
// The registry is built once at process start and is immutable afterwards.
package role

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Role names a position in the tenant role hierarchy.
type Role string

const (
	Owner  Role = "owner"
	Admin  Role = "admin"
	Member Role = "member"
	Viewer Role = "viewer"
)

// ErrInvalidRole is returned when a role is not present in the registry.
var ErrInvalidRole = errors.New("invalid role")

// Permission tokens granted by the built-in roles. Callers pass these to the
// authorization gate as actions.
const (
	PermOrgDelete     = "org.delete"
	PermBillingManage = "org.billing.manage"
	PermTeamCreate    = "team.create"
	PermTeamDelete    = "team.delete"
	PermMemberInvite  = "member.invite"
	PermMemberRemove  = "member.remove"
	PermRoleChange    = "member.role.change"
	PermContentRead   = "content.read"
	PermContentWrite  = "content.write"
	PermActivityRead  = "activity.read"
)

// Definition declares a configured role appended to the built-in set.
type Definition struct {
	Name        Role
	Permissions []string
}

// Registry maps roles to permission sets and ranks them for demotion checks.
type Registry struct {
	perms        map[Role][]string
	rank         map[Role]int
	billingGated map[string]bool
}

// NewRegistry builds a registry with the built-in roles plus any extra
// definitions. Extra roles rank below viewer and cannot shadow built-ins.
func NewRegistry(extra ...Definition) (*Registry, error) {
	r := &Registry{
		perms: map[Role][]string{
			Owner: {
				PermOrgDelete, PermBillingManage, PermTeamCreate, PermTeamDelete,
				PermMemberInvite, PermMemberRemove, PermRoleChange,
				PermContentRead, PermContentWrite, PermActivityRead,
			},
			Admin: {
				PermTeamCreate, PermMemberInvite, PermMemberRemove, PermRoleChange,
				PermContentRead, PermContentWrite, PermActivityRead,
			},
			Member: {PermContentRead, PermContentWrite},
			Viewer: {PermContentRead},
		},
		rank: map[Role]int{Owner: 4, Admin: 3, Member: 2, Viewer: 1},
		billingGated: map[string]bool{
			PermContentWrite: true,
			PermTeamCreate:   true,
			PermMemberInvite: true,
		},
	}
	for _, def := range extra {
		name := Role(strings.TrimSpace(string(def.Name)))
		if name == "" {
			return nil, fmt.Errorf("role: extra role has empty name")
		}
		if _, exists := r.perms[name]; exists {
			return nil, fmt.Errorf("role: duplicate role %q", name)
		}
		perms := make([]string, 0, len(def.Permissions))
		for _, p := range def.Permissions {
			if s := strings.TrimSpace(p); s != "" {
				perms = append(perms, s)
			}
		}
		r.perms[name] = perms
		r.rank[name] = 0
	}
	return r, nil
}

// PermissionsFor returns the permission tokens granted to role, sorted.
// Unknown roles fail with ErrInvalidRole.
func (r *Registry) PermissionsFor(role Role) ([]string, error) {
	perms, ok := r.perms[role]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	out := make([]string, len(perms))
	copy(out, perms)
	sort.Strings(out)
	return out, nil
}

// Known reports whether role is present in the registry.
func (r *Registry) Known(role Role) bool {
	_, ok := r.perms[role]
	return ok
}

// Outranks reports whether a is strictly above b in the hierarchy.
func (r *Registry) Outranks(a, b Role) bool {
	return r.rank[a] > r.rank[b]
}

// BillingGated reports whether the action requires a live subscription.
func (r *Registry) BillingGated(action string) bool {
	return r.billingGated[action]
}

// ParseExtraRoles parses the EXTRA_ROLES config format:
// "name:perm|perm,name2:perm". Empty input yields no definitions.
func ParseExtraRoles(raw string) ([]Definition, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var defs []Definition
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, permsRaw, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("role: malformed extra role entry %q", entry)
		}
		defs = append(defs, Definition{
			Name:        Role(strings.TrimSpace(name)),
			Permissions: strings.Split(permsRaw, "|"),
		})
	}
	return defs, nil
}
