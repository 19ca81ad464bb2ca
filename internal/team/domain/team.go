package domain

import (
	"errors"
	"time"
)

// Team is a sub-grouping within an organization sharing membership and roles.
// Every org has exactly one root team, created with the org; deleting a team
// cascades to its memberships.
type Team struct {
	ID        string
	OrgID     string
	Name      string
	IsRoot    bool
	Settings  map[string]string
	CreatedAt time.Time
}

// ErrRootTeamImmutable is returned when deleting an org's root team directly.
var ErrRootTeamImmutable = errors.New("root team cannot be deleted; delete the organization")

// Validate validates the team for persistence.
func (t *Team) Validate() error {
	if t.OrgID == "" {
		return errors.New("org is required")
	}
	if t.Name == "" {
		return errors.New("name is required")
	}
	return nil
}
