package services

import (
	"sort"
	"strings"
)

type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleEventManager Role = "EVENT_MANAGER"
	RoleVolunteer    Role = "VOLUNTEER"
	RoleSponsor      Role = "SPONSOR"
)

// rolePriority lists roles from highest to lowest priority; the index is the rank.
var rolePriority = [...]Role{RoleAdmin, RoleEventManager, RoleVolunteer, RoleSponsor}

// Rank returns the role's priority (0 is highest) or -1 for unknown roles.
func (r Role) Rank() int {
	for i, candidate := range rolePriority {
		if candidate == r {
			return i
		}
	}
	return -1
}

func (r Role) Valid() bool {
	return r.Rank() >= 0
}

// ParseRole normalizes a raw role string. The second value is false when the
// string does not name a known role.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	return role, role.Valid()
}

// NormalizeRoles keeps the known roles in raw, deduplicated and sorted by priority.
func NormalizeRoles(raw []string) []Role {
	seen := map[Role]bool{}
	roles := make([]Role, 0, len(raw))
	for _, value := range raw {
		role, ok := ParseRole(value)
		if !ok || seen[role] {
			continue
		}
		seen[role] = true
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool {
		return roles[i].Rank() < roles[j].Rank()
	})
	return roles
}

// PrimaryRole returns the highest-priority role of a normalized set, or
// VOLUNTEER when the set is empty.
func PrimaryRole(roles []Role) Role {
	best := Role("")
	for _, role := range roles {
		if !role.Valid() {
			continue
		}
		if best == "" || role.Rank() < best.Rank() {
			best = role
		}
	}
	if best == "" {
		return RoleVolunteer
	}
	return best
}

// DeterminePrimaryRole picks the primary role from raw role strings, falling
// back to fallback and then to VOLUNTEER.
func DeterminePrimaryRole(raw []string, fallback string) Role {
	roles := NormalizeRoles(raw)
	if len(roles) > 0 {
		return roles[0]
	}
	if role, ok := ParseRole(fallback); ok {
		return role
	}
	return RoleVolunteer
}

// AuthorizeRoles passes when any held role is in allowed.
func AuthorizeRoles(held []string, allowed ...Role) bool {
	for _, role := range NormalizeRoles(held) {
		for _, candidate := range allowed {
			if role == candidate {
				return true
			}
		}
	}
	return false
}

func RoleStrings(roles []Role) []string {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		out = append(out, string(role))
	}
	return out
}

// Actor is the authenticated caller as supplied by the auth layer.
type Actor struct {
	ID    string
	Email string
	Name  string
	Roles []string
}

func (a Actor) Has(roles ...Role) bool {
	return AuthorizeRoles(a.Roles, roles...)
}

func (a Actor) IsAdmin() bool {
	return a.Has(RoleAdmin)
}
