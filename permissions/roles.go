package permissions

// Role is one of an ordered set of team roles. Ordering defines "at least
// as powerful as" for reporting; actual grants come from the verb tables.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// VerbWildcard marks a role as holding every verb. Only the top role
// carries it; there is no hierarchy fallback below that.
const VerbWildcard = "*"

// rolePriorities orders roles for rank comparisons.
var rolePriorities = map[Role]int{
	RoleViewer: 1,
	RoleMember: 2,
	RoleAdmin:  3,
	RoleOwner:  4,
}

// defaultRoleVerbs maps each role to its fixed permission-verb set.
var defaultRoleVerbs = map[Role][]string{
	RoleOwner:  {VerbWildcard},
	RoleAdmin:  {"read", "write", "delete", "invite", "billing"},
	RoleMember: {"read", "write"},
	RoleViewer: {"read"},
}

// Priority returns the role's rank. Unrecognized roles rank lowest.
func (r Role) Priority() int {
	return rolePriorities[r]
}

// AtLeast reports whether the role ranks at or above another.
func (r Role) AtLeast(other Role) bool {
	return r.Priority() >= other.Priority()
}
