package authz

// Role identifies a class of user with a fixed permission set.
// A role is assigned by the identity provider and immutable for
// the lifetime of a session.
type Role string

const (
	RoleAdmin           Role = "admin"
	RoleFoundationOwner Role = "foundation_owner"
	RoleBoardMember     Role = "board_member"
	RoleMember          Role = "member"
	RoleAuditor         Role = "auditor"
)

var validRoles = map[Role]bool{
	RoleAdmin:           true,
	RoleFoundationOwner: true,
	RoleBoardMember:     true,
	RoleMember:          true,
	RoleAuditor:         true,
}

// IsValid returns true if the role is one of the known roles.
func (r Role) IsValid() bool {
	return validRoles[r]
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}
