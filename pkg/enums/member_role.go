package enums

// MemberRole is the role carried by the externally issued access token.
type MemberRole string

const (
	MemberRoleMember MemberRole = "member"
	MemberRoleAdmin  MemberRole = "admin"
)

// String implements fmt.Stringer.
func (r MemberRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known MemberRole.
func (r MemberRole) IsValid() bool {
	return r == MemberRoleMember || r == MemberRoleAdmin
}

// IsAdmin reports whether the role grants administrative access.
func (r MemberRole) IsAdmin() bool {
	return r == MemberRoleAdmin
}
