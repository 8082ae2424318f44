package domain

import dErrors "runadata/pkg/domain-errors"

// Role is the caller's role as asserted by the external authorization layer.
// The core does not authenticate; it only uses roles to gate dual approval
// and suppressed-insight visibility.
type Role string

const (
	RoleAdmin           Role = "admin"
	RoleSecurityOfficer Role = "security_officer"
	RoleFacilitator     Role = "facilitator"
	RoleAnalyst         Role = "analyst"
	RoleParticipant     Role = "participant"
	RoleSponsor         Role = "sponsor"
	RoleDataSteward     Role = "data_steward"
)

var validRoles = map[Role]bool{
	RoleAdmin:           true,
	RoleSecurityOfficer: true,
	RoleFacilitator:     true,
	RoleAnalyst:         true,
	RoleParticipant:     true,
	RoleSponsor:         true,
	RoleDataSteward:     true,
}

// ParseRole constructs a Role from external input.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !validRoles[r] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role: "+s)
	}
	return r, nil
}

// IsValid checks if the role is one of the supported values.
func (r Role) IsValid() bool { return validRoles[r] }

// CanViewSuppressed reports whether the role may read suppressed insights.
// Only admins and security officers see them, for audit and review.
func (r Role) CanViewSuppressed() bool {
	return r == RoleAdmin || r == RoleSecurityOfficer
}

func (r Role) String() string { return string(r) }
