package domain

import "time"

// Role enumerates the access levels a principal can hold.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one of the known levels.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAgent || r == RoleAdmin
}

// IsStaff reports whether the role carries agent or admin access.
func (r Role) IsStaff() bool {
	return r == RoleAgent || r == RoleAdmin
}

// Principal is the authenticated actor attached to every request. Identity
// issuance lives in an external system; this service only consumes id + role.
type Principal struct {
	ID        string
	Name      string
	Email     string
	Role      Role
	CreatedAt time.Time
}

// CanReadTicket is the single read-authorization predicate: end-users see
// only tickets they created, staff see everything.
func (p *Principal) CanReadTicket(t *Ticket) bool {
	if p.Role.IsStaff() {
		return true
	}
	return t.CreatedBy == p.ID
}

// CanManageTicket reports whether the principal may change priority or
// assignment on tickets.
func (p *Principal) CanManageTicket() bool {
	return p.Role.IsStaff()
}
