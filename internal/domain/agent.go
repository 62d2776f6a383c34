package domain

import "time"

// Role enumerates caller and agent roles.
type Role string

const (
	RoleCustomer      Role = "CUSTOMER"
	RoleAgent         Role = "AGENT"
	RoleSupervisor    Role = "SUPERVISOR"
	RoleVendor        Role = "VENDOR"
	RolePlatformAdmin Role = "PLATFORM_ADMIN"
)

// IsStaff reports whether the role handles tickets rather than filing them.
func (r Role) IsStaff() bool {
	switch r {
	case RoleAgent, RoleSupervisor, RoleVendor, RolePlatformAdmin:
		return true
	}
	return false
}

// AgentProfile models a member of the support agent pool.
type AgentProfile struct {
	ID                   string
	Name                 string
	Email                string
	Role                 Role
	BusinessModel        BusinessModel
	TenantID             *string
	Active               bool
	Available            bool
	Skills               []TicketCategory
	MaxConcurrentTickets int
	SatisfactionRating   float64
	RatingCount          int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// InScope reports whether the agent may work tickets of the scope. A nil tenant
// covers every tenant of the agent's business model.
func (a *AgentProfile) InScope(scope Scope) bool {
	if a.BusinessModel != scope.BusinessModel {
		return false
	}
	return a.TenantID == nil || *a.TenantID == scope.TenantID
}

// HasSkill reports whether category is in the agent's skill set.
func (a *AgentProfile) HasSkill(category TicketCategory) bool {
	for _, skill := range a.Skills {
		if skill == category {
			return true
		}
	}
	return false
}

// Eligible combines the active, available and scope checks.
func (a *AgentProfile) Eligible(scope Scope) bool {
	return a.Active && a.Available && a.InScope(scope)
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID    string
	Role  Role
	Scope Scope
}

// IsStaff reports whether the actor acts on behalf of support.
func (a Actor) IsStaff() bool {
	return a.Role.IsStaff()
}
