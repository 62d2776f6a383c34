package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen          TicketStatus = "OPEN"
	TicketStatusInProgress    TicketStatus = "IN_PROGRESS"
	TicketStatusPendingUser   TicketStatus = "PENDING_USER"
	TicketStatusPendingVendor TicketStatus = "PENDING_VENDOR"
	TicketStatusEscalated     TicketStatus = "ESCALATED"
	TicketStatusResolved      TicketStatus = "RESOLVED"
	TicketStatusClosed        TicketStatus = "CLOSED"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Rank orders priorities from LOW (0) to URGENT (3).
func (p TicketPriority) Rank() int {
	switch p {
	case TicketPriorityMedium:
		return 1
	case TicketPriorityHigh:
		return 2
	case TicketPriorityUrgent:
		return 3
	default:
		return 0
	}
}

// TicketCategory groups tickets for skill based routing.
type TicketCategory string

const (
	TicketCategoryGeneral   TicketCategory = "GENERAL"
	TicketCategoryOrder     TicketCategory = "ORDER"
	TicketCategoryPayment   TicketCategory = "PAYMENT"
	TicketCategoryTechnical TicketCategory = "TECHNICAL"
	TicketCategoryAccount   TicketCategory = "ACCOUNT"
	TicketCategoryProduct   TicketCategory = "PRODUCT"
	TicketCategoryShipping  TicketCategory = "SHIPPING"
	TicketCategoryOther     TicketCategory = "OTHER"
)

// Valid reports whether c is a known category.
func (c TicketCategory) Valid() bool {
	switch c {
	case TicketCategoryGeneral, TicketCategoryOrder, TicketCategoryPayment, TicketCategoryTechnical,
		TicketCategoryAccount, TicketCategoryProduct, TicketCategoryShipping, TicketCategoryOther:
		return true
	}
	return false
}

// EscalationRecord is appended to a ticket on every escalation and never mutated afterwards.
type EscalationRecord struct {
	EscalatedAt     time.Time `json:"escalated_at"`
	EscalatedBy     string    `json:"escalated_by"`
	PriorAssigneeID *string   `json:"prior_assignee_id,omitempty"`
	Reason          string    `json:"reason"`
	TargetRole      Role      `json:"target_role"`
	TargetAgentID   string    `json:"target_agent_id"`
}

// SatisfactionRating is the one survey answer a ticket owner may submit.
type SatisfactionRating struct {
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID              string
	Number          string
	Subject         string
	Description     string
	Category        TicketCategory
	Priority        TicketPriority
	Status          TicketStatus
	Scope           Scope
	RequesterID     string
	AssignedAgentID *string
	VendorID        *string
	OrderID         *string
	ProductID       *string
	Metadata        map[string]any
	Escalations     []EscalationRecord
	Satisfaction    *SatisfactionRating
	CreatedAt       time.Time
	UpdatedAt       time.Time
	FirstResponseAt *time.Time
	LastResponseAt  *time.Time
	ResolvedAt      *time.Time
	ClosedAt        *time.Time
}

// WorkloadStatuses are the statuses counted against an agent's open-ticket load.
var WorkloadStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusPendingUser,
}

// CountsAsWorkload reports whether the ticket occupies its assignee.
func (t *Ticket) CountsAsWorkload() bool {
	for _, s := range WorkloadStatuses {
		if t.Status == s {
			return true
		}
	}
	return false
}

// IsFinished reports whether the ticket no longer accrues SLA time.
func (t *Ticket) IsFinished() bool {
	return t.Status == TicketStatusResolved || t.Status == TicketStatusClosed
}

// IsAssignedTo reports whether agentID is the current assignee.
func (t *Ticket) IsAssignedTo(agentID string) bool {
	return t.AssignedAgentID != nil && *t.AssignedAgentID == agentID
}
