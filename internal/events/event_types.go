package events

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketUpdated         EventType = "ticket_updated"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventTicketAssigned        EventType = "ticket_assigned"
	EventTicketEscalated       EventType = "ticket_escalated"
	EventTicketMessageAdded    EventType = "ticket_message_added"
	EventSatisfactionSubmitted EventType = "satisfaction_submitted"
	EventSLABreached           EventType = "sla_breached"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID   string      `json:"id,omitempty"`
	Role domain.Role `json:"role,omitempty"`
}

// ActorFrom copies the identifying fields of a caller.
func ActorFrom(actor domain.Actor) Actor {
	return Actor{ID: actor.ID, Role: actor.Role}
}

// SystemActor marks events raised by background jobs.
var SystemActor = Actor{ID: "system"}

// Event represents a domain event emitted by services.
type Event struct {
	ID          string       `json:"id"`
	Type        EventType    `json:"type"`
	TicketID    string       `json:"ticket_id"`
	Scope       domain.Scope `json:"scope"`
	RequesterID string       `json:"requester_id,omitempty"`
	AssigneeID  *string      `json:"assignee_id,omitempty"`
	Actor       Actor        `json:"actor"`
	Timestamp   time.Time    `json:"timestamp"`
	Payload     any          `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Number               string                `json:"number"`
	Subject              string                `json:"subject"`
	Category             domain.TicketCategory `json:"category"`
	Priority             domain.TicketPriority `json:"priority"`
	AutoAssigned         bool                  `json:"auto_assigned"`
	OutsideBusinessHours bool                  `json:"outside_business_hours"`
}

// TicketUpdatedPayload lists the fields touched by an update.
type TicketUpdatedPayload struct {
	Changed []string `json:"changed"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketPriorityChangedPayload payload.
type TicketPriorityChangedPayload struct {
	OldPriority      domain.TicketPriority `json:"old_priority"`
	NewPriority      domain.TicketPriority `json:"new_priority"`
	FirstResponseDue time.Time             `json:"first_response_due"`
	ResolutionDue    time.Time             `json:"resolution_due"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	PreviousAgentID *string `json:"previous_agent_id,omitempty"`
	AgentID         string  `json:"agent_id"`
	Automatic       bool    `json:"automatic"`
}

// TicketEscalatedPayload payload.
type TicketEscalatedPayload struct {
	Record domain.EscalationRecord `json:"record"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	MessageID     string                   `json:"message_id"`
	AuthorType    domain.MessageAuthorType `json:"author_type"`
	AuthorID      *string                  `json:"author_id,omitempty"`
	Internal      bool                     `json:"internal"`
	BodyPreview   string                   `json:"body_preview"`
	FirstResponse bool                     `json:"first_response"`
}

// SatisfactionSubmittedPayload payload.
type SatisfactionSubmittedPayload struct {
	Rating int `json:"rating"`
}

// SLABreachedPayload payload.
type SLABreachedPayload struct {
	FirstResponseBreach bool `json:"first_response_breach"`
	ResolutionBreach    bool `json:"resolution_breach"`
	BreachMinutes       int  `json:"breach_minutes"`
}
