package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// AttachmentRequest references a file already uploaded to the file store.
type AttachmentRequest struct {
	StorageKey string `json:"storage_key" validate:"required,max=512"`
	FileName   string `json:"file_name" validate:"required,max=255"`
	MimeType   string `json:"mime_type" validate:"max=128"`
	SizeBytes  int64  `json:"size_bytes" validate:"gte=0"`
}

// CreateTicketRequest payload. Scope fields default to the caller's token.
type CreateTicketRequest struct {
	BusinessModel domain.BusinessModel  `json:"business_model"`
	TenantID      string                `json:"tenant_id"`
	RequesterID   *string               `json:"requester_id"`
	Subject       string                `json:"subject" validate:"required,max=200"`
	Description   string                `json:"description" validate:"max=10000"`
	Category      domain.TicketCategory `json:"category" validate:"omitempty,oneof=GENERAL ORDER PAYMENT TECHNICAL ACCOUNT PRODUCT SHIPPING OTHER"`
	Priority      domain.TicketPriority `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	VendorID      *string               `json:"vendor_id"`
	OrderID       *string               `json:"order_id"`
	ProductID     *string               `json:"product_id"`
	Metadata      map[string]any        `json:"metadata"`
	Attachments   []AttachmentRequest   `json:"attachments" validate:"max=20,dive"`
}

// UpdateTicketRequest is a partial update.
type UpdateTicketRequest struct {
	Subject     *string                `json:"subject" validate:"omitempty,min=1,max=200"`
	Description *string                `json:"description" validate:"omitempty,max=10000"`
	Category    *domain.TicketCategory `json:"category" validate:"omitempty,oneof=GENERAL ORDER PAYMENT TECHNICAL ACCOUNT PRODUCT SHIPPING OTHER"`
	Priority    *domain.TicketPriority `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	Status      *domain.TicketStatus   `json:"status" validate:"omitempty,oneof=OPEN IN_PROGRESS PENDING_USER PENDING_VENDOR ESCALATED RESOLVED CLOSED"`
	VendorID    *string                `json:"vendor_id"`
	Metadata    map[string]any         `json:"metadata"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Body        string              `json:"body" validate:"required,max=20000"`
	Internal    bool                `json:"internal"`
	Attachments []AttachmentRequest `json:"attachments" validate:"max=20,dive"`
}

// EscalateTicketRequest payload.
type EscalateTicketRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AgentID string `json:"agent_id" validate:"required"`
}

// SatisfactionRequest payload.
type SatisfactionRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// TicketResponse is the list representation of a ticket.
type TicketResponse struct {
	ID              string                     `json:"id"`
	Number          string                     `json:"number"`
	Subject         string                     `json:"subject"`
	Category        domain.TicketCategory      `json:"category"`
	Priority        domain.TicketPriority      `json:"priority"`
	Status          domain.TicketStatus        `json:"status"`
	BusinessModel   domain.BusinessModel       `json:"business_model"`
	TenantID        string                     `json:"tenant_id"`
	RequesterID     string                     `json:"requester_id"`
	AssignedAgentID *string                    `json:"assigned_agent_id"`
	VendorID        *string                    `json:"vendor_id,omitempty"`
	OrderID         *string                    `json:"order_id,omitempty"`
	ProductID       *string                    `json:"product_id,omitempty"`
	Satisfaction    *domain.SatisfactionRating `json:"satisfaction,omitempty"`
	CreatedAt       time.Time                  `json:"created_at"`
	UpdatedAt       time.Time                  `json:"updated_at"`
	FirstResponseAt *time.Time                 `json:"first_response_at,omitempty"`
	ResolvedAt      *time.Time                 `json:"resolved_at,omitempty"`
	ClosedAt        *time.Time                 `json:"closed_at,omitempty"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketResponse
	Description    string                    `json:"description"`
	Metadata       map[string]any            `json:"metadata,omitempty"`
	Escalations    []domain.EscalationRecord `json:"escalations,omitempty"`
	LastResponseAt *time.Time                `json:"last_response_at,omitempty"`
	SLA            *SLAResponse              `json:"sla,omitempty"`
	Messages       []TicketMessageResponse   `json:"messages"`
	Attachments    []AttachmentResponse      `json:"attachments"`
	History        []TicketHistoryResponse   `json:"history,omitempty"`
}

// SLAResponse exposes the SLA record of a ticket.
type SLAResponse struct {
	FirstResponseDue    time.Time `json:"first_response_due"`
	ResolutionDue       time.Time `json:"resolution_due"`
	FirstResponseMet    bool      `json:"first_response_met"`
	ResolutionMet       bool      `json:"resolution_met"`
	FirstResponseBreach bool      `json:"first_response_breach"`
	ResolutionBreach    bool      `json:"resolution_breach"`
	BreachMinutes       int       `json:"breach_minutes"`
}

// TicketMessageResponse represents thread message.
type TicketMessageResponse struct {
	ID          string                   `json:"id"`
	AuthorType  domain.MessageAuthorType `json:"author_type"`
	AuthorID    *string                  `json:"author_id"`
	Internal    bool                     `json:"internal"`
	Body        string                   `json:"body"`
	Attachments []AttachmentResponse     `json:"attachments"`
	CreatedAt   time.Time                `json:"created_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID         string    `json:"id"`
	StorageKey string    `json:"storage_key"`
	FileName   string    `json:"file_name"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}

// TicketHistoryResponse is one audit trail entry.
type TicketHistoryResponse struct {
	ID          string                  `json:"id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	ChangedByID *string                 `json:"changed_by_id"`
	OldValue    map[string]any          `json:"old_value,omitempty"`
	NewValue    map[string]any          `json:"new_value,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

// PageMeta describes a paginated listing.
type PageMeta struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}
