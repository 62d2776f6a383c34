package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	previewLength   = 140
)

// TicketService is the lifecycle manager: it enforces the state machine and
// orchestrates configuration, rate limiting, SLA and assignment.
type TicketService struct {
	tx          repository.Transactor
	tickets     repository.TicketRepository
	sla         repository.SLARepository
	agents      repository.AgentRepository
	messages    repository.TicketMessageRepository
	attachments repository.AttachmentRepository
	history     repository.TicketHistoryRepository
	resolver    *ConfigResolver
	limiter     *RateLimiter
	assignment  *AssignmentEngine
	escalation  *EscalationEngine
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	metrics     *observability.Metrics
	nowFn       func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Repos       *repository.Repositories
	Resolver    *ConfigResolver
	RateLimiter *RateLimiter
	Assignment  *AssignmentEngine
	Escalation  *EscalationEngine
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	Now         func() time.Time
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tx:          deps.Repos.Transactor,
		tickets:     deps.Repos.Tickets,
		sla:         deps.Repos.SLA,
		agents:      deps.Repos.Agents,
		messages:    deps.Repos.Messages,
		attachments: deps.Repos.Attachments,
		history:     deps.Repos.History,
		resolver:    deps.Resolver,
		limiter:     deps.RateLimiter,
		assignment:  deps.Assignment,
		escalation:  deps.Escalation,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		metrics:     deps.Metrics,
		nowFn:       now,
	}
}

// AttachmentInput references a file already held by the file store.
type AttachmentInput struct {
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	// RequesterID lets staff file a ticket on behalf of a customer.
	RequesterID *string
	Subject     string
	Description string
	Category    domain.TicketCategory
	Priority    domain.TicketPriority
	VendorID    *string
	OrderID     *string
	ProductID   *string
	Metadata    map[string]any
	Attachments []AttachmentInput
}

// UpdateTicketInput is a partial update; nil fields are left untouched.
type UpdateTicketInput struct {
	Subject     *string
	Description *string
	Category    *domain.TicketCategory
	Priority    *domain.TicketPriority
	Status      *domain.TicketStatus
	VendorID    *string
	Metadata    map[string]any
}

// AddMessageInput describes a thread reply.
type AddMessageInput struct {
	Body        string
	Internal    bool
	Attachments []AttachmentInput
}

// ListTicketsInput captures list filters, sort and pagination.
type ListTicketsInput struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Categories []domain.TicketCategory
	AssigneeID *string
	Unassigned bool
	Search     *string
	Sort       repository.TicketSort
	Page       int
	PageSize   int
}

// TicketPage is one page of a listing.
type TicketPage struct {
	Items    []domain.Ticket
	Total    int
	Page     int
	PageSize int
}

// TicketDetails is a hydrated ticket.
type TicketDetails struct {
	Ticket      domain.Ticket
	SLA         *domain.SLARecord
	Messages    []domain.TicketMessage
	Attachments []domain.AttachmentReference
	History     []domain.TicketHistory
}

// CreateTicket validates, rate-limits and persists a ticket together with its
// SLA record, attachments and optional auto-assignment.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, scope domain.Scope, input CreateTicketInput) (*TicketDetails, error) {
	requesterID, err := s.requesterFor(actor, scope, input.RequesterID)
	if err != nil {
		return nil, err
	}
	if err := normalizeCreateInput(&input); err != nil {
		return nil, err
	}

	cfg, err := s.resolver.Resolve(ctx, scope)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Check(ctx, scope, requesterID, cfg.RateLimits); err != nil {
		return nil, err
	}

	now := s.nowFn()
	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		Subject:     input.Subject,
		Description: input.Description,
		Category:    input.Category,
		Priority:    input.Priority,
		Status:      domain.TicketStatusOpen,
		Scope:       scope,
		RequesterID: requesterID,
		VendorID:    input.VendorID,
		OrderID:     input.OrderID,
		ProductID:   input.ProductID,
		Metadata:    input.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	outsideHours := !cfg.BusinessHours.Contains(now)

	var assigned *domain.AgentProfile
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tickets.Create(ctx, ticket); err != nil {
			return err
		}
		record, err := ScheduleSLA(ticket, cfg.SLAMinutes)
		if err != nil {
			return err
		}
		if err := s.sla.Create(ctx, record); err != nil {
			return err
		}
		for _, in := range input.Attachments {
			if err := s.attachments.Create(ctx, newAttachment(ticket.ID, nil, in, now)); err != nil {
				return err
			}
		}
		if err := s.recordHistory(ctx, actor.ID, ticket.ID, domain.ChangeTypeCreated, nil,
			map[string]any{"status": ticket.Status, "priority": ticket.Priority}, now); err != nil {
			return err
		}

		if cfg.AutoAssign {
			agent, err := s.assignment.FindBestAgent(ctx, ticket.Category, scope)
			if err != nil {
				return err
			}
			if agent != nil {
				assigned = agent
				ticket.AssignedAgentID = &agent.ID
				if err := s.tickets.Update(ctx, ticket); err != nil {
					return err
				}
				if err := s.recordHistory(ctx, "", ticket.ID, domain.ChangeTypeAssignee, nil,
					map[string]any{"agent_id": agent.ID, "automatic": true}, now); err != nil {
					return err
				}
			}
		}

		if outsideHours {
			note := &domain.TicketMessage{
				ID:         uuid.NewString(),
				TicketID:   ticket.ID,
				AuthorType: domain.AuthorTypeSystem,
				Body:       "Your ticket was received outside business hours. An agent will respond when the support team is back.",
				CreatedAt:  now,
			}
			if err := s.messages.Create(ctx, note); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.limiter.Record(ctx, scope, requesterID, ticket.ID, now)
	s.metrics.TicketCreated(string(scope.BusinessModel), string(ticket.Priority))
	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("number", ticket.Number),
		zap.String("business_model", string(scope.BusinessModel)),
		zap.String("tenant_id", scope.TenantID),
		zap.Bool("auto_assigned", assigned != nil))

	s.publishEvent(ctx, newEvent(events.EventTicketCreated, ticket, events.ActorFrom(actor), now, events.TicketCreatedPayload{
		Number:               ticket.Number,
		Subject:              ticket.Subject,
		Category:             ticket.Category,
		Priority:             ticket.Priority,
		AutoAssigned:         assigned != nil,
		OutsideBusinessHours: outsideHours,
	}))
	if assigned != nil {
		s.publishEvent(ctx, newEvent(events.EventTicketAssigned, ticket, events.SystemActor, now, events.TicketAssignedPayload{
			AgentID:   assigned.ID,
			Automatic: true,
		}))
	}
	return s.hydrate(ctx, ticket, true)
}

// UpdateTicket applies a partial update. Status changes follow the transition
// table and priority changes recompute the SLA from the original creation time.
func (s *TicketService) UpdateTicket(ctx context.Context, actor domain.Actor, ticketID string, input UpdateTicketInput) (*TicketDetails, error) {
	if !actor.IsStaff() && (input.Priority != nil || input.Category != nil || input.VendorID != nil) {
		return nil, apperrors.NewUnauthorizedAccess("only support staff may change priority, category or vendor")
	}

	var (
		ticket                 *domain.Ticket
		oldStatus              domain.TicketStatus
		oldPriority            domain.TicketPriority
		statusChanged, prioChg bool
		changed                []string
		record                 *domain.SLARecord
	)
	now := s.nowFn()
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = s.loadForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		if err := s.authorize(actor, ticket); err != nil {
			return err
		}
		oldStatus, oldPriority = ticket.Status, ticket.Priority

		if input.Subject != nil {
			subject := strings.TrimSpace(*input.Subject)
			if subject == "" {
				return apperrors.NewValidationError("subject must not be empty", nil)
			}
			if subject != ticket.Subject {
				ticket.Subject = subject
				changed = append(changed, "subject")
			}
		}
		if input.Description != nil && strings.TrimSpace(*input.Description) != ticket.Description {
			ticket.Description = strings.TrimSpace(*input.Description)
			changed = append(changed, "description")
		}
		if input.Category != nil && *input.Category != ticket.Category {
			if !input.Category.Valid() {
				return apperrors.NewValidationError("unknown category", map[string]any{"category": *input.Category})
			}
			ticket.Category = *input.Category
			changed = append(changed, "category")
		}
		if input.VendorID != nil {
			ticket.VendorID = input.VendorID
			changed = append(changed, "vendor_id")
		}
		if input.Metadata != nil {
			if ticket.Metadata == nil {
				ticket.Metadata = map[string]any{}
			}
			for k, v := range input.Metadata {
				ticket.Metadata[k] = v
			}
			changed = append(changed, "metadata")
		}

		if input.Status != nil && *input.Status != ticket.Status {
			next := *input.Status
			if !actor.IsStaff() && !customerMayMove(ticket.Status, next) {
				return apperrors.NewUnauthorizedAccess("customers may only close or reopen their tickets")
			}
			if !domain.CanTransition(ticket.Status, next) {
				return apperrors.NewInvalidStatusTransition(string(ticket.Status), string(next))
			}
			applyStatus(ticket, next, now)
			statusChanged = true
			changed = append(changed, "status")
		}
		if input.Priority != nil && *input.Priority != ticket.Priority {
			if !input.Priority.Valid() {
				return apperrors.NewValidationError("unknown priority", map[string]any{"priority": *input.Priority})
			}
			ticket.Priority = *input.Priority
			prioChg = true
			changed = append(changed, "priority")
		}
		if len(changed) == 0 {
			return nil
		}
		ticket.UpdatedAt = now

		if statusChanged || prioChg {
			record, err = s.sla.GetByTicketIDForUpdate(ctx, ticket.ID)
			if err != nil {
				return err
			}
			if prioChg {
				cfg, err := s.resolver.Resolve(ctx, ticket.Scope)
				if err != nil {
					return err
				}
				if err := RecomputeSLA(record, ticket, cfg.SLAMinutes, now); err != nil {
					return err
				}
			} else {
				EvaluateSLA(record, ticket, now)
				record.UpdatedAt = now
			}
			if err := s.sla.Update(ctx, record); err != nil {
				return err
			}
		}

		if err := s.tickets.Update(ctx, ticket); err != nil {
			return err
		}
		if statusChanged {
			if err := s.recordHistory(ctx, actor.ID, ticket.ID, domain.ChangeTypeStatus,
				map[string]any{"status": oldStatus}, map[string]any{"status": ticket.Status}, now); err != nil {
				return err
			}
		}
		if prioChg {
			if err := s.recordHistory(ctx, actor.ID, ticket.ID, domain.ChangeTypePriority,
				map[string]any{"priority": oldPriority}, map[string]any{"priority": ticket.Priority}, now); err != nil {
				return err
			}
		}
		if len(changed) > boolCount(statusChanged, prioChg) {
			return s.recordHistory(ctx, actor.ID, ticket.ID, domain.ChangeTypeDetails, nil,
				map[string]any{"fields": changed}, now)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if len(changed) > 0 {
		eventActor := events.ActorFrom(actor)
		if statusChanged {
			s.metrics.TicketTransition(string(oldStatus), string(ticket.Status))
			s.publishEvent(ctx, newEvent(events.EventTicketStatusChanged, ticket, eventActor, now, events.TicketStatusChangedPayload{
				OldStatus: oldStatus,
				NewStatus: ticket.Status,
			}))
		}
		if prioChg {
			s.publishEvent(ctx, newEvent(events.EventTicketPriorityChanged, ticket, eventActor, now, events.TicketPriorityChangedPayload{
				OldPriority:      oldPriority,
				NewPriority:      ticket.Priority,
				FirstResponseDue: record.FirstResponseDue,
				ResolutionDue:    record.ResolutionDue,
			}))
		}
		s.publishEvent(ctx, newEvent(events.EventTicketUpdated, ticket, eventActor, now, events.TicketUpdatedPayload{Changed: changed}))
	}
	return s.hydrate(ctx, ticket, actor.IsStaff())
}

// GetTicket returns a hydrated ticket visible to actor. Internal notes are
// only returned to staff.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*TicketDetails, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, ticket); err != nil {
		return nil, err
	}
	return s.hydrate(ctx, ticket, actor.IsStaff())
}

// ListTickets returns tickets in the actor's scope. Customers only see their own.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, input ListTicketsInput) (*TicketPage, error) {
	page := input.Page
	if page < 1 {
		page = 1
	}
	size := input.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	filter := repository.TicketFilter{
		Scope:      actor.Scope,
		AssigneeID: input.AssigneeID,
		Unassigned: input.Unassigned,
		Statuses:   input.Statuses,
		Priorities: input.Priorities,
		Categories: input.Categories,
		SearchTerm: input.Search,
		Sort:       input.Sort,
		Limit:      size,
		Offset:     (page - 1) * size,
	}
	if !actor.IsStaff() {
		requester := actor.ID
		filter.RequesterID = &requester
	}

	items, total, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &TicketPage{Items: items, Total: total, Page: page, PageSize: size}, nil
}

// AddMessage records a reply. The first public reply by the assigned agent
// stamps firstResponseAt and settles the first-response SLA inside the same
// transaction, under the ticket row lock.
func (s *TicketService) AddMessage(ctx context.Context, actor domain.Actor, ticketID string, input AddMessageInput) (*domain.TicketMessage, error) {
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, apperrors.NewValidationError("message body required", nil)
	}
	if input.Internal && !actor.IsStaff() {
		return nil, apperrors.NewUnauthorizedAccess("only staff may add internal notes")
	}

	var (
		ticket        *domain.Ticket
		msg           *domain.TicketMessage
		firstResponse bool
		reopened      bool
	)
	now := s.nowFn()
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = s.loadForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		if err := s.authorize(actor, ticket); err != nil {
			return err
		}
		if ticket.Status == domain.TicketStatusClosed {
			return apperrors.NewValidationError("ticket is closed", map[string]any{"ticket_id": ticket.ID})
		}

		authorID := actor.ID
		msg = &domain.TicketMessage{
			ID:         uuid.NewString(),
			TicketID:   ticket.ID,
			AuthorType: domain.AuthorTypeRequester,
			AuthorID:   &authorID,
			Internal:   input.Internal,
			Body:       body,
			CreatedAt:  now,
		}
		if actor.IsStaff() {
			msg.AuthorType = domain.AuthorTypeAgent
		}
		if err := s.messages.Create(ctx, msg); err != nil {
			return err
		}
		for _, in := range input.Attachments {
			ref := newAttachment(ticket.ID, &msg.ID, in, now)
			if err := s.attachments.Create(ctx, ref); err != nil {
				return err
			}
			msg.Attachments = append(msg.Attachments, *ref)
		}

		if actor.IsStaff() && !input.Internal {
			ticket.LastResponseAt = &now
			if ticket.FirstResponseAt == nil && ticket.IsAssignedTo(actor.ID) {
				record, err := s.sla.GetByTicketIDForUpdate(ctx, ticket.ID)
				if err != nil {
					return err
				}
				ticket.FirstResponseAt = &now
				EvaluateSLA(record, ticket, now)
				record.UpdatedAt = now
				if err := s.sla.Update(ctx, record); err != nil {
					return err
				}
				firstResponse = true
			}
		}
		if !actor.IsStaff() && actor.ID == ticket.RequesterID && ticket.Status == domain.TicketStatusPendingUser {
			applyStatus(ticket, domain.TicketStatusInProgress, now)
			reopened = true
			if err := s.recordHistory(ctx, actor.ID, ticket.ID, domain.ChangeTypeStatus,
				map[string]any{"status": domain.TicketStatusPendingUser},
				map[string]any{"status": domain.TicketStatusInProgress, "reason": "requester replied"}, now); err != nil {
				return err
			}
		}
		ticket.UpdatedAt = now
		return s.tickets.Update(ctx, ticket)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	eventActor := events.ActorFrom(actor)
	s.publishEvent(ctx, newEvent(events.EventTicketMessageAdded, ticket, eventActor, now, events.TicketMessageAddedPayload{
		MessageID:     msg.ID,
		AuthorType:    msg.AuthorType,
		AuthorID:      msg.AuthorID,
		Internal:      msg.Internal,
		BodyPreview:   stringPreview(body, previewLength),
		FirstResponse: firstResponse,
	}))
	if reopened {
		s.metrics.TicketTransition(string(domain.TicketStatusPendingUser), string(domain.TicketStatusInProgress))
		s.publishEvent(ctx, newEvent(events.EventTicketStatusChanged, ticket, eventActor, now, events.TicketStatusChangedPayload{
			OldStatus: domain.TicketStatusPendingUser,
			NewStatus: domain.TicketStatusInProgress,
		}))
	}
	return msg, nil
}

// SubmitSatisfaction stores the owner's one rating of a resolved or closed
// ticket and folds it into the assignee's rolling rating.
func (s *TicketService) SubmitSatisfaction(ctx context.Context, actor domain.Actor, ticketID string, rating int, comment string) (*domain.Ticket, error) {
	if rating < 1 || rating > 5 {
		return nil, apperrors.NewValidationError("rating must be between 1 and 5", map[string]any{"rating": rating})
	}
	var ticket *domain.Ticket
	now := s.nowFn()
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = s.loadForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket.RequesterID != actor.ID || ticket.Scope != actor.Scope {
			return apperrors.NewUnauthorizedAccess("only the ticket owner may rate it")
		}
		if !ticket.IsFinished() {
			return apperrors.NewValidationError("ticket must be resolved or closed before rating",
				map[string]any{"status": ticket.Status})
		}
		if ticket.Satisfaction != nil {
			return apperrors.NewSatisfactionAlreadySubmitted(ticket.ID)
		}
		ticket.Satisfaction = &domain.SatisfactionRating{
			Rating:      rating,
			Comment:     strings.TrimSpace(comment),
			SubmittedAt: now,
		}
		ticket.UpdatedAt = now
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return err
		}
		if ticket.AssignedAgentID != nil {
			if err := s.foldAgentRating(ctx, *ticket.AssignedAgentID, rating, now); err != nil {
				return err
			}
		}
		return s.recordHistory(ctx, actor.ID, ticket.ID, domain.ChangeTypeSatisfaction, nil,
			map[string]any{"rating": rating}, now)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, newEvent(events.EventSatisfactionSubmitted, ticket, events.ActorFrom(actor), now,
		events.SatisfactionSubmittedPayload{Rating: rating}))
	return ticket, nil
}

// DeleteTicket soft-closes a ticket. Only statuses that may move to CLOSED
// through the transition table qualify.
func (s *TicketService) DeleteTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	if actor.Role != domain.RoleSupervisor && actor.Role != domain.RolePlatformAdmin {
		return nil, apperrors.NewUnauthorizedAccess("only supervisors or platform admins may delete tickets")
	}
	var (
		ticket    *domain.Ticket
		oldStatus domain.TicketStatus
	)
	now := s.nowFn()
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = s.loadForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		if err := s.authorize(actor, ticket); err != nil {
			return err
		}
		if !domain.CanTransition(ticket.Status, domain.TicketStatusClosed) {
			return apperrors.NewInvalidStatusTransition(string(ticket.Status), string(domain.TicketStatusClosed))
		}
		oldStatus = ticket.Status
		applyStatus(ticket, domain.TicketStatusClosed, now)
		ticket.UpdatedAt = now
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return err
		}
		return s.recordHistory(ctx, actor.ID, ticket.ID, domain.ChangeTypeStatus,
			map[string]any{"status": oldStatus}, map[string]any{"status": ticket.Status, "reason": "deleted"}, now)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.metrics.TicketTransition(string(oldStatus), string(domain.TicketStatusClosed))
	s.publishEvent(ctx, newEvent(events.EventTicketStatusChanged, ticket, events.ActorFrom(actor), now, events.TicketStatusChangedPayload{
		OldStatus: oldStatus,
		NewStatus: ticket.Status,
	}))
	return ticket, nil
}

// applyStatus moves the ticket and maintains the resolved/closed timestamps.
func applyStatus(ticket *domain.Ticket, next domain.TicketStatus, now time.Time) {
	prev := ticket.Status
	ticket.Status = next
	switch next {
	case domain.TicketStatusResolved:
		ticket.ResolvedAt = &now
	case domain.TicketStatusClosed:
		ticket.ClosedAt = &now
	case domain.TicketStatusOpen:
		if prev == domain.TicketStatusResolved {
			ticket.ResolvedAt = nil
		}
	}
}

// customerMayMove limits requesters to closing or reopening their own tickets.
func customerMayMove(from, to domain.TicketStatus) bool {
	switch to {
	case domain.TicketStatusClosed:
		return true
	case domain.TicketStatusOpen:
		return from == domain.TicketStatusResolved
	}
	return false
}

func (s *TicketService) foldAgentRating(ctx context.Context, agentID string, rating int, now time.Time) error {
	agent, err := s.agents.GetByID(ctx, agentID)
	if errors.Is(err, pgx.ErrNoRows) {
		s.logger.Warn("rated ticket references unknown agent", zap.String("agent_id", agentID))
		return nil
	}
	if err != nil {
		return err
	}
	total := agent.SatisfactionRating*float64(agent.RatingCount) + float64(rating)
	agent.RatingCount++
	agent.SatisfactionRating = total / float64(agent.RatingCount)
	agent.UpdatedAt = now
	return s.agents.Update(ctx, agent)
}

func (s *TicketService) requesterFor(actor domain.Actor, scope domain.Scope, onBehalf *string) (string, error) {
	if scope.BusinessModel == "" || scope.TenantID == "" {
		return "", apperrors.NewValidationError("business model and tenant are required", nil)
	}
	if !actor.IsStaff() {
		if actor.Scope != scope {
			return "", apperrors.NewUnauthorizedAccess("customers may only file tickets in their own tenant")
		}
		return actor.ID, nil
	}
	if !staffInScope(actor, scope) {
		return "", apperrors.NewUnauthorizedAccess("staff member is outside the ticket scope")
	}
	if onBehalf != nil && strings.TrimSpace(*onBehalf) != "" {
		return strings.TrimSpace(*onBehalf), nil
	}
	return actor.ID, nil
}

func normalizeCreateInput(input *CreateTicketInput) error {
	input.Subject = strings.TrimSpace(input.Subject)
	input.Description = strings.TrimSpace(input.Description)
	if input.Subject == "" {
		return apperrors.NewValidationError("subject required", nil)
	}
	if input.Category == "" {
		input.Category = domain.TicketCategoryGeneral
	}
	if !input.Category.Valid() {
		return apperrors.NewValidationError("unknown category", map[string]any{"category": input.Category})
	}
	if input.Priority == "" {
		input.Priority = domain.TicketPriorityMedium
	}
	if !input.Priority.Valid() {
		return apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
	}
	return nil
}

// authorize enforces tenant isolation and ticket ownership.
func (s *TicketService) authorize(actor domain.Actor, ticket *domain.Ticket) error {
	if actor.IsStaff() {
		if staffInScope(actor, ticket.Scope) {
			return nil
		}
		return apperrors.NewUnauthorizedAccess("ticket belongs to another tenant")
	}
	if actor.ID == ticket.RequesterID && actor.Scope == ticket.Scope {
		return nil
	}
	return apperrors.NewUnauthorizedAccess("ticket belongs to another requester")
}

// staffInScope matches staff against a ticket scope. An empty business model
// or tenant on a platform admin acts as a wildcard.
func staffInScope(actor domain.Actor, scope domain.Scope) bool {
	wildcard := actor.Role == domain.RolePlatformAdmin
	if actor.Scope.BusinessModel != scope.BusinessModel && !(wildcard && actor.Scope.BusinessModel == "") {
		return false
	}
	return actor.Scope.TenantID == scope.TenantID || (wildcard && actor.Scope.TenantID == "")
}

func (s *TicketService) load(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewTicketNotFound(id)
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *TicketService) loadForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByIDForUpdate(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewTicketNotFound(id)
	}
	return ticket, err
}

func (s *TicketService) hydrate(ctx context.Context, ticket *domain.Ticket, includeInternal bool) (*TicketDetails, error) {
	details := &TicketDetails{Ticket: *ticket}
	record, err := s.sla.GetByTicketID(ctx, ticket.ID)
	switch {
	case err == nil:
		details.SLA = record
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, apperrors.MapError(err)
	}
	if details.Messages, err = s.messages.ListByTicket(ctx, ticket.ID, includeInternal); err != nil {
		return nil, apperrors.MapError(err)
	}
	attachments, err := s.attachments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	byMessage := map[string][]domain.AttachmentReference{}
	for _, a := range attachments {
		if a.MessageID == nil {
			details.Attachments = append(details.Attachments, a)
			continue
		}
		byMessage[*a.MessageID] = append(byMessage[*a.MessageID], a)
	}
	for i := range details.Messages {
		details.Messages[i].Attachments = byMessage[details.Messages[i].ID]
	}
	if includeInternal {
		if details.History, err = s.history.ListByTicket(ctx, ticket.ID); err != nil {
			return nil, apperrors.MapError(err)
		}
	}
	return details, nil
}

func (s *TicketService) recordHistory(ctx context.Context, actorID, ticketID string, change domain.TicketChangeType, oldValue, newValue map[string]any, at time.Time) error {
	entry := &domain.TicketHistory{
		ID:         uuid.NewString(),
		TicketID:   ticketID,
		ChangeType: change,
		OldValue:   oldValue,
		NewValue:   newValue,
		CreatedAt:  at,
	}
	if actorID != "" {
		entry.ChangedByID = &actorID
	}
	return s.history.Create(ctx, entry)
}

func newAttachment(ticketID string, messageID *string, in AttachmentInput, at time.Time) *domain.AttachmentReference {
	return &domain.AttachmentReference{
		ID:         uuid.NewString(),
		TicketID:   ticketID,
		MessageID:  messageID,
		StorageKey: in.StorageKey,
		FileName:   in.FileName,
		MimeType:   in.MimeType,
		SizeBytes:  in.SizeBytes,
		CreatedAt:  at,
	}
}

func newEvent(eventType events.EventType, ticket *domain.Ticket, actor events.Actor, at time.Time, payload any) events.Event {
	return events.Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		TicketID:    ticket.ID,
		Scope:       ticket.Scope,
		RequesterID: ticket.RequesterID,
		AssigneeID:  ticket.AssignedAgentID,
		Actor:       actor,
		Timestamp:   at,
		Payload:     payload,
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.nowFn()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func stringPreview(body string, max int) string {
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	return string(runes[:max]) + "…"
}

func boolCount(values ...bool) int {
	n := 0
	for _, v := range values {
		if v {
			n++
		}
	}
	return n
}
