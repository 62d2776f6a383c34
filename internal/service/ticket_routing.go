package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// AssignTicket hands a ticket to a specific agent. The agent must be eligible
// for the ticket's scope and category and below capacity. The ticket moves to
// IN_PROGRESS.
func (s *TicketService) AssignTicket(ctx context.Context, actor domain.Actor, ticketID, agentID string) (*domain.Ticket, error) {
	if !actor.IsStaff() {
		return nil, apperrors.NewUnauthorizedAccess("only support staff may assign tickets")
	}
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return nil, apperrors.NewValidationError("agent_id required", nil)
	}

	var (
		ticket    *domain.Ticket
		previous  *string
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
		oldStatus = ticket.Status
		if ticket.Status != domain.TicketStatusInProgress && !domain.CanTransition(ticket.Status, domain.TicketStatusInProgress) {
			return apperrors.NewInvalidStatusTransition(string(ticket.Status), string(domain.TicketStatusInProgress))
		}

		agent, err := s.agents.GetByID(ctx, agentID)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewAgentNotAvailable("agent not found", map[string]any{"agent_id": agentID})
		}
		if err != nil {
			return err
		}
		if !agent.Eligible(ticket.Scope) || !agent.HasSkill(ticket.Category) {
			return apperrors.NewAgentNotAvailable("agent cannot take this ticket", map[string]any{
				"agent_id": agentID,
				"category": ticket.Category,
			})
		}
		if !ticket.IsAssignedTo(agentID) {
			load, err := s.assignment.OpenTicketCount(ctx, agentID)
			if err != nil {
				return err
			}
			if agent.MaxConcurrentTickets > 0 && load >= agent.MaxConcurrentTickets {
				return apperrors.NewAgentNotAvailable("agent is at capacity", map[string]any{
					"agent_id":     agentID,
					"open_tickets": load,
					"capacity":     agent.MaxConcurrentTickets,
				})
			}
		}

		previous = ticket.AssignedAgentID
		ticket.AssignedAgentID = &agent.ID
		applyStatus(ticket, domain.TicketStatusInProgress, now)
		ticket.UpdatedAt = now
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return err
		}
		before := map[string]any{"status": oldStatus}
		if previous != nil {
			before["agent_id"] = *previous
		}
		return s.recordHistory(ctx, actor.ID, ticket.ID, domain.ChangeTypeAssignee, before,
			map[string]any{"agent_id": agent.ID, "status": ticket.Status}, now)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("ticket assigned",
		zap.String("ticket_id", ticket.ID),
		zap.String("agent_id", agentID),
		zap.String("actor_id", actor.ID))
	eventActor := events.ActorFrom(actor)
	s.publishEvent(ctx, newEvent(events.EventTicketAssigned, ticket, eventActor, now, events.TicketAssignedPayload{
		PreviousAgentID: previous,
		AgentID:         agentID,
	}))
	if oldStatus != ticket.Status {
		s.metrics.TicketTransition(string(oldStatus), string(ticket.Status))
		s.publishEvent(ctx, newEvent(events.EventTicketStatusChanged, ticket, eventActor, now, events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: ticket.Status,
		}))
	}
	return ticket, nil
}

// EscalateTicket moves a ticket up the business model's role hierarchy. The
// current assignee is never picked as the target.
func (s *TicketService) EscalateTicket(ctx context.Context, actor domain.Actor, ticketID, reason string) (*domain.Ticket, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("escalation reason required", nil)
	}

	var (
		ticket    *domain.Ticket
		record    domain.EscalationRecord
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
		cfg, err := s.resolver.Resolve(ctx, ticket.Scope)
		if err != nil {
			return err
		}
		if !cfg.EscalationEnabled {
			return apperrors.NewEscalationNotAllowed(ticket.Scope.TenantID)
		}
		if !domain.CanTransition(ticket.Status, domain.TicketStatusEscalated) {
			return apperrors.NewInvalidStatusTransition(string(ticket.Status), string(domain.TicketStatusEscalated))
		}

		target, role, err := s.escalation.FindEscalationTarget(ctx, ticket.Scope, cfg.EscalationRoles, ticket.AssignedAgentID)
		if err != nil {
			return err
		}
		if target == nil {
			return apperrors.NewAgentNotAvailable("no escalation target available", map[string]any{
				"business_model": ticket.Scope.BusinessModel,
				"tenant_id":      ticket.Scope.TenantID,
				"roles":          cfg.EscalationRoles,
			})
		}

		oldStatus = ticket.Status
		record = domain.EscalationRecord{
			EscalatedAt:     now,
			EscalatedBy:     actor.ID,
			PriorAssigneeID: ticket.AssignedAgentID,
			Reason:          reason,
			TargetRole:      role,
			TargetAgentID:   target.ID,
		}
		ticket.Escalations = append(ticket.Escalations, record)
		ticket.AssignedAgentID = &target.ID
		applyStatus(ticket, domain.TicketStatusEscalated, now)
		ticket.UpdatedAt = now
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return err
		}
		before := map[string]any{"status": oldStatus}
		if record.PriorAssigneeID != nil {
			before["agent_id"] = *record.PriorAssigneeID
		}
		return s.recordHistory(ctx, actor.ID, ticket.ID, domain.ChangeTypeEscalation, before, map[string]any{
			"status":      ticket.Status,
			"agent_id":    target.ID,
			"target_role": role,
			"reason":      reason,
		}, now)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("ticket escalated",
		zap.String("ticket_id", ticket.ID),
		zap.String("target_agent_id", record.TargetAgentID),
		zap.String("target_role", string(record.TargetRole)))
	eventActor := events.ActorFrom(actor)
	s.metrics.TicketTransition(string(oldStatus), string(ticket.Status))
	s.publishEvent(ctx, newEvent(events.EventTicketEscalated, ticket, eventActor, now, events.TicketEscalatedPayload{Record: record}))
	s.publishEvent(ctx, newEvent(events.EventTicketAssigned, ticket, eventActor, now, events.TicketAssignedPayload{
		PreviousAgentID: record.PriorAssigneeID,
		AgentID:         record.TargetAgentID,
	}))
	return ticket, nil
}
