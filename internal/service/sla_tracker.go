package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// ScheduleSLA builds the SLA record of a new ticket. Both due times are
// anchored to ticket.CreatedAt.
func ScheduleSLA(ticket *domain.Ticket, minutes domain.SLAMinutes) (*domain.SLARecord, error) {
	record := &domain.SLARecord{TicketID: ticket.ID}
	if err := applyWindows(record, ticket, minutes); err != nil {
		return nil, err
	}
	EvaluateSLA(record, ticket, ticket.CreatedAt)
	record.UpdatedAt = ticket.CreatedAt
	return record, nil
}

// RecomputeSLA re-derives due times for the ticket's current priority from the
// original creation time, then re-evaluates flags at now.
func RecomputeSLA(record *domain.SLARecord, ticket *domain.Ticket, minutes domain.SLAMinutes, now time.Time) error {
	if err := applyWindows(record, ticket, minutes); err != nil {
		return err
	}
	EvaluateSLA(record, ticket, now)
	record.UpdatedAt = now
	return nil
}

func applyWindows(record *domain.SLARecord, ticket *domain.Ticket, minutes domain.SLAMinutes) error {
	first, ok := minutes.For(ticket.Priority)
	if !ok {
		return apperrors.NewConfigMissing(string(ticket.Scope.BusinessModel), ticket.Scope.TenantID)
	}
	record.FirstResponseMinutes = first
	record.ResolutionMinutes = first * domain.ResolutionSLAMultiplier
	record.FirstResponseDue = ticket.CreatedAt.Add(time.Duration(record.FirstResponseMinutes) * time.Minute)
	record.ResolutionDue = ticket.CreatedAt.Add(time.Duration(record.ResolutionMinutes) * time.Minute)
	return nil
}

// EvaluateSLA derives met and breach flags and the cumulative breach minutes
// from the ticket timestamps. It reports whether anything changed.
func EvaluateSLA(record *domain.SLARecord, ticket *domain.Ticket, now time.Time) bool {
	before := *record

	resolvedAt := ticket.ResolvedAt
	if resolvedAt == nil && ticket.Status == domain.TicketStatusClosed {
		resolvedAt = ticket.ClosedAt
	}

	record.FirstResponseMet, record.FirstResponseBreach = windowOutcome(ticket.FirstResponseAt, record.FirstResponseDue, now)
	record.ResolutionMet, record.ResolutionBreach = windowOutcome(resolvedAt, record.ResolutionDue, now)
	record.BreachMinutes = overdueMinutes(ticket.FirstResponseAt, record.FirstResponseDue, now) +
		overdueMinutes(resolvedAt, record.ResolutionDue, now)

	return before.FirstResponseMet != record.FirstResponseMet ||
		before.FirstResponseBreach != record.FirstResponseBreach ||
		before.ResolutionMet != record.ResolutionMet ||
		before.ResolutionBreach != record.ResolutionBreach ||
		before.BreachMinutes != record.BreachMinutes
}

func windowOutcome(doneAt *time.Time, due, now time.Time) (met, breach bool) {
	if doneAt != nil {
		return !doneAt.After(due), doneAt.After(due)
	}
	return false, now.After(due)
}

func overdueMinutes(doneAt *time.Time, due, now time.Time) int {
	end := now
	if doneAt != nil {
		end = *doneAt
	}
	if !end.After(due) {
		return 0
	}
	return int(end.Sub(due) / time.Minute)
}

// SLATracker runs the periodic breach sweep over unfinished tickets.
type SLATracker struct {
	tx         repository.Transactor
	tickets    repository.TicketRepository
	sla        repository.SLARepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	nowFn      func() time.Time
}

// NewSLATracker creates the tracker.
func NewSLATracker(repos *repository.Repositories, dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *SLATracker {
	return &SLATracker{
		tx:         repos.Transactor,
		tickets:    repos.Tickets,
		sla:        repos.SLA,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		nowFn:      time.Now,
	}
}

// SweepBreaches re-evaluates every open SLA record and returns how many
// records newly breached. Each record is re-read under the ticket and record
// row locks, so replies and priority changes committed since the listing win.
func (t *SLATracker) SweepBreaches(ctx context.Context) (int, error) {
	open, err := t.sla.ListOpen(ctx)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	now := t.nowFn()
	breached := 0
	for i := range open {
		ticketID := open[i].TicketID
		var (
			ticket                  *domain.Ticket
			record                  *domain.SLARecord
			newFirst, newResolution bool
		)
		err := t.tx.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			if ticket, err = t.tickets.GetByIDForUpdate(ctx, ticketID); err != nil {
				return fmt.Errorf("lock ticket: %w", err)
			}
			if record, err = t.sla.GetByTicketIDForUpdate(ctx, ticketID); err != nil {
				return fmt.Errorf("lock sla record: %w", err)
			}
			wasFirst, wasResolution := record.FirstResponseBreach, record.ResolutionBreach
			if !EvaluateSLA(record, ticket, now) {
				return nil
			}
			record.UpdatedAt = now
			if err := t.sla.Update(ctx, record); err != nil {
				return fmt.Errorf("update sla record: %w", err)
			}
			newFirst = record.FirstResponseBreach && !wasFirst
			newResolution = record.ResolutionBreach && !wasResolution
			return nil
		})
		if err != nil {
			t.logger.Warn("sla sweep: record skipped", zap.String("ticket_id", ticketID), zap.Error(err))
			continue
		}
		if !newFirst && !newResolution {
			continue
		}
		breached++
		if newFirst {
			t.metrics.SLABreach("first_response")
		}
		if newResolution {
			t.metrics.SLABreach("resolution")
		}
		if t.dispatcher != nil {
			_ = t.dispatcher.Publish(ctx, newEvent(events.EventSLABreached, ticket, events.SystemActor, now, events.SLABreachedPayload{
				FirstResponseBreach: record.FirstResponseBreach,
				ResolutionBreach:    record.ResolutionBreach,
				BreachMinutes:       record.BreachMinutes,
			}))
		}
	}
	if breached > 0 {
		t.logger.Info("sla breaches flagged", zap.Int("count", breached))
	}
	return breached, nil
}
