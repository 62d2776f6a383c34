package memory

import (
	"context"
	"slices"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

type slaRepo struct{ s *Store }

func (r *slaRepo) Create(ctx context.Context, record *domain.SLARecord) error {
	defer r.s.lock(ctx)()
	r.s.sla[record.TicketID] = *record
	return nil
}

func (r *slaRepo) Update(ctx context.Context, record *domain.SLARecord) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.sla[record.TicketID]; !ok {
		return pgx.ErrNoRows
	}
	r.s.sla[record.TicketID] = *record
	return nil
}

func (r *slaRepo) GetByTicketID(ctx context.Context, ticketID string) (*domain.SLARecord, error) {
	defer r.s.lock(ctx)()
	record, ok := r.s.sla[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &record, nil
}

func (r *slaRepo) GetByTicketIDForUpdate(ctx context.Context, ticketID string) (*domain.SLARecord, error) {
	return r.GetByTicketID(ctx, ticketID)
}

func (r *slaRepo) ListByTicketIDs(ctx context.Context, ticketIDs []string) ([]domain.SLARecord, error) {
	defer r.s.lock(ctx)()
	var out []domain.SLARecord
	for _, id := range ticketIDs {
		if record, ok := r.s.sla[id]; ok {
			out = append(out, record)
		}
	}
	return out, nil
}

func (r *slaRepo) ListOpen(ctx context.Context) ([]domain.SLARecord, error) {
	defer r.s.lock(ctx)()
	var out []domain.SLARecord
	for id, record := range r.s.sla {
		if ticket, ok := r.s.tickets[id]; ok && !ticket.IsFinished() {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketID < out[j].TicketID })
	return out, nil
}

type agentRepo struct{ s *Store }

func (r *agentRepo) Create(ctx context.Context, agent *domain.AgentProfile) error {
	defer r.s.lock(ctx)()
	r.s.agents[agent.ID] = cloneAgent(*agent)
	return nil
}

func (r *agentRepo) Update(ctx context.Context, agent *domain.AgentProfile) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.agents[agent.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.s.agents[agent.ID] = cloneAgent(*agent)
	return nil
}

func (r *agentRepo) GetByID(ctx context.Context, id string) (*domain.AgentProfile, error) {
	defer r.s.lock(ctx)()
	agent, ok := r.s.agents[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := cloneAgent(agent)
	return &out, nil
}

func (r *agentRepo) List(ctx context.Context, filter repository.AgentFilter) ([]domain.AgentProfile, error) {
	defer r.s.lock(ctx)()
	var out []domain.AgentProfile
	for _, agent := range r.s.agents {
		if filter.BusinessModel != nil && agent.BusinessModel != *filter.BusinessModel {
			continue
		}
		if filter.TenantID != nil && agent.TenantID != nil && *agent.TenantID != *filter.TenantID {
			continue
		}
		if filter.Role != nil && agent.Role != *filter.Role {
			continue
		}
		if filter.ActiveOnly && !agent.Active {
			continue
		}
		if filter.AvailableOnly && !agent.Available {
			continue
		}
		out = append(out, cloneAgent(agent))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func cloneAgent(a domain.AgentProfile) domain.AgentProfile {
	a.Skills = slices.Clone(a.Skills)
	a.TenantID = clonePtr(a.TenantID)
	return a
}

type messageRepo struct{ s *Store }

func (r *messageRepo) Create(ctx context.Context, msg *domain.TicketMessage) error {
	defer r.s.lock(ctx)()
	stored := *msg
	stored.Attachments = nil
	r.s.messages[msg.TicketID] = append(slices.Clone(r.s.messages[msg.TicketID]), stored)
	return nil
}

func (r *messageRepo) ListByTicket(ctx context.Context, ticketID string, includeInternal bool) ([]domain.TicketMessage, error) {
	defer r.s.lock(ctx)()
	var out []domain.TicketMessage
	for _, msg := range r.s.messages[ticketID] {
		if msg.Internal && !includeInternal {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

type attachmentRepo struct{ s *Store }

func (r *attachmentRepo) Create(ctx context.Context, attachment *domain.AttachmentReference) error {
	defer r.s.lock(ctx)()
	r.s.attachments[attachment.TicketID] = append(slices.Clone(r.s.attachments[attachment.TicketID]), *attachment)
	return nil
}

func (r *attachmentRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.AttachmentReference, error) {
	defer r.s.lock(ctx)()
	return slices.Clone(r.s.attachments[ticketID]), nil
}

type historyRepo struct{ s *Store }

func (r *historyRepo) Create(ctx context.Context, history *domain.TicketHistory) error {
	defer r.s.lock(ctx)()
	r.s.history[history.TicketID] = append(slices.Clone(r.s.history[history.TicketID]), *history)
	return nil
}

func (r *historyRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	defer r.s.lock(ctx)()
	return slices.Clone(r.s.history[ticketID]), nil
}
