package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

type ticketRepo struct{ s *Store }

func (r *ticketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	defer r.s.lock(ctx)()
	r.s.ticketSeq++
	ticket.Number = repository.FormatTicketNumber(r.s.ticketSeq)
	r.s.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (r *ticketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	defer r.s.lock(ctx)()
	current, ok := r.s.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	next := cloneTicket(*ticket)
	next.Number = current.Number
	next.Scope = current.Scope
	next.RequesterID = current.RequesterID
	next.CreatedAt = current.CreatedAt
	r.s.tickets[ticket.ID] = next
	return nil
}

func (r *ticketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	defer r.s.lock(ctx)()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := cloneTicket(ticket)
	return &out, nil
}

func (r *ticketRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r *ticketRepo) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	defer r.s.lock(ctx)()
	var items []domain.Ticket
	for _, ticket := range r.s.tickets {
		if matchTicket(ticket, filter) {
			items = append(items, cloneTicket(ticket))
		}
	}
	sort.Slice(items, ticketLess(items, filter.Sort))

	total := len(items)
	if filter.Offset > 0 {
		if filter.Offset >= len(items) {
			return []domain.Ticket{}, total, nil
		}
		items = items[filter.Offset:]
	}
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items, total, nil
}

func (r *ticketRepo) CountByRequesterSince(ctx context.Context, requesterID string, scope domain.Scope, since time.Time) (int, error) {
	defer r.s.lock(ctx)()
	count := 0
	for _, ticket := range r.s.tickets {
		if ticket.RequesterID == requesterID && ticket.Scope == scope && !ticket.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *ticketRepo) CountOpenByAgents(ctx context.Context, agentIDs []string) (map[string]int, error) {
	defer r.s.lock(ctx)()
	counts := make(map[string]int, len(agentIDs))
	for _, ticket := range r.s.tickets {
		if ticket.AssignedAgentID == nil || !ticket.CountsAsWorkload() {
			continue
		}
		if slices.Contains(agentIDs, *ticket.AssignedAgentID) {
			counts[*ticket.AssignedAgentID]++
		}
	}
	return counts, nil
}

func matchTicket(ticket domain.Ticket, f repository.TicketFilter) bool {
	if f.Scope.BusinessModel != "" && ticket.Scope.BusinessModel != f.Scope.BusinessModel {
		return false
	}
	if f.Scope.TenantID != "" && ticket.Scope.TenantID != f.Scope.TenantID {
		return false
	}
	if f.RequesterID != nil && ticket.RequesterID != *f.RequesterID {
		return false
	}
	if f.AssigneeID != nil && !ticket.IsAssignedTo(*f.AssigneeID) {
		return false
	}
	if f.Unassigned && ticket.AssignedAgentID != nil {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, ticket.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !slices.Contains(f.Priorities, ticket.Priority) {
		return false
	}
	if len(f.Categories) > 0 && !slices.Contains(f.Categories, ticket.Category) {
		return false
	}
	if f.SearchTerm != nil && *f.SearchTerm != "" {
		term := strings.ToLower(*f.SearchTerm)
		haystack := strings.ToLower(ticket.Subject + " " + ticket.Description + " " + ticket.Number)
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	if f.CreatedFrom != nil && ticket.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && ticket.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	return true
}

func ticketLess(items []domain.Ticket, order repository.TicketSort) func(i, j int) bool {
	return func(i, j int) bool {
		a, b := items[i], items[j]
		switch order {
		case repository.SortCreatedAsc:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		case repository.SortUpdatedDesc:
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.After(b.UpdatedAt)
			}
		case repository.SortPriorityDesc:
			if a.Priority.Rank() != b.Priority.Rank() {
				return a.Priority.Rank() > b.Priority.Rank()
			}
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	}
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	t.Metadata = maps.Clone(t.Metadata)
	t.Escalations = slices.Clone(t.Escalations)
	if t.Satisfaction != nil {
		s := *t.Satisfaction
		t.Satisfaction = &s
	}
	t.AssignedAgentID = clonePtr(t.AssignedAgentID)
	t.VendorID = clonePtr(t.VendorID)
	t.OrderID = clonePtr(t.OrderID)
	t.ProductID = clonePtr(t.ProductID)
	t.FirstResponseAt = clonePtr(t.FirstResponseAt)
	t.LastResponseAt = clonePtr(t.LastResponseAt)
	t.ResolvedAt = clonePtr(t.ResolvedAt)
	t.ClosedAt = clonePtr(t.ClosedAt)
	return t
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
