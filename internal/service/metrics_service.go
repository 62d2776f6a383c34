package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// MetricsProvider computes flat metric snapshots for one scope.
type MetricsProvider interface {
	Overview(ctx context.Context, scope domain.Scope, window time.Duration) (domain.MetricSet, error)
	SLAMetrics(ctx context.Context, scope domain.Scope, window time.Duration) (domain.MetricSet, error)
	AgentPerformance(ctx context.Context, scope domain.Scope, window time.Duration) (domain.MetricSet, error)
	LiveMetrics(ctx context.Context, scope domain.Scope) (domain.MetricSet, error)
}

// MetricsService aggregates metrics straight from the repositories.
type MetricsService struct {
	tickets repository.TicketRepository
	sla     repository.SLARepository
	agents  repository.AgentRepository
	nowFn   func() time.Time
}

// NewMetricsService creates the aggregator.
func NewMetricsService(repos *repository.Repositories) *MetricsService {
	return &MetricsService{tickets: repos.Tickets, sla: repos.SLA, agents: repos.Agents, nowFn: time.Now}
}

// Overview summarises tickets created inside the window.
func (m *MetricsService) Overview(ctx context.Context, scope domain.Scope, window time.Duration) (domain.MetricSet, error) {
	tickets, err := m.createdSince(ctx, scope, m.nowFn().Add(-window))
	if err != nil {
		return nil, err
	}
	var (
		open, resolved            int
		firstSum, resolutionSum   float64
		firstCount, resolvedCount int
		ratingSum                 float64
		ratingCount               int
	)
	for i := range tickets {
		t := &tickets[i]
		if t.IsFinished() {
			resolved++
		} else {
			open++
		}
		if t.FirstResponseAt != nil {
			firstSum += t.FirstResponseAt.Sub(t.CreatedAt).Minutes()
			firstCount++
		}
		if t.ResolvedAt != nil {
			resolutionSum += t.ResolvedAt.Sub(t.CreatedAt).Minutes()
			resolvedCount++
		}
		if t.Satisfaction != nil {
			ratingSum += float64(t.Satisfaction.Rating)
			ratingCount++
		}
	}
	hours := window.Hours()
	perHour := 0.0
	if hours > 0 {
		perHour = float64(len(tickets)) / hours
	}
	return domain.MetricSet{
		domain.MetricTotalTickets:            float64(len(tickets)),
		domain.MetricOpenTickets:             float64(open),
		domain.MetricResolvedTickets:         float64(resolved),
		domain.MetricTicketsPerHour:          perHour,
		domain.MetricAvgFirstResponseMinutes: mean(firstSum, firstCount),
		domain.MetricAvgResolutionMinutes:    mean(resolutionSum, resolvedCount),
		domain.MetricSatisfactionAverage:     mean(ratingSum, ratingCount),
	}, nil
}

// SLAMetrics reports compliance for tickets created inside the window. Flags
// are re-derived at call time so a lagging breach sweep does not hide breaches.
// Compliance is 100 when no ticket has settled either way.
func (m *MetricsService) SLAMetrics(ctx context.Context, scope domain.Scope, window time.Duration) (domain.MetricSet, error) {
	now := m.nowFn()
	tickets, err := m.createdSince(ctx, scope, now.Add(-window))
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Ticket, len(tickets))
	ids := make([]string, 0, len(tickets))
	for i := range tickets {
		byID[tickets[i].ID] = &tickets[i]
		ids = append(ids, tickets[i].ID)
	}
	records, err := m.sla.ListByTicketIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	var firstMet, firstBreach, resMet, resBreach, breached int
	for i := range records {
		record := records[i]
		ticket, ok := byID[record.TicketID]
		if !ok {
			continue
		}
		EvaluateSLA(&record, ticket, now)
		switch {
		case record.FirstResponseMet:
			firstMet++
		case record.FirstResponseBreach:
			firstBreach++
		}
		switch {
		case record.ResolutionMet:
			resMet++
		case record.ResolutionBreach:
			resBreach++
		}
		if record.FirstResponseBreach || record.ResolutionBreach {
			breached++
		}
	}
	return domain.MetricSet{
		domain.MetricFirstResponseCompliance: compliance(firstMet, firstBreach),
		domain.MetricResolutionCompliance:    compliance(resMet, resBreach),
		domain.MetricBreachedTickets:         float64(breached),
	}, nil
}

// AgentPerformance reports current agent load. Utilization is open tickets over
// capacity as a percentage; agents without a capacity are left out of it.
func (m *MetricsService) AgentPerformance(ctx context.Context, scope domain.Scope, _ time.Duration) (domain.MetricSet, error) {
	model := scope.BusinessModel
	tenant := scope.TenantID
	agents, err := m.agents.List(ctx, repository.AgentFilter{BusinessModel: &model, TenantID: &tenant, ActiveOnly: true})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	ids := make([]string, 0, len(agents))
	for _, a := range agents {
		ids = append(ids, a.ID)
	}
	counts, err := m.tickets.CountOpenByAgents(ctx, ids)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	var (
		available, overloaded int
		utilSum, utilMax      float64
		utilCount             int
		ratingSum             float64
		ratingCount           int
	)
	for i := range agents {
		agent := &agents[i]
		if !agent.InScope(scope) {
			continue
		}
		if agent.Available {
			available++
		}
		if agent.MaxConcurrentTickets > 0 {
			load := counts[agent.ID]
			util := float64(load) / float64(agent.MaxConcurrentTickets) * 100
			utilSum += util
			utilCount++
			if util > utilMax {
				utilMax = util
			}
			if load >= agent.MaxConcurrentTickets {
				overloaded++
			}
		}
		if agent.RatingCount > 0 {
			ratingSum += agent.SatisfactionRating
			ratingCount++
		}
	}
	return domain.MetricSet{
		domain.MetricAvailableAgents:   float64(available),
		domain.MetricOverloadedAgents:  float64(overloaded),
		domain.MetricAvgUtilization:    mean(utilSum, utilCount),
		domain.MetricMaxUtilization:    utilMax,
		domain.MetricAgentSatisfaction: mean(ratingSum, ratingCount),
	}, nil
}

// LiveMetrics is the point-in-time queue state.
func (m *MetricsService) LiveMetrics(ctx context.Context, scope domain.Scope) (domain.MetricSet, error) {
	now := m.nowFn()
	open, _, err := m.tickets.List(ctx, repository.TicketFilter{Scope: scope, Statuses: unfinishedStatuses})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	var unassigned, urgent, lastHour int
	hourAgo := now.Add(-time.Hour)
	for i := range open {
		t := &open[i]
		if t.AssignedAgentID == nil {
			unassigned++
		}
		if t.Priority == domain.TicketPriorityUrgent {
			urgent++
		}
	}
	_, lastHour, err = m.tickets.List(ctx, repository.TicketFilter{Scope: scope, CreatedFrom: &hourAgo, Limit: 1})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return domain.MetricSet{
		domain.MetricLiveOpenTickets:       float64(len(open)),
		domain.MetricLiveUnassignedTickets: float64(unassigned),
		domain.MetricLiveUrgentOpenTickets: float64(urgent),
		domain.MetricLiveTicketsLastHour:   float64(lastHour),
	}, nil
}

func (m *MetricsService) createdSince(ctx context.Context, scope domain.Scope, since time.Time) ([]domain.Ticket, error) {
	tickets, _, err := m.tickets.List(ctx, repository.TicketFilter{Scope: scope, CreatedFrom: &since})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

var unfinishedStatuses = []domain.TicketStatus{
	domain.TicketStatusOpen,
	domain.TicketStatusInProgress,
	domain.TicketStatusPendingUser,
	domain.TicketStatusPendingVendor,
	domain.TicketStatusEscalated,
}

// CollectMetrics fetches the requested sources concurrently and merges them
// into one set.
func CollectMetrics(ctx context.Context, provider MetricsProvider, scope domain.Scope, window time.Duration, sources []domain.MetricSource) (domain.MetricSet, error) {
	var (
		mu  sync.Mutex
		out = domain.MetricSet{}
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, source := range sources {
		source := source
		g.Go(func() error {
			var (
				set domain.MetricSet
				err error
			)
			switch source {
			case domain.MetricSourceOverview:
				set, err = provider.Overview(ctx, scope, window)
			case domain.MetricSourceSLA:
				set, err = provider.SLAMetrics(ctx, scope, window)
			case domain.MetricSourceAgents:
				set, err = provider.AgentPerformance(ctx, scope, window)
			case domain.MetricSourceLive:
				set, err = provider.LiveMetrics(ctx, scope)
			default:
				return fmt.Errorf("unknown metric source %q", source)
			}
			if err != nil {
				return fmt.Errorf("%s metrics: %w", source, err)
			}
			mu.Lock()
			out.Merge(set)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func compliance(met, breached int) float64 {
	if met+breached == 0 {
		return 100
	}
	return float64(met) / float64(met+breached) * 100
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
