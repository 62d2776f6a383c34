package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// AssignmentEngine picks the least-loaded eligible agent for a ticket.
type AssignmentEngine struct {
	tickets repository.TicketRepository
	agents  repository.AgentRepository
	logger  *zap.Logger
}

// NewAssignmentEngine creates the engine.
func NewAssignmentEngine(tickets repository.TicketRepository, agents repository.AgentRepository, logger *zap.Logger) *AssignmentEngine {
	return &AssignmentEngine{tickets: tickets, agents: agents, logger: logger}
}

// FindBestAgent returns the active, available, in-scope agent skilled for
// category that has the fewest open tickets, or nil when nobody qualifies.
// Agents already at capacity are skipped. Ties go to the lowest agent id.
func (e *AssignmentEngine) FindBestAgent(ctx context.Context, category domain.TicketCategory, scope domain.Scope) (*domain.AgentProfile, error) {
	candidates, err := e.candidates(ctx, scope, nil)
	if err != nil {
		return nil, err
	}
	skilled := candidates[:0]
	for _, agent := range candidates {
		if agent.HasSkill(category) {
			skilled = append(skilled, agent)
		}
	}
	agent, _, err := e.leastLoaded(ctx, skilled, true, nil)
	return agent, err
}

// OpenTicketCount returns the current workload of one agent.
func (e *AssignmentEngine) OpenTicketCount(ctx context.Context, agentID string) (int, error) {
	counts, err := e.tickets.CountOpenByAgents(ctx, []string{agentID})
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return counts[agentID], nil
}

// candidates lists eligible agents of scope, optionally restricted to role.
func (e *AssignmentEngine) candidates(ctx context.Context, scope domain.Scope, role *domain.Role) ([]domain.AgentProfile, error) {
	model := scope.BusinessModel
	tenant := scope.TenantID
	agents, err := e.agents.List(ctx, repository.AgentFilter{
		BusinessModel: &model,
		TenantID:      &tenant,
		Role:          role,
		ActiveOnly:    true,
		AvailableOnly: true,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	eligible := agents[:0]
	for _, agent := range agents {
		if agent.Eligible(scope) {
			eligible = append(eligible, agent)
		}
	}
	return eligible, nil
}

// leastLoaded picks the agent with the fewest open tickets. exclude drops one
// agent id from consideration.
func (e *AssignmentEngine) leastLoaded(ctx context.Context, agents []domain.AgentProfile, respectCapacity bool, exclude *string) (*domain.AgentProfile, int, error) {
	if len(agents) == 0 {
		return nil, 0, nil
	}
	ids := make([]string, 0, len(agents))
	for _, agent := range agents {
		ids = append(ids, agent.ID)
	}
	counts, err := e.tickets.CountOpenByAgents(ctx, ids)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}

	var (
		best     *domain.AgentProfile
		bestLoad int
	)
	for i := range agents {
		agent := &agents[i]
		if exclude != nil && agent.ID == *exclude {
			continue
		}
		load := counts[agent.ID]
		if respectCapacity && agent.MaxConcurrentTickets > 0 && load >= agent.MaxConcurrentTickets {
			continue
		}
		if best == nil || load < bestLoad || (load == bestLoad && agent.ID < best.ID) {
			best, bestLoad = agent, load
		}
	}
	if best == nil {
		return nil, 0, nil
	}
	picked := *best
	return &picked, bestLoad, nil
}
