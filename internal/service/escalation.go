package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
)

// EscalationEngine walks the ordered role hierarchy of a business model.
type EscalationEngine struct {
	assignment *AssignmentEngine
	logger     *zap.Logger
}

// NewEscalationEngine creates the engine on top of the assignment engine's
// candidate and workload lookups.
func NewEscalationEngine(assignment *AssignmentEngine, logger *zap.Logger) *EscalationEngine {
	return &EscalationEngine{assignment: assignment, logger: logger}
}

// FindEscalationTarget returns the least-loaded available agent of the first
// role in roles that has one, skipping exclude. It returns nil when every role
// is exhausted.
func (e *EscalationEngine) FindEscalationTarget(ctx context.Context, scope domain.Scope, roles []domain.Role, exclude *string) (*domain.AgentProfile, domain.Role, error) {
	for _, role := range roles {
		role := role
		agents, err := e.assignment.candidates(ctx, scope, &role)
		if err != nil {
			return nil, "", err
		}
		agent, _, err := e.assignment.leastLoaded(ctx, agents, false, exclude)
		if err != nil {
			return nil, "", err
		}
		if agent != nil {
			return agent, role, nil
		}
		e.logger.Debug("no escalation target for role",
			zap.String("business_model", string(scope.BusinessModel)),
			zap.String("tenant_id", scope.TenantID),
			zap.String("role", string(role)))
	}
	return nil, "", nil
}
