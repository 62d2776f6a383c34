package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

func TestFindBestAgentPicksLeastLoaded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addAgent(t, "agent-a", domain.RoleAgent, acmeScope, 10, domain.TicketCategoryOrder)
	f.addAgent(t, "agent-b", domain.RoleAgent, acmeScope, 10, domain.TicketCategoryOrder)
	f.seedTickets(t, "agent-a", acmeScope, domain.TicketStatusInProgress, 5)
	f.seedTickets(t, "agent-b", acmeScope, domain.TicketStatusOpen, 2)

	agent, err := f.assignment.FindBestAgent(ctx, domain.TicketCategoryOrder, acmeScope)
	require.NoError(t, err)
	require.NotNil(t, agent)
	assert.Equal(t, "agent-b", agent.ID)
}

func TestFindBestAgentTieGoesToLowestID(t *testing.T) {
	f := newFixture(t)
	f.addAgent(t, "agent-z", domain.RoleAgent, acmeScope, 10, domain.TicketCategoryPayment)
	f.addAgent(t, "agent-m", domain.RoleAgent, acmeScope, 10, domain.TicketCategoryPayment)

	agent, err := f.assignment.FindBestAgent(context.Background(), domain.TicketCategoryPayment, acmeScope)
	require.NoError(t, err)
	require.NotNil(t, agent)
	assert.Equal(t, "agent-m", agent.ID)
}

func TestFindBestAgentFiltersCandidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addAgent(t, "wrong-skill", domain.RoleAgent, acmeScope, 10, domain.TicketCategoryTechnical)
	f.addAgent(t, "other-tenant", domain.RoleAgent, domain.Scope{BusinessModel: "marketplace", TenantID: "globex"}, 10, domain.TicketCategoryOrder)
	full := f.addAgent(t, "at-capacity", domain.RoleAgent, acmeScope, 2, domain.TicketCategoryOrder)
	f.seedTickets(t, full.ID, acmeScope, domain.TicketStatusOpen, 2)
	away := f.addAgent(t, "away", domain.RoleAgent, acmeScope, 10, domain.TicketCategoryOrder)
	away.Available = false
	require.NoError(t, f.repos.Agents.Update(ctx, away))

	agent, err := f.assignment.FindBestAgent(ctx, domain.TicketCategoryOrder, acmeScope)
	require.NoError(t, err)
	assert.Nil(t, agent)

	f.addAgent(t, "fit", domain.RoleAgent, acmeScope, 10, domain.TicketCategoryOrder)
	agent, err = f.assignment.FindBestAgent(ctx, domain.TicketCategoryOrder, acmeScope)
	require.NoError(t, err)
	require.NotNil(t, agent)
	assert.Equal(t, "fit", agent.ID)
}

func TestFindBestAgentIgnoresFinishedWork(t *testing.T) {
	f := newFixture(t)
	f.addAgent(t, "agent-a", domain.RoleAgent, acmeScope, 3, domain.TicketCategoryGeneral)
	f.addAgent(t, "agent-b", domain.RoleAgent, acmeScope, 3, domain.TicketCategoryGeneral)
	f.seedTickets(t, "agent-a", acmeScope, domain.TicketStatusResolved, 3)
	f.seedTickets(t, "agent-b", acmeScope, domain.TicketStatusPendingUser, 1)

	agent, err := f.assignment.FindBestAgent(context.Background(), domain.TicketCategoryGeneral, acmeScope)
	require.NoError(t, err)
	require.NotNil(t, agent)
	assert.Equal(t, "agent-a", agent.ID)
}

func TestEscalationWalksRoleHierarchy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	engine := NewEscalationEngine(f.assignment, zap.NewNop())
	roles := []domain.Role{domain.RoleVendor, domain.RolePlatformAdmin}

	admin := f.addAgent(t, "admin-1", domain.RolePlatformAdmin, acmeScope, 1)
	target, role, err := engine.FindEscalationTarget(ctx, acmeScope, roles, nil)
	require.NoError(t, err)
	require.NotNil(t, target)
	assert.Equal(t, admin.ID, target.ID)
	assert.Equal(t, domain.RolePlatformAdmin, role)

	f.addAgent(t, "vendor-1", domain.RoleVendor, acmeScope, 1)
	target, role, err = engine.FindEscalationTarget(ctx, acmeScope, roles, nil)
	require.NoError(t, err)
	assert.Equal(t, "vendor-1", target.ID)
	assert.Equal(t, domain.RoleVendor, role)

	excluded := "vendor-1"
	target, role, err = engine.FindEscalationTarget(ctx, acmeScope, roles, &excluded)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, target.ID, "current assignee is skipped")
	assert.Equal(t, domain.RolePlatformAdmin, role)

	target, _, err = engine.FindEscalationTarget(ctx, initechScope, roles, nil)
	require.NoError(t, err)
	assert.Nil(t, target)
}

func TestEscalateTicketReassignsAndRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addAgent(t, "agent-1", domain.RoleAgent, acmeScope, 10, domain.TicketCategoryGeneral)
	f.addAgent(t, "admin-1", domain.RolePlatformAdmin, acmeScope, 1)

	details, err := f.tickets.CreateTicket(ctx, customer("cust-1", acmeScope), acmeScope, CreateTicketInput{Subject: "Refund stuck"})
	require.NoError(t, err)
	require.NotNil(t, details.Ticket.AssignedAgentID)

	agent := staff("agent-1", domain.RoleAgent, acmeScope)
	_, err = f.tickets.EscalateTicket(ctx, agent, details.Ticket.ID, "needs admin")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidStatusTransition), "OPEN cannot escalate")

	_, err = f.tickets.AssignTicket(ctx, agent, details.Ticket.ID, "agent-1")
	require.NoError(t, err)

	_, err = f.tickets.EscalateTicket(ctx, agent, details.Ticket.ID, "  ")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	ticket, err := f.tickets.EscalateTicket(ctx, agent, details.Ticket.ID, "needs admin")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusEscalated, ticket.Status)
	require.NotNil(t, ticket.AssignedAgentID)
	assert.Equal(t, "admin-1", *ticket.AssignedAgentID)
	require.Len(t, ticket.Escalations, 1)
	rec := ticket.Escalations[0]
	assert.Equal(t, "needs admin", rec.Reason)
	assert.Equal(t, domain.RolePlatformAdmin, rec.TargetRole)
	require.NotNil(t, rec.PriorAssigneeID)
	assert.Equal(t, "agent-1", *rec.PriorAssigneeID)
	assert.Contains(t, f.eventTypes(), events.EventTicketEscalated)
}

func TestEscalateTicketDisabledForTenant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addAgent(t, "agent-1", domain.RoleAgent, initechScope, 10, domain.TicketCategoryGeneral)
	f.addAgent(t, "sup-1", domain.RoleSupervisor, initechScope, 10)

	details, err := f.tickets.CreateTicket(ctx, customer("cust-1", initechScope), initechScope, CreateTicketInput{Subject: "Login broken"})
	require.NoError(t, err)
	assert.Nil(t, details.Ticket.AssignedAgentID, "auto assign is off for saas")

	agent := staff("agent-1", domain.RoleAgent, initechScope)
	_, err = f.tickets.AssignTicket(ctx, agent, details.Ticket.ID, "agent-1")
	require.NoError(t, err)

	_, err = f.tickets.EscalateTicket(ctx, agent, details.Ticket.ID, "stuck")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeEscalationNotAllowed))
}

func TestEscalateTicketWithoutTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addAgent(t, "agent-1", domain.RoleAgent, acmeScope, 10, domain.TicketCategoryGeneral)

	details, err := f.tickets.CreateTicket(ctx, customer("cust-1", acmeScope), acmeScope, CreateTicketInput{Subject: "Refund stuck"})
	require.NoError(t, err)
	agent := staff("agent-1", domain.RoleAgent, acmeScope)
	_, err = f.tickets.AssignTicket(ctx, agent, details.Ticket.ID, "agent-1")
	require.NoError(t, err)

	_, err = f.tickets.EscalateTicket(ctx, agent, details.Ticket.ID, "needs admin")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAgentNotAvailable))

	got, err := f.tickets.GetTicket(ctx, agent, details.Ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, got.Ticket.Status, "failed escalation leaves the ticket untouched")
	assert.Empty(t, got.Ticket.Escalations)
}

func TestAssignTicketRejectsIneligibleAgents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	supervisor := staff("sup-1", domain.RoleSupervisor, acmeScope)

	details, err := f.tickets.CreateTicket(ctx, customer("cust-1", acmeScope), acmeScope, CreateTicketInput{
		Subject:  "Card declined",
		Category: domain.TicketCategoryPayment,
	})
	require.NoError(t, err)

	f.addAgent(t, "shipping-only", domain.RoleAgent, acmeScope, 10, domain.TicketCategoryShipping)
	full := f.addAgent(t, "full", domain.RoleAgent, acmeScope, 1, domain.TicketCategoryPayment)
	f.seedTickets(t, full.ID, acmeScope, domain.TicketStatusOpen, 1)

	for _, id := range []string{"missing", "shipping-only", "full"} {
		_, err = f.tickets.AssignTicket(ctx, supervisor, details.Ticket.ID, id)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeAgentNotAvailable), id)
	}

	_, err = f.tickets.AssignTicket(ctx, customer("cust-1", acmeScope), details.Ticket.ID, "full")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorizedAccess))
}
