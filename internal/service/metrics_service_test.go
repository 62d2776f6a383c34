package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
)

func TestMetricsServiceOnEmptyTenant(t *testing.T) {
	f := newFixture(t)
	metrics := NewMetricsService(f.repos)
	metrics.nowFn = f.clock.Now

	set, err := CollectMetrics(context.Background(), metrics, acmeScope, time.Hour, []domain.MetricSource{
		domain.MetricSourceOverview,
		domain.MetricSourceSLA,
		domain.MetricSourceAgents,
		domain.MetricSourceLive,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, set[domain.MetricTotalTickets])
	assert.Equal(t, 100.0, set[domain.MetricFirstResponseCompliance], "no settled tickets reads as compliant")
	assert.Equal(t, 100.0, set[domain.MetricResolutionCompliance])
	assert.Equal(t, 0.0, set[domain.MetricMaxUtilization])
	assert.Equal(t, 0.0, set[domain.MetricLiveOpenTickets])
}

func TestMetricsServiceAggregates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	metrics := NewMetricsService(f.repos)
	metrics.nowFn = f.clock.Now
	f.addAgent(t, "agent-1", domain.RoleAgent, acmeScope, 4, domain.TicketCategoryGeneral)
	agent := staff("agent-1", domain.RoleAgent, acmeScope)

	answered, err := f.tickets.CreateTicket(ctx, customer("cust-1", acmeScope), acmeScope, CreateTicketInput{
		Subject:  "Answered",
		Priority: domain.TicketPriorityUrgent,
	})
	require.NoError(t, err)
	_, err = f.tickets.CreateTicket(ctx, customer("cust-2", acmeScope), acmeScope, CreateTicketInput{
		Subject:  "Ignored",
		Priority: domain.TicketPriorityUrgent,
	})
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	_, err = f.tickets.AddMessage(ctx, agent, answered.Ticket.ID, AddMessageInput{Body: "on it"})
	require.NoError(t, err)

	// No sweep has run: the breach of the second ticket is derived on read.
	f.clock.Advance(30 * time.Minute)
	set, err := CollectMetrics(ctx, metrics, acmeScope, 2*time.Hour, []domain.MetricSource{
		domain.MetricSourceOverview,
		domain.MetricSourceSLA,
		domain.MetricSourceAgents,
		domain.MetricSourceLive,
	})
	require.NoError(t, err)

	assert.Equal(t, 2.0, set[domain.MetricTotalTickets])
	assert.Equal(t, 2.0, set[domain.MetricOpenTickets])
	assert.Equal(t, 1.0, set[domain.MetricTicketsPerHour])
	assert.Equal(t, 10.0, set[domain.MetricAvgFirstResponseMinutes])
	assert.Equal(t, 50.0, set[domain.MetricFirstResponseCompliance])
	assert.Equal(t, 1.0, set[domain.MetricBreachedTickets])
	assert.Equal(t, 50.0, set[domain.MetricMaxUtilization])
	assert.Equal(t, 1.0, set[domain.MetricAvailableAgents])
	assert.Equal(t, 2.0, set[domain.MetricLiveOpenTickets])
	assert.Equal(t, 2.0, set[domain.MetricLiveUrgentOpenTickets])
	assert.Equal(t, 0.0, set[domain.MetricLiveUnassignedTickets])
	assert.Equal(t, 2.0, set[domain.MetricLiveTicketsLastHour])
}

func TestCollectMetricsPropagatesErrors(t *testing.T) {
	provider := newStubProvider()
	provider.failFor[acmeScope] = true
	_, err := CollectMetrics(context.Background(), provider, acmeScope, time.Hour, []domain.MetricSource{domain.MetricSourceSLA})
	assert.ErrorContains(t, err, "sla metrics")

	_, err = CollectMetrics(context.Background(), newStubProvider(), acmeScope, time.Hour, []domain.MetricSource{"weather"})
	assert.ErrorContains(t, err, "unknown metric source")
}
