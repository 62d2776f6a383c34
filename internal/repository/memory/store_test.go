package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

func TestWithinTxRollsBackOnError(t *testing.T) {
	repos, _ := NewRepositories()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	boom := errors.New("boom")
	err := repos.Transactor.WithinTx(ctx, func(ctx context.Context) error {
		ticket := &domain.Ticket{ID: "t-1", Status: domain.TicketStatusOpen, CreatedAt: now}
		require.NoError(t, repos.Tickets.Create(ctx, ticket))
		require.NoError(t, repos.SLA.Create(ctx, &domain.SLARecord{TicketID: "t-1"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = repos.Tickets.GetByID(ctx, "t-1")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	_, err = repos.SLA.GetByTicketID(ctx, "t-1")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestTicketNumbersAreSequential(t *testing.T) {
	repos, _ := NewRepositories()
	ctx := context.Background()

	first := &domain.Ticket{ID: "a"}
	second := &domain.Ticket{ID: "b"}
	require.NoError(t, repos.Tickets.Create(ctx, first))
	require.NoError(t, repos.Tickets.Create(ctx, second))

	assert.Equal(t, "TKT-000001", first.Number)
	assert.Equal(t, "TKT-000002", second.Number)
}

func TestCountOpenByAgentsOnlyCountsWorkloadStatuses(t *testing.T) {
	repos, _ := NewRepositories()
	ctx := context.Background()
	agent := "agent-1"

	for i, status := range []domain.TicketStatus{
		domain.TicketStatusOpen,
		domain.TicketStatusInProgress,
		domain.TicketStatusPendingUser,
		domain.TicketStatusEscalated,
		domain.TicketStatusResolved,
	} {
		id := string(rune('a' + i))
		require.NoError(t, repos.Tickets.Create(ctx, &domain.Ticket{ID: id, Status: status, AssignedAgentID: &agent}))
	}

	counts, err := repos.Tickets.CountOpenByAgents(ctx, []string{agent, "agent-2"})
	require.NoError(t, err)
	assert.Equal(t, 3, counts[agent])
	assert.Zero(t, counts["agent-2"])
}

func TestListTicketsFiltersAndPaginates(t *testing.T) {
	repos, _ := NewRepositories()
	ctx := context.Background()
	scope := domain.Scope{BusinessModel: "marketplace", TenantID: "t1"}
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repos.Tickets.Create(ctx, &domain.Ticket{
			ID:        string(rune('a' + i)),
			Scope:     scope,
			Status:    domain.TicketStatusOpen,
			Subject:   "printer jam",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repos.Tickets.Create(ctx, &domain.Ticket{
		ID:    "other",
		Scope: domain.Scope{BusinessModel: "marketplace", TenantID: "t2"},
	}))

	page, total, err := repos.Tickets.List(ctx, repository.TicketFilter{Scope: scope, Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "d", page[0].ID)
	assert.Equal(t, "c", page[1].ID)
}
