package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/notification"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/repository/memory"
)

const testCatalog = `
business_models:
  marketplace:
    escalation_roles: [VENDOR, PLATFORM_ADMIN]
    tenants: [acme]
    defaults:
      sla_minutes: {LOW: 1440, MEDIUM: 480, HIGH: 120, URGENT: 30}
      auto_assign: true
      escalation_enabled: true
      rate_limits: {max_tickets_per_hour: 10, max_tickets_per_day: 50}
  saas:
    escalation_roles: [SUPERVISOR, PLATFORM_ADMIN]
    tenants: [initech]
    defaults:
      sla_minutes: {LOW: 720, MEDIUM: 240, HIGH: 60, URGENT: 15}
      auto_assign: false
      escalation_enabled: false
      rate_limits: {max_tickets_per_hour: 0, max_tickets_per_day: 0}
`

var (
	acmeScope    = domain.Scope{BusinessModel: "marketplace", TenantID: "acme"}
	initechScope = domain.Scope{BusinessModel: "saas", TenantID: "initech"}
)

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentMessage struct {
	Channel string
	Message notification.Message
}

type sentEmail struct {
	To      string
	Subject string
}

// recordingNotifier keeps every delivery in memory.
type recordingNotifier struct {
	mu       sync.Mutex
	channel  []sentMessage
	emails   []sentEmail
	webhooks []string
	email    bool
}

func (r *recordingNotifier) SendToChannel(_ context.Context, channel string, msg notification.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channel = append(r.channel, sentMessage{Channel: channel, Message: msg})
	return nil
}

func (r *recordingNotifier) SendEmail(_ context.Context, to, subject, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails = append(r.emails, sentEmail{To: to, Subject: subject})
	return nil
}

func (r *recordingNotifier) SendWebhook(_ context.Context, url string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.webhooks = append(r.webhooks, url)
	return nil
}

func (r *recordingNotifier) EmailEnabled() bool { return r.email }

func (r *recordingNotifier) messagesOfType(msgType string) []sentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentMessage
	for _, m := range r.channel {
		if m.Message.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

type fixture struct {
	repos      *repository.Repositories
	clock      *clock
	catalog    *config.Catalog
	resolver   *ConfigResolver
	limiter    *RateLimiter
	assignment *AssignmentEngine
	dispatcher events.Dispatcher
	tickets    *TicketService
	notifier   *recordingNotifier
	events     []events.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog, err := config.ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)

	repos, _ := memory.NewRepositories()
	logger := zap.NewNop()
	clk := newClock()

	f := &fixture{repos: repos, clock: clk, catalog: catalog, notifier: &recordingNotifier{}}
	f.resolver = NewConfigResolver(repos.TenantConfigs, catalog, logger)
	counter := repository.NewStoreRateCounter(repos.Tickets)
	f.limiter = NewRateLimiter(counter, nil, logger, nil)
	f.limiter.nowFn = clk.Now
	f.assignment = NewAssignmentEngine(repos.Tickets, repos.Agents, logger)
	f.dispatcher = events.NewInMemoryDispatcher(logger)
	for _, et := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTicketAssigned,
		events.EventTicketEscalated,
		events.EventTicketMessageAdded,
	} {
		f.dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			f.events = append(f.events, e)
			return nil
		})
	}
	f.tickets = NewTicketService(TicketDependencies{
		Repos:       repos,
		Resolver:    f.resolver,
		RateLimiter: f.limiter,
		Assignment:  f.assignment,
		Escalation:  NewEscalationEngine(f.assignment, logger),
		Dispatcher:  f.dispatcher,
		Logger:      logger,
		Now:         clk.Now,
	})
	return f
}

func (f *fixture) addAgent(t *testing.T, id string, role domain.Role, scope domain.Scope, capacity int, skills ...domain.TicketCategory) *domain.AgentProfile {
	t.Helper()
	tenant := scope.TenantID
	agent := &domain.AgentProfile{
		ID:                   id,
		Name:                 id,
		Role:                 role,
		BusinessModel:        scope.BusinessModel,
		TenantID:             &tenant,
		Active:               true,
		Available:            true,
		Skills:               skills,
		MaxConcurrentTickets: capacity,
		CreatedAt:            f.clock.Now(),
		UpdatedAt:            f.clock.Now(),
	}
	require.NoError(t, f.repos.Agents.Create(context.Background(), agent))
	return agent
}

// seedTickets stores n tickets assigned to agentID in the given status.
func (f *fixture) seedTickets(t *testing.T, agentID string, scope domain.Scope, status domain.TicketStatus, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		id := agentID
		ticket := &domain.Ticket{
			ID:              agentID + "-load-" + string(rune('a'+i)),
			Subject:         "existing",
			Category:        domain.TicketCategoryGeneral,
			Priority:        domain.TicketPriorityMedium,
			Status:          status,
			Scope:           scope,
			RequesterID:     "someone-else",
			AssignedAgentID: &id,
			CreatedAt:       f.clock.Now(),
			UpdatedAt:       f.clock.Now(),
		}
		require.NoError(t, f.repos.Tickets.Create(context.Background(), ticket))
	}
}

func (f *fixture) eventTypes() []events.EventType {
	out := make([]events.EventType, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

func customer(id string, scope domain.Scope) domain.Actor {
	return domain.Actor{ID: id, Role: domain.RoleCustomer, Scope: scope}
}

func staff(id string, role domain.Role, scope domain.Scope) domain.Actor {
	return domain.Actor{ID: id, Role: role, Scope: scope}
}
