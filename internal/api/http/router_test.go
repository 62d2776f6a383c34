package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/notification"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/repository/memory"
	"github.com/spec-kit/support-desk/internal/service"
)

const routerCatalog = `
business_models:
  marketplace:
    escalation_roles: [VENDOR, PLATFORM_ADMIN]
    tenants: [acme]
    defaults:
      sla_minutes: {LOW: 1440, MEDIUM: 480, HIGH: 120, URGENT: 30}
      auto_assign: true
      escalation_enabled: true
      rate_limits: {max_tickets_per_hour: 2, max_tickets_per_day: 50}
`

var acme = domain.Scope{BusinessModel: "marketplace", TenantID: "acme"}

type testServer struct {
	app    *fiber.App
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	catalog, err := config.ParseCatalog([]byte(routerCatalog))
	require.NoError(t, err)

	repos, _ := memory.NewRepositories()
	tenant := acme.TenantID
	require.NoError(t, repos.Agents.Create(context.Background(), &domain.AgentProfile{
		ID:                   "agent-1",
		Name:                 "Agent One",
		Role:                 domain.RoleAgent,
		BusinessModel:        acme.BusinessModel,
		TenantID:             &tenant,
		Active:               true,
		Available:            true,
		Skills:               []domain.TicketCategory{domain.TicketCategoryGeneral},
		MaxConcurrentTickets: 5,
	}))

	resolver := service.NewConfigResolver(repos.TenantConfigs, catalog, logger)
	limiter := service.NewRateLimiter(repository.NewStoreRateCounter(repos.Tickets), nil, logger, nil)
	assignment := service.NewAssignmentEngine(repos.Tickets, repos.Agents, logger)
	dispatcher := events.NewInMemoryDispatcher(logger)
	tickets := service.NewTicketService(service.TicketDependencies{
		Repos:       repos,
		Resolver:    resolver,
		RateLimiter: limiter,
		Assignment:  assignment,
		Escalation:  service.NewEscalationEngine(assignment, logger),
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	engine := service.NewAlertEngine(service.AlertEngineDependencies{
		Rules:    repos.AlertRules,
		History:  repos.AlertHistory,
		Scopes:   resolver,
		Provider: service.NewMetricsService(repos),
		Notifier: notification.NewDispatcher(logger, notification.WithChannel(notification.NewHub())),
		Logger:   logger,
	})

	tokens := auth.NewTokenManager("router-secret", 15)
	app := fiber.New()
	RegisterMiddlewares(app, logger, observability.NewMetrics(), time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("support-desk", "test", nil),
		Tickets:        handlers.NewTicketsHandler(tickets),
		Alerts:         handlers.NewAlertsHandler(engine),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})
	return &testServer{app: app, tokens: tokens}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  map[string]int  `json:"meta"`
	Error *struct {
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, actor *domain.Actor, method, path string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		token, _, err := s.tokens.GenerateToken(*actor)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func TestTicketRoutes(t *testing.T) {
	s := newTestServer(t)
	cust := &domain.Actor{ID: "cust-1", Role: domain.RoleCustomer, Scope: acme}
	agent := &domain.Actor{ID: "agent-1", Role: domain.RoleAgent, Scope: acme}

	status, env := s.do(t, cust, http.MethodPost, "/tickets", map[string]any{"subject": "Parcel missing", "priority": "HIGH"})
	require.Equal(t, http.StatusCreated, status)
	var created struct {
		ID              string  `json:"id"`
		Status          string  `json:"status"`
		AssignedAgentID *string `json:"assigned_agent_id"`
		SLA             *struct {
			FirstResponseDue time.Time `json:"first_response_due"`
			ResolutionDue    time.Time `json:"resolution_due"`
		} `json:"sla"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "OPEN", created.Status)
	require.NotNil(t, created.AssignedAgentID)
	assert.Equal(t, "agent-1", *created.AssignedAgentID)
	require.NotNil(t, created.SLA)
	// HIGH: 2h first response, 8h resolution, both from creation.
	assert.Equal(t, 6*time.Hour, created.SLA.ResolutionDue.Sub(created.SLA.FirstResponseDue))

	status, env = s.do(t, agent, http.MethodGet, "/tickets?status=open", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, env.Meta["total"])

	status, _ = s.do(t, agent, http.MethodPatch, "/tickets/"+created.ID, map[string]any{"status": "IN_PROGRESS"})
	assert.Equal(t, http.StatusOK, status)

	status, env = s.do(t, agent, http.MethodPatch, "/tickets/"+created.ID, map[string]any{"status": "OPEN"})
	assert.Equal(t, http.StatusConflict, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_STATUS_TRANSITION", env.Error.Code)

	status, env = s.do(t, agent, http.MethodDelete, "/tickets/"+created.ID, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "UNAUTHORIZED_ACCESS", env.Error.Code)

	status, env = s.do(t, agent, http.MethodGet, "/tickets/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "TICKET_NOT_FOUND", env.Error.Code)
}

func TestTicketRoutesRejectBadRequests(t *testing.T) {
	s := newTestServer(t)
	cust := &domain.Actor{ID: "cust-1", Role: domain.RoleCustomer, Scope: acme}

	status, env := s.do(t, nil, http.MethodGet, "/tickets", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	status, env = s.do(t, cust, http.MethodPost, "/tickets", map[string]any{"priority": "SEVERE"})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Contains(t, env.Error.Details, "Subject")
	assert.Contains(t, env.Error.Details, "Priority")

	for i := 0; i < 2; i++ {
		status, _ = s.do(t, cust, http.MethodPost, "/tickets", map[string]any{"subject": "again"})
		require.Equal(t, http.StatusCreated, status)
	}
	status, env = s.do(t, cust, http.MethodPost, "/tickets", map[string]any{"subject": "one too many"})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", env.Error.Code)
	assert.Equal(t, "hour", env.Error.Details["window"])

	status, env = s.do(t, cust, http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestAlertRuleRoutes(t *testing.T) {
	s := newTestServer(t)
	supervisor := &domain.Actor{ID: "sup-1", Role: domain.RoleSupervisor, Scope: acme}
	agent := &domain.Actor{ID: "agent-1", Role: domain.RoleAgent, Scope: acme}

	rule := map[string]any{
		"name": "Backlog",
		"type": "backlog",
		"conditions": []map[string]any{
			{"metric": "live.unassignedTickets", "operator": ">", "threshold": 10},
		},
	}
	status, _ := s.do(t, agent, http.MethodPost, "/alerts/rules", rule)
	assert.Equal(t, http.StatusForbidden, status)

	status, env := s.do(t, supervisor, http.MethodPost, "/alerts/rules", rule)
	require.Equal(t, http.StatusCreated, status)
	var created struct {
		ID       string  `json:"id"`
		Enabled  bool    `json:"enabled"`
		TenantID *string `json:"tenant_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.True(t, created.Enabled)
	require.NotNil(t, created.TenantID)
	assert.Equal(t, "acme", *created.TenantID, "supervisors are pinned to their tenant")

	status, env = s.do(t, supervisor, http.MethodGet, "/alerts/rules", nil)
	require.Equal(t, http.StatusOK, status)
	var rules []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &rules))
	require.Len(t, rules, 1)
	assert.Equal(t, created.ID, rules[0].ID)

	status, env = s.do(t, supervisor, http.MethodPost, "/alerts/unknown/resolve", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "ALERT_NOT_FOUND", env.Error.Code)

	status, _ = s.do(t, supervisor, http.MethodDelete, "/alerts/rules/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestHealthRoutes(t *testing.T) {
	s := newTestServer(t)
	status, _ := s.do(t, nil, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, status)
}
