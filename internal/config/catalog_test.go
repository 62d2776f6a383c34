package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
)

const sampleCatalog = `
business_models:
  marketplace:
    escalation_roles: [VENDOR, PLATFORM_ADMIN]
    tenants: [t1, t2]
    defaults:
      sla_minutes: {LOW: 240, HIGH: 60}
      auto_assign: true
      escalation_enabled: false
      rate_limits: {max_tickets_per_hour: 10, max_tickets_per_day: 40}
alert_rules:
  - name: compliance
    type: sla_breach
    business_model: marketplace
    conditions:
      - {metric: sla.firstResponseSLA.compliance, operator: "<", threshold: 80, time_window_minutes: 30}
`

func TestParseCatalog(t *testing.T) {
	catalog, err := ParseCatalog([]byte(sampleCatalog))
	require.NoError(t, err)

	scope := domain.Scope{BusinessModel: "marketplace", TenantID: "t1"}
	cfg, ok := catalog.DefaultsFor(scope)
	require.True(t, ok)
	assert.Equal(t, scope, cfg.Scope)
	assert.Equal(t, 60, cfg.SLAMinutes[domain.TicketPriorityHigh])
	assert.True(t, cfg.AutoAssign)
	assert.False(t, cfg.EscalationEnabled)
	assert.Equal(t, 10, cfg.RateLimits.MaxTicketsPerHour)
	assert.Equal(t, []domain.Role{domain.RoleVendor, domain.RolePlatformAdmin}, cfg.EscalationRoles)
	assert.Len(t, catalog.Scopes(), 2)
	require.Len(t, catalog.AlertRules, 1)
	assert.Equal(t, domain.MetricFirstResponseCompliance, catalog.AlertRules[0].Conditions[0].Metric)
}

func TestParseCatalogRejectsUnknownMetric(t *testing.T) {
	doc := `
business_models:
  marketplace: {}
alert_rules:
  - name: broken
    type: sla_breach
    business_model: marketplace
    conditions:
      - {metric: nope.metric, operator: "<", threshold: 1, time_window_minutes: 5}
`
	_, err := ParseCatalog([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown metric")
}

func TestParseCatalogRejectsCustomerEscalationRole(t *testing.T) {
	doc := `
business_models:
  marketplace:
    escalation_roles: [CUSTOMER]
`
	_, err := ParseCatalog([]byte(doc))
	require.Error(t, err)
}

func TestDefaultsForUnknownModel(t *testing.T) {
	_, ok := EmptyCatalog().DefaultsFor(domain.Scope{BusinessModel: "nope", TenantID: "x"})
	assert.False(t, ok)
}
