package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/notification"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/repository/memory"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// stubProvider serves fixed metric sets per scope.
type stubProvider struct {
	mu      sync.Mutex
	sets    map[domain.Scope]domain.MetricSet
	failFor map[domain.Scope]bool
	calls   int
}

func newStubProvider() *stubProvider {
	return &stubProvider{sets: map[domain.Scope]domain.MetricSet{}, failFor: map[domain.Scope]bool{}}
}

func (p *stubProvider) set(scope domain.Scope, key domain.MetricKey, v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sets[scope] == nil {
		p.sets[scope] = domain.MetricSet{}
	}
	p.sets[scope][key] = v
}

func (p *stubProvider) pick(scope domain.Scope, source domain.MetricSource) (domain.MetricSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failFor[scope] {
		return nil, errors.New("metrics backend down")
	}
	out := domain.MetricSet{}
	for k, v := range p.sets[scope] {
		if s, _ := k.Source(); s == source {
			out[k] = v
		}
	}
	return out, nil
}

func (p *stubProvider) Overview(_ context.Context, scope domain.Scope, _ time.Duration) (domain.MetricSet, error) {
	return p.pick(scope, domain.MetricSourceOverview)
}

func (p *stubProvider) SLAMetrics(_ context.Context, scope domain.Scope, _ time.Duration) (domain.MetricSet, error) {
	return p.pick(scope, domain.MetricSourceSLA)
}

func (p *stubProvider) AgentPerformance(_ context.Context, scope domain.Scope, _ time.Duration) (domain.MetricSet, error) {
	return p.pick(scope, domain.MetricSourceAgents)
}

func (p *stubProvider) LiveMetrics(_ context.Context, scope domain.Scope) (domain.MetricSet, error) {
	return p.pick(scope, domain.MetricSourceLive)
}

type staticScopes []domain.Scope

func (s staticScopes) ListScopes(context.Context) ([]domain.Scope, error) { return s, nil }

type alertFixture struct {
	engine   *AlertEngine
	provider *stubProvider
	notifier *recordingNotifier
	clock    *clock
	repos    *repository.Repositories
}

func newAlertFixture(t *testing.T, scopes ...domain.Scope) *alertFixture {
	t.Helper()
	repos, _ := memory.NewRepositories()
	f := &alertFixture{
		provider: newStubProvider(),
		notifier: &recordingNotifier{email: true},
		clock:    newClock(),
		repos:    repos,
	}
	f.engine = NewAlertEngine(AlertEngineDependencies{
		Rules:    repos.AlertRules,
		History:  repos.AlertHistory,
		Scopes:   staticScopes(scopes),
		Provider: f.provider,
		Notifier: f.notifier,
		Logger:   zap.NewNop(),
		Now:      f.clock.Now,
	})
	return f
}

func (f *alertFixture) rule(t *testing.T, input AlertRuleInput) *domain.AlertRule {
	t.Helper()
	rule, err := f.engine.CreateRule(context.Background(), input)
	require.NoError(t, err)
	return rule
}

func complianceRule(model domain.BusinessModel) AlertRuleInput {
	return AlertRuleInput{
		Name:          "first response compliance",
		Type:          domain.AlertTypeSLABreach,
		Enabled:       true,
		BusinessModel: model,
		Conditions: []domain.AlertCondition{
			{Metric: domain.MetricFirstResponseCompliance, Operator: domain.OpLessThan, Threshold: 90, TimeWindowMinutes: 60},
		},
		Actions: domain.AlertActions{Emails: []string{"leads@example.com"}, WebhookURL: "https://hooks.example.com/alerts"},
	}
}

func TestAlertCycleTriggersAndDeduplicates(t *testing.T) {
	f := newAlertFixture(t, acmeScope)
	ctx := context.Background()
	f.rule(t, complianceRule("marketplace"))
	f.provider.set(acmeScope, domain.MetricFirstResponseCompliance, 80)

	require.NoError(t, f.engine.RunCycle(ctx))
	active := f.engine.GetActiveAlerts(domain.Scope{})
	require.Len(t, active, 1)
	first := active[0]
	assert.Equal(t, domain.AlertTypeSLABreach, first.Type)
	assert.Equal(t, acmeScope, first.Scope)
	assert.Equal(t, 1, first.TriggerCount)
	assert.NotEmpty(t, first.SuggestedActions)
	assert.Contains(t, first.Message, "sla.firstResponseSLA.compliance is 80")

	require.Len(t, f.notifier.messagesOfType(notification.TypeAlertTriggered), 1)
	assert.Equal(t, "admin:marketplace:acme", f.notifier.messagesOfType(notification.TypeAlertTriggered)[0].Channel)
	assert.Len(t, f.notifier.emails, 1)
	assert.Equal(t, []string{"https://hooks.example.com/alerts"}, f.notifier.webhooks)

	f.clock.Advance(5 * time.Minute)
	require.NoError(t, f.engine.RunCycle(ctx))
	active = f.engine.GetActiveAlerts(domain.Scope{})
	require.Len(t, active, 1)
	assert.Equal(t, first.ID, active[0].ID)
	assert.Equal(t, 2, active[0].TriggerCount)
	assert.Equal(t, f.clock.Now(), active[0].TriggeredAt)
	assert.Equal(t, first.FirstTriggeredAt, active[0].FirstTriggeredAt)
	assert.Len(t, f.notifier.messagesOfType(notification.TypeAlertTriggered), 1, "refresh does not notify again")

	assert.Len(t, f.notifier.messagesOfType(notification.TypeMetricsUpdate), 2)
	assert.Equal(t, "dashboard:marketplace:acme", f.notifier.messagesOfType(notification.TypeMetricsUpdate)[0].Channel)
}

func TestAlertConditionsAreANDed(t *testing.T) {
	f := newAlertFixture(t, acmeScope)
	ctx := context.Background()
	f.rule(t, AlertRuleInput{
		Name:          "satisfaction",
		Type:          domain.AlertTypeSatisfactionDrop,
		Enabled:       true,
		BusinessModel: "marketplace",
		Conditions: []domain.AlertCondition{
			{Metric: domain.MetricSatisfactionAverage, Operator: domain.OpLessThan, Threshold: 3.5, TimeWindowMinutes: 1440},
			{Metric: domain.MetricResolvedTickets, Operator: domain.OpGreaterOrEqual, Threshold: 5, TimeWindowMinutes: 1440},
		},
	})

	f.provider.set(acmeScope, domain.MetricSatisfactionAverage, 2.9)
	f.provider.set(acmeScope, domain.MetricResolvedTickets, 3)
	require.NoError(t, f.engine.RunCycle(ctx))
	assert.Empty(t, f.engine.GetActiveAlerts(domain.Scope{}))

	f.provider.set(acmeScope, domain.MetricResolvedTickets, 7)
	require.NoError(t, f.engine.RunCycle(ctx))
	assert.Len(t, f.engine.GetActiveAlerts(domain.Scope{}), 1)
}

func TestAlertRuleScopeAndMissingMetrics(t *testing.T) {
	f := newAlertFixture(t, acmeScope, initechScope)
	ctx := context.Background()
	acme := "acme"
	input := complianceRule("marketplace")
	input.TenantID = &acme
	f.rule(t, input)
	f.rule(t, AlertRuleInput{
		Name:          "overload",
		Type:          domain.AlertTypeAgentOverload,
		Enabled:       true,
		BusinessModel: "saas",
		Conditions: []domain.AlertCondition{
			{Metric: domain.MetricMaxUtilization, Operator: domain.OpGreaterOrEqual, Threshold: 90},
		},
	})

	f.provider.set(initechScope, domain.MetricFirstResponseCompliance, 10)
	require.NoError(t, f.engine.RunCycle(ctx))
	assert.Empty(t, f.engine.GetActiveAlerts(domain.Scope{}), "rule is pinned to acme and utilization is absent")
}

func TestAlertCycleContinuesPastFailingTenant(t *testing.T) {
	f := newAlertFixture(t, acmeScope, domain.Scope{BusinessModel: "marketplace", TenantID: "globex"})
	f.rule(t, complianceRule("marketplace"))
	f.provider.failFor[acmeScope] = true
	f.provider.set(domain.Scope{BusinessModel: "marketplace", TenantID: "globex"}, domain.MetricFirstResponseCompliance, 50)

	require.NoError(t, f.engine.RunCycle(context.Background()))
	active := f.engine.GetActiveAlerts(domain.Scope{})
	require.Len(t, active, 1)
	assert.Equal(t, "globex", active[0].Scope.TenantID)
}

func TestDisabledRuleIsSkipped(t *testing.T) {
	f := newAlertFixture(t, acmeScope)
	input := complianceRule("marketplace")
	input.Enabled = false
	f.rule(t, input)
	f.provider.set(acmeScope, domain.MetricFirstResponseCompliance, 10)

	require.NoError(t, f.engine.RunCycle(context.Background()))
	assert.Empty(t, f.engine.GetActiveAlerts(domain.Scope{}))
}

func TestResolveAlert(t *testing.T) {
	f := newAlertFixture(t, acmeScope)
	ctx := context.Background()
	f.rule(t, complianceRule("marketplace"))
	f.provider.set(acmeScope, domain.MetricFirstResponseCompliance, 80)
	require.NoError(t, f.engine.RunCycle(ctx))
	alert := f.engine.GetActiveAlerts(domain.Scope{})[0]

	_, err := f.engine.ResolveAlert(ctx, "nope", "sup-1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlertNotFound))

	resolved, err := f.engine.ResolveAlert(ctx, alert.ID, "sup-1")
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, "sup-1", *resolved.ResolvedBy)
	assert.Empty(t, f.engine.GetActiveAlerts(domain.Scope{}))
	assert.Len(t, f.notifier.messagesOfType(notification.TypeAlertResolved), 1)

	_, err = f.engine.ResolveAlert(ctx, alert.ID, "sup-2")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlertAlreadyResolved))

	// The condition still holds, so the next cycle opens a fresh alert.
	f.clock.Advance(5 * time.Minute)
	require.NoError(t, f.engine.RunCycle(ctx))
	active := f.engine.GetActiveAlerts(domain.Scope{})
	require.Len(t, active, 1)
	assert.NotEqual(t, alert.ID, active[0].ID)

	history, err := f.engine.GetAlertHistory(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestResolvedAlertsAreCleanedAfterRetention(t *testing.T) {
	f := newAlertFixture(t, acmeScope)
	ctx := context.Background()
	f.rule(t, complianceRule("marketplace"))
	f.provider.set(acmeScope, domain.MetricFirstResponseCompliance, 80)
	require.NoError(t, f.engine.RunCycle(ctx))
	alert := f.engine.GetActiveAlerts(domain.Scope{})[0]
	_, err := f.engine.ResolveAlert(ctx, alert.ID, "sup-1")
	require.NoError(t, err)

	f.clock.Advance(59 * time.Minute)
	assert.Zero(t, f.engine.cleanup(f.clock.Now()))
	_, err = f.engine.GetAlert(alert.ID)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, f.engine.cleanup(f.clock.Now()))
	_, err = f.engine.GetAlert(alert.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlertNotFound))
}

func TestSeverity(t *testing.T) {
	obs := func(op domain.ComparisonOperator, observed, threshold float64) []observation {
		return []observation{{Condition: domain.AlertCondition{Operator: op, Threshold: threshold}, Observed: observed}}
	}
	tests := []struct {
		name string
		typ  domain.AlertType
		obs  []observation
		want domain.AlertSeverity
	}{
		{"compliance slightly low", domain.AlertTypeSLABreach, obs(domain.OpLessThan, 85, 90), domain.AlertSeverityWarning},
		{"compliance far below", domain.AlertTypeSLABreach, obs(domain.OpLessThan, 60, 90), domain.AlertSeverityCritical},
		{"volume above", domain.AlertTypeVolumeSpike, obs(domain.OpGreaterThan, 60, 40), domain.AlertSeverityWarning},
		{"volume doubled", domain.AlertTypeVolumeSpike, obs(domain.OpGreaterThan, 80, 40), domain.AlertSeverityCritical},
		{"equality carries no magnitude", domain.AlertTypeBacklog, obs(domain.OpEqual, 10, 10), domain.AlertSeverityWarning},
		{"zero observed under less-than", domain.AlertTypeSLABreach, obs(domain.OpLessThan, 0, 90), domain.AlertSeverityCritical},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, severityFor(tc.typ, tc.obs))
		})
	}
}

func TestAlertRuleValidation(t *testing.T) {
	f := newAlertFixture(t)
	ctx := context.Background()

	bad := complianceRule("marketplace")
	bad.Conditions[0].Metric = "overview.nonsense"
	_, err := f.engine.CreateRule(ctx, bad)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	bad = complianceRule("marketplace")
	bad.Type = "weather"
	_, err = f.engine.CreateRule(ctx, bad)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.engine.GetRule(ctx, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlertRuleNotFound))

	rule := f.rule(t, complianceRule("marketplace"))
	update := complianceRule("marketplace")
	update.Name = "renamed"
	updated, err := f.engine.UpdateRule(ctx, rule.ID, update)
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)

	require.NoError(t, f.engine.DeleteRule(ctx, rule.ID))
	assert.True(t, apperrors.HasCode(f.engine.DeleteRule(ctx, rule.ID), apperrors.CodeAlertRuleNotFound))
}

func TestSeedRulesOnlyIntoEmptyStore(t *testing.T) {
	f := newAlertFixture(t)
	ctx := context.Background()
	seeds := []config.AlertRuleSeed{{
		Name:          "volume",
		Type:          domain.AlertTypeVolumeSpike,
		BusinessModel: "marketplace",
		Conditions: []domain.AlertCondition{
			{Metric: domain.MetricTicketsPerHour, Operator: domain.OpGreaterThan, Threshold: 40, TimeWindowMinutes: 60},
		},
	}}

	n, err := f.engine.SeedRules(ctx, seeds)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	rules, err := f.engine.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.True(t, rules[0].Enabled, "seeds default to enabled")

	n, err = f.engine.SeedRules(ctx, seeds)
	require.NoError(t, err)
	assert.Zero(t, n)
}
