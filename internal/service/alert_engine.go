package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/notification"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const (
	defaultConditionWindow = 60 * time.Minute
	defaultHistoryLimit    = 50
	maxHistoryLimit        = 500
)

// ScopeLister enumerates the (business model, tenant) pairs to evaluate.
type ScopeLister interface {
	ListScopes(ctx context.Context) ([]domain.Scope, error)
}

// AlertEngineConfig tunes the evaluation cycle.
type AlertEngineConfig struct {
	TenantTimeout     time.Duration
	ResolvedRetention time.Duration
}

// AlertEngine evaluates alert rules against metric snapshots and keeps the
// registry of fired alerts. At most one unresolved alert exists per
// (type, business model, tenant).
type AlertEngine struct {
	rules    repository.AlertRuleRepository
	history  repository.AlertHistoryRepository
	scopes   ScopeLister
	provider MetricsProvider
	notifier notification.Notifier
	logger   *zap.Logger
	metrics  *observability.Metrics
	cfg      AlertEngineConfig
	nowFn    func() time.Time

	mu     sync.Mutex
	active map[string]*domain.ActiveAlert
	open   map[string]string
}

// AlertEngineDependencies bundles collaborators of the engine.
type AlertEngineDependencies struct {
	Rules    repository.AlertRuleRepository
	History  repository.AlertHistoryRepository
	Scopes   ScopeLister
	Provider MetricsProvider
	Notifier notification.Notifier
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Config   AlertEngineConfig
	Now      func() time.Time
}

// NewAlertEngine creates the engine.
func NewAlertEngine(deps AlertEngineDependencies) *AlertEngine {
	cfg := deps.Config
	if cfg.TenantTimeout <= 0 {
		cfg.TenantTimeout = 30 * time.Second
	}
	if cfg.ResolvedRetention <= 0 {
		cfg.ResolvedRetention = time.Hour
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertEngine{
		rules:    deps.Rules,
		history:  deps.History,
		scopes:   deps.Scopes,
		provider: deps.Provider,
		notifier: deps.Notifier,
		logger:   logger,
		metrics:  deps.Metrics,
		cfg:      cfg,
		nowFn:    now,
		active:   map[string]*domain.ActiveAlert{},
		open:     map[string]string{},
	}
}

// observation pairs a condition with the value it was checked against.
type observation struct {
	Condition domain.AlertCondition
	Observed  float64
}

type snapshotKey struct {
	source domain.MetricSource
	window time.Duration
}

// RunCycle evaluates every rule for every known scope once. A failing scope is
// logged and skipped. Callers must not overlap cycles; the worker scheduler
// skips a tick while the previous cycle is still running.
func (e *AlertEngine) RunCycle(ctx context.Context) error {
	started := e.nowFn()
	rules, err := e.rules.List(ctx)
	if err != nil {
		return fmt.Errorf("list alert rules: %w", err)
	}
	scopes, err := e.scopes.ListScopes(ctx)
	if err != nil {
		return fmt.Errorf("list scopes: %w", err)
	}

	failed := 0
	for _, scope := range scopes {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		tenantCtx, cancel := context.WithTimeout(ctx, e.cfg.TenantTimeout)
		err := e.evaluateScope(tenantCtx, scope, rules)
		cancel()
		if err != nil {
			failed++
			e.metrics.AlertTenantFailure(string(scope.BusinessModel))
			e.logger.Warn("alert evaluation failed",
				zap.String("business_model", string(scope.BusinessModel)),
				zap.String("tenant_id", scope.TenantID),
				zap.Error(err))
		}
	}

	removed := e.cleanup(e.nowFn())
	activeCount := len(e.GetActiveAlerts(domain.Scope{}))
	e.metrics.SetActiveAlerts(activeCount)
	e.metrics.AlertCycle(e.nowFn().Sub(started))
	e.logger.Debug("alert cycle finished",
		zap.Int("scopes", len(scopes)),
		zap.Int("failed", failed),
		zap.Int("active", activeCount),
		zap.Int("cleaned", removed))
	return nil
}

func (e *AlertEngine) evaluateScope(ctx context.Context, scope domain.Scope, rules []domain.AlertRule) error {
	cache := map[snapshotKey]domain.MetricSet{}
	fetch := func(source domain.MetricSource, window time.Duration) (domain.MetricSet, error) {
		key := snapshotKey{source: source, window: window}
		if set, ok := cache[key]; ok {
			return set, nil
		}
		set, err := CollectMetrics(ctx, e.provider, scope, window, []domain.MetricSource{source})
		if err != nil {
			return nil, err
		}
		cache[key] = set
		return set, nil
	}

	for i := range rules {
		rule := &rules[i]
		if !rule.Enabled || !rule.AppliesTo(scope) {
			continue
		}
		passed, observations, err := evaluateRule(rule, fetch)
		if err != nil {
			return fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		if passed {
			e.trigger(ctx, rule, scope, observations)
		}
	}

	live, err := fetch(domain.MetricSourceLive, 0)
	if err != nil {
		return err
	}
	snapshot := domain.MetricSet{}
	for _, set := range cache {
		snapshot.Merge(set)
	}
	snapshot.Merge(live)
	msg := notification.NewMessage(notification.TypeMetricsUpdate, e.nowFn(), MetricsUpdate{Scope: scope, Metrics: snapshot})
	if err := e.notifier.SendToChannel(ctx, notification.DashboardChannel(scope), msg); err != nil {
		e.logger.Warn("dashboard broadcast failed",
			zap.String("business_model", string(scope.BusinessModel)),
			zap.String("tenant_id", scope.TenantID),
			zap.Error(err))
	}
	return nil
}

// MetricsUpdate is the dashboard broadcast payload.
type MetricsUpdate struct {
	Scope   domain.Scope     `json:"scope"`
	Metrics domain.MetricSet `json:"metrics"`
}

// evaluateRule ANDs every condition. A rule without conditions never fires and
// a metric missing from its snapshot fails its condition.
func evaluateRule(rule *domain.AlertRule, fetch func(domain.MetricSource, time.Duration) (domain.MetricSet, error)) (bool, []observation, error) {
	if len(rule.Conditions) == 0 {
		return false, nil, nil
	}
	observations := make([]observation, 0, len(rule.Conditions))
	for _, cond := range rule.Conditions {
		source, ok := cond.Metric.Source()
		if !ok {
			return false, nil, fmt.Errorf("unknown metric %q", cond.Metric)
		}
		window := time.Duration(cond.TimeWindowMinutes) * time.Minute
		if window <= 0 {
			window = defaultConditionWindow
		}
		if source == domain.MetricSourceLive {
			window = 0
		}
		set, err := fetch(source, window)
		if err != nil {
			return false, nil, err
		}
		value, ok := set[cond.Metric]
		if !ok || !cond.Operator.Compare(value, cond.Threshold) {
			return false, nil, nil
		}
		observations = append(observations, observation{Condition: cond, Observed: value})
	}
	return true, observations, nil
}

func (e *AlertEngine) trigger(ctx context.Context, rule *domain.AlertRule, scope domain.Scope, observations []observation) {
	now := e.nowFn()
	key := domain.AlertDedupKey(rule.Type, scope)

	e.mu.Lock()
	if id, ok := e.open[key]; ok {
		existing := e.active[id]
		existing.TriggeredAt = now
		existing.TriggerCount++
		snapshot := cloneAlert(existing)
		e.mu.Unlock()

		e.metrics.AlertTriggered(string(rule.Type), string(snapshot.Severity), "deduplicated")
		e.persist(ctx, snapshot)
		return
	}
	alert := &domain.ActiveAlert{
		ID:               uuid.NewString(),
		RuleID:           rule.ID,
		Type:             rule.Type,
		Severity:         severityFor(rule.Type, observations),
		Message:          alertMessage(rule.Type, scope, observations),
		Scope:            scope,
		FirstTriggeredAt: now,
		TriggeredAt:      now,
		TriggerCount:     1,
		SuggestedActions: suggestedActions(rule.Type),
		Metadata:         alertMetadata(rule, observations),
	}
	e.active[alert.ID] = alert
	e.open[key] = alert.ID
	snapshot := cloneAlert(alert)
	e.mu.Unlock()

	e.metrics.AlertTriggered(string(rule.Type), string(snapshot.Severity), "created")
	e.logger.Info("alert triggered",
		zap.String("alert_id", snapshot.ID),
		zap.String("rule_id", rule.ID),
		zap.String("business_model", string(scope.BusinessModel)),
		zap.String("tenant_id", scope.TenantID),
		zap.String("severity", string(snapshot.Severity)))
	e.persist(ctx, snapshot)
	e.dispatch(ctx, rule, snapshot)
}

func (e *AlertEngine) dispatch(ctx context.Context, rule *domain.AlertRule, alert *domain.ActiveAlert) {
	notice := NewAlertNotice(alert)
	fields := []zap.Field{zap.String("rule_id", rule.ID), zap.String("alert_id", alert.ID)}

	msg := notification.NewMessage(notification.TypeAlertTriggered, alert.TriggeredAt, notice)
	if err := e.notifier.SendToChannel(ctx, notification.AdminChannel(alert.Scope), msg); err != nil {
		e.logger.Warn("alert broadcast failed", append(fields, zap.Error(err))...)
	}
	if e.notifier.EmailEnabled() {
		subject := fmt.Sprintf("[%s] %s (%s/%s)", strings.ToUpper(string(alert.Severity)), alertTitle(alert.Type),
			alert.Scope.BusinessModel, alert.Scope.TenantID)
		body := alert.Message
		if len(alert.SuggestedActions) > 0 {
			body += "\n\nSuggested actions:\n- " + strings.Join(alert.SuggestedActions, "\n- ")
		}
		for _, to := range rule.Actions.Emails {
			if err := e.notifier.SendEmail(ctx, to, subject, body); err != nil {
				e.logger.Warn("alert email failed", append(fields, zap.String("to", to), zap.Error(err))...)
			}
		}
	}
	if url := strings.TrimSpace(rule.Actions.WebhookURL); url != "" {
		if err := e.notifier.SendWebhook(ctx, url, notice); err != nil {
			e.logger.Warn("alert webhook failed", append(fields, zap.Error(err))...)
		}
	}
}

func (e *AlertEngine) persist(ctx context.Context, alert *domain.ActiveAlert) {
	if e.history == nil {
		return
	}
	if err := e.history.Save(ctx, alert); err != nil {
		e.logger.Warn("alert history write failed", zap.String("alert_id", alert.ID), zap.Error(err))
	}
}

// cleanup drops alerts resolved longer ago than the retention window.
func (e *AlertEngine) cleanup(now time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	removed := 0
	for id, alert := range e.active {
		if alert.ResolvedAt != nil && now.Sub(*alert.ResolvedAt) > e.cfg.ResolvedRetention {
			delete(e.active, id)
			removed++
		}
	}
	return removed
}

// ResolveAlert marks an alert resolved and broadcasts the resolution.
func (e *AlertEngine) ResolveAlert(ctx context.Context, alertID, resolvedBy string) (*domain.ActiveAlert, error) {
	now := e.nowFn()
	e.mu.Lock()
	alert, ok := e.active[alertID]
	if !ok {
		e.mu.Unlock()
		return nil, apperrors.NewAlertNotFound(alertID)
	}
	if alert.IsResolved() {
		e.mu.Unlock()
		return nil, apperrors.NewAlertAlreadyResolved(alertID)
	}
	alert.ResolvedAt = &now
	alert.ResolvedBy = &resolvedBy
	delete(e.open, domain.AlertDedupKey(alert.Type, alert.Scope))
	snapshot := cloneAlert(alert)
	e.mu.Unlock()

	e.logger.Info("alert resolved", zap.String("alert_id", alertID), zap.String("resolved_by", resolvedBy))
	e.persist(ctx, snapshot)
	msg := notification.NewMessage(notification.TypeAlertResolved, now, NewAlertNotice(snapshot))
	if err := e.notifier.SendToChannel(ctx, notification.AdminChannel(snapshot.Scope), msg); err != nil {
		e.logger.Warn("alert resolution broadcast failed", zap.String("alert_id", alertID), zap.Error(err))
	}
	return snapshot, nil
}

// GetAlert returns one alert held in the registry.
func (e *AlertEngine) GetAlert(alertID string) (*domain.ActiveAlert, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	alert, ok := e.active[alertID]
	if !ok {
		return nil, apperrors.NewAlertNotFound(alertID)
	}
	return cloneAlert(alert), nil
}

// GetActiveAlerts returns unresolved alerts, newest trigger first. Empty scope
// fields match everything.
func (e *AlertEngine) GetActiveAlerts(filter domain.Scope) []domain.ActiveAlert {
	e.mu.Lock()
	out := make([]domain.ActiveAlert, 0, len(e.open))
	for _, id := range e.open {
		alert := e.active[id]
		if filter.BusinessModel != "" && alert.Scope.BusinessModel != filter.BusinessModel {
			continue
		}
		if filter.TenantID != "" && alert.Scope.TenantID != filter.TenantID {
			continue
		}
		out = append(out, *cloneAlert(alert))
	}
	e.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TriggeredAt.Equal(out[j].TriggeredAt) {
			return out[i].TriggeredAt.After(out[j].TriggeredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// GetAlertHistory returns persisted alerts, most recent first.
func (e *AlertEngine) GetAlertHistory(ctx context.Context, limit int) ([]domain.ActiveAlert, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	alerts, err := e.history.List(ctx, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return alerts, nil
}

// severityCutoffs is how far past its threshold an observation must be, as a
// ratio, before the alert is critical.
var severityCutoffs = map[domain.AlertType]float64{
	domain.AlertTypeSLABreach:        1.25,
	domain.AlertTypeVolumeSpike:      2.0,
	domain.AlertTypeSatisfactionDrop: 1.25,
	domain.AlertTypeAgentOverload:    1.5,
	domain.AlertTypeResponseTime:     1.5,
	domain.AlertTypeBacklog:          1.5,
}

func severityFor(alertType domain.AlertType, observations []observation) domain.AlertSeverity {
	cutoff, ok := severityCutoffs[alertType]
	if !ok {
		cutoff = 1.5
	}
	for _, o := range observations {
		if exceedRatio(o.Condition.Operator, o.Observed, o.Condition.Threshold) >= cutoff {
			return domain.AlertSeverityCritical
		}
	}
	return domain.AlertSeverityWarning
}

// exceedRatio measures how far observed is past threshold in the direction of
// the operator. Equality operators carry no magnitude.
func exceedRatio(op domain.ComparisonOperator, observed, threshold float64) float64 {
	var num, den float64
	switch op {
	case domain.OpGreaterThan, domain.OpGreaterOrEqual:
		num, den = observed, threshold
	case domain.OpLessThan, domain.OpLessOrEqual:
		num, den = threshold, observed
	default:
		return 1
	}
	if den <= 0 {
		if num > 0 {
			return math.Inf(1)
		}
		return 1
	}
	return num / den
}

var alertTitles = map[domain.AlertType]string{
	domain.AlertTypeSLABreach:        "SLA compliance at risk",
	domain.AlertTypeVolumeSpike:      "Ticket volume spike",
	domain.AlertTypeSatisfactionDrop: "Customer satisfaction drop",
	domain.AlertTypeAgentOverload:    "Agent overload",
	domain.AlertTypeResponseTime:     "Slow response times",
	domain.AlertTypeBacklog:          "Growing ticket backlog",
}

func alertTitle(t domain.AlertType) string {
	if title, ok := alertTitles[t]; ok {
		return title
	}
	return string(t)
}

func alertMessage(t domain.AlertType, scope domain.Scope, observations []observation) string {
	parts := make([]string, 0, len(observations))
	for _, o := range observations {
		parts = append(parts, fmt.Sprintf("%s is %s (threshold %s %s)",
			o.Condition.Metric, formatValue(o.Observed), o.Condition.Operator, formatValue(o.Condition.Threshold)))
	}
	return fmt.Sprintf("%s for %s/%s: %s", alertTitle(t), scope.BusinessModel, scope.TenantID, strings.Join(parts, "; "))
}

func formatValue(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

var alertSuggestions = map[domain.AlertType][]string{
	domain.AlertTypeSLABreach: {
		"Review tickets closest to their SLA deadline",
		"Reassign breached tickets to available agents",
	},
	domain.AlertTypeVolumeSpike: {
		"Check for an ongoing incident or outage",
		"Bring additional agents online",
	},
	domain.AlertTypeSatisfactionDrop: {
		"Review recent low-rated tickets",
		"Follow up with affected customers",
	},
	domain.AlertTypeAgentOverload: {
		"Rebalance open tickets across the team",
		"Raise capacity or enable escalation",
	},
	domain.AlertTypeResponseTime: {
		"Prioritise unanswered tickets",
		"Check agent availability for the current shift",
	},
	domain.AlertTypeBacklog: {
		"Triage unassigned tickets",
		"Enable auto-assignment for the tenant",
	},
}

func suggestedActions(t domain.AlertType) []string {
	return append([]string(nil), alertSuggestions[t]...)
}

func alertMetadata(rule *domain.AlertRule, observations []observation) map[string]any {
	conditions := make([]map[string]any, 0, len(observations))
	for _, o := range observations {
		conditions = append(conditions, map[string]any{
			"metric":              o.Condition.Metric,
			"operator":            o.Condition.Operator,
			"threshold":           o.Condition.Threshold,
			"observed":            o.Observed,
			"time_window_minutes": o.Condition.TimeWindowMinutes,
		})
	}
	return map[string]any{
		"rule_id":    rule.ID,
		"rule_name":  rule.Name,
		"conditions": conditions,
	}
}

func cloneAlert(a *domain.ActiveAlert) *domain.ActiveAlert {
	out := *a
	out.SuggestedActions = append([]string(nil), a.SuggestedActions...)
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		out.ResolvedAt = &t
	}
	if a.ResolvedBy != nil {
		by := *a.ResolvedBy
		out.ResolvedBy = &by
	}
	return &out
}

// AlertNotice is the wire form of an alert on channels and webhooks.
type AlertNotice struct {
	ID               string               `json:"id"`
	RuleID           string               `json:"rule_id"`
	Type             domain.AlertType     `json:"type"`
	Severity         domain.AlertSeverity `json:"severity"`
	Message          string               `json:"message"`
	BusinessModel    domain.BusinessModel `json:"business_model"`
	TenantID         string               `json:"tenant_id"`
	FirstTriggeredAt time.Time            `json:"first_triggered_at"`
	TriggeredAt      time.Time            `json:"triggered_at"`
	TriggerCount     int                  `json:"trigger_count"`
	ResolvedAt       *time.Time           `json:"resolved_at,omitempty"`
	ResolvedBy       *string              `json:"resolved_by,omitempty"`
	SuggestedActions []string             `json:"suggested_actions,omitempty"`
	Metadata         map[string]any       `json:"metadata,omitempty"`
}

// NewAlertNotice converts an alert for transport.
func NewAlertNotice(a *domain.ActiveAlert) AlertNotice {
	return AlertNotice{
		ID:               a.ID,
		RuleID:           a.RuleID,
		Type:             a.Type,
		Severity:         a.Severity,
		Message:          a.Message,
		BusinessModel:    a.Scope.BusinessModel,
		TenantID:         a.Scope.TenantID,
		FirstTriggeredAt: a.FirstTriggeredAt,
		TriggeredAt:      a.TriggeredAt,
		TriggerCount:     a.TriggerCount,
		ResolvedAt:       a.ResolvedAt,
		ResolvedBy:       a.ResolvedBy,
		SuggestedActions: a.SuggestedActions,
		Metadata:         a.Metadata,
	}
}
