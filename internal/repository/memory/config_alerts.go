package memory

import (
	"context"
	"slices"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
)

type tenantConfigRepo struct{ s *Store }

func (r *tenantConfigRepo) Get(ctx context.Context, scope domain.Scope) (*domain.TenantConfig, error) {
	defer r.s.lock(ctx)()
	cfg, ok := r.s.tenantConfigs[scope.Key()]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &cfg, nil
}

func (r *tenantConfigRepo) List(ctx context.Context) ([]domain.TenantConfig, error) {
	defer r.s.lock(ctx)()
	out := make([]domain.TenantConfig, 0, len(r.s.tenantConfigs))
	for _, cfg := range r.s.tenantConfigs {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Scope.Key() < out[j].Scope.Key() })
	return out, nil
}

func (r *tenantConfigRepo) Upsert(ctx context.Context, cfg *domain.TenantConfig) error {
	defer r.s.lock(ctx)()
	r.s.tenantConfigs[cfg.Scope.Key()] = *cfg
	return nil
}

type alertRuleRepo struct{ s *Store }

func (r *alertRuleRepo) Create(ctx context.Context, rule *domain.AlertRule) error {
	defer r.s.lock(ctx)()
	r.s.alertRules[rule.ID] = cloneRule(*rule)
	return nil
}

func (r *alertRuleRepo) Update(ctx context.Context, rule *domain.AlertRule) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.alertRules[rule.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.s.alertRules[rule.ID] = cloneRule(*rule)
	return nil
}

func (r *alertRuleRepo) Delete(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.alertRules[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.alertRules, id)
	return nil
}

func (r *alertRuleRepo) GetByID(ctx context.Context, id string) (*domain.AlertRule, error) {
	defer r.s.lock(ctx)()
	rule, ok := r.s.alertRules[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := cloneRule(rule)
	return &out, nil
}

func (r *alertRuleRepo) List(ctx context.Context) ([]domain.AlertRule, error) {
	defer r.s.lock(ctx)()
	out := make([]domain.AlertRule, 0, len(r.s.alertRules))
	for _, rule := range r.s.alertRules {
		out = append(out, cloneRule(rule))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func cloneRule(rule domain.AlertRule) domain.AlertRule {
	rule.Conditions = slices.Clone(rule.Conditions)
	rule.Actions.Emails = slices.Clone(rule.Actions.Emails)
	rule.TenantID = clonePtr(rule.TenantID)
	return rule
}

type alertHistoryRepo struct{ s *Store }

func (r *alertHistoryRepo) Save(ctx context.Context, alert *domain.ActiveAlert) error {
	defer r.s.lock(ctx)()
	stored := *alert
	stored.SuggestedActions = slices.Clone(alert.SuggestedActions)
	stored.ResolvedAt = clonePtr(alert.ResolvedAt)
	stored.ResolvedBy = clonePtr(alert.ResolvedBy)
	r.s.alertHistory[alert.ID] = stored
	return nil
}

func (r *alertHistoryRepo) List(ctx context.Context, limit int) ([]domain.ActiveAlert, error) {
	defer r.s.lock(ctx)()
	out := make([]domain.ActiveAlert, 0, len(r.s.alertHistory))
	for _, alert := range r.s.alertHistory {
		out = append(out, alert)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TriggeredAt.Equal(out[j].TriggeredAt) {
			return out[i].TriggeredAt.After(out[j].TriggeredAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
