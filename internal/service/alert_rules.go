package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// AlertRuleInput is the writable part of an alert rule.
type AlertRuleInput struct {
	Name          string
	Description   string
	Type          domain.AlertType
	Enabled       bool
	BusinessModel domain.BusinessModel
	TenantID      *string
	Conditions    []domain.AlertCondition
	Actions       domain.AlertActions
}

// ListRules returns every configured rule.
func (e *AlertEngine) ListRules(ctx context.Context) ([]domain.AlertRule, error) {
	rules, err := e.rules.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return rules, nil
}

// GetRule returns one rule or AlertRuleNotFound.
func (e *AlertEngine) GetRule(ctx context.Context, id string) (*domain.AlertRule, error) {
	rule, err := e.rules.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewAlertRuleNotFound(id)
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return rule, nil
}

// CreateRule validates and stores a new rule. It is picked up by the next cycle.
func (e *AlertEngine) CreateRule(ctx context.Context, input AlertRuleInput) (*domain.AlertRule, error) {
	if err := validateRuleInput(&input); err != nil {
		return nil, err
	}
	now := e.nowFn()
	rule := &domain.AlertRule{
		ID:        uuid.NewString(),
		CreatedAt: now,
	}
	applyRuleInput(rule, input, now)
	if err := e.rules.Create(ctx, rule); err != nil {
		return nil, apperrors.MapError(err)
	}
	e.logger.Info("alert rule created", zap.String("rule_id", rule.ID), zap.String("type", string(rule.Type)))
	return rule, nil
}

// UpdateRule replaces the writable fields of a rule.
func (e *AlertEngine) UpdateRule(ctx context.Context, id string, input AlertRuleInput) (*domain.AlertRule, error) {
	if err := validateRuleInput(&input); err != nil {
		return nil, err
	}
	rule, err := e.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	applyRuleInput(rule, input, e.nowFn())
	if err := e.rules.Update(ctx, rule); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewAlertRuleNotFound(id)
		}
		return nil, apperrors.MapError(err)
	}
	e.logger.Info("alert rule updated", zap.String("rule_id", rule.ID))
	return rule, nil
}

// DeleteRule removes a rule. Alerts it already fired stay in the registry.
func (e *AlertEngine) DeleteRule(ctx context.Context, id string) error {
	err := e.rules.Delete(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewAlertRuleNotFound(id)
	}
	if err != nil {
		return apperrors.MapError(err)
	}
	e.logger.Info("alert rule deleted", zap.String("rule_id", id))
	return nil
}

// SeedRules installs catalog rules when no rule is stored yet.
func (e *AlertEngine) SeedRules(ctx context.Context, seeds []config.AlertRuleSeed) (int, error) {
	existing, err := e.rules.List(ctx)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	if len(existing) > 0 {
		return 0, nil
	}
	for _, seed := range seeds {
		enabled := true
		if seed.Enabled != nil {
			enabled = *seed.Enabled
		}
		if _, err := e.CreateRule(ctx, AlertRuleInput{
			Name:          seed.Name,
			Description:   seed.Description,
			Type:          seed.Type,
			Enabled:       enabled,
			BusinessModel: seed.BusinessModel,
			TenantID:      seed.TenantID,
			Conditions:    seed.Conditions,
			Actions:       seed.Actions,
		}); err != nil {
			return 0, err
		}
	}
	return len(seeds), nil
}

func applyRuleInput(rule *domain.AlertRule, input AlertRuleInput, now time.Time) {
	rule.Name = input.Name
	rule.Description = input.Description
	rule.Type = input.Type
	rule.Enabled = input.Enabled
	rule.BusinessModel = input.BusinessModel
	rule.TenantID = input.TenantID
	rule.Conditions = append([]domain.AlertCondition(nil), input.Conditions...)
	rule.Actions = input.Actions
	rule.UpdatedAt = now
}

func validateRuleInput(input *AlertRuleInput) error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return apperrors.NewValidationError("rule name required", nil)
	}
	if !input.Type.Valid() {
		return apperrors.NewValidationError("unknown alert type", map[string]any{"type": input.Type})
	}
	if input.BusinessModel == "" {
		return apperrors.NewValidationError("business model required", nil)
	}
	if input.TenantID != nil && strings.TrimSpace(*input.TenantID) == "" {
		input.TenantID = nil
	}
	if len(input.Conditions) == 0 {
		return apperrors.NewValidationError("at least one condition required", nil)
	}
	for i, cond := range input.Conditions {
		details := map[string]any{"condition": i}
		if !cond.Metric.Valid() {
			details["metric"] = cond.Metric
			return apperrors.NewValidationError("unknown metric", details)
		}
		if !cond.Operator.Valid() {
			details["operator"] = cond.Operator
			return apperrors.NewValidationError("unknown operator", details)
		}
		if cond.TimeWindowMinutes < 0 {
			return apperrors.NewValidationError("time window must not be negative", details)
		}
	}
	return nil
}
