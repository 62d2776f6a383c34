package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// AlertConditionRequest is one threshold check.
type AlertConditionRequest struct {
	Metric            domain.MetricKey          `json:"metric" validate:"required"`
	Operator          domain.ComparisonOperator `json:"operator" validate:"required,oneof=> < >= <= == !="`
	Threshold         float64                   `json:"threshold"`
	TimeWindowMinutes int                       `json:"time_window_minutes" validate:"gte=0,lte=10080"`
}

// AlertActionsRequest lists extra delivery targets.
type AlertActionsRequest struct {
	Emails     []string `json:"emails" validate:"max=20,dive,email"`
	WebhookURL string   `json:"webhook_url" validate:"omitempty,url"`
}

// AlertRuleRequest creates or replaces a rule.
type AlertRuleRequest struct {
	Name          string                  `json:"name" validate:"required,max=200"`
	Description   string                  `json:"description" validate:"max=2000"`
	Type          domain.AlertType        `json:"type" validate:"required"`
	Enabled       *bool                   `json:"enabled"`
	BusinessModel domain.BusinessModel    `json:"business_model"`
	TenantID      *string                 `json:"tenant_id"`
	Conditions    []AlertConditionRequest `json:"conditions" validate:"required,min=1,max=10,dive"`
	Actions       AlertActionsRequest     `json:"actions"`
}

// AlertRuleResponse exposes a rule.
type AlertRuleResponse struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	Description   string                  `json:"description"`
	Type          domain.AlertType        `json:"type"`
	Enabled       bool                    `json:"enabled"`
	BusinessModel domain.BusinessModel    `json:"business_model"`
	TenantID      *string                 `json:"tenant_id"`
	Conditions    []domain.AlertCondition `json:"conditions"`
	Actions       domain.AlertActions     `json:"actions"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}
