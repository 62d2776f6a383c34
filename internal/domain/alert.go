package domain

import "time"

// AlertType classifies what an alert rule watches.
type AlertType string

const (
	AlertTypeSLABreach        AlertType = "sla_breach"
	AlertTypeVolumeSpike      AlertType = "volume_spike"
	AlertTypeSatisfactionDrop AlertType = "satisfaction_drop"
	AlertTypeAgentOverload    AlertType = "agent_overload"
	AlertTypeResponseTime     AlertType = "response_time"
	AlertTypeBacklog          AlertType = "backlog"
)

// Valid reports whether t is a known alert type.
func (t AlertType) Valid() bool {
	switch t {
	case AlertTypeSLABreach, AlertTypeVolumeSpike, AlertTypeSatisfactionDrop,
		AlertTypeAgentOverload, AlertTypeResponseTime, AlertTypeBacklog:
		return true
	}
	return false
}

// AlertSeverity is derived from how far an observation passed its threshold.
type AlertSeverity string

const (
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

// ComparisonOperator is the operator of an alert condition.
type ComparisonOperator string

const (
	OpGreaterThan    ComparisonOperator = ">"
	OpLessThan       ComparisonOperator = "<"
	OpGreaterOrEqual ComparisonOperator = ">="
	OpLessOrEqual    ComparisonOperator = "<="
	OpEqual          ComparisonOperator = "=="
	OpNotEqual       ComparisonOperator = "!="
)

// Valid reports whether op is supported.
func (op ComparisonOperator) Valid() bool {
	switch op {
	case OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual, OpEqual, OpNotEqual:
		return true
	}
	return false
}

// Compare applies op to observed and threshold.
func (op ComparisonOperator) Compare(observed, threshold float64) bool {
	switch op {
	case OpGreaterThan:
		return observed > threshold
	case OpLessThan:
		return observed < threshold
	case OpGreaterOrEqual:
		return observed >= threshold
	case OpLessOrEqual:
		return observed <= threshold
	case OpEqual:
		return observed == threshold
	case OpNotEqual:
		return observed != threshold
	}
	return false
}

// AlertCondition is one threshold check of a rule.
type AlertCondition struct {
	Metric            MetricKey          `json:"metric" yaml:"metric"`
	Operator          ComparisonOperator `json:"operator" yaml:"operator"`
	Threshold         float64            `json:"threshold" yaml:"threshold"`
	TimeWindowMinutes int                `json:"time_window_minutes" yaml:"time_window_minutes"`
}

// AlertActions lists the extra delivery targets of a rule.
type AlertActions struct {
	Emails     []string `json:"emails,omitempty" yaml:"emails"`
	WebhookURL string   `json:"webhook_url,omitempty" yaml:"webhook_url"`
}

// AlertRule is a named set of AND-combined conditions. A nil TenantID applies
// the rule to every tenant of the business model.
type AlertRule struct {
	ID            string
	Name          string
	Description   string
	Type          AlertType
	Enabled       bool
	Conditions    []AlertCondition
	Actions       AlertActions
	BusinessModel BusinessModel
	TenantID      *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AppliesTo reports whether the rule should be evaluated for scope.
func (r *AlertRule) AppliesTo(scope Scope) bool {
	if r.BusinessModel != scope.BusinessModel {
		return false
	}
	return r.TenantID == nil || *r.TenantID == scope.TenantID
}

// ActiveAlert is a fired instance of a rule.
type ActiveAlert struct {
	ID               string
	RuleID           string
	Type             AlertType
	Severity         AlertSeverity
	Message          string
	Scope            Scope
	FirstTriggeredAt time.Time
	TriggeredAt      time.Time
	TriggerCount     int
	ResolvedAt       *time.Time
	ResolvedBy       *string
	SuggestedActions []string
	Metadata         map[string]any
}

// IsResolved reports whether the alert has been resolved.
func (a *ActiveAlert) IsResolved() bool {
	return a.ResolvedAt != nil
}

// AlertDedupKey builds the key under which at most one unresolved alert may exist.
func AlertDedupKey(t AlertType, scope Scope) string {
	return string(t) + "|" + scope.Key()
}
