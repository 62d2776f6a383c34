package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/support-desk/internal/domain"
)

// Catalog is the static business-model catalog loaded from YAML.
type Catalog struct {
	BusinessModels map[domain.BusinessModel]BusinessModelConfig `yaml:"business_models"`
	AlertRules     []AlertRuleSeed                              `yaml:"alert_rules"`
}

// BusinessModelConfig holds the defaults shared by every tenant of a business model.
type BusinessModelConfig struct {
	EscalationRoles []domain.Role  `yaml:"escalation_roles"`
	Defaults        TenantDefaults `yaml:"defaults"`
	Tenants         []string       `yaml:"tenants"`
}

// TenantDefaults is the tenant configuration applied when no per-tenant row exists.
type TenantDefaults struct {
	SLAMinutes        map[domain.TicketPriority]int `yaml:"sla_minutes"`
	AutoAssign        bool                          `yaml:"auto_assign"`
	EscalationEnabled bool                          `yaml:"escalation_enabled"`
	BusinessHours     domain.BusinessHours          `yaml:"business_hours"`
	RateLimits        domain.RateLimits             `yaml:"rate_limits"`
}

// AlertRuleSeed declares an alert rule installed at startup when missing.
type AlertRuleSeed struct {
	Name          string                  `yaml:"name"`
	Description   string                  `yaml:"description"`
	Type          domain.AlertType        `yaml:"type"`
	Enabled       *bool                   `yaml:"enabled"`
	BusinessModel domain.BusinessModel    `yaml:"business_model"`
	TenantID      *string                 `yaml:"tenant_id"`
	Conditions    []domain.AlertCondition `yaml:"conditions"`
	Actions       domain.AlertActions     `yaml:"actions"`
}

// LoadCatalog reads and validates the catalog file at path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if catalog.BusinessModels == nil {
		catalog.BusinessModels = map[domain.BusinessModel]BusinessModelConfig{}
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// EmptyCatalog returns a catalog with no business models.
func EmptyCatalog() *Catalog {
	return &Catalog{BusinessModels: map[domain.BusinessModel]BusinessModelConfig{}}
}

// Validate checks priorities, roles and rule references.
func (c *Catalog) Validate() error {
	for model, bm := range c.BusinessModels {
		for priority, minutes := range bm.Defaults.SLAMinutes {
			if !priority.Valid() {
				return fmt.Errorf("business model %s: unknown priority %q", model, priority)
			}
			if minutes <= 0 {
				return fmt.Errorf("business model %s: sla minutes for %s must be positive", model, priority)
			}
		}
		for _, role := range bm.EscalationRoles {
			if !role.IsStaff() {
				return fmt.Errorf("business model %s: escalation role %q is not a staff role", model, role)
			}
		}
	}
	for i, rule := range c.AlertRules {
		if rule.Name == "" {
			return fmt.Errorf("alert rule %d: name required", i)
		}
		if !rule.Type.Valid() {
			return fmt.Errorf("alert rule %s: unknown type %q", rule.Name, rule.Type)
		}
		if _, ok := c.BusinessModels[rule.BusinessModel]; !ok {
			return fmt.Errorf("alert rule %s: unknown business model %q", rule.Name, rule.BusinessModel)
		}
		for _, cond := range rule.Conditions {
			if !cond.Metric.Valid() {
				return fmt.Errorf("alert rule %s: unknown metric %q", rule.Name, cond.Metric)
			}
			if !cond.Operator.Valid() {
				return fmt.Errorf("alert rule %s: unknown operator %q", rule.Name, cond.Operator)
			}
		}
	}
	return nil
}

// DefaultsFor returns the business-model level configuration for scope.
func (c *Catalog) DefaultsFor(scope domain.Scope) (*domain.TenantConfig, bool) {
	bm, ok := c.BusinessModels[scope.BusinessModel]
	if !ok {
		return nil, false
	}
	sla := make(domain.SLAMinutes, len(bm.Defaults.SLAMinutes))
	for p, m := range bm.Defaults.SLAMinutes {
		sla[p] = m
	}
	return &domain.TenantConfig{
		Scope:             scope,
		SLAMinutes:        sla,
		AutoAssign:        bm.Defaults.AutoAssign,
		EscalationEnabled: bm.Defaults.EscalationEnabled,
		EscalationRoles:   append([]domain.Role(nil), bm.EscalationRoles...),
		BusinessHours:     bm.Defaults.BusinessHours,
		RateLimits:        bm.Defaults.RateLimits,
	}, true
}

// EscalationRoles returns the ordered escalation hierarchy of a business model.
func (c *Catalog) EscalationRoles(model domain.BusinessModel) []domain.Role {
	return append([]domain.Role(nil), c.BusinessModels[model].EscalationRoles...)
}

// Scopes lists every tenant declared in the catalog.
func (c *Catalog) Scopes() []domain.Scope {
	var scopes []domain.Scope
	for model, bm := range c.BusinessModels {
		for _, tenant := range bm.Tenants {
			scopes = append(scopes, domain.Scope{BusinessModel: model, TenantID: tenant})
		}
	}
	return scopes
}
