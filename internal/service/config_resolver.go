package service

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// ConfigResolver resolves the effective configuration of a tenant: the
// persisted row first, then the business-model defaults of the catalog.
type ConfigResolver struct {
	configs repository.TenantConfigRepository
	catalog *config.Catalog
	logger  *zap.Logger
}

// NewConfigResolver creates the resolver. A nil catalog behaves as empty.
func NewConfigResolver(configs repository.TenantConfigRepository, catalog *config.Catalog, logger *zap.Logger) *ConfigResolver {
	if catalog == nil {
		catalog = config.EmptyCatalog()
	}
	return &ConfigResolver{configs: configs, catalog: catalog, logger: logger}
}

// Resolve returns the configuration for scope or a ConfigMissing error.
func (r *ConfigResolver) Resolve(ctx context.Context, scope domain.Scope) (*domain.TenantConfig, error) {
	if scope.BusinessModel == "" || scope.TenantID == "" {
		return nil, apperrors.NewConfigMissing(string(scope.BusinessModel), scope.TenantID)
	}

	defaults, hasDefaults := r.catalog.DefaultsFor(scope)

	stored, err := r.configs.Get(ctx, scope)
	switch {
	case err == nil:
		if hasDefaults {
			fillFromDefaults(stored, defaults)
		}
		return stored, nil
	case errors.Is(err, pgx.ErrNoRows):
		if hasDefaults {
			return defaults, nil
		}
		return nil, apperrors.NewConfigMissing(string(scope.BusinessModel), scope.TenantID)
	default:
		return nil, apperrors.MapError(err)
	}
}

// Save stores a per-tenant override.
func (r *ConfigResolver) Save(ctx context.Context, cfg *domain.TenantConfig) error {
	for p, minutes := range cfg.SLAMinutes {
		if !p.Valid() || minutes <= 0 {
			return apperrors.NewValidationError("invalid sla minutes", map[string]any{"priority": p, "minutes": minutes})
		}
	}
	return apperrors.MapError(r.configs.Upsert(ctx, cfg))
}

// ListScopes returns every known tenant: persisted rows plus catalog tenants.
func (r *ConfigResolver) ListScopes(ctx context.Context) ([]domain.Scope, error) {
	stored, err := r.configs.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	seen := map[domain.Scope]struct{}{}
	var scopes []domain.Scope
	add := func(s domain.Scope) {
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		scopes = append(scopes, s)
	}
	for _, cfg := range stored {
		add(cfg.Scope)
	}
	for _, s := range r.catalog.Scopes() {
		add(s)
	}
	sort.Slice(scopes, func(i, j int) bool { return scopes[i].Key() < scopes[j].Key() })
	return scopes, nil
}

// fillFromDefaults completes a partial override with business-model values.
func fillFromDefaults(cfg, defaults *domain.TenantConfig) {
	if cfg.SLAMinutes == nil {
		cfg.SLAMinutes = domain.SLAMinutes{}
	}
	for p, m := range defaults.SLAMinutes {
		if _, ok := cfg.SLAMinutes.For(p); !ok {
			cfg.SLAMinutes[p] = m
		}
	}
	if len(cfg.EscalationRoles) == 0 {
		cfg.EscalationRoles = defaults.EscalationRoles
	}
	if cfg.BusinessHours.Start == "" && cfg.BusinessHours.End == "" {
		cfg.BusinessHours = defaults.BusinessHours
	}
}
