package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

func TestResolveUsesBusinessModelDefaults(t *testing.T) {
	f := newFixture(t)
	cfg, err := f.resolver.Resolve(context.Background(), acmeScope)
	require.NoError(t, err)

	assert.Equal(t, acmeScope, cfg.Scope)
	assert.Equal(t, 30, cfg.SLAMinutes[domain.TicketPriorityUrgent])
	assert.True(t, cfg.AutoAssign)
	assert.Equal(t, []domain.Role{domain.RoleVendor, domain.RolePlatformAdmin}, cfg.EscalationRoles)
	assert.Equal(t, 10, cfg.RateLimits.MaxTicketsPerHour)
}

func TestResolvePrefersStoredOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.resolver.Save(ctx, &domain.TenantConfig{
		Scope:             acmeScope,
		SLAMinutes:        domain.SLAMinutes{domain.TicketPriorityUrgent: 10},
		EscalationEnabled: false,
		RateLimits:        domain.RateLimits{MaxTicketsPerHour: 2},
	}))

	cfg, err := f.resolver.Resolve(ctx, acmeScope)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.SLAMinutes[domain.TicketPriorityUrgent])
	assert.Equal(t, 480, cfg.SLAMinutes[domain.TicketPriorityMedium], "missing priorities come from the business model")
	assert.False(t, cfg.EscalationEnabled)
	assert.Equal(t, []domain.Role{domain.RoleVendor, domain.RolePlatformAdmin}, cfg.EscalationRoles)
	assert.Equal(t, 2, cfg.RateLimits.MaxTicketsPerHour)
}

func TestResolveMissingConfig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.resolver.Resolve(ctx, domain.Scope{BusinessModel: "retail", TenantID: "shop"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConfigMissing))

	_, err = f.resolver.Resolve(ctx, domain.Scope{BusinessModel: "marketplace"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConfigMissing))
}

func TestSaveRejectsInvalidSLAMinutes(t *testing.T) {
	f := newFixture(t)
	err := f.resolver.Save(context.Background(), &domain.TenantConfig{
		Scope:      acmeScope,
		SLAMinutes: domain.SLAMinutes{domain.TicketPriorityHigh: 0},
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestListScopesMergesStoredAndCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	extra := domain.Scope{BusinessModel: "saas", TenantID: "hooli"}
	require.NoError(t, f.resolver.Save(ctx, &domain.TenantConfig{Scope: extra}))
	require.NoError(t, f.resolver.Save(ctx, &domain.TenantConfig{Scope: acmeScope}))

	scopes, err := f.resolver.ListScopes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Scope{acmeScope, extra, initechScope}, scopes)
}
