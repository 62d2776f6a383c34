package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// TenantConfigRepository stores per-tenant configuration overrides.
type TenantConfigRepository interface {
	Get(ctx context.Context, scope domain.Scope) (*domain.TenantConfig, error)
	List(ctx context.Context) ([]domain.TenantConfig, error)
	Upsert(ctx context.Context, cfg *domain.TenantConfig) error
}

type tenantConfigRepository struct {
	pool *pgxpool.Pool
}

// NewTenantConfigRepository constructs repository.
func NewTenantConfigRepository(pool *pgxpool.Pool) TenantConfigRepository {
	return &tenantConfigRepository{pool: pool}
}

const tenantConfigColumns = `business_model, tenant_id, sla_minutes, auto_assign, escalation_enabled,
       escalation_roles, business_hours, max_tickets_per_hour, max_tickets_per_day, updated_at`

func (r *tenantConfigRepository) Get(ctx context.Context, scope domain.Scope) (*domain.TenantConfig, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+tenantConfigColumns+` FROM tenant_configs WHERE business_model=$1 AND tenant_id=$2`,
		scope.BusinessModel, scope.TenantID)
	return scanTenantConfig(row)
}

func (r *tenantConfigRepository) List(ctx context.Context) ([]domain.TenantConfig, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+tenantConfigColumns+` FROM tenant_configs ORDER BY business_model, tenant_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []domain.TenantConfig
	for rows.Next() {
		cfg, err := scanTenantConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, *cfg)
	}
	return configs, rows.Err()
}

func (r *tenantConfigRepository) Upsert(ctx context.Context, cfg *domain.TenantConfig) error {
	sla, err := json.Marshal(cfg.SLAMinutes)
	if err != nil {
		return fmt.Errorf("encode sla minutes: %w", err)
	}
	hours, err := json.Marshal(cfg.BusinessHours)
	if err != nil {
		return fmt.Errorf("encode business hours: %w", err)
	}
	roles := make([]string, len(cfg.EscalationRoles))
	for i, role := range cfg.EscalationRoles {
		roles[i] = string(role)
	}
	const query = `
        INSERT INTO tenant_configs (` + tenantConfigColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        ON CONFLICT (business_model, tenant_id) DO UPDATE SET
            sla_minutes=EXCLUDED.sla_minutes, auto_assign=EXCLUDED.auto_assign,
            escalation_enabled=EXCLUDED.escalation_enabled, escalation_roles=EXCLUDED.escalation_roles,
            business_hours=EXCLUDED.business_hours, max_tickets_per_hour=EXCLUDED.max_tickets_per_hour,
            max_tickets_per_day=EXCLUDED.max_tickets_per_day, updated_at=EXCLUDED.updated_at`
	_, err = conn(ctx, r.pool).Exec(ctx, query,
		cfg.Scope.BusinessModel,
		cfg.Scope.TenantID,
		sla,
		cfg.AutoAssign,
		cfg.EscalationEnabled,
		roles,
		hours,
		cfg.RateLimits.MaxTicketsPerHour,
		cfg.RateLimits.MaxTicketsPerDay,
		cfg.UpdatedAt,
	)
	return err
}

func scanTenantConfig(row pgx.Row) (*domain.TenantConfig, error) {
	var (
		cfg         domain.TenantConfig
		sla, hours  []byte
		roleStrings []string
	)
	if err := row.Scan(
		&cfg.Scope.BusinessModel,
		&cfg.Scope.TenantID,
		&sla,
		&cfg.AutoAssign,
		&cfg.EscalationEnabled,
		&roleStrings,
		&hours,
		&cfg.RateLimits.MaxTicketsPerHour,
		&cfg.RateLimits.MaxTicketsPerDay,
		&cfg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sla, &cfg.SLAMinutes); err != nil {
		return nil, fmt.Errorf("decode sla minutes: %w", err)
	}
	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &cfg.BusinessHours); err != nil {
			return nil, fmt.Errorf("decode business hours: %w", err)
		}
	}
	for _, role := range roleStrings {
		cfg.EscalationRoles = append(cfg.EscalationRoles, domain.Role(role))
	}
	return &cfg, nil
}
