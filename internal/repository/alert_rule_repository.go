package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// AlertRuleRepository persists alert rules.
type AlertRuleRepository interface {
	Create(ctx context.Context, rule *domain.AlertRule) error
	Update(ctx context.Context, rule *domain.AlertRule) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.AlertRule, error)
	List(ctx context.Context) ([]domain.AlertRule, error)
}

type alertRuleRepository struct {
	pool *pgxpool.Pool
}

// NewAlertRuleRepository constructs repository.
func NewAlertRuleRepository(pool *pgxpool.Pool) AlertRuleRepository {
	return &alertRuleRepository{pool: pool}
}

const alertRuleColumns = `id, name, description, type, enabled, conditions, actions, business_model, tenant_id,
       created_at, updated_at`

func (r *alertRuleRepository) Create(ctx context.Context, rule *domain.AlertRule) error {
	conditions, actions, err := encodeRuleDocs(rule)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO alert_rules (` + alertRuleColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err = conn(ctx, r.pool).Exec(ctx, query,
		rule.ID,
		rule.Name,
		rule.Description,
		rule.Type,
		rule.Enabled,
		conditions,
		actions,
		rule.BusinessModel,
		rule.TenantID,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	return err
}

func (r *alertRuleRepository) Update(ctx context.Context, rule *domain.AlertRule) error {
	conditions, actions, err := encodeRuleDocs(rule)
	if err != nil {
		return err
	}
	const query = `
        UPDATE alert_rules SET name=$1, description=$2, type=$3, enabled=$4, conditions=$5, actions=$6,
            business_model=$7, tenant_id=$8, updated_at=$9
        WHERE id=$10`
	cmd, err := conn(ctx, r.pool).Exec(ctx, query,
		rule.Name,
		rule.Description,
		rule.Type,
		rule.Enabled,
		conditions,
		actions,
		rule.BusinessModel,
		rule.TenantID,
		rule.UpdatedAt,
		rule.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *alertRuleRepository) Delete(ctx context.Context, id string) error {
	cmd, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM alert_rules WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *alertRuleRepository) GetByID(ctx context.Context, id string) (*domain.AlertRule, error) {
	return scanAlertRule(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+alertRuleColumns+` FROM alert_rules WHERE id=$1`, id))
}

func (r *alertRuleRepository) List(ctx context.Context) ([]domain.AlertRule, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+alertRuleColumns+` FROM alert_rules ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []domain.AlertRule
	for rows.Next() {
		rule, err := scanAlertRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

func encodeRuleDocs(rule *domain.AlertRule) ([]byte, []byte, error) {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return nil, nil, fmt.Errorf("encode conditions: %w", err)
	}
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return nil, nil, fmt.Errorf("encode actions: %w", err)
	}
	return conditions, actions, nil
}

func scanAlertRule(row pgx.Row) (*domain.AlertRule, error) {
	var (
		rule                domain.AlertRule
		conditions, actions []byte
	)
	if err := row.Scan(
		&rule.ID,
		&rule.Name,
		&rule.Description,
		&rule.Type,
		&rule.Enabled,
		&conditions,
		&actions,
		&rule.BusinessModel,
		&rule.TenantID,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
		return nil, fmt.Errorf("decode conditions: %w", err)
	}
	if err := json.Unmarshal(actions, &rule.Actions); err != nil {
		return nil, fmt.Errorf("decode actions: %w", err)
	}
	return &rule, nil
}
