package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// AlertHistoryRepository is the durable log of fired alerts. Save upserts by alert id
// so refreshes and resolutions overwrite the earlier snapshot.
type AlertHistoryRepository interface {
	Save(ctx context.Context, alert *domain.ActiveAlert) error
	// List returns the most recent alerts first.
	List(ctx context.Context, limit int) ([]domain.ActiveAlert, error)
}

type alertHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewAlertHistoryRepository constructs repository.
func NewAlertHistoryRepository(pool *pgxpool.Pool) AlertHistoryRepository {
	return &alertHistoryRepository{pool: pool}
}

func (r *alertHistoryRepository) Save(ctx context.Context, alert *domain.ActiveAlert) error {
	actions, err := json.Marshal(alert.SuggestedActions)
	if err != nil {
		return fmt.Errorf("encode suggested actions: %w", err)
	}
	metadata, err := json.Marshal(alert.Metadata)
	if err != nil {
		return fmt.Errorf("encode alert metadata: %w", err)
	}
	const query = `
        INSERT INTO alert_history (id, rule_id, type, severity, message, business_model, tenant_id,
            first_triggered_at, triggered_at, trigger_count, resolved_at, resolved_by, suggested_actions, metadata)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        ON CONFLICT (id) DO UPDATE SET severity=EXCLUDED.severity, message=EXCLUDED.message,
            triggered_at=EXCLUDED.triggered_at, trigger_count=EXCLUDED.trigger_count,
            resolved_at=EXCLUDED.resolved_at, resolved_by=EXCLUDED.resolved_by,
            suggested_actions=EXCLUDED.suggested_actions, metadata=EXCLUDED.metadata`
	_, err = conn(ctx, r.pool).Exec(ctx, query,
		alert.ID,
		alert.RuleID,
		alert.Type,
		alert.Severity,
		alert.Message,
		alert.Scope.BusinessModel,
		alert.Scope.TenantID,
		alert.FirstTriggeredAt,
		alert.TriggeredAt,
		alert.TriggerCount,
		alert.ResolvedAt,
		alert.ResolvedBy,
		actions,
		metadata,
	)
	return err
}

func (r *alertHistoryRepository) List(ctx context.Context, limit int) ([]domain.ActiveAlert, error) {
	const query = `
        SELECT id, rule_id, type, severity, message, business_model, tenant_id, first_triggered_at,
               triggered_at, trigger_count, resolved_at, resolved_by, suggested_actions, metadata
        FROM alert_history ORDER BY triggered_at DESC, id ASC LIMIT $1`
	rows, err := conn(ctx, r.pool).Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []domain.ActiveAlert
	for rows.Next() {
		var (
			alert             domain.ActiveAlert
			actions, metadata []byte
		)
		if err := rows.Scan(
			&alert.ID,
			&alert.RuleID,
			&alert.Type,
			&alert.Severity,
			&alert.Message,
			&alert.Scope.BusinessModel,
			&alert.Scope.TenantID,
			&alert.FirstTriggeredAt,
			&alert.TriggeredAt,
			&alert.TriggerCount,
			&alert.ResolvedAt,
			&alert.ResolvedBy,
			&actions,
			&metadata,
		); err != nil {
			return nil, err
		}
		if len(actions) > 0 {
			if err := json.Unmarshal(actions, &alert.SuggestedActions); err != nil {
				return nil, fmt.Errorf("decode suggested actions: %w", err)
			}
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &alert.Metadata); err != nil {
				return nil, fmt.Errorf("decode alert metadata: %w", err)
			}
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}
