package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// SLARepository persists the SLA record owned by each ticket.
type SLARepository interface {
	Create(ctx context.Context, record *domain.SLARecord) error
	Update(ctx context.Context, record *domain.SLARecord) error
	GetByTicketID(ctx context.Context, ticketID string) (*domain.SLARecord, error)
	GetByTicketIDForUpdate(ctx context.Context, ticketID string) (*domain.SLARecord, error)
	ListByTicketIDs(ctx context.Context, ticketIDs []string) ([]domain.SLARecord, error)
	// ListOpen returns records whose ticket is neither resolved nor closed.
	ListOpen(ctx context.Context) ([]domain.SLARecord, error)
}

type slaRepository struct {
	pool *pgxpool.Pool
}

// NewSLARepository constructs repository.
func NewSLARepository(pool *pgxpool.Pool) SLARepository {
	return &slaRepository{pool: pool}
}

const slaColumns = `ticket_id, first_response_minutes, resolution_minutes, first_response_due, resolution_due,
       first_response_met, resolution_met, first_response_breach, resolution_breach, breach_minutes, updated_at`

func (r *slaRepository) Create(ctx context.Context, record *domain.SLARecord) error {
	const query = `
        INSERT INTO sla_records (` + slaColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := conn(ctx, r.pool).Exec(ctx, query, slaArgs(record)...)
	return err
}

func (r *slaRepository) Update(ctx context.Context, record *domain.SLARecord) error {
	const query = `
        UPDATE sla_records SET first_response_minutes=$2, resolution_minutes=$3, first_response_due=$4,
            resolution_due=$5, first_response_met=$6, resolution_met=$7, first_response_breach=$8,
            resolution_breach=$9, breach_minutes=$10, updated_at=$11
        WHERE ticket_id=$1`
	cmd, err := conn(ctx, r.pool).Exec(ctx, query, slaArgs(record)...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *slaRepository) GetByTicketID(ctx context.Context, ticketID string) (*domain.SLARecord, error) {
	return scanSLA(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+slaColumns+` FROM sla_records WHERE ticket_id=$1`, ticketID))
}

func (r *slaRepository) GetByTicketIDForUpdate(ctx context.Context, ticketID string) (*domain.SLARecord, error) {
	return scanSLA(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+slaColumns+` FROM sla_records WHERE ticket_id=$1 FOR UPDATE`, ticketID))
}

func (r *slaRepository) ListByTicketIDs(ctx context.Context, ticketIDs []string) ([]domain.SLARecord, error) {
	if len(ticketIDs) == 0 {
		return nil, nil
	}
	return r.list(ctx, `SELECT `+slaColumns+` FROM sla_records WHERE ticket_id = ANY($1)`, ticketIDs)
}

func (r *slaRepository) ListOpen(ctx context.Context) ([]domain.SLARecord, error) {
	const query = `
        SELECT s.ticket_id, s.first_response_minutes, s.resolution_minutes, s.first_response_due, s.resolution_due,
               s.first_response_met, s.resolution_met, s.first_response_breach, s.resolution_breach,
               s.breach_minutes, s.updated_at
        FROM sla_records s JOIN tickets t ON t.id = s.ticket_id
        WHERE t.status NOT IN ('RESOLVED', 'CLOSED')`
	return r.list(ctx, query)
}

func (r *slaRepository) list(ctx context.Context, query string, args ...any) ([]domain.SLARecord, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.SLARecord
	for rows.Next() {
		record, err := scanSLA(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

func slaArgs(record *domain.SLARecord) []any {
	return []any{
		record.TicketID,
		record.FirstResponseMinutes,
		record.ResolutionMinutes,
		record.FirstResponseDue,
		record.ResolutionDue,
		record.FirstResponseMet,
		record.ResolutionMet,
		record.FirstResponseBreach,
		record.ResolutionBreach,
		record.BreachMinutes,
		record.UpdatedAt,
	}
}

func scanSLA(row pgx.Row) (*domain.SLARecord, error) {
	var record domain.SLARecord
	if err := row.Scan(
		&record.TicketID,
		&record.FirstResponseMinutes,
		&record.ResolutionMinutes,
		&record.FirstResponseDue,
		&record.ResolutionDue,
		&record.FirstResponseMet,
		&record.ResolutionMet,
		&record.FirstResponseBreach,
		&record.ResolutionBreach,
		&record.BreachMinutes,
		&record.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &record, nil
}
