package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// AgentRepository reads the agent directory and stores rolling ratings.
type AgentRepository interface {
	Create(ctx context.Context, agent *domain.AgentProfile) error
	Update(ctx context.Context, agent *domain.AgentProfile) error
	GetByID(ctx context.Context, id string) (*domain.AgentProfile, error)
	List(ctx context.Context, filter AgentFilter) ([]domain.AgentProfile, error)
}

// AgentFilter narrows agent listings. Agents with a nil tenant match any TenantID.
type AgentFilter struct {
	BusinessModel *domain.BusinessModel
	TenantID      *string
	Role          *domain.Role
	ActiveOnly    bool
	AvailableOnly bool
}

type agentRepository struct {
	pool *pgxpool.Pool
}

// NewAgentRepository instantiates the repository.
func NewAgentRepository(pool *pgxpool.Pool) AgentRepository {
	return &agentRepository{pool: pool}
}

const agentColumns = `id, name, email, role, business_model, tenant_id, active, available, skills,
       max_concurrent_tickets, satisfaction_rating, rating_count, created_at, updated_at`

func (r *agentRepository) Create(ctx context.Context, agent *domain.AgentProfile) error {
	const query = `
        INSERT INTO agent_profiles (id, name, email, role, business_model, tenant_id, active, available, skills,
            max_concurrent_tickets, satisfaction_rating, rating_count, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		agent.ID,
		agent.Name,
		agent.Email,
		agent.Role,
		agent.BusinessModel,
		agent.TenantID,
		agent.Active,
		agent.Available,
		skillStrings(agent.Skills),
		agent.MaxConcurrentTickets,
		agent.SatisfactionRating,
		agent.RatingCount,
		agent.CreatedAt,
		agent.UpdatedAt,
	)
	return err
}

func (r *agentRepository) Update(ctx context.Context, agent *domain.AgentProfile) error {
	const query = `
        UPDATE agent_profiles SET name=$1, email=$2, role=$3, active=$4, available=$5, skills=$6,
            max_concurrent_tickets=$7, satisfaction_rating=$8, rating_count=$9, updated_at=$10
        WHERE id=$11`
	cmd, err := conn(ctx, r.pool).Exec(ctx, query,
		agent.Name,
		agent.Email,
		agent.Role,
		agent.Active,
		agent.Available,
		skillStrings(agent.Skills),
		agent.MaxConcurrentTickets,
		agent.SatisfactionRating,
		agent.RatingCount,
		agent.UpdatedAt,
		agent.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *agentRepository) GetByID(ctx context.Context, id string) (*domain.AgentProfile, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+agentColumns+` FROM agent_profiles WHERE id=$1`, id)
	return scanAgent(row)
}

func (r *agentRepository) List(ctx context.Context, filter AgentFilter) ([]domain.AgentProfile, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.BusinessModel != nil {
		args = append(args, *filter.BusinessModel)
		clauses = append(clauses, fmt.Sprintf("business_model = $%d", len(args)))
	}
	if filter.TenantID != nil {
		args = append(args, *filter.TenantID)
		clauses = append(clauses, fmt.Sprintf("(tenant_id IS NULL OR tenant_id = $%d)", len(args)))
	}
	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.ActiveOnly {
		clauses = append(clauses, "active = true")
	}
	if filter.AvailableOnly {
		clauses = append(clauses, "available = true")
	}

	query := `SELECT ` + agentColumns + ` FROM agent_profiles WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY id ASC`
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []domain.AgentProfile
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *agent)
	}
	return agents, rows.Err()
}

func skillStrings(skills []domain.TicketCategory) []string {
	values := make([]string, len(skills))
	for i, s := range skills {
		values[i] = string(s)
	}
	return values
}

func scanAgent(row pgx.Row) (*domain.AgentProfile, error) {
	var (
		agent  domain.AgentProfile
		skills []string
	)
	if err := row.Scan(
		&agent.ID,
		&agent.Name,
		&agent.Email,
		&agent.Role,
		&agent.BusinessModel,
		&agent.TenantID,
		&agent.Active,
		&agent.Available,
		&skills,
		&agent.MaxConcurrentTickets,
		&agent.SatisfactionRating,
		&agent.RatingCount,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	); err != nil {
		return nil, err
	}
	for _, s := range skills {
		agent.Skills = append(agent.Skills, domain.TicketCategory(s))
	}
	return &agent, nil
}
