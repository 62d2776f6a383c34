package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// TicketSort enumerates sortable columns.
type TicketSort string

const (
	SortCreatedDesc  TicketSort = "created_desc"
	SortCreatedAsc   TicketSort = "created_asc"
	SortUpdatedDesc  TicketSort = "updated_desc"
	SortPriorityDesc TicketSort = "priority_desc"
)

// TicketFilter captures list parameters. A zero Limit returns every match.
type TicketFilter struct {
	Scope       domain.Scope
	RequesterID *string
	AssigneeID  *string
	Unassigned  bool
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	Categories  []domain.TicketCategory
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Sort        TicketSort
	Limit       int
	Offset      int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	// Create stores the ticket and fills its sequence Number.
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetByIDForUpdate locks the row for the surrounding transaction.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)
	CountByRequesterSince(ctx context.Context, requesterID string, scope domain.Scope, since time.Time) (int, error)
	// CountOpenByAgents returns the workload count for each agent id.
	CountOpenByAgents(ctx context.Context, agentIDs []string) (map[string]int, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, number, subject, description, category, priority, status, business_model, tenant_id,
       requester_id, assigned_agent_id, vendor_id, order_id, product_id, metadata, escalations, satisfaction,
       created_at, updated_at, first_response_at, last_response_at, resolved_at, closed_at`

// FormatTicketNumber renders the human readable ticket number.
func FormatTicketNumber(seq int64) string {
	return fmt.Sprintf("TKT-%06d", seq)
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	metadata, escalations, satisfaction, err := encodeTicketDocs(ticket)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO tickets (id, number, subject, description, category, priority, status, business_model, tenant_id,
            requester_id, assigned_agent_id, vendor_id, order_id, product_id, metadata, escalations, satisfaction,
            created_at, updated_at, first_response_at, last_response_at, resolved_at, closed_at)
        VALUES ($1, nextval('ticket_number_seq'), $2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
        RETURNING number`
	var seq int64
	if err := conn(ctx, r.pool).QueryRow(ctx, query,
		ticket.ID,
		ticket.Subject,
		ticket.Description,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.Scope.BusinessModel,
		ticket.Scope.TenantID,
		ticket.RequesterID,
		ticket.AssignedAgentID,
		ticket.VendorID,
		ticket.OrderID,
		ticket.ProductID,
		metadata,
		escalations,
		satisfaction,
		ticket.CreatedAt,
		ticket.UpdatedAt,
		ticket.FirstResponseAt,
		ticket.LastResponseAt,
		ticket.ResolvedAt,
		ticket.ClosedAt,
	).Scan(&seq); err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	ticket.Number = FormatTicketNumber(seq)
	return nil
}

// Update persists mutable fields. Scope and requester never change after creation.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	metadata, escalations, satisfaction, err := encodeTicketDocs(ticket)
	if err != nil {
		return err
	}
	const query = `
        UPDATE tickets SET subject=$1, description=$2, category=$3, priority=$4, status=$5, assigned_agent_id=$6,
            vendor_id=$7, order_id=$8, product_id=$9, metadata=$10, escalations=$11, satisfaction=$12,
            updated_at=$13, first_response_at=$14, last_response_at=$15, resolved_at=$16, closed_at=$17
        WHERE id=$18`
	cmd, err := conn(ctx, r.pool).Exec(ctx, query,
		ticket.Subject,
		ticket.Description,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.AssignedAgentID,
		ticket.VendorID,
		ticket.OrderID,
		ticket.ProductID,
		metadata,
		escalations,
		satisfaction,
		ticket.UpdatedAt,
		ticket.FirstResponseAt,
		ticket.LastResponseAt,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id)
}

func (r *ticketRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1 FOR UPDATE`, id)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(conn(ctx, r.pool).QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	where, args := ticketWhere(filter)

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tickets: %w", err)
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ` + where + ` ORDER BY ` + ticketOrder(filter.Sort)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		tickets = append(tickets, *ticket)
	}
	return tickets, total, rows.Err()
}

func (r *ticketRepository) CountByRequesterSince(ctx context.Context, requesterID string, scope domain.Scope, since time.Time) (int, error) {
	const query = `
        SELECT COUNT(*) FROM tickets
        WHERE requester_id=$1 AND business_model=$2 AND tenant_id=$3 AND created_at >= $4`
	var count int
	err := conn(ctx, r.pool).QueryRow(ctx, query, requesterID, scope.BusinessModel, scope.TenantID, since).Scan(&count)
	return count, err
}

func (r *ticketRepository) CountOpenByAgents(ctx context.Context, agentIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(agentIDs))
	if len(agentIDs) == 0 {
		return counts, nil
	}
	const query = `
        SELECT assigned_agent_id, COUNT(*) FROM tickets
        WHERE assigned_agent_id = ANY($1) AND status = ANY($2)
        GROUP BY assigned_agent_id`
	rows, err := conn(ctx, r.pool).Query(ctx, query, agentIDs, statusStrings(domain.WorkloadStatuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func ticketWhere(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.Scope.BusinessModel != "" {
		add("business_model = $%d", filter.Scope.BusinessModel)
	}
	if filter.Scope.TenantID != "" {
		add("tenant_id = $%d", filter.Scope.TenantID)
	}
	if filter.RequesterID != nil {
		add("requester_id = $%d", *filter.RequesterID)
	}
	if filter.AssigneeID != nil {
		add("assigned_agent_id = $%d", *filter.AssigneeID)
	}
	if filter.Unassigned {
		clauses = append(clauses, "assigned_agent_id IS NULL")
	}
	if len(filter.Statuses) > 0 {
		add("status = ANY($%d)", statusStrings(filter.Statuses))
	}
	if len(filter.Priorities) > 0 {
		values := make([]string, len(filter.Priorities))
		for i, p := range filter.Priorities {
			values[i] = string(p)
		}
		add("priority = ANY($%d)", values)
	}
	if len(filter.Categories) > 0 {
		values := make([]string, len(filter.Categories))
		for i, c := range filter.Categories {
			values[i] = string(c)
		}
		add("category = ANY($%d)", values)
	}
	if filter.SearchTerm != nil && *filter.SearchTerm != "" {
		args = append(args, "%"+strings.ToLower(*filter.SearchTerm)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(LOWER(subject) LIKE $%d OR LOWER(description) LIKE $%d OR ('tkt-' || lpad(number::text, 6, '0')) LIKE $%d)", n, n, n))
	}
	if filter.CreatedFrom != nil {
		add("created_at >= $%d", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		add("created_at <= $%d", *filter.CreatedTo)
	}
	return strings.Join(clauses, " AND "), args
}

func ticketOrder(sort TicketSort) string {
	switch sort {
	case SortCreatedAsc:
		return "created_at ASC, id ASC"
	case SortUpdatedDesc:
		return "updated_at DESC, id ASC"
	case SortPriorityDesc:
		return "CASE priority WHEN 'URGENT' THEN 3 WHEN 'HIGH' THEN 2 WHEN 'MEDIUM' THEN 1 ELSE 0 END DESC, created_at DESC"
	default:
		return "created_at DESC, id ASC"
	}
}

func statusStrings(statuses []domain.TicketStatus) []string {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	return values
}

func encodeTicketDocs(ticket *domain.Ticket) (metadata, escalations, satisfaction []byte, err error) {
	if metadata, err = json.Marshal(ticket.Metadata); err != nil {
		return nil, nil, nil, fmt.Errorf("encode metadata: %w", err)
	}
	if ticket.Escalations == nil {
		escalations = []byte("[]")
	} else if escalations, err = json.Marshal(ticket.Escalations); err != nil {
		return nil, nil, nil, fmt.Errorf("encode escalations: %w", err)
	}
	if ticket.Satisfaction != nil {
		if satisfaction, err = json.Marshal(ticket.Satisfaction); err != nil {
			return nil, nil, nil, fmt.Errorf("encode satisfaction: %w", err)
		}
	}
	return metadata, escalations, satisfaction, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket                                  domain.Ticket
		seq                                     int64
		metadata, escalations, satisfactionJSON []byte
	)
	if err := row.Scan(
		&ticket.ID,
		&seq,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Category,
		&ticket.Priority,
		&ticket.Status,
		&ticket.Scope.BusinessModel,
		&ticket.Scope.TenantID,
		&ticket.RequesterID,
		&ticket.AssignedAgentID,
		&ticket.VendorID,
		&ticket.OrderID,
		&ticket.ProductID,
		&metadata,
		&escalations,
		&satisfactionJSON,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.FirstResponseAt,
		&ticket.LastResponseAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	ticket.Number = FormatTicketNumber(seq)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &ticket.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	if len(escalations) > 0 {
		if err := json.Unmarshal(escalations, &ticket.Escalations); err != nil {
			return nil, fmt.Errorf("decode escalations: %w", err)
		}
	}
	if len(satisfactionJSON) > 0 {
		ticket.Satisfaction = &domain.SatisfactionRating{}
		if err := json.Unmarshal(satisfactionJSON, ticket.Satisfaction); err != nil {
			return nil, fmt.Errorf("decode satisfaction: %w", err)
		}
	}
	return &ticket, nil
}
