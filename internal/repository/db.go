package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Transactor runs fn as one atomic unit. Repository calls made with the ctx
// handed to fn join the transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

type pgTransactor struct {
	pool *pgxpool.Pool
}

// NewTransactor returns a Transactor backed by the pool.
func NewTransactor(pool *pgxpool.Pool) Transactor {
	return &pgTransactor{pool: pool}
}

func (t *pgTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	tx, err := t.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// conn returns the transaction bound to ctx, falling back to the pool.
func conn(ctx context.Context, pool *pgxpool.Pool) DBTX {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// Repositories bundles every store the services depend on.
type Repositories struct {
	Transactor    Transactor
	Tickets       TicketRepository
	SLA           SLARepository
	Agents        AgentRepository
	Messages      TicketMessageRepository
	Attachments   AttachmentRepository
	History       TicketHistoryRepository
	TenantConfigs TenantConfigRepository
	AlertRules    AlertRuleRepository
	AlertHistory  AlertHistoryRepository
}

// NewPostgresRepositories wires every repository to the pool.
func NewPostgresRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Transactor:    NewTransactor(pool),
		Tickets:       NewTicketRepository(pool),
		SLA:           NewSLARepository(pool),
		Agents:        NewAgentRepository(pool),
		Messages:      NewTicketMessageRepository(pool),
		Attachments:   NewAttachmentRepository(pool),
		History:       NewTicketHistoryRepository(pool),
		TenantConfigs: NewTenantConfigRepository(pool),
		AlertRules:    NewAlertRuleRepository(pool),
		AlertHistory:  NewAlertHistoryRepository(pool),
	}
}
