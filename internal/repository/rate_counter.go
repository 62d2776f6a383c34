package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/support-desk/internal/domain"
)

// RateCounter counts ticket creations per requester over trailing windows.
type RateCounter interface {
	CountSince(ctx context.Context, scope domain.Scope, requesterID string, since time.Time) (int, error)
	Record(ctx context.Context, scope domain.Scope, requesterID, ticketID string, at time.Time) error
}

// rateRetention bounds how long creation marks are kept; it covers the daily window.
const rateRetention = 25 * time.Hour

type redisRateCounter struct {
	client *redis.Client
	prefix string
}

// NewRedisRateCounter keeps one sorted set per requester, scored by creation time.
func NewRedisRateCounter(client *redis.Client) RateCounter {
	return &redisRateCounter{client: client, prefix: "support:ratelimit"}
}

func (c *redisRateCounter) key(scope domain.Scope, requesterID string) string {
	return fmt.Sprintf("%s:%s:%s:%s", c.prefix, scope.BusinessModel, scope.TenantID, requesterID)
}

func (c *redisRateCounter) CountSince(ctx context.Context, scope domain.Scope, requesterID string, since time.Time) (int, error) {
	floor := strconv.FormatInt(since.UnixMilli(), 10)
	n, err := c.client.ZCount(ctx, c.key(scope, requesterID), floor, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("count rate marks: %w", err)
	}
	return int(n), nil
}

func (c *redisRateCounter) Record(ctx context.Context, scope domain.Scope, requesterID, ticketID string, at time.Time) error {
	key := c.key(scope, requesterID)
	cutoff := strconv.FormatInt(at.Add(-rateRetention).UnixMilli(), 10)
	pipe := c.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMilli()), Member: ticketID})
	pipe.ZRemRangeByScore(ctx, key, "-inf", "("+cutoff)
	pipe.Expire(ctx, key, rateRetention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record rate mark: %w", err)
	}
	return nil
}

type storeRateCounter struct {
	tickets TicketRepository
}

// NewStoreRateCounter counts directly from persisted tickets. Record is a no-op
// because the ticket row itself is the mark.
func NewStoreRateCounter(tickets TicketRepository) RateCounter {
	return &storeRateCounter{tickets: tickets}
}

func (c *storeRateCounter) CountSince(ctx context.Context, scope domain.Scope, requesterID string, since time.Time) (int, error) {
	return c.tickets.CountByRequesterSince(ctx, requesterID, scope, since)
}

func (c *storeRateCounter) Record(context.Context, domain.Scope, string, string, time.Time) error {
	return nil
}
