package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

type failingCounter struct{}

func (failingCounter) CountSince(context.Context, domain.Scope, string, time.Time) (int, error) {
	return 0, errors.New("connection refused")
}

func (failingCounter) Record(context.Context, domain.Scope, string, string, time.Time) error {
	return errors.New("connection refused")
}

type fixedCounter int

func (c fixedCounter) CountSince(context.Context, domain.Scope, string, time.Time) (int, error) {
	return int(c), nil
}

func (fixedCounter) Record(context.Context, domain.Scope, string, string, time.Time) error {
	return nil
}

func TestCreateTicketEnforcesHourlyLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	requester := customer("cust-1", acmeScope)

	for i := 0; i < 10; i++ {
		_, err := f.tickets.CreateTicket(ctx, requester, acmeScope, CreateTicketInput{Subject: "Where is my order"})
		require.NoError(t, err, "ticket %d", i+1)
		f.clock.Advance(time.Minute)
	}

	_, err := f.tickets.CreateTicket(ctx, requester, acmeScope, CreateTicketInput{Subject: "One more"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeRateLimitExceeded))

	page, err := f.tickets.ListTickets(ctx, requester, ListTicketsInput{})
	require.NoError(t, err)
	assert.Equal(t, 10, page.Total, "rejected ticket must not be stored")

	// Another requester in the same tenant has their own quota.
	_, err = f.tickets.CreateTicket(ctx, customer("cust-2", acmeScope), acmeScope, CreateTicketInput{Subject: "Hello"})
	assert.NoError(t, err)

	f.clock.Advance(time.Hour)
	_, err = f.tickets.CreateTicket(ctx, requester, acmeScope, CreateTicketInput{Subject: "Next hour"})
	assert.NoError(t, err)
}

func TestRateLimiterZeroLimitIsUnlimited(t *testing.T) {
	limiter := NewRateLimiter(fixedCounter(1000), nil, zap.NewNop(), nil)
	err := limiter.Check(context.Background(), initechScope, "cust-1", domain.RateLimits{})
	assert.NoError(t, err)
}

func TestRateLimiterDailyWindow(t *testing.T) {
	limiter := NewRateLimiter(fixedCounter(50), nil, zap.NewNop(), nil)
	err := limiter.Check(context.Background(), acmeScope, "cust-1", domain.RateLimits{MaxTicketsPerDay: 50})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeRateLimitExceeded))
	assert.Equal(t, "day", apperrors.ToDomainError(err).Details["window"])
}

func TestRateLimiterFallsBackWhenPrimaryFails(t *testing.T) {
	limiter := NewRateLimiter(failingCounter{}, fixedCounter(3), zap.NewNop(), nil)
	ctx := context.Background()

	assert.NoError(t, limiter.Check(ctx, acmeScope, "cust-1", domain.RateLimits{MaxTicketsPerHour: 4}))
	err := limiter.Check(ctx, acmeScope, "cust-1", domain.RateLimits{MaxTicketsPerHour: 3})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeRateLimitExceeded))

	limiter.Record(ctx, acmeScope, "cust-1", "t-1", time.Now())
}

func TestRateLimiterWithoutFallbackReportsInternal(t *testing.T) {
	limiter := NewRateLimiter(failingCounter{}, nil, zap.NewNop(), nil)
	err := limiter.Check(context.Background(), acmeScope, "cust-1", domain.RateLimits{MaxTicketsPerHour: 3})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))
}
