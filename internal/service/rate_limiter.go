package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const (
	hourWindow = time.Hour
	dayWindow  = 24 * time.Hour
)

// RateLimiter enforces the hourly and daily creation quotas of a requester.
type RateLimiter struct {
	primary  repository.RateCounter
	fallback repository.RateCounter
	logger   *zap.Logger
	metrics  *observability.Metrics
	nowFn    func() time.Time
}

// NewRateLimiter builds a limiter. When the primary counter errors, counts are
// read from fallback instead.
func NewRateLimiter(primary, fallback repository.RateCounter, logger *zap.Logger, metrics *observability.Metrics) *RateLimiter {
	return &RateLimiter{primary: primary, fallback: fallback, logger: logger, metrics: metrics, nowFn: time.Now}
}

// Check fails with RateLimitExceeded when the requester has already reached a
// quota. It must run before the ticket is written. A zero limit disables that window.
func (l *RateLimiter) Check(ctx context.Context, scope domain.Scope, requesterID string, limits domain.RateLimits) error {
	now := l.nowFn()
	windows := []struct {
		name   string
		length time.Duration
		max    int
	}{
		{"hour", hourWindow, limits.MaxTicketsPerHour},
		{"day", dayWindow, limits.MaxTicketsPerDay},
	}
	for _, w := range windows {
		if w.max <= 0 {
			continue
		}
		count, err := l.count(ctx, scope, requesterID, now.Add(-w.length))
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		if count >= w.max {
			l.metrics.RateLimited(string(scope.BusinessModel), w.name)
			return apperrors.NewRateLimitExceeded(w.name, w.max)
		}
	}
	return nil
}

// Record marks a created ticket. Failures are logged only.
func (l *RateLimiter) Record(ctx context.Context, scope domain.Scope, requesterID, ticketID string, at time.Time) {
	if err := l.primary.Record(ctx, scope, requesterID, ticketID, at); err != nil {
		l.logger.Warn("rate mark not recorded",
			zap.String("business_model", string(scope.BusinessModel)),
			zap.String("tenant_id", scope.TenantID),
			zap.String("requester_id", requesterID),
			zap.Error(err))
	}
}

func (l *RateLimiter) count(ctx context.Context, scope domain.Scope, requesterID string, since time.Time) (int, error) {
	n, err := l.primary.CountSince(ctx, scope, requesterID, since)
	if err == nil || l.fallback == nil {
		return n, err
	}
	l.logger.Warn("rate counter unavailable; using fallback", zap.Error(err))
	return l.fallback.CountSince(ctx, scope, requesterID, since)
}
