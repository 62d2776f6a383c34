// Package notification delivers structured events over the push channel,
// email and webhooks. Every delivery is best effort.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/support-desk/internal/domain"
)

// Notifier is the narrow send contract used by the ticket and alert services.
type Notifier interface {
	SendToChannel(ctx context.Context, channel string, msg Message) error
	SendEmail(ctx context.Context, to, subject, body string) error
	SendWebhook(ctx context.Context, url string, payload any) error
	// EmailEnabled reports whether an email transport is configured.
	EmailEnabled() bool
}

// ErrEmailDisabled is returned by SendEmail when no transport is configured.
var ErrEmailDisabled = errors.New("email transport not configured")

// Message is the envelope broadcast on push channels.
type Message struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Channel   string    `json:"channel"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NewMessage builds an envelope with a fresh id.
func NewMessage(msgType string, at time.Time, data any) Message {
	return Message{ID: uuid.NewString(), Type: msgType, Timestamp: at, Data: data}
}

// Message types broadcast by the service.
const (
	TypeAlertTriggered = "alert_triggered"
	TypeAlertResolved  = "alert_resolved"
	TypeMetricsUpdate  = "metrics_update"
	TypeTicketEvent    = "ticket_event"
)

// AdminChannel carries alerts for one tenant. With an empty tenant it is the
// prefix covering every tenant of the business model.
func AdminChannel(scope domain.Scope) string {
	return fmt.Sprintf("admin:%s:%s", scope.BusinessModel, scope.TenantID)
}

// DashboardChannel carries live metrics for one tenant.
func DashboardChannel(scope domain.Scope) string {
	return fmt.Sprintf("dashboard:%s:%s", scope.BusinessModel, scope.TenantID)
}

// UserChannel addresses one requester or agent.
func UserChannel(userID string) string {
	return fmt.Sprintf("user:%s", userID)
}
