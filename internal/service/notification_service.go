package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/notification"
)

// NotificationService forwards lifecycle events to the requester and assignee
// channels.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   notification.Notifier
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, notifier notification.Notifier, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil || n.notifier == nil {
		return
	}
	for _, t := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketUpdated,
		events.EventTicketStatusChanged,
		events.EventTicketPriorityChanged,
		events.EventTicketAssigned,
		events.EventTicketEscalated,
		events.EventTicketMessageAdded,
		events.EventSatisfactionSubmitted,
		events.EventSLABreached,
	} {
		n.dispatcher.Subscribe(t, n.forward)
	}
}

func (n *NotificationService) forward(ctx context.Context, event events.Event) error {
	msg := notification.NewMessage(notification.TypeTicketEvent, event.Timestamp, event)

	var errs []error
	for _, channel := range n.audience(event) {
		if err := n.notifier.SendToChannel(ctx, channel, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		n.logger.Warn("ticket event forward failed",
			zap.String("ticket_id", event.TicketID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
	return nil
}

// audience lists the channels an event goes to. Internal notes never reach the
// requester and nobody is notified of their own action.
func (n *NotificationService) audience(event events.Event) []string {
	internal := false
	if payload, ok := event.Payload.(events.TicketMessageAddedPayload); ok {
		internal = payload.Internal
	}

	var channels []string
	seen := map[string]bool{event.Actor.ID: true}
	add := func(userID string) {
		if userID == "" || seen[userID] {
			return
		}
		seen[userID] = true
		channels = append(channels, notification.UserChannel(userID))
	}
	if !internal {
		add(event.RequesterID)
	}
	if event.AssigneeID != nil {
		add(*event.AssigneeID)
	}
	if payload, ok := event.Payload.(events.TicketAssignedPayload); ok && payload.PreviousAgentID != nil {
		add(*payload.PreviousAgentID)
	}
	return channels
}
