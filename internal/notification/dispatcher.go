package notification

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/observability"
)

// ChannelPublisher is one push transport.
type ChannelPublisher interface {
	Publish(ctx context.Context, channel string, msg Message) error
}

// EmailSender delivers one email.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// WebhookSender posts a payload to a URL.
type WebhookSender interface {
	Post(ctx context.Context, url string, payload any) error
}

// Dispatcher is the Notifier backed by real transports.
type Dispatcher struct {
	channels []ChannelPublisher
	email    EmailSender
	webhook  WebhookSender
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithChannel adds a push transport. Every transport receives every message.
func WithChannel(p ChannelPublisher) Option {
	return func(d *Dispatcher) { d.channels = append(d.channels, p) }
}

// WithEmail sets the email transport.
func WithEmail(s EmailSender) Option {
	return func(d *Dispatcher) { d.email = s }
}

// WithWebhook sets the webhook transport.
func WithWebhook(s WebhookSender) Option {
	return func(d *Dispatcher) { d.webhook = s }
}

// WithMetrics records delivery outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher builds a dispatcher from options.
func NewDispatcher(logger *zap.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SendToChannel publishes to every transport and joins their errors.
func (d *Dispatcher) SendToChannel(ctx context.Context, channel string, msg Message) error {
	msg.Channel = channel
	var errs []error
	for _, p := range d.channels {
		if err := p.Publish(ctx, channel, msg); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	d.record("channel", err)
	return err
}

// SendEmail delivers one email or returns ErrEmailDisabled.
func (d *Dispatcher) SendEmail(ctx context.Context, to, subject, body string) error {
	if d.email == nil {
		return ErrEmailDisabled
	}
	err := d.email.Send(ctx, to, subject, body)
	d.record("email", err)
	return err
}

// SendWebhook posts payload to url.
func (d *Dispatcher) SendWebhook(ctx context.Context, url string, payload any) error {
	if d.webhook == nil {
		return errors.New("webhook transport not configured")
	}
	err := d.webhook.Post(ctx, url, payload)
	d.record("webhook", err)
	return err
}

func (d *Dispatcher) EmailEnabled() bool {
	return d.email != nil
}

func (d *Dispatcher) record(channel string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		d.logger.Warn("notification delivery failed", zap.String("channel", channel), zap.Error(err))
	}
	d.metrics.Notification(channel, outcome)
}
