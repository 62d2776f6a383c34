package notification

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
)

func TestHubRoutesByPrefix(t *testing.T) {
	hub := NewHub()
	dash, cancelDash := hub.Subscribe("dashboard:marketplace:")
	defer cancelDash()
	admin, cancelAdmin := hub.Subscribe("admin:")
	defer cancelAdmin()

	scope := domain.Scope{BusinessModel: "marketplace", TenantID: "acme"}
	msg := NewMessage(TypeMetricsUpdate, time.Now(), map[string]float64{"live.openTickets": 3})
	require.NoError(t, hub.Publish(context.Background(), DashboardChannel(scope), msg))

	select {
	case got := <-dash:
		assert.Equal(t, msg.ID, got.ID)
	default:
		t.Fatal("dashboard subscriber got nothing")
	}
	select {
	case <-admin:
		t.Fatal("admin subscriber should not see dashboard traffic")
	default:
	}
}

func TestHubMatchesUserChannelExactly(t *testing.T) {
	hub := NewHub()
	stream, cancel := hub.Subscribe(UserChannel("agent-1"))
	defer cancel()

	ctx := context.Background()
	require.NoError(t, hub.Publish(ctx, UserChannel("agent-10"), NewMessage(TypeTicketEvent, time.Now(), nil)))
	want := NewMessage(TypeTicketEvent, time.Now(), nil)
	require.NoError(t, hub.Publish(ctx, UserChannel("agent-1"), want))

	got := <-stream
	assert.Equal(t, want.ID, got.ID)
	select {
	case extra := <-stream:
		t.Fatalf("unexpected message %s", extra.ID)
	default:
	}
}

func TestHubCancelClosesStream(t *testing.T) {
	hub := NewHub()
	stream, cancel := hub.Subscribe()
	assert.Equal(t, 1, hub.Subscribers())
	cancel()
	cancel()
	_, open := <-stream
	assert.False(t, open)
	assert.Zero(t, hub.Subscribers())
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, string, Message) error { return f.err }

func TestDispatcherJoinsChannelErrorsAndStillDelivers(t *testing.T) {
	hub := NewHub()
	scope := domain.Scope{BusinessModel: "saas", TenantID: "initech"}
	stream, cancel := hub.Subscribe(AdminChannel(scope))
	defer cancel()

	boom := errors.New("broker down")
	d := NewDispatcher(zap.NewNop(), WithChannel(failingPublisher{err: boom}), WithChannel(hub))
	err := d.SendToChannel(context.Background(), AdminChannel(scope), NewMessage(TypeAlertTriggered, time.Now(), nil))
	require.ErrorIs(t, err, boom)

	got := <-stream
	assert.Equal(t, "admin:saas:initech", got.Channel)
}

func TestDispatcherWithoutEmail(t *testing.T) {
	d := NewDispatcher(zap.NewNop())
	assert.False(t, d.EmailEnabled())
	assert.ErrorIs(t, d.SendEmail(context.Background(), "a@example.com", "s", "b"), ErrEmailDisabled)
}

func TestWebhookBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewWebhookClient(time.Second, zap.NewNop())
	for i := 0; i < 3; i++ {
		require.Error(t, client.Post(context.Background(), srv.URL, map[string]string{"k": "v"}))
	}
	err := client.Post(context.Background(), srv.URL, map[string]string{"k": "v"})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(3), hits.Load())
}

func TestWebhookPostsJSON(t *testing.T) {
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewWebhookClient(time.Second, zap.NewNop())
	require.NoError(t, client.Post(context.Background(), srv.URL, map[string]int{"n": 1}))
	assert.Equal(t, "application/json", contentType)
}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "dashboard.marketplace.acme", RoutingKey("dashboard:marketplace:acme"))
}

func TestBuildMailKeepsHeadersOnOneLine(t *testing.T) {
	msg := string(buildMail(
		"alerts@example.com",
		"ops@example.com\r\nBcc: spy@example.com",
		"[HIGH] SLA breach\rX-Injected: 1\nmore",
		"body line\r\nsecond line",
	))

	head, body, found := strings.Cut(msg, "\r\n\r\n")
	require.True(t, found)
	assert.Equal(t, "body line\r\nsecond line", body)
	assert.Equal(t, []string{
		"From: alerts@example.com",
		"To: ops@example.com Bcc: spy@example.com",
		"Subject: [HIGH] SLA breach X-Injected: 1 more",
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
	}, strings.Split(head, "\r\n"))
}
