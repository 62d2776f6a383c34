// Package ws serves live dashboard subscriptions over websockets.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/notification"
)

const writeTimeout = 5 * time.Second

// DashboardHandler streams hub messages visible to the caller. Browsers cannot
// set headers on websocket upgrades so the bearer token travels as ?token=.
type DashboardHandler struct {
	hub    *notification.Hub
	tokens *auth.TokenManager
	logger *zap.Logger
}

// NewDashboardHandler creates the handler.
func NewDashboardHandler(hub *notification.Hub, tokens *auth.TokenManager, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{hub: hub, tokens: tokens, logger: logger}
}

func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	claims, err := h.tokens.ParseToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	actor := claims.Actor()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	stream, cancel := h.hub.Subscribe(Channels(actor)...)
	defer cancel()

	// Clients never send; CloseRead cancels ctx once they disconnect.
	ctx := conn.CloseRead(r.Context())
	h.logger.Debug("dashboard subscriber connected", zap.String("actor_id", actor.ID))
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-stream:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "stream closed")
				return
			}
			if err := h.write(ctx, conn, msg); err != nil {
				h.logger.Debug("dashboard subscriber dropped", zap.String("actor_id", actor.ID), zap.Error(err))
				return
			}
		}
	}
}

func (h *DashboardHandler) write(ctx context.Context, conn *websocket.Conn, msg notification.Message) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}

// Channels lists the channels actor may follow. Everyone receives their own
// user channel. Supervisors get exactly their tenant's dashboard and alerts;
// platform admins get prefixes covering their business model, or everything
// when unscoped.
func Channels(actor domain.Actor) []string {
	out := []string{notification.UserChannel(actor.ID)}
	switch actor.Role {
	case domain.RolePlatformAdmin:
		if actor.Scope.BusinessModel == "" {
			return append(out, "dashboard:", "admin:")
		}
		scope := domain.Scope{BusinessModel: actor.Scope.BusinessModel, TenantID: actor.Scope.TenantID}
		return append(out, notification.DashboardChannel(scope), notification.AdminChannel(scope))
	case domain.RoleSupervisor:
		if actor.Scope.TenantID == "" {
			return out
		}
		return append(out, notification.DashboardChannel(actor.Scope), notification.AdminChannel(actor.Scope))
	case domain.RoleAgent, domain.RoleVendor:
		if actor.Scope.TenantID == "" {
			return out
		}
		return append(out, notification.DashboardChannel(actor.Scope))
	}
	return out
}
