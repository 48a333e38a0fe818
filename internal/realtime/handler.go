package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/target/console-api/internal/domain/auth"
	"github.com/target/console-api/internal/domain/model"
)

// ActorFunc returns the authenticated actor for a request, if any.
type ActorFunc func(ctx context.Context) (auth.Actor, bool)

// HandlerOptions configures the WebSocket endpoint.
type HandlerOptions struct {
	Hub          *Hub
	Logger       *slog.Logger
	WriteTimeout time.Duration
	// Actor resolves who opened the connection. When it reports an actor
	// that is not an admin, wildcard subscription requests fall back to the
	// requested organization. Nil trusts the client's isAdmin flag.
	Actor ActorFunc
}

// Handler upgrades viewer requests to WebSocket and services their
// subscribe messages.
type Handler struct {
	hub          *Hub
	logger       *slog.Logger
	writeTimeout time.Duration
	actor        ActorFunc
}

// NewHandler creates a WebSocket handler bound to hub.
func NewHandler(opts HandlerOptions) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	wt := opts.WriteTimeout
	if wt <= 0 {
		wt = 10 * time.Second
	}
	return &Handler{
		hub:          opts.Hub,
		logger:       logger.With("component", "realtime_ws"),
		writeTimeout: wt,
		actor:        opts.Actor,
	}
}

// ServeHTTP upgrades the request and blocks reading client frames until the
// connection closes, at which point the subscription is removed.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	netConn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	// server read and write timeouts survive the hijack
	if err := netConn.SetDeadline(time.Time{}); err != nil {
		h.logger.Debug("clear websocket deadlines", "error", err)
	}

	conn := newWSConn(netConn, h.writeTimeout)
	go conn.writeLoop()
	actor, hasActor := auth.Actor{}, false
	if h.actor != nil {
		actor, hasActor = h.actor(r.Context())
	}
	h.logger.Debug("websocket connected", "conn_id", conn.ID(), "remote_addr", r.RemoteAddr)

	defer func() {
		h.hub.Unsubscribe(conn)
		_ = conn.Close()
		h.logger.Debug("websocket disconnected", "conn_id", conn.ID())
	}()

	for {
		msg, op, err := wsutil.ReadClientData(conn.reader())
		if err != nil {
			return
		}
		if op != ws.OpText {
			continue
		}
		scope, ok := h.scopeFor(msg, actor, hasActor)
		if !ok {
			continue
		}
		h.hub.Subscribe(conn, scope)
	}
}

// scopeFor interprets one client message. Messages that are not valid
// subscribe requests are ignored.
func (h *Handler) scopeFor(raw []byte, actor auth.Actor, hasActor bool) (string, bool) {
	var msg model.SubscribeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", false
	}
	if msg.Type != model.MessageTypeSubscribe {
		return "", false
	}

	wantsAll := msg.IsAdmin
	if wantsAll && hasActor && !actor.IsAdmin() {
		h.logger.Warn("non-admin wildcard subscription refused", "user_id", actor.UserID)
		wantsAll = false
	}
	if wantsAll {
		return model.WildcardScope, true
	}

	org := strings.TrimSpace(msg.OrganizationID)
	if org == "" || org == model.WildcardScope {
		return "", false
	}
	return org, true
}
