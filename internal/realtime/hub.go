// Package realtime keeps the registry of viewer connections and fans job
// events out to them.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/target/console-api/internal/core"
	"github.com/target/console-api/internal/domain/model"
)

var (
	// ErrConnClosed is returned by Conn.Send after the peer has gone away.
	ErrConnClosed = errors.New("connection closed")
	// ErrSlowConsumer is returned by Conn.Send when the peer is too far behind
	// to accept another frame. The connection is closed.
	ErrSlowConsumer = errors.New("connection send buffer full")
)

// Conn is one viewer's notification channel.
type Conn interface {
	// ID identifies the connection in logs.
	ID() string
	// Send hands one text frame to the connection without blocking on the
	// peer. Sending on a closed connection returns ErrConnClosed and has no
	// other effect.
	Send(ctx context.Context, payload []byte) error
}

// HubOptions configures a Hub.
type HubOptions struct {
	Logger *slog.Logger
}

// Hub maps each connection to a single scope: an organization id or the
// wildcard. It is safe for concurrent use.
type Hub struct {
	mu     sync.Mutex
	scopes map[Conn]string
	logger *slog.Logger
}

var _ core.Broadcaster = (*Hub)(nil)

// NewHub creates an empty Hub.
func NewHub(opts HubOptions) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		scopes: make(map[Conn]string),
		logger: logger.With("component", "realtime_hub"),
	}
}

// Subscribe sets the connection's scope, replacing any previous one.
func (h *Hub) Subscribe(c Conn, scope string) {
	if c == nil || scope == "" {
		return
	}
	h.mu.Lock()
	h.scopes[c] = scope
	n := len(h.scopes)
	h.mu.Unlock()

	h.logger.Debug("connection subscribed", "conn_id", c.ID(), "scope", scope, "connections", n)
}

// Unsubscribe forgets the connection. Unknown connections are ignored.
func (h *Hub) Unsubscribe(c Conn) {
	h.mu.Lock()
	_, ok := h.scopes[c]
	delete(h.scopes, c)
	h.mu.Unlock()

	if ok {
		h.logger.Debug("connection unsubscribed", "conn_id", c.ID())
	}
}

// Scope returns the connection's current scope.
func (h *Hub) Scope(c Conn) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.scopes[c]
	return s, ok
}

// Len returns the number of subscribed connections.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.scopes)
}

// Broadcast delivers event to every connection subscribed to organizationID
// or to the wildcard. Targets are collected under the lock and sent to
// outside it. A connection whose send fails is unregistered; other targets
// are unaffected.
func (h *Hub) Broadcast(ctx context.Context, organizationID string, event model.JobEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.ErrorContext(ctx, "marshal event", "error", err, "job_id", event.Job.ID)
		return
	}

	targets := h.match(organizationID)
	for _, c := range targets {
		if err := c.Send(ctx, payload); err != nil {
			h.Unsubscribe(c)
			if errors.Is(err, ErrConnClosed) {
				continue
			}
			h.logger.WarnContext(ctx, "deliver event failed",
				"conn_id", c.ID(),
				"job_id", event.Job.ID,
				"error", err,
			)
		}
	}
}

func (h *Hub) match(organizationID string) []Conn {
	h.mu.Lock()
	defer h.mu.Unlock()

	targets := make([]Conn, 0, len(h.scopes))
	for c, scope := range h.scopes {
		if scope == model.WildcardScope || scope == organizationID {
			targets = append(targets, c)
		}
	}
	return targets
}
