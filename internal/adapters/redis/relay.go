// Package redis provides Redis-backed adapters for the console API.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/target/console-api/internal/core"
	"github.com/target/console-api/internal/domain/model"
)

// RelayOptions configures a Relay.
type RelayOptions struct {
	Client  redis.UniversalClient
	Channel string
	// Local receives every event, whether published here or by a peer.
	Local  core.Broadcaster
	Logger *slog.Logger
}

// Relay shares broadcasts between API replicas over Redis pub/sub so a viewer
// connected to any replica sees every job event.
type Relay struct {
	client  redis.UniversalClient
	channel string
	local   core.Broadcaster
	origin  string
	logger  *slog.Logger

	readyOnce sync.Once
	ready     chan struct{}
}

var _ core.Broadcaster = (*Relay)(nil)

// NewRelay creates a relay. Call Run to start receiving peer events.
func NewRelay(opts RelayOptions) (*Relay, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if opts.Local == nil {
		return nil, errors.New("local broadcaster is required")
	}
	if opts.Channel == "" {
		return nil, errors.New("relay channel is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origin := uuid.NewString()
	return &Relay{
		client:  opts.Client,
		channel: opts.Channel,
		local:   opts.Local,
		origin:  origin,
		logger:  logger.With("component", "redis_relay", "origin", origin),
		ready:   make(chan struct{}),
	}, nil
}

// Broadcast delivers to local viewers immediately and publishes for peers.
// Publish failures only cost remote delivery.
func (r *Relay) Broadcast(ctx context.Context, organizationID string, event model.JobEvent) {
	r.local.Broadcast(ctx, organizationID, event)

	data, err := json.Marshal(model.RelayMessage{
		Origin:         r.origin,
		OrganizationID: organizationID,
		Event:          event,
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "marshal relay message", "error", err, "job_id", event.Job.ID)
		return
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		r.logger.WarnContext(ctx, "relay publish failed",
			"error", err,
			"job_id", event.Job.ID,
			"organization_id", organizationID,
		)
	}
}

// Ready is closed once the subscription is confirmed by Redis.
func (r *Relay) Ready() <-chan struct{} { return r.ready }

// Run forwards peer events to local viewers until ctx is canceled.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer func() {
		if err := sub.Close(); err != nil {
			r.logger.Debug("close relay subscription", "error", err)
		}
	}()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.readyOnce.Do(func() { close(r.ready) })
	r.logger.Info("relay subscribed", "channel", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.deliver(ctx, msg.Payload)
		}
	}
}

func (r *Relay) deliver(ctx context.Context, payload string) {
	var msg model.RelayMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		r.logger.Warn("discarding malformed relay message", "error", err)
		return
	}
	if msg.Origin == r.origin {
		return
	}
	r.local.Broadcast(ctx, msg.OrganizationID, msg.Event)
}
