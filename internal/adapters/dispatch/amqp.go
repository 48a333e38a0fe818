package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/target/console-api/config"
	"github.com/target/console-api/internal/core"
	"github.com/target/console-api/internal/domain/model"
)

var errAMQPClosed = errors.New("amqp dispatcher is closed")

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// amqpSession is one broker connection with its channel. done is closed once
// the broker or the client closes either of them.
type amqpSession struct {
	publisher amqpPublisher
	done      <-chan struct{}
	close     func() error
}

func (s *amqpSession) alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

type amqpDialer func() (*amqpSession, error)

// AMQPDispatcher publishes envelopes to a durable topic exchange. A dropped
// broker connection is re-dialed on the next Enqueue.
type AMQPDispatcher struct {
	cfg  config.DispatchAMQPConfig
	dial amqpDialer

	mu      sync.Mutex
	session *amqpSession
	closed  bool
}

var _ core.Dispatcher = (*AMQPDispatcher)(nil)

// DialAMQP connects to the broker and declares the exchange, queue and
// binding workers consume from. The first dial happens here so a bad URL
// fails at startup.
func DialAMQP(cfg config.DispatchAMQPConfig) (*AMQPDispatcher, error) {
	if cfg.URL == "" || cfg.Exchange == "" {
		return nil, errors.New("amqp URL and exchange are required")
	}
	d := newAMQPDispatcher(cfg, func() (*amqpSession, error) { return dialAMQPSession(cfg) })
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.sessionLocked(); err != nil {
		return nil, err
	}
	return d, nil
}

func newAMQPDispatcher(cfg config.DispatchAMQPConfig, dial amqpDialer) *AMQPDispatcher {
	return &AMQPDispatcher{cfg: cfg, dial: dial}
}

func dialAMQPSession(cfg config.DispatchAMQPConfig) (*amqpSession, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := declareTopology(ch, cfg); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))
	done := make(chan struct{})
	go func() {
		select {
		case <-connClosed:
		case <-chClosed:
		}
		close(done)
	}()

	return &amqpSession{
		publisher: ch,
		done:      done,
		close: func() error {
			return errors.Join(ignoreAMQPClosed(ch.Close()), ignoreAMQPClosed(conn.Close()))
		},
	}, nil
}

func declareTopology(ch *amqp.Channel, cfg config.DispatchAMQPConfig) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	if cfg.Queue == "" {
		return nil
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.Queue, err)
	}
	if err := ch.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", cfg.Queue, err)
	}
	return nil
}

// sessionLocked returns the live session, dialing a new one when the previous
// connection is gone. d.mu must be held.
func (d *AMQPDispatcher) sessionLocked() (*amqpSession, error) {
	if d.closed {
		return nil, errAMQPClosed
	}
	if d.session != nil && d.session.alive() {
		return d.session, nil
	}
	d.dropLocked()

	s, err := d.dial()
	if err != nil {
		return nil, err
	}
	d.session = s
	return s, nil
}

func (d *AMQPDispatcher) dropLocked() {
	if d.session == nil {
		return
	}
	if d.session.close != nil {
		_ = d.session.close()
	}
	d.session = nil
}

// Enqueue publishes a persistent JSON message keyed by job id.
func (d *AMQPDispatcher) Enqueue(ctx context.Context, env model.DispatchEnvelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	s, err := d.sessionLocked()
	if err != nil {
		return fmt.Errorf("amqp connection: %w", err)
	}
	err = s.publisher.PublishWithContext(ctx, d.cfg.Exchange, d.cfg.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.JobID,
		Type:         string(env.JobType),
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		if errors.Is(err, amqp.ErrClosed) {
			d.dropLocked()
		}
		return fmt.Errorf("publish to %s: %w", d.cfg.Exchange, err)
	}
	return nil
}

// Close releases the channel and connection. Later Enqueue calls fail.
func (d *AMQPDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	if d.session == nil || d.session.close == nil {
		d.session = nil
		return nil
	}
	err := d.session.close()
	d.session = nil
	return err
}

func ignoreAMQPClosed(err error) error {
	if errors.Is(err, amqp.ErrClosed) {
		return nil
	}
	return err
}
