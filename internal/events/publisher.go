// Package events publishes payment outcome events to a topic exchange.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	KeyPaymentVerified   = "payment.verified"
	KeyPaymentSoftFailed = "payment.soft_failed"
	KeyPaymentFailed     = "payment.failed"
	KeyOrderCreated      = "order.created"
)

var ErrPublisherClosed = errors.New("publisher closed")

// Publisher sends JSON events under a routing key.
type Publisher interface {
	Publish(ctx context.Context, key string, v any) error
	Close() error
}

// Envelope is the body of every published event.
type Envelope struct {
	Type       string    `json:"type"`
	TenantID   string    `json:"tenantId"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// dialFunc opens a connection and a channel with the exchange declared.
type dialFunc func() (channel, io.Closer, error)

// RabbitPublisher re-dials the broker when it finds its channel closed, so a
// broker restart only fails the publishes made while it is down.
type RabbitPublisher struct {
	mu       sync.Mutex
	dial     dialFunc
	conn     io.Closer
	ch       channel
	exchange string
	log      *zap.Logger
	closed   bool
}

func NewRabbitPublisher(url, exchange string, log *zap.Logger) (*RabbitPublisher, error) {
	return newRabbitPublisher(amqpDialer(url, exchange), exchange, log)
}

func newRabbitPublisher(dial dialFunc, exchange string, log *zap.Logger) (*RabbitPublisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	p := &RabbitPublisher{dial: dial, exchange: exchange, log: log}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func amqpDialer(url, exchange string) dialFunc {
	return func() (channel, io.Closer, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("open channel: %w", err)
		}
		if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, nil, fmt.Errorf("declare exchange: %w", err)
		}
		return ch, conn, nil
	}
}

// connect replaces the current channel. Callers hold p.mu or own p exclusively.
func (p *RabbitPublisher) connect() error {
	p.release()
	ch, conn, err := p.dial()
	if err != nil {
		return err
	}
	p.ch, p.conn = ch, conn
	return nil
}

func (p *RabbitPublisher) release() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Publish marshals v and sends it persistently. Channels are not safe for
// concurrent publishes, so calls are serialised. A closed channel is
// re-dialed once per call.
func (p *RabbitPublisher) Publish(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         b,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPublisherClosed
	}

	redialed := false
	if p.ch == nil || p.ch.IsClosed() {
		if err := p.connect(); err != nil {
			return err
		}
		redialed = true
		p.log.Info("rabbitmq channel re-established")
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, key, false, false, msg)
	if err == nil || redialed || !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	if err := p.connect(); err != nil {
		return err
	}
	p.log.Info("rabbitmq channel re-established")
	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, msg)
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.release()
	return nil
}

// Noop drops every event. It is used when no broker is configured.
type Noop struct {
	log *zap.Logger
}

func NewNoop(log *zap.Logger) *Noop {
	if log == nil {
		log = zap.NewNop()
	}
	return &Noop{log: log}
}

func (n *Noop) Publish(_ context.Context, key string, _ any) error {
	n.log.Debug("event dropped, no broker configured", zap.String("routing_key", key))
	return nil
}

func (n *Noop) Close() error { return nil }

var (
	_ Publisher = (*RabbitPublisher)(nil)
	_ Publisher = (*Noop)(nil)
)
