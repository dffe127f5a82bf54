package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher pushes booking events onto durable RabbitMQ queues, one queue
// per notification kind. Connections are established lazily and re-dialed
// after a broker failure; callers treat publish errors as best-effort.
type Publisher struct {
	url    string
	prefix string
	logger *zap.Logger

	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	declared map[string]struct{}
}

// NewPublisher builds a publisher. Queue names are "<prefix>.<kind>".
func NewPublisher(url, prefix string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		url:      url,
		prefix:   prefix,
		logger:   logger,
		declared: make(map[string]struct{}),
	}
}

// Publish sends a booking event to the queue for its kind. Messages are
// persistent so they survive broker restarts.
func (p *Publisher) Publish(ctx context.Context, event BookingEvent) error {
	if event.EmittedAt.IsZero() {
		event.EmittedAt = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal booking event: %w", err)
	}

	queueName := string(event.Kind)
	if p.prefix != "" {
		queueName = p.prefix + "." + queueName
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	channel, err := p.ensureChannel()
	if err != nil {
		return err
	}

	if _, ok := p.declared[queueName]; !ok {
		if _, err := channel.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
			p.reset()
			return fmt.Errorf("declare queue %s: %w", queueName, err)
		}
		p.declared[queueName] = struct{}{}
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := channel.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		p.reset()
		return fmt.Errorf("publish to %s: %w", queueName, err)
	}

	p.logger.Debug("booking event published",
		zap.String("queue", queueName),
		zap.String("booking_id", event.BookingID),
	)
	return nil
}

// Close shuts down the broker connection if open.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	p.channel = nil
	p.declared = make(map[string]struct{})
	return err
}

// ensureChannel dials the broker on first use or after a reset. Caller
// must hold p.mu.
func (p *Publisher) ensureChannel() (*amqp.Channel, error) {
	if p.channel != nil {
		return p.channel, nil
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	p.conn = conn
	p.channel = channel
	return channel, nil
}

// reset drops the cached connection so the next publish re-dials. Caller
// must hold p.mu.
func (p *Publisher) reset() {
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn = nil
	p.channel = nil
	p.declared = make(map[string]struct{})
}
