package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sokoni/server/internal/port/outbound"
)

const defaultPublishTimeout = 3 * time.Second

// Publisher writes JSON messages to durable queues on the default exchange.
type Publisher struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	timeout time.Duration
}

// Dial connects to the broker and declares queues so a publish never fails
// on missing infrastructure.
func Dial(url string, timeout time.Duration, queues ...string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	for _, q := range queues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("declare %s: %w", q, err)
		}
	}

	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Publisher{conn: conn, ch: ch, timeout: timeout}, nil
}

// Publish sends a persistent JSON message to queue.
func (p *Publisher) Publish(ctx context.Context, queue string, message []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.ch.PublishWithContext(
		pubCtx,
		"",    // default exchange
		queue, // queue name as routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         message,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	return nil
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	if err := p.ch.Close(); err != nil {
		_ = p.conn.Close()
		return err
	}
	return p.conn.Close()
}

// Compile-time check
var _ outbound.MessagePort = (*Publisher)(nil)
