package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueTransport publishes messages to a durable RabbitMQ queue read by an external mail worker
type QueueTransport struct {
	url   string
	queue string

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewQueueTransport connects to the broker and declares the queue
func NewQueueTransport(url, queue string) (*QueueTransport, error) {
	t := &QueueTransport{url: url, queue: queue}
	if err := t.connect(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *QueueTransport) connect() error {
	const op = "mail.QueueTransport.connect"

	conn, err := amqp.Dial(t.url)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := ch.QueueDeclare(t.queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("%s: %w", op, err)
	}

	t.conn, t.channel = conn, ch
	return nil
}

// Deliver publishes msg as a persistent JSON message, reconnecting once if the channel was lost
func (t *QueueTransport) Deliver(ctx context.Context, msg Message) error {
	const op = "mail.QueueTransport.Deliver"

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.channel == nil || t.channel.IsClosed() {
		t.closeLocked()
		if err := t.connect(); err != nil {
			return err
		}
	}

	err = t.channel.PublishWithContext(
		ctx,
		"",
		t.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close closes the channel and the connection
func (t *QueueTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLocked()
	return nil
}

func (t *QueueTransport) closeLocked() {
	if t.channel != nil {
		_ = t.channel.Close()
		t.channel = nil
	}
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
}
