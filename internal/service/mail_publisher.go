package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/prodhub/production-api/internal/queue"
)

// DefaultPublishDialTimeout bounds connecting and handshaking with the
// broker for one reset mail.
const DefaultPublishDialTimeout = 2 * time.Second

// MailPublisher implements ResetMailer by queueing the request on RabbitMQ;
// queue.StartMailConsumer performs the actual delivery.
type MailPublisher struct {
	URL         string
	Queue       string
	DialTimeout time.Duration
}

func NewMailPublisher(url, queueName string) *MailPublisher {
	if queueName == "" {
		queueName = queue.PasswordResetQueue
	}
	return &MailPublisher{URL: url, Queue: queueName, DialTimeout: DefaultPublishDialTimeout}
}

// dialer connects under ctx and leaves a deadline on the socket for the
// AMQP handshake; the client clears it once the connection is open.
func (p *MailPublisher) dialer(ctx context.Context) func(network, addr string) (net.Conn, error) {
	timeout := p.DialTimeout
	if timeout <= 0 {
		timeout = DefaultPublishDialTimeout
	}
	return func(network, addr string) (net.Conn, error) {
		deadline := time.Now().Add(timeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		d := net.Dialer{Deadline: deadline}
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

// SendPasswordReset publishes ev as a persistent JSON message.
func (p *MailPublisher) SendPasswordReset(ctx context.Context, ev queue.PasswordResetRequested) error {
	conn, err := amqp.DialConfig(p.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      p.dialer(ctx),
	})
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// durable, so queued mail survives a broker restart
	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal reset event: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}
