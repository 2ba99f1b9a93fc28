// Package queue provides the RabbitMQ broker used to hand invitation jobs
// from the API server to the background worker.
package queue

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/skillgate/go-interview-backend/internal/config"
)

// HandlerFunc processes one delivery body. A nil return acks the message; an
// error nacks it. A message that already failed once is not requeued again.
type HandlerFunc func(ctx context.Context, body []byte) error

// Broker is a thin wrapper over an AMQP connection bound to a single durable
// queue. One Broker serves either the publisher (API server) or the consumer
// (worker) side.
type Broker struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	queue      string
	maxConsume int
	log        zerolog.Logger
}

// NewBroker dials the AMQP server and declares the invite queue as durable,
// so pending invitations survive a broker restart.
func NewBroker(cfg config.AMQPConfig, log zerolog.Logger) (*Broker, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(cfg.InviteQueue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	maxConsume := cfg.MaxConsume
	if maxConsume <= 0 {
		maxConsume = 1
	}
	return &Broker{
		conn:       conn,
		ch:         ch,
		queue:      cfg.InviteQueue,
		maxConsume: maxConsume,
		log:        log,
	}, nil
}

// Publish sends a persistent JSON message to the invite queue.
func (b *Broker) Publish(ctx context.Context, body []byte) error {
	return b.ch.PublishWithContext(ctx, "", b.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Consume blocks reading deliveries until ctx is canceled or the channel
// closes. At most maxConsume messages are processed concurrently; each is
// acked on success and nacked on error. A nacked message is requeued once:
// redelivered messages that fail again are dropped to the broker.
func (b *Broker) Consume(ctx context.Context, fn HandlerFunc) error {
	msgs, err := b.ch.Consume(b.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	sem := make(chan struct{}, b.maxConsume)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, open := <-msgs:
			if !open {
				return nil
			}
			sem <- struct{}{}
			go func(msg amqp.Delivery) {
				defer func() { <-sem }()
				b.process(ctx, msg, fn)
			}(msg)
		}
	}
}

func (b *Broker) process(ctx context.Context, msg amqp.Delivery, fn HandlerFunc) {
	if err := fn(ctx, msg.Body); err != nil {
		b.log.Error().Err(err).Bool("redelivered", msg.Redelivered).Msg("invite job failed")
		_ = msg.Nack(false, !msg.Redelivered)
		return
	}
	_ = msg.Ack(false)
}

// Close tears down the channel and connection.
func (b *Broker) Close() error {
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
