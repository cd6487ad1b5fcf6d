package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const publishAttempts = 3

// SessionEventPublisher publishes committed session changes.
type SessionEventPublisher interface {
	PublishSessionEvent(ctx context.Context, event SessionEvent) error
}

// amqpChannel is the part of *amqp.Channel the publisher uses.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type rabbitMQPublisher struct {
	channel   amqpChannel
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQSessionEventPublisher opens a channel and declares the durable events queue.
func NewRabbitMQSessionEventPublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (*rabbitMQPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("session event publisher: failed to open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("session event publisher: failed to declare queue '%s': %w", queueName, err)
	}
	return newPublisher(ch, queueName, logger), nil
}

func newPublisher(ch amqpChannel, queueName string, logger *zap.Logger) *rabbitMQPublisher {
	return &rabbitMQPublisher{
		channel:   ch,
		queueName: queueName,
		logger:    logger.Named("SessionEventPublisher"),
	}
}

// PublishSessionEvent implements SessionEventPublisher.
func (p *rabbitMQPublisher) PublishSessionEvent(ctx context.Context, event SessionEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal session event %s: %w", event.EventID, err)
	}
	if err := p.publishMessage(ctx, body); err != nil {
		return fmt.Errorf("failed to publish session event %s (%s): %w", event.EventID, event.Type, err)
	}
	return nil
}

// Close closes the underlying channel.
func (p *rabbitMQPublisher) Close() error {
	if p.channel == nil {
		return nil
	}
	return p.channel.Close()
}

func (p *rabbitMQPublisher) publishMessage(ctx context.Context, body []byte) error {
	if p.channel == nil {
		return errors.New("rabbitmq channel is not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	for attempt := 1; attempt <= publishAttempts; attempt++ {
		err = p.channel.PublishWithContext(ctx,
			"",          // default exchange
			p.queueName, // routing key
			false,       // mandatory
			false,       // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Body:         body,
				Timestamp:    time.Now(),
				AppId:        "story-engine",
			},
		)
		if err == nil {
			p.logger.Debug("Message published", zap.String("queue", p.queueName), zap.Int("attempt", attempt))
			return nil
		}
		p.logger.Warn("Publish attempt failed", zap.String("queue", p.queueName), zap.Int("attempt", attempt), zap.Error(err))
		if attempt == publishAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("publish to queue %s cancelled: %w", p.queueName, ctx.Err())
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
	return fmt.Errorf("publish to queue %s failed after %d attempts: %w", p.queueName, publishAttempts, err)
}

// NoopPublisher drops events. Used when no broker is configured.
type NoopPublisher struct{}

// PublishSessionEvent implements SessionEventPublisher.
func (NoopPublisher) PublishSessionEvent(context.Context, SessionEvent) error { return nil }
