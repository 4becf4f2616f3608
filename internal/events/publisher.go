// Package events publishes reservation lifecycle messages for downstream
// collaborators (waitlist notifications, analytics). Delivery is best effort:
// the reservation path never fails because the broker is down.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	exchangeName = "item.lifecycle"

	routingKeyReserved = "item.reserved"
	routingKeySold     = "item.sold"
)

// ItemReservedEvent is published when a hold is granted.
type ItemReservedEvent struct {
	ItemID     string `json:"item_id"`
	ExpiresAt  string `json:"expires_at"`
	OccurredAt string `json:"occurred_at"`
}

// ItemSoldEvent is published when a sale is finalized.
type ItemSoldEvent struct {
	ItemID     string `json:"item_id"`
	OccurredAt string `json:"occurred_at"`
}

// AMQPPublisher emits lifecycle events on a topic exchange.
type AMQPPublisher struct {
	logger *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewAMQPPublisher(url string, logger *slog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &AMQPPublisher{
		logger:  logger,
		conn:    conn,
		channel: ch,
	}, nil
}

func (p *AMQPPublisher) ItemReserved(ctx context.Context, itemID string, expiresAt time.Time) {
	p.publish(ctx, routingKeyReserved, ItemReservedEvent{
		ItemID:     itemID,
		ExpiresAt:  expiresAt.UTC().Format(time.RFC3339),
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})
}

func (p *AMQPPublisher) ItemSold(ctx context.Context, itemID string) {
	p.publish(ctx, routingKeySold, ItemSoldEvent{
		ItemID:     itemID,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})
}

func (p *AMQPPublisher) publish(ctx context.Context, routingKey string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, exchangeName, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		p.logger.Warn("event publish failed",
			slog.String("routing_key", routingKey),
			slog.String("error", err.Error()),
		)
	}
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.Close(); err != nil {
		_ = p.conn.Close()
		return err
	}
	return p.conn.Close()
}
