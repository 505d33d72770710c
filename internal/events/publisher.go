// Package events publishes applied settlement transitions to Kafka so
// downstream consumers (notifications, analytics) see each transition
// exactly once per processed event.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const (
	TypePaymentCompleted = "order.payment_completed"
	TypePaymentFailed    = "order.payment_failed"
	TypeOrderRefunded    = "order.refunded"
)

// OrderEvent is the payload published after a settlement transition is
// applied to an order.
type OrderEvent struct {
	Type          string    `json:"type"`
	OrderID       string    `json:"order_id"`
	UserID        string    `json:"user_id"`
	PaymentID     string    `json:"payment_id,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
	PaymentStatus string    `json:"payment_status"`
	OrderStatus   string    `json:"order_status"`
	TotalAmount   float64   `json:"total_amount"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
}

type KafkaPublisher struct {
	writer *kafka.Writer
	log    *logrus.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log *logrus.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		log: log,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event OrderEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}

	p.log.WithFields(logrus.Fields{
		"type":     event.Type,
		"order_id": event.OrderID,
	}).Info("order event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher discards events; used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, OrderEvent) error { return nil }
