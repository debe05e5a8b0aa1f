// Package events publishes domain events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"warungpos/backend/internal/logger"
	"warungpos/backend/internal/xid"
)

const (
	TypeSalePosted          = "sale.posted"
	TypeTransactionPaid     = "transaction.paid"
	TypeDebtPaymentRecorded = "debt.payment_recorded"
	TypeDebtReminderSent    = "debt.reminder_sent"
	TypeStockAdjusted       = "stock.adjusted"
)

type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	StoreID    string    `json:"store_id"`
	EntityID   string    `json:"entity_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload,omitempty"`
}

func New(eventType, storeID, entityID string, payload any) Event {
	return Event{
		ID:         xid.New(),
		Type:       eventType,
		StoreID:    storeID,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}
	return &KafkaPublisher{writer: writer}
}

// Publish keys messages by store so one store's events stay ordered on a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.StoreID),
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write event to kafka: %w", err)
	}

	logger.Debug(ctx, "published event", "type", event.Type, "store_id", event.StoreID, "entity_id", event.EntityID)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, _ Event) error {
	return nil
}
