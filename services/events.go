package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kendall-kelly/memorial-diamonds-api/enums"
	"github.com/kendall-kelly/memorial-diamonds-api/models"
	"github.com/segmentio/kafka-go"
)

// EventType names an order lifecycle event.
type EventType string

const (
	EventOrderCreated         EventType = "order.created"
	EventOrderUpdated         EventType = "order.updated"
	EventOrderCancelled       EventType = "order.cancelled"
	EventOrderDeleted         EventType = "order.deleted"
	EventStageStarted         EventType = "stage.started"
	EventStageCompleted       EventType = "stage.completed"
	EventCustomerNotification EventType = "customer.notification"
)

// OrderEvent is the message published for every committed order change.
type OrderEvent struct {
	Type               EventType         `json:"type"`
	OrderID            uint              `json:"order_id"`
	OrderNumber        string            `json:"order_number"`
	OrderStatus        enums.OrderStatus `json:"order_status"`
	ProgressPercentage int               `json:"progress_percentage"`
	CurrentStage       string            `json:"current_stage"`
	StageID            string            `json:"stage_id,omitempty"`
	StageName          string            `json:"stage_name,omitempty"`
	Operator           string            `json:"operator"`
	Message            string            `json:"message,omitempty"`
	OccurredAt         time.Time         `json:"occurred_at"`
}

// NewOrderEvent snapshots order into an event of the given type.
func NewOrderEvent(eventType EventType, order *models.Order, operator string, at time.Time) OrderEvent {
	return OrderEvent{
		Type:               eventType,
		OrderID:            order.ID,
		OrderNumber:        order.OrderNumber,
		OrderStatus:        order.Status,
		ProgressPercentage: order.ProgressPercentage,
		CurrentStage:       order.CurrentStage,
		Operator:           operator,
		OccurredAt:         at,
	}
}

// EventPublisher delivers order events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventPublisher writes events keyed by order number so one order's events stay ordered.
type KafkaEventPublisher struct {
	writer messageWriter
}

// NewKafkaEventPublisher creates a publisher for the given brokers and topic.
func NewKafkaEventPublisher(brokers []string, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish serializes and writes one event.
func (p *KafkaEventPublisher) Publish(ctx context.Context, event OrderEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderNumber),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
		Time: event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Close flushes pending writes.
func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}

// NoopEventPublisher drops every event.
type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(context.Context, OrderEvent) error { return nil }

func (NoopEventPublisher) Close() error { return nil }
