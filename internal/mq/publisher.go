package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/ynab-portal/internal/domain"
)

// MessageType — тип сообщения.
type MessageType string

const (
	MessageTypeSyncRequested MessageType = "sync.requested"
	MessageTypeSyncCompleted MessageType = "sync.completed"
)

// Message — конверт сообщения.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// SyncRequestedPayload — запрос на выполнение sync run.
type SyncRequestedPayload struct {
	RunID uuid.UUID  `json:"run_id"`
	Job   domain.Job `json:"job"`
	Force bool       `json:"force"`
}

// SyncCompletedPayload — итог sync run.
type SyncCompletedPayload struct {
	RunID  uuid.UUID        `json:"run_id"`
	Job    domain.Job       `json:"job"`
	Status domain.RunStatus `json:"status"`
	Error  string           `json:"error,omitempty"`
	Result json.RawMessage  `json:"result,omitempty"`
}

// NewMessage собирает сообщение с payload в JSON.
func NewMessage(msgType MessageType, payload any) (*Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   body,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

// Publish отправляет сообщение в exchange с ключом routingKey.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(ctx, string(exchange), string(routingKey), false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Type:         string(msg.Type),
			Timestamp:    msg.Timestamp,
			Body:         body,
		})
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.DebugContext(ctx, "published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishSyncRequested сообщает воркерам о новом PENDING run.
func (p *Publisher) PublishSyncRequested(ctx context.Context, run *domain.SyncRun) error {
	msg, err := NewMessage(MessageTypeSyncRequested, SyncRequestedPayload{
		RunID: run.ID,
		Job:   run.Job,
		Force: run.Force,
	})
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeSync, RoutingKeyRequested, msg)
}

// PublishSyncCompleted сообщает о завершении run.
func (p *Publisher) PublishSyncCompleted(ctx context.Context, run *domain.SyncRun) error {
	msg, err := NewMessage(MessageTypeSyncCompleted, SyncCompletedPayload{
		RunID:  run.ID,
		Job:    run.Job,
		Status: run.Status,
		Error:  run.Error,
		Result: run.Result,
	})
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeSync, RoutingKeyCompleted, msg)
}
