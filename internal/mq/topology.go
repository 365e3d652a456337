package mq

import (
	"context"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

const (
	ExchangeSync Exchange = "ynab.sync"
	ExchangeDLQ  Exchange = "ynab.dlq"
)

const (
	QueueSyncRequested Queue = "sync.requested"
	QueueSyncCompleted Queue = "sync.completed"
	QueueDLQSync       Queue = "dlq.sync"
)

const (
	RoutingKeyRequested RoutingKey = "requested"
	RoutingKeyCompleted RoutingKey = "completed"
	RoutingKeyDLQSync   RoutingKey = "sync"
)

type exchangeDecl struct {
	name Exchange
	kind string
}

type queueDecl struct {
	name Queue
	args amqp.Table
	note string
}

type bindingDecl struct {
	queue    Queue
	key      RoutingKey
	exchange Exchange
}

var exchanges = []exchangeDecl{
	{ExchangeSync, amqp.ExchangeDirect},
	{ExchangeDLQ, amqp.ExchangeDirect},
}

var queues = []queueDecl{
	// отклонённые запросы уходят в dlq.sync
	{QueueSyncRequested, amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQSync),
	}, "consumer: ynab-worker, DLQ: dlq.sync"},
	{QueueSyncCompleted, nil, "monitoring"},
	{QueueDLQSync, nil, "manual processing"},
}

var bindings = []bindingDecl{
	{QueueSyncRequested, RoutingKeyRequested, ExchangeSync},
	{QueueSyncCompleted, RoutingKeyCompleted, ExchangeSync},
	{QueueDLQSync, RoutingKeyDLQSync, ExchangeDLQ},
}

// SetupTopology объявляет обменники, очереди и привязки. Операция идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range exchanges {
			if err := ch.ExchangeDeclare(string(ex.name), ex.kind, true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex.name, err)
			}
		}
		for _, q := range queues {
			if _, err := ch.QueueDeclare(string(q.name), true, false, false, false, q.args); err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}
		}
		for _, b := range bindings {
			if err := ch.QueueBind(string(b.queue), string(b.key), string(b.exchange), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}
		return nil
	})
}

// TopologyInfo описывает топологию для лога при старте.
func TopologyInfo() string {
	var b strings.Builder
	for _, ex := range exchanges {
		fmt.Fprintf(&b, "%s (%s)\n", ex.name, ex.kind)
		for _, bind := range bindings {
			if bind.exchange != ex.name {
				continue
			}
			note := ""
			for _, q := range queues {
				if q.name == bind.queue {
					note = q.note
				}
			}
			fmt.Fprintf(&b, "  %s [routing: %s] %s\n", bind.queue, bind.key, note)
		}
	}
	return b.String()
}
