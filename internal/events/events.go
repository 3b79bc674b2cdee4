// Package events publishes order lifecycle events to RabbitMQ after commit.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// OrderEvent is the body of every order.<status> message.
type OrderEvent struct {
	OrderID    string    `json:"order_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Event      string    `json:"event"`
	Actor      string    `json:"actor,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e OrderEvent) RoutingKey() string {
	return "order." + e.To
}

type Publisher interface {
	PublishOrderEvent(ctx context.Context, e OrderEvent) error
}

// Channel is the part of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type AMQPPublisher struct {
	ch       Channel
	exchange string
}

func NewAMQPPublisher(ch Channel, exchange string) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, exchange: exchange}
}

func (p *AMQPPublisher) PublishOrderEvent(ctx context.Context, e OrderEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    e.OccurredAt,
		ContentType:  "application/json",
		MessageId:    fmt.Sprintf("%s:%s", e.OrderID, e.To),
		Body:         body,
	}

	return p.ch.PublishWithContext(ctx,
		p.exchange,
		e.RoutingKey(),
		false, // mandatory
		false, // immediate
		msg,
	)
}

// Connection owns the broker connection behind an AMQPPublisher.
type Connection struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
}

// Dial connects and declares the durable topic exchange.
func Dial(url, exchange string) (*Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Connection{Conn: conn, Channel: ch}, nil
}

func (c *Connection) Close() {
	if c.Channel != nil {
		_ = c.Channel.Close()
	}
	if c.Conn != nil {
		_ = c.Conn.Close()
	}
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) PublishOrderEvent(context.Context, OrderEvent) error { return nil }
