// Package events publishes domain events to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

const EnrollmentCreatedPattern = "enrollment.created"

// Publisher is implemented by AMQPPublisher and Nop.
type Publisher interface {
	Publish(ctx context.Context, pattern string, data interface{}) error
}

type EnrollmentCreated struct {
	EnrollmentID string    `json:"enrollmentId"`
	OrderID      string    `json:"orderId"`
	UserID       string    `json:"userId"`
	CourseID     string    `json:"courseId"`
	AmountPaid   string    `json:"amountPaid"`
	Currency     string    `json:"currency"`
	Source       string    `json:"source"`
	EnrolledAt   time.Time `json:"enrolledAt"`
}

// Envelope is the message shape consumers on the exchange expect.
type Envelope struct {
	Pattern string      `json:"pattern"`
	Data    interface{} `json:"data"`
	ID      string      `json:"id,omitempty"`
}

// AMQPPublisher publishes JSON envelopes to a topic exchange, routed by
// pattern. amqp.Channel is not safe for concurrent publishing, hence mu.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewAMQPPublisher(amqpURL, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &AMQPPublisher{conn: conn, channel: channel, exchange: exchange}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, pattern string, data interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := Encode(pattern, data)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	log.Printf("Publishing message with pattern '%s' to exchange '%s'", pattern, p.exchange)
	err = p.channel.Publish(p.exchange, pattern, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// Encode marshals data inside an Envelope.
func Encode(pattern string, data interface{}) ([]byte, error) {
	body, err := json.Marshal(Envelope{Pattern: pattern, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return body, nil
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, interface{}) error { return nil }
