package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sjperalta/fintera-lending/pkg/logger"
)

const appID = "fintera-lending"

// RabbitMQPublisher publishes JSON events to a topic exchange
type RabbitMQPublisher struct {
	conn         *amqp.Connection
	exchangeName string
	logger       *slog.Logger
}

// Dial connects to the broker with a bounded number of retries
func Dial(uri string, attempts int) (*amqp.Connection, error) {
	var (
		conn *amqp.Connection
		err  error
	)
	for i := 1; i <= attempts; i++ {
		conn, err = amqp.Dial(uri)
		if err == nil {
			return conn, nil
		}
		logger.Warn("Failed to connect to RabbitMQ, retrying...", "attempt", i, "error", err)
		time.Sleep(time.Duration(i) * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, err)
}

// NewRabbitMQPublisher declares the exchange and returns a publisher on it
func NewRabbitMQPublisher(conn *amqp.Connection, exchangeName string) (*RabbitMQPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchangeName, err)
	}

	return &RabbitMQPublisher{
		conn:         conn,
		exchangeName: exchangeName,
		logger:       logger.With("component", "events", "exchange", exchangeName),
	}, nil
}

func (p *RabbitMQPublisher) publish(ctx context.Context, routingKey string, event interface{}) error {
	channel, err := p.conn.Channel()
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to open RabbitMQ channel", slog.Any("error", err))
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer channel.Close()

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = channel.PublishWithContext(
		ctx,
		p.exchangeName,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
			AppId:        appID,
		},
	)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to publish message to RabbitMQ",
			slog.String("routingKey", routingKey),
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.DebugContext(ctx, "Published message", "routingKey", routingKey, "bodySize", len(body))
	return nil
}

func (p *RabbitMQPublisher) PublishLoanStatusChanged(ctx context.Context, event LoanStatusChanged) error {
	return p.publish(ctx, RoutingKeyLoanStatusChanged, event)
}

func (p *RabbitMQPublisher) PublishScheduleGenerated(ctx context.Context, event ScheduleGenerated) error {
	return p.publish(ctx, RoutingKeyScheduleGenerated, event)
}

func (p *RabbitMQPublisher) PublishPaymentApplied(ctx context.Context, event PaymentApplied) error {
	return p.publish(ctx, RoutingKeyPaymentApplied, event)
}

func (p *RabbitMQPublisher) PublishIncomeRecognized(ctx context.Context, event IncomeRecognized) error {
	return p.publish(ctx, RoutingKeyIncomeRecognized, event)
}

// Close closes the broker connection
func (p *RabbitMQPublisher) Close() error {
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Close()
}

var _ Publisher = (*RabbitMQPublisher)(nil)
