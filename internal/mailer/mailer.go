package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const ConfirmationEventType = "payment.confirmed"

// ConfirmationEmail is the request handed to the email service. Template
// rendering happens downstream.
type ConfirmationEmail struct {
	Type        string    `json:"type"`
	OrderID     string    `json:"order_id"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	FullName    string    `json:"full_name"`
	BookingType string    `json:"booking_type"`
	BookingID   string    `json:"booking_id"`
	Amount      float64   `json:"amount"`
	Items       []string  `json:"items,omitempty"`
	PaidAt      time.Time `json:"paid_at"`
}

type Sender interface {
	SendConfirmation(ctx context.Context, msg ConfirmationEmail) error
	Close() error
}

type KafkaSender struct {
	writer     *kafka.Writer
	maxRetries int
	logger     *slog.Logger
}

func NewKafkaSender(brokers []string, topic string, logger *slog.Logger) *KafkaSender {
	return &KafkaSender{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
		maxRetries: 3,
		logger:     logger,
	}
}

func (k *KafkaSender) SendConfirmation(ctx context.Context, msg ConfirmationEmail) error {
	if msg.Type == "" {
		msg.Type = ConfirmationEventType
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal confirmation for %s: %w", msg.OrderID, err)
	}

	km := kafka.Message{
		Key:   []byte(msg.UserID),
		Value: value,
		Time:  time.Now(),
	}

	for attempt := 1; attempt <= k.maxRetries; attempt++ {
		err = k.writer.WriteMessages(ctx, km)
		if err == nil {
			return nil
		}
		k.logger.Warn("Confirmation publish failed",
			"order_id", msg.OrderID,
			"attempt", attempt,
			"error", err,
		)
		if attempt < k.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}
	return fmt.Errorf("failed to publish confirmation for %s after %d attempts: %w", msg.OrderID, k.maxRetries, err)
}

func (k *KafkaSender) Close() error {
	return k.writer.Close()
}

// LogSender only logs the request. Used when no brokers are configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (l *LogSender) SendConfirmation(ctx context.Context, msg ConfirmationEmail) error {
	l.logger.Info("Confirmation email queued",
		"order_id", msg.OrderID,
		"user_id", msg.UserID,
		"email", msg.Email,
		"booking_type", msg.BookingType,
		"amount", msg.Amount,
	)
	return nil
}

func (l *LogSender) Close() error { return nil }
