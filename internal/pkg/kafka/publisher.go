// Package kafka forwards persisted notifications to a Kafka topic so other services
// (mobile push, email) can react to attendance and payroll events.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/notification"
	kafkago "github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafkago.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type NotificationPublisher struct {
	writer MessageWriter
}

// NewNotificationPublisher writes to topic on brokers. Messages for the same
// recipient hash to the same partition and stay ordered.
func NewNotificationPublisher(brokers []string, topic string) *NotificationPublisher {
	return NewPublisherWithWriter(&kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	})
}

func NewPublisherWithWriter(w MessageWriter) *NotificationPublisher {
	return &NotificationPublisher{writer: w}
}

// event is the wire payload of one notification.
type event struct {
	ID            string                        `json:"id"`
	Type          notification.NotificationType `json:"type"`
	BranchID      *string                       `json:"branch_id,omitempty"`
	RecipientID   *string                       `json:"recipient_id,omitempty"`
	RecipientRole *string                       `json:"recipient_role,omitempty"`
	Title         string                        `json:"title"`
	Message       string                        `json:"message"`
	Data          map[string]any                `json:"data,omitempty"`
	CreatedAt     time.Time                     `json:"created_at"`
}

// BuildMessage encodes n. The key is the recipient so a staff member's events keep
// their order; role broadcasts are keyed by role and branch.
func BuildMessage(n *notification.Notification) (kafkago.Message, error) {
	payload, err := json.Marshal(event{
		ID:            n.ID,
		Type:          n.Type,
		BranchID:      n.BranchID,
		RecipientID:   n.RecipientID,
		RecipientRole: n.RecipientRole,
		Title:         n.Title,
		Message:       n.Message,
		Data:          n.Data,
		CreatedAt:     n.CreatedAt,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("encode notification %s: %w", n.ID, err)
	}

	return kafkago.Message{
		Key:   []byte(partitionKey(n)),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(n.Type)},
			{Key: "notification_id", Value: []byte(n.ID)},
		},
		Time: n.CreatedAt,
	}, nil
}

func partitionKey(n *notification.Notification) string {
	if n.RecipientID != nil {
		return "staff:" + *n.RecipientID
	}
	key := "role:"
	if n.RecipientRole != nil {
		key += *n.RecipientRole
	}
	if n.BranchID != nil {
		key += ":" + *n.BranchID
	}
	return key
}

// PublishNotifications implements notification.Publisher.
func (p *NotificationPublisher) PublishNotifications(ctx context.Context, notifications []*notification.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, 0, len(notifications))
	for _, n := range notifications {
		msg, err := BuildMessage(n)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d notifications: %w", len(msgs), err)
	}
	return nil
}

func (p *NotificationPublisher) Close() error {
	return p.writer.Close()
}
