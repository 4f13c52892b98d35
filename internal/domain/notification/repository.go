package notification

import (
	"context"
)

// Repository defines the notification repository interface
type Repository interface {
	Create(ctx context.Context, notification *Notification) error
	CreateBatch(ctx context.Context, notifications []*Notification) error
	// ListByRecipient returns notifications addressed to staffID or to role.
	ListByRecipient(ctx context.Context, staffID string, role *string, page, pageSize int) ([]*Notification, int, error)
	MarkAsRead(ctx context.Context, ids []string, staffID string) error
}

// Publisher forwards persisted notifications to an external event stream.
type Publisher interface {
	PublishNotifications(ctx context.Context, notifications []*Notification) error
}
