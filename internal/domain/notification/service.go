package notification

import (
	"context"
)

// Sink is the fire-and-forget entry point used by the attendance and payroll core.
type Sink interface {
	QueueNotification(ctx context.Context, req CreateNotificationRequest) error
}

// Service defines the notification service interface
type Service interface {
	Sink
	GetNotifications(ctx context.Context, staffID string, role *string, page, pageSize int) (NotificationListResponse, error)
	MarkAsRead(ctx context.Context, staffID string, ids []string) error

	// Stop flushes queued notifications and stops the workers.
	Stop()
}
