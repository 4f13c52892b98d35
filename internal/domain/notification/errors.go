package notification

import "github.com/cmlabs-hris/attendance-engine/internal/pkg/apperror"

var (
	ErrNotificationNotFound = apperror.NotFound("NOTIFICATION_NOT_FOUND", "notification not found")
	ErrQueueClosed          = apperror.Conflict("NOTIFICATION_QUEUE_CLOSED", "notification service is stopped")
)
